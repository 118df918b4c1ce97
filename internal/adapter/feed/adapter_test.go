package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

var fixedNow = time.Date(2026, 3, 12, 14, 5, 0, 0, time.UTC)

func freezeClock(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(fixedNow))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func jsonServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func partnerSource(url string) domain.FeedSource {
	return domain.FeedSource{ID: "west", DisplayName: "West Region", FetchURL: url, Kind: domain.SourceKindPartner}
}

func requireFetchError(t *testing.T, err error, kind ErrorKind) *FetchError {
	t.Helper()
	var fe *FetchError
	require.True(t, errors.As(err, &fe), "expected *FetchError, got %T", err)
	assert.Equal(t, kind, fe.Kind)
	return fe
}

func TestPartnerAdapter_Fetch_Success(t *testing.T) {
	freezeClock(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, contentTypeJSON, r.Header.Get("Accept"))
		assert.NotEmpty(t, r.URL.Query().Get("t"), "cache-busting parameter")
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"alerts":[
			{"uuid":"a-1","type":"ACCIDENT","subtype":"ACCIDENT_MAJOR","street":"Main St","city":"Springfield",
			 "location":{"x":103.8,"y":1.35},"reliability":8,"nThumbsUp":3,"confidence":2,"pubMillis":1773324300000},
			{"uuid":"a-2","type":"WEATHERHAZARD","subtype":"HAZARD_WEATHER_FOG","location":{"x":1,"y":2}},
			{"type":"JAM"}
		]}`))
	}))
	defer srv.Close()

	a := NewPartnerAdapter(partnerSource(srv.URL), NewHTTPClient(5*time.Second))
	got, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2, "alerts without uuid are dropped")

	first := got[0]
	assert.Equal(t, "a-1", first.ID)
	assert.Equal(t, domain.CategoryAccident, first.Category)
	assert.Equal(t, "ACCIDENT_MAJOR", first.Subcategory)
	assert.Equal(t, domain.Location{Lon: 103.8, Lat: 1.35}, first.Location)
	assert.Equal(t, "west", first.SourceID)
	assert.Equal(t, 8, first.Reliability)
	assert.Equal(t, 3, first.ThumbsUp)
	assert.Equal(t, time.UnixMilli(1773324300000).UTC(), first.PublishedAt)

	second := got[1]
	assert.Equal(t, domain.CategoryWeatherHazard, second.Category)
	assert.Equal(t, 5, second.Reliability, "missing reliability defaults to 5")
	assert.Zero(t, second.ThumbsUp)
	assert.Equal(t, fixedNow, second.PublishedAt)
}

func TestPartnerAdapter_Fetch_EmptyOrAbsentAlerts(t *testing.T) {
	for _, body := range []string{`{}`, `{"alerts":[]}`, `{"alerts":null}`} {
		t.Run(body, func(t *testing.T) {
			srv := jsonServer(t, http.StatusOK, body)
			got, err := NewPartnerAdapter(partnerSource(srv.URL), srv.Client()).Fetch(context.Background())
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestPartnerAdapter_Fetch_HTTPStatus(t *testing.T) {
	srv := jsonServer(t, http.StatusServiceUnavailable, `{"error":"down"}`)
	_, err := NewPartnerAdapter(partnerSource(srv.URL), srv.Client()).Fetch(context.Background())
	fe := requireFetchError(t, err, KindHTTPStatus)
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
	assert.Equal(t, "west", fe.Source)
}

func TestPartnerAdapter_Fetch_MalformedBody(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"alerts": [`)
	_, err := NewPartnerAdapter(partnerSource(srv.URL), srv.Client()).Fetch(context.Background())
	requireFetchError(t, err, KindParse)
}

func TestPartnerAdapter_Fetch_Network(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()

	_, err := NewPartnerAdapter(partnerSource(url), NewHTTPClient(time.Second)).Fetch(context.Background())
	requireFetchError(t, err, KindNetwork)
}

func TestGovAdapter_Fetch(t *testing.T) {
	freezeClock(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("AccountKey"))
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"value":[
			{"Type":"Vehicle breakdown","Latitude":1.3,"Longitude":103.9,"Message":"(12/3)14:05 Vehicle breakdown on PIE"},
			{"Type":"Obstacle","Latitude":1.4,"Longitude":103.7,"Message":"(12/3)14:06 Obstacle on AYE"}
		]}`))
	}))
	defer srv.Close()

	src := domain.FeedSource{ID: "lta", FetchURL: srv.URL, Kind: domain.SourceKindGov, Street: "Singapore Road", City: "Singapore", Country: "SG"}
	got, err := NewGovAdapter(src, srv.Client(), "secret").Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.DeriveID("lta", "(12/3)14:05 Vehicle breakdown on PIE"), got[0].ID)
	assert.Equal(t, domain.CategoryHazard, got[0].Category)
	assert.Equal(t, "HAZARD_ON_SHOULDER_CAR_STOPPED", got[0].Subcategory)
	assert.False(t, got[0].Fallback)
	assert.Equal(t, "Singapore Road", got[0].Street)
	assert.Equal(t, "Singapore", got[0].City)
	assert.Equal(t, fixedNow, got[0].PublishedAt)

	assert.True(t, got[1].Fallback)
	assert.Equal(t, "HAZARD_ON_ROAD", got[1].Subcategory)
}

func TestGovAdapter_Fetch_NoKeySkipsRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	src := domain.FeedSource{ID: "lta", FetchURL: srv.URL, Kind: domain.SourceKindGov}
	got, err := NewGovAdapter(src, srv.Client(), "").Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, calls.Load())
}

func TestNewFromSource(t *testing.T) {
	opts := Options{HTTPClient: http.DefaultClient}

	a, err := NewFromSource(domain.FeedSource{ID: "west", FetchURL: "http://x"}, opts)
	require.NoError(t, err)
	assert.IsType(t, &PartnerAdapter{}, a)

	a, err = NewFromSource(domain.FeedSource{ID: "lta", FetchURL: "http://x", Kind: domain.SourceKindGov}, opts)
	require.NoError(t, err)
	assert.IsType(t, &GovAdapter{}, a)

	_, err = NewFromSource(domain.FeedSource{ID: "x", FetchURL: "http://x", Kind: "rss"}, opts)
	require.Error(t, err)

	_, err = NewFromSource(domain.FeedSource{ID: "x"}, opts)
	require.Error(t, err)
}
