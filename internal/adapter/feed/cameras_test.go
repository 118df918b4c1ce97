package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCameraClient_FetchCameras(t *testing.T) {
	var gotKey, gotBust string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("AccountKey")
		gotBust = r.URL.Query().Get("t")
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"odata.metadata":"x","value":[
			{"CameraID":"1701","Latitude":1.323,"Longitude":103.875,"ImageLink":"https://images.local/1701.jpg"}
		]}`))
	}))
	t.Cleanup(srv.Close)

	cams, err := NewCameraClient(srv.Client(), srv.URL, "acct").FetchCameras(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "acct", gotKey)
	assert.NotEmpty(t, gotBust)
	assert.Equal(t, []Camera{{CameraID: "1701", Latitude: 1.323, Longitude: 103.875, ImageLink: "https://images.local/1701.jpg"}}, cams)
}

func TestCameraClient_FetchCameras_Outcomes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		key      string
		wantErr  error
		wantKind ErrorKind
		wantLen  int
	}{
		{name: "missing value", status: http.StatusOK, body: `{}`, key: "acct", wantLen: 0},
		{name: "no account key", status: http.StatusOK, body: `{"value":[]}`, wantErr: ErrNoAccountKey},
		{name: "upstream error", status: http.StatusServiceUnavailable, body: ``, key: "acct", wantKind: KindHTTPStatus},
		{name: "bad json", status: http.StatusOK, body: `{"value":`, key: "acct", wantKind: KindParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := jsonServer(t, tt.status, tt.body)
			cams, err := NewCameraClient(srv.Client(), srv.URL, tt.key).FetchCameras(context.Background())

			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.wantKind != "":
				var fe *FetchError
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, tt.wantKind, fe.Kind)
			default:
				require.NoError(t, err)
				assert.NotNil(t, cams)
				assert.Len(t, cams, tt.wantLen)
			}
		})
	}
}

type countingCameras struct {
	calls int
	err   error
}

func (m *countingCameras) FetchCameras(context.Context) ([]Camera, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return []Camera{{CameraID: "1701"}}, nil
}

func TestCachedCameraClient(t *testing.T) {
	clock := clockwork.NewFakeClock()
	inner := &countingCameras{}
	cached := NewCachedCameraClient(inner, time.Minute, clock)
	ctx := context.Background()

	_, err := cached.FetchCameras(ctx)
	require.NoError(t, err)
	_, err = cached.FetchCameras(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls, "second call served from cache")

	clock.Advance(time.Minute)
	_, err = cached.FetchCameras(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "entry expires after ttl")
}

func TestCachedCameraClient_ErrorsNotCached(t *testing.T) {
	inner := &countingCameras{err: errors.New("upstream down")}
	cached := NewCachedCameraClient(inner, time.Minute, clockwork.NewFakeClock())

	_, err := cached.FetchCameras(context.Background())
	require.Error(t, err)

	inner.err = nil
	cams, err := cached.FetchCameras(context.Background())
	require.NoError(t, err)
	assert.Len(t, cams, 1)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedCameraClient_ZeroTTLDisables(t *testing.T) {
	inner := &countingCameras{}
	cached := NewCachedCameraClient(inner, 0, nil)
	for range 3 {
		_, err := cached.FetchCameras(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, inner.calls)
}
