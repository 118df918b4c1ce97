package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/traffic-incident-monitor/internal/adapter/feed"
	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
	"github.com/couchcryptid/traffic-incident-monitor/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	src domain.FeedSource

	mu        sync.Mutex
	incidents []domain.RawIncident
	err       error
	calls     int
}

func (s *stubAdapter) Source() domain.FeedSource { return s.src }

func (s *stubAdapter) FetchDocument(context.Context) (feed.Document, error) {
	return nil, errors.New("not used")
}

func (s *stubAdapter) Fetch(context.Context) ([]domain.RawIncident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.RawIncident(nil), s.incidents...), nil
}

func (s *stubAdapter) set(incidents []domain.RawIncident, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents, s.err = incidents, err
}

func (s *stubAdapter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var t0 = time.Date(2026, 3, 12, 14, 0, 0, 0, time.UTC)

func incident(id string, cat domain.Category, sub string, age time.Duration) domain.RawIncident {
	return domain.RawIncident{ID: id, Category: cat, Subcategory: sub, Street: "Main St", City: "Springfield", PublishedAt: t0.Add(-age)}
}

func newTestBoard(t *testing.T, adapters ...feed.Adapter) *Board {
	t.Helper()
	b, err := New(adapters, adapters[0].Source().ID, clockwork.NewFakeClockAt(t0),
		slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	require.NoError(t, err)
	return b
}

func TestBoard_RefreshPreservesStatus(t *testing.T) {
	ctx := context.Background()
	a := &stubAdapter{src: domain.FeedSource{ID: "west"}}
	a.set([]domain.RawIncident{
		incident("a", domain.CategoryAccident, "ACCIDENT_MAJOR", time.Hour),
		incident("b", domain.CategoryJam, "JAM_HEAVY_TRAFFIC", time.Minute),
	}, nil)
	b := newTestBoard(t, a)

	require.NoError(t, b.Refresh(ctx))
	ops := "ops-1"
	_, err := b.SetStatus("a", domain.StatusAcknowledged, &ops)
	require.NoError(t, err)

	a.set([]domain.RawIncident{
		incident("a", domain.CategoryAccident, "ACCIDENT_MAJOR", time.Hour),
		incident("c", domain.CategoryHazard, "HAZARD_ON_ROAD", 0),
	}, nil)
	require.NoError(t, b.Refresh(ctx))

	got := b.Incidents(Filter{})
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID, "newest first")
	assert.Equal(t, domain.StatusNew, got[0].Status)
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, domain.StatusAcknowledged, got[1].Status)
	assert.Equal(t, "ops-1", got[1].Assignee)
}

func TestBoard_RefreshFailureKeepsLastKnownGood(t *testing.T) {
	ctx := context.Background()
	a := &stubAdapter{src: domain.FeedSource{ID: "west"}}
	a.set([]domain.RawIncident{incident("a", domain.CategoryJam, "", 0)}, nil)
	b := newTestBoard(t, a)
	require.NoError(t, b.Refresh(ctx))

	a.set(nil, &feed.FetchError{Source: "west", Kind: feed.KindNetwork, Err: errors.New("timeout")})
	require.Error(t, b.Refresh(ctx))

	assert.Len(t, b.Incidents(Filter{}), 1)
	assert.NotEmpty(t, b.Stats().LastError)
}

func TestBoard_Filter(t *testing.T) {
	a := &stubAdapter{src: domain.FeedSource{ID: "west"}}
	a.set([]domain.RawIncident{
		incident("acc", domain.CategoryAccident, "ACCIDENT_MINOR", 0),
		incident("fog", domain.CategoryWeatherHazard, "HAZARD_WEATHER_FOG", 0),
		incident("pot", domain.CategoryHazard, "HAZARD_ON_ROAD_POT_HOLE", 0),
	}, nil)
	b := newTestBoard(t, a)
	require.NoError(t, b.Refresh(context.Background()))

	ids := func(list []domain.ManagedIncident) []string {
		out := make([]string, 0, len(list))
		for _, m := range list {
			out = append(out, m.ID)
		}
		return out
	}

	assert.ElementsMatch(t, []string{"fog", "pot"}, ids(b.Incidents(Filter{Category: "HAZARD"})))
	assert.Equal(t, []string{"acc"}, ids(b.Incidents(Filter{Category: "ACCIDENT"})))
	assert.Equal(t, []string{"pot"}, ids(b.Incidents(Filter{Search: "pothole"})))
	assert.Len(t, b.Incidents(Filter{Category: FilterAll, Search: "springfield"}), 3)

	_, err := b.SetStatus("acc", domain.StatusResolved, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"acc"}, ids(b.Incidents(Filter{Status: domain.StatusResolved})))
}

func TestBoard_Stats(t *testing.T) {
	a := &stubAdapter{src: domain.FeedSource{ID: "west"}}
	a.set([]domain.RawIncident{
		incident("a", domain.CategoryAccident, "", 0),
		incident("b", domain.CategoryWeatherHazard, "", 0),
		incident("c", domain.CategoryHazard, "", 0),
	}, nil)
	b := newTestBoard(t, a)
	require.NoError(t, b.Refresh(context.Background()))

	s := b.Stats()
	assert.Equal(t, "west", s.Source)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, map[domain.Category]int{domain.CategoryAccident: 1, domain.CategoryHazard: 2}, s.ByCategory)
	assert.Equal(t, map[domain.Status]int{domain.StatusNew: 3}, s.ByStatus)
	assert.Equal(t, t0, s.LastRefresh)
}

func TestBoard_SetStatusUnknown(t *testing.T) {
	b := newTestBoard(t, &stubAdapter{src: domain.FeedSource{ID: "west"}})
	_, err := b.SetStatus("missing", domain.StatusResolved, nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBoard_Select(t *testing.T) {
	ctx := context.Background()
	west := &stubAdapter{src: domain.FeedSource{ID: "west"}}
	west.set([]domain.RawIncident{incident("w", domain.CategoryJam, "", 0)}, nil)
	lta := &stubAdapter{src: domain.FeedSource{ID: "lta"}}
	lta.set([]domain.RawIncident{incident("l", domain.CategoryJam, "", 0)}, nil)
	b := newTestBoard(t, west, lta)
	require.NoError(t, b.Refresh(ctx))

	require.NoError(t, b.Select(ctx, "lta"))
	got := b.Incidents(Filter{})
	require.Len(t, got, 1)
	assert.Equal(t, "l", got[0].ID)

	require.ErrorIs(t, b.Select(ctx, "nowhere"), ErrNotFound)
}

func TestNew_UnknownSource(t *testing.T) {
	_, err := New([]feed.Adapter{&stubAdapter{src: domain.FeedSource{ID: "west"}}}, "east", nil,
		slog.Default(), observability.NewMetricsForTesting())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBoard_RunPolls(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	a := &stubAdapter{src: domain.FeedSource{ID: "west"}}
	b, err := New([]feed.Adapter{a}, "west", clock, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx, time.Minute)
		close(done)
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.Eventually(t, func() bool { return a.Calls() == 1 }, time.Second, 5*time.Millisecond)

	clock.Advance(time.Minute)
	assert.Eventually(t, func() bool { return a.Calls() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestBoard_RunManualOnlyLoadsOnce(t *testing.T) {
	a := &stubAdapter{src: domain.FeedSource{ID: "west"}}
	b := newTestBoard(t, a)
	b.Run(context.Background(), 0)
	assert.Equal(t, 1, a.Calls())
	assert.NotZero(t, b.Stats().LastRefresh)
}
