//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/traffic-incident-monitor/internal/adapter/feed"
	"github.com/couchcryptid/traffic-incident-monitor/internal/adapter/kafka"
	"github.com/couchcryptid/traffic-incident-monitor/internal/adapter/notify"
	"github.com/couchcryptid/traffic-incident-monitor/internal/config"
	"github.com/couchcryptid/traffic-incident-monitor/internal/dedup"
	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
	"github.com/couchcryptid/traffic-incident-monitor/internal/observability"
	"github.com/couchcryptid/traffic-incident-monitor/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDecisionsTopic = "test-incident-decisions"

// partnerFeed serves one scripted alert list per request; the last repeats.
func partnerFeed(t *testing.T, polls ...[]string) *httptest.Server {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		i := int(calls.Add(1)) - 1
		ids := polls[min(i, len(polls)-1)]
		doc := feed.PartnerDocument{}
		for _, id := range ids {
			doc.Alerts = append(doc.Alerts, feed.PartnerAlert{UUID: id, Type: "ACCIDENT", Subtype: "ACCIDENT_MINOR", Street: "Orchard Road"})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type notifySink struct {
	mu       sync.Mutex
	payloads []notify.Payload
}

func (s *notifySink) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p notify.Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.payloads = append(s.payloads, p)
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readDecisions(ctx context.Context, t *testing.T, broker string, n int) []kafkago.Message {
	t.Helper()
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testDecisionsTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	t.Cleanup(func() { _ = reader.Close() })

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msgs := make([]kafkago.Message, 0, n)
	for len(msgs) < n {
		msg, err := reader.ReadMessage(readCtx)
		require.NoError(t, err, "read decision %d of %d", len(msgs)+1, n)
		msgs = append(msgs, msg)
	}
	return msgs
}

func headerMap(msg kafkago.Message) map[string]string {
	out := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

// TestPollerPublishesDecisions runs two poll rounds against a fake partner
// feed and checks every decision lands on the decisions topic.
func TestPollerPublishesDecisions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testDecisionsTopic)

	metrics := observability.NewMetricsForTesting()
	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaDecisionsTopic: testDecisionsTopic}
	writer := kafka.NewDecisionWriter(cfg, metrics, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	feedSrv := partnerFeed(t, []string{"a", "b"}, []string{"a", "b", "c"})
	sink := &notifySink{}
	sinkSrv := sink.server(t)

	src := domain.FeedSource{ID: "west", DisplayName: "West Area", FetchURL: feedSrv.URL, Kind: domain.SourceKindPartner}
	adapters, err := feed.NewAll([]domain.FeedSource{src}, feed.Options{HTTPClient: feed.NewHTTPClient(5 * time.Second)})
	require.NoError(t, err)

	notifier := notify.NewClient(sinkSrv.URL, "test-key", "http://localhost:3000", 5*time.Second, discardLogger())
	p := pipeline.New(adapters, dedup.NewTransient(), notifier, discardLogger(), metrics, pipeline.Options{Recorder: writer})

	first := p.RunRound(ctx)
	assert.Equal(t, dedup.ColdStart, first.Phase)
	second := p.RunRound(ctx)
	assert.Equal(t, 1, second.Notified)

	msgs := readDecisions(ctx, t, broker, 5)

	type got struct{ key, action, reason string }
	var decisions []got
	for _, m := range msgs {
		h := headerMap(m)
		assert.Equal(t, "west", h["source"])
		assert.NotEmpty(t, h["decided_at"])
		decisions = append(decisions, got{string(m.Key), h["action"], h["reason"]})

		var d domain.Decision
		require.NoError(t, json.Unmarshal(m.Value, &d))
		assert.Equal(t, string(m.Key), d.Incident.ID)
	}
	assert.Equal(t, []got{
		{"a", "suppress", "cold_start"},
		{"b", "suppress", "cold_start"},
		{"a", "suppress", "seen"},
		{"b", "suppress", "seen"},
		{"c", "notify", "new"},
	}, decisions)

	assert.InDelta(t, 2, testutil.ToFloat64(metrics.DecisionsPublished.WithLabelValues("success")), 0)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.payloads, 1)
	assert.Contains(t, sink.payloads[0].Message, "Orchard Road")
}
