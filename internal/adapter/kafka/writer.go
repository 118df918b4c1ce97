// Package kafka publishes dedup decisions to a Kafka topic for downstream
// audit and analytics consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/traffic-incident-monitor/internal/config"
	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
	"github.com/couchcryptid/traffic-incident-monitor/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// DecisionWriter produces one message per decision, keyed by incident id.
// It implements pipeline.DecisionRecorder.
type DecisionWriter struct {
	writer  messageWriter
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewDecisionWriter creates a producer for the configured decisions topic.
func NewDecisionWriter(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *DecisionWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaDecisionsTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &DecisionWriter{writer: w, metrics: metrics, logger: logger}
}

// Record publishes a source's decisions from one round in a single
// WriteMessages call.
func (w *DecisionWriter) Record(ctx context.Context, decisions []domain.Decision) error {
	if len(decisions) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(decisions))
	for i := range decisions {
		msg, err := serializeToMessage(decisions[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		w.metrics.DecisionsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("publish decisions: %w", err)
	}
	w.metrics.DecisionsPublished.WithLabelValues("success").Inc()
	w.logger.Debug("decisions published", "count", len(msgs))
	return nil
}

func (w *DecisionWriter) Close() error {
	return w.writer.Close()
}

func serializeToMessage(d domain.Decision) (kafkago.Message, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize decision: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(d.Incident.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(d.SourceID)},
			{Key: "action", Value: []byte(d.Action)},
			{Key: "reason", Value: []byte(d.Reason)},
			{Key: "decided_at", Value: []byte(d.DecidedAt.Format(time.RFC3339))},
		},
	}, nil
}
