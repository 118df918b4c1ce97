package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/traffic-incident-monitor/internal/adapter/feed"
	"github.com/couchcryptid/traffic-incident-monitor/internal/adapter/notify"
	"github.com/couchcryptid/traffic-incident-monitor/internal/dedup"
	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
)

// State is a source's position in its poll cycle.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateNormalizing
	StateDeduping
	StateNotifying
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "FETCHING"
	case StateNormalizing:
		return "NORMALIZING"
	case StateDeduping:
		return "DEDUPING"
	case StateNotifying:
		return "NOTIFYING"
	default:
		return "IDLE"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type cycleResult struct {
	source     string
	ids        []string
	notified   int
	suppressed int
	err        error
}

// runCycle takes one source from FETCHING back to IDLE. Errors are logged
// here and reported in the result; they never reach other sources.
func (p *Pipeline) runCycle(ctx context.Context, a feed.Adapter, phase dedup.Phase) cycleResult {
	src := a.Source()
	res := cycleResult{source: src.ID}
	defer p.setState(src.ID, StateIdle)

	p.setState(src.ID, StateFetching)
	doc, err := a.FetchDocument(ctx)
	if err != nil {
		p.fetchFailed(src, err)
		res.err = err
		return res
	}

	p.setState(src.ID, StateNormalizing)
	incidents, err := feed.Normalize(doc, src)
	if err != nil {
		p.fetchFailed(src, err)
		res.err = err
		return res
	}
	p.metrics.IncidentsFetched.WithLabelValues(src.ID).Add(float64(len(incidents)))

	p.setState(src.ID, StateDeduping)
	res.ids = make([]string, 0, len(incidents))
	decisions := make([]domain.Decision, 0, len(incidents))
	var fresh []domain.RawIncident
	for _, inc := range incidents {
		res.ids = append(res.ids, inc.ID)
		if inc.Fallback {
			p.metrics.ClassificationFallbacks.WithLabelValues(src.ID).Inc()
		}

		d, err := p.decide(ctx, inc, phase)
		if err != nil {
			p.logger.Warn("dedup failed, skipping incident", "source", src.ID, "incident_id", inc.ID, "error", err)
			continue
		}
		decisions = append(decisions, d)
		p.metrics.Decisions.WithLabelValues(src.ID, string(d.Action), string(d.Reason)).Inc()
		if d.Action == domain.ActionNotify {
			fresh = append(fresh, inc)
		} else {
			res.suppressed++
		}
	}

	p.setState(src.ID, StateNotifying)
	for _, inc := range fresh {
		if p.notify(ctx, inc, src) {
			res.notified++
		}
	}

	if p.recorder != nil && len(decisions) > 0 {
		if err := p.recorder.Record(ctx, decisions); err != nil {
			p.logger.Warn("record decisions failed", "source", src.ID, "error", err)
		}
	}

	if phase == dedup.ColdStart {
		p.logger.Info("cold start snapshot", "source", src.ID, "incidents", len(incidents))
	} else if len(fresh) > 0 {
		p.logger.Info("new incidents", "source", src.ID, "count", len(fresh))
	}
	return res
}

// decide applies the dedup rules for one incident under the round's phase.
func (p *Pipeline) decide(ctx context.Context, inc domain.RawIncident, phase dedup.Phase) (domain.Decision, error) {
	d := domain.Decision{Incident: inc, SourceID: inc.SourceID, Action: domain.ActionSuppress}

	isNew, err := p.store.IsNew(ctx, inc.ID)
	if err != nil {
		return d, fmt.Errorf("is new: %w", err)
	}
	if !isNew && phase == dedup.Warm {
		d.Reason = domain.ReasonSeen
		d.DecidedAt = domain.Now()
		return d, nil
	}

	created, err := p.store.MarkSeen(ctx, domain.SeenRecord{
		ID:          inc.ID,
		FirstSeenAt: domain.Now(),
		SourceID:    inc.SourceID,
	})
	if err != nil {
		return d, fmt.Errorf("mark seen: %w", err)
	}
	d.DecidedAt = domain.Now()

	switch {
	case phase == dedup.ColdStart:
		d.Reason = domain.ReasonColdStart
	case !created:
		d.Reason = domain.ReasonRaced
	default:
		d.Action = domain.ActionNotify
		d.Reason = domain.ReasonNew
	}
	return d, nil
}

// notify sends one notification and reports whether it was delivered. The
// incident stays marked seen either way.
func (p *Pipeline) notify(ctx context.Context, inc domain.RawIncident, src domain.FeedSource) bool {
	err := p.notifier.Notify(ctx, inc, src)
	if err == nil {
		p.metrics.Notifications.WithLabelValues(src.ID, "sent").Inc()
		return true
	}

	outcome := "error"
	var ne *notify.NotifyError
	if errors.As(err, &ne) {
		outcome = string(ne.Kind)
	}
	p.metrics.Notifications.WithLabelValues(src.ID, outcome).Inc()
	p.logger.Error("notification failed", "source", src.ID, "incident_id", inc.ID, "error", err)
	return false
}

func (p *Pipeline) fetchFailed(src domain.FeedSource, err error) {
	kind := "unknown"
	attrs := []any{"source", src.ID, "error", err}
	var fe *feed.FetchError
	if errors.As(err, &fe) {
		kind = string(fe.Kind)
		if fe.StatusCode != 0 {
			attrs = append(attrs, "status", fe.StatusCode)
		}
	}
	p.metrics.FetchErrors.WithLabelValues(src.ID, kind).Inc()
	p.logger.Error("fetch failed", attrs...)
}
