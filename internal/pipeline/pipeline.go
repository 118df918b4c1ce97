package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/traffic-incident-monitor/internal/adapter/feed"
	"github.com/couchcryptid/traffic-incident-monitor/internal/dedup"
	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
	"github.com/couchcryptid/traffic-incident-monitor/internal/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Notifier delivers one notification for a newly observed incident.
type Notifier interface {
	Notify(ctx context.Context, inc domain.RawIncident, src domain.FeedSource) error
}

// DecisionRecorder receives every decision a source produced in a round.
type DecisionRecorder interface {
	Record(ctx context.Context, decisions []domain.Decision) error
}

// Options tunes the scheduler. Zero values pick defaults.
type Options struct {
	Interval    time.Duration
	Concurrency int
	Clock       clockwork.Clock
	Recorder    DecisionRecorder
}

// Pipeline polls every source on a fixed interval, deduplicates what it finds
// and notifies on new incidents.
type Pipeline struct {
	adapters    []feed.Adapter
	store       dedup.Store
	notifier    Notifier
	recorder    DecisionRecorder
	clock       clockwork.Clock
	interval    time.Duration
	concurrency int
	logger      *slog.Logger
	metrics     *observability.Metrics

	ready    atomic.Bool
	inFlight atomic.Bool
	rounds   sync.WaitGroup

	mu     sync.RWMutex
	states map[string]State
}

// New creates a Pipeline over the given adapters and store.
func New(adapters []feed.Adapter, store dedup.Store, notifier Notifier, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Minute
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	states := make(map[string]State, len(adapters))
	for _, a := range adapters {
		states[a.Source().ID] = StateIdle
		metrics.SourceState.WithLabelValues(a.Source().ID).Set(float64(StateIdle))
	}

	return &Pipeline{
		adapters:    adapters,
		store:       store,
		notifier:    notifier,
		recorder:    opts.Recorder,
		clock:       opts.Clock,
		interval:    opts.Interval,
		concurrency: opts.Concurrency,
		logger:      logger,
		metrics:     metrics,
		states:      states,
	}
}

// CheckReadiness returns nil once the first round has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no poll round has completed yet")
	}
	return nil
}

// States returns a copy of each source's current cycle state.
func (p *Pipeline) States() map[string]State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]State, len(p.states))
	for k, v := range p.states {
		out[k] = v
	}
	return out
}

func (p *Pipeline) setState(sourceID string, s State) {
	p.mu.Lock()
	p.states[sourceID] = s
	p.mu.Unlock()
	p.metrics.SourceState.WithLabelValues(sourceID).Set(float64(s))
}

// Run starts a round immediately and then one per interval until ctx is
// cancelled. A tick that fires while a round is still running is skipped.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("poller started",
		"sources", len(p.adapters),
		"interval", p.interval,
		"phase", p.store.Phase().String(),
	)
	p.metrics.PollerRunning.Set(1)
	defer p.metrics.PollerRunning.Set(0)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.startRound(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping", "reason", ctx.Err())
			p.rounds.Wait()
			return nil
		case <-ticker.Chan():
			if !p.startRound(ctx) {
				p.metrics.RoundsSkipped.Inc()
				p.logger.Warn("previous round still running, skipping tick")
			}
		}
	}
}

// startRound launches a round unless one is already in flight.
func (p *Pipeline) startRound(ctx context.Context) bool {
	if !p.inFlight.CompareAndSwap(false, true) {
		return false
	}
	p.rounds.Add(1)
	go func() {
		defer p.rounds.Done()
		defer p.inFlight.Store(false)
		p.RunRound(ctx)
	}()
	return true
}

// RoundResult summarizes one round.
type RoundResult struct {
	Phase         dedup.Phase
	Notified      int
	Suppressed    int
	FailedSources []string
}

// RunRound runs one cycle per source, bounded by the configured concurrency,
// then reconciles the store with everything the round observed.
func (p *Pipeline) RunRound(ctx context.Context) RoundResult {
	start := p.clock.Now()
	phase := p.store.Phase()

	results := make([]cycleResult, len(p.adapters))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, a := range p.adapters {
		g.Go(func() error {
			results[i] = p.runCycle(ctx, a, phase)
			return nil
		})
	}
	_ = g.Wait()

	res := RoundResult{Phase: phase}
	snap := dedup.NewSnapshot()
	for _, r := range results {
		if r.err != nil {
			snap.Failed[r.source] = struct{}{}
			res.FailedSources = append(res.FailedSources, r.source)
			continue
		}
		for _, id := range r.ids {
			snap.IDs[id] = struct{}{}
		}
		res.Notified += r.notified
		res.Suppressed += r.suppressed
	}

	if ctx.Err() != nil {
		p.logger.Warn("round interrupted, skipping reconcile", "error", ctx.Err())
		return res
	}
	if err := p.store.Reconcile(ctx, snap); err != nil {
		p.logger.Error("reconcile failed", "error", err)
	}
	p.updateStoreSize(ctx)

	p.metrics.Rounds.Inc()
	p.metrics.RoundDuration.Observe(p.clock.Since(start).Seconds())
	p.ready.Store(true)

	p.logger.Info("round complete",
		"phase", phase.String(),
		"incidents", len(snap.IDs),
		"notified", res.Notified,
		"suppressed", res.Suppressed,
		"failed_sources", len(res.FailedSources),
	)
	return res
}

func (p *Pipeline) updateStoreSize(ctx context.Context) {
	sizer, ok := p.store.(dedup.Sizer)
	if !ok {
		return
	}
	n, err := sizer.Size(ctx)
	if err != nil {
		p.logger.Debug("dedup store size unavailable", "error", err)
		return
	}
	p.metrics.DedupStoreSize.Set(float64(n))
}
