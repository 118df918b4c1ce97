// Package dedup decides whether an incident has been seen before.
//
// Two policies are provided. The transient store mirrors what is currently
// live upstream: an incident that disappears and later returns with the same
// id notifies again. The durable store remembers every id it has ever
// recorded, so each id notifies at most once for the lifetime of its ledger.
package dedup

import (
	"context"

	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
)

// Phase tells the scheduler whether the store is still being seeded.
type Phase int

const (
	// ColdStart means no baseline exists; every incident is recorded and
	// suppressed.
	ColdStart Phase = iota
	Warm
)

func (p Phase) String() string {
	if p == ColdStart {
		return "cold_start"
	}
	return "warm"
}

// Store is the seen-set consulted once per incident per round.
type Store interface {
	IsNew(ctx context.Context, id string) (bool, error)
	// MarkSeen is idempotent and first-writer-wins. created reports whether
	// this call inserted the record.
	MarkSeen(ctx context.Context, rec domain.SeenRecord) (created bool, err error)
	// Reconcile runs once per round after every source has been processed.
	Reconcile(ctx context.Context, snap Snapshot) error
	Phase() Phase
}

// Snapshot is what a round observed.
type Snapshot struct {
	// IDs holds every incident id fetched this round across all sources.
	IDs map[string]struct{}
	// Failed holds the ids of sources whose fetch failed this round.
	Failed map[string]struct{}
}

// NewSnapshot returns an empty snapshot ready for use.
func NewSnapshot() Snapshot {
	return Snapshot{IDs: make(map[string]struct{}), Failed: make(map[string]struct{})}
}

// Covers reports whether rec should survive reconciliation: its id was
// observed, or its source could not be fetched.
func (s Snapshot) Covers(rec domain.SeenRecord) bool {
	if _, ok := s.IDs[rec.ID]; ok {
		return true
	}
	_, failed := s.Failed[rec.SourceID]
	return failed
}

// Ledger is append-only durable storage of seen ids.
type Ledger interface {
	Exists(ctx context.Context, id string) (bool, error)
	Insert(ctx context.Context, rec domain.SeenRecord) (created bool, err error)
}

// Sizer is implemented by stores that can report how many records they hold.
type Sizer interface {
	Size(ctx context.Context) (int64, error)
}

type counter interface {
	Count(ctx context.Context) (int64, error)
}
