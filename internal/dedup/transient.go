package dedup

import (
	"context"
	"sync"

	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
)

// Transient is an in-memory store pruned to the live incident set each round.
// State is lost on restart, which puts the next process back in ColdStart.
type Transient struct {
	mu    sync.Mutex
	seen  map[string]domain.SeenRecord
	phase Phase
}

// NewTransient returns an empty store in ColdStart.
func NewTransient() *Transient {
	return &Transient{seen: make(map[string]domain.SeenRecord), phase: ColdStart}
}

func (s *Transient) IsNew(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id]
	return !ok, nil
}

func (s *Transient) MarkSeen(_ context.Context, rec domain.SeenRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[rec.ID]; ok {
		return false, nil
	}
	s.seen[rec.ID] = rec
	return true, nil
}

// Reconcile drops records the round did not cover and leaves ColdStart.
func (s *Transient) Reconcile(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.seen {
		if !snap.Covers(rec) {
			delete(s.seen, id)
		}
	}
	s.phase = Warm
	return nil
}

func (s *Transient) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Len is the number of records currently held.
func (s *Transient) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func (s *Transient) Size(context.Context) (int64, error) {
	return int64(s.Len()), nil
}
