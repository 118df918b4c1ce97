package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
)

// Durable delegates to a persistent ledger. It is always Warm: the ledger is
// the baseline, so a fresh process does not need a seeding round.
type Durable struct {
	ledger Ledger
}

func NewDurable(ledger Ledger) *Durable {
	return &Durable{ledger: ledger}
}

func (s *Durable) IsNew(ctx context.Context, id string) (bool, error) {
	exists, err := s.ledger.Exists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("ledger lookup %s: %w", id, err)
	}
	return !exists, nil
}

func (s *Durable) MarkSeen(ctx context.Context, rec domain.SeenRecord) (bool, error) {
	created, err := s.ledger.Insert(ctx, rec)
	if err != nil {
		return false, fmt.Errorf("ledger insert %s: %w", rec.ID, err)
	}
	return created, nil
}

// Reconcile is a no-op; durable records never expire.
func (s *Durable) Reconcile(context.Context, Snapshot) error { return nil }

func (s *Durable) Phase() Phase { return Warm }

// Size reports the ledger's record count when the ledger can count.
func (s *Durable) Size(ctx context.Context) (int64, error) {
	c, ok := s.ledger.(counter)
	if !ok {
		return 0, errors.New("ledger does not support counting")
	}
	return c.Count(ctx)
}
