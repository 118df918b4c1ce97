package postgres

import (
	"context"
	"fmt"

	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of *pgxpool.Pool the ledger uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ledger implements dedup.Ledger over the seen_incidents table.
type Ledger struct {
	db Querier
}

func NewLedger(db Querier) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := l.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM seen_incidents WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("select seen incident: %w", err)
	}
	return exists, nil
}

// Insert records rec unless its id already exists. The primary key makes
// concurrent inserts first-writer-wins.
func (l *Ledger) Insert(ctx context.Context, rec domain.SeenRecord) (bool, error) {
	tag, err := l.db.Exec(ctx, `
		INSERT INTO seen_incidents (id, source_id, first_seen_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, rec.ID, rec.SourceID, rec.FirstSeenAt)
	if err != nil {
		return false, fmt.Errorf("insert seen incident: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Count returns the number of recorded ids.
func (l *Ledger) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := l.db.QueryRow(ctx, `SELECT count(*) FROM seen_incidents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count seen incidents: %w", err)
	}
	return n, nil
}
