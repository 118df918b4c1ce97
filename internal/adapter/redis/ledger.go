// Package redis stores the durable seen-incident ledger in Redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Ledger implements dedup.Ledger with one key per incident id. Keys never
// expire.
type Ledger struct {
	client *redis.Client
}

func NewLedger(client *redis.Client) *Ledger {
	return &Ledger{client: client}
}

func (l *Ledger) Exists(ctx context.Context, id string) (bool, error) {
	n, err := l.client.Exists(ctx, formatKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("checking seen incident: %w", err)
	}
	return n > 0, nil
}

// Insert uses SETNX so concurrent writers agree on a single first writer.
func (l *Ledger) Insert(ctx context.Context, rec domain.SeenRecord) (bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshalling seen record: %w", err)
	}
	created, err := l.client.SetNX(ctx, formatKey(rec.ID), data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("setting seen incident: %w", err)
	}
	return created, nil
}

// Count scans the ledger keyspace.
func (l *Ledger) Count(ctx context.Context) (int64, error) {
	var n int64
	iter := l.client.Scan(ctx, 0, formatKey("*"), 500).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scanning seen incidents: %w", err)
	}
	return n, nil
}

// Ping checks the connection.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func formatKey(id string) string {
	return fmt.Sprintf("incidents:seen:%s", id)
}
