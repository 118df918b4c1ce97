// Package dashboard keeps the operator board: the selected source's live
// incidents with a status that survives re-fetches. It shares the feed
// adapters with the poller but never touches the dedup store.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/traffic-incident-monitor/internal/adapter/feed"
	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
	"github.com/couchcryptid/traffic-incident-monitor/internal/observability"
	"github.com/jonboulle/clockwork"
)

// ErrNotFound is returned for unknown incident or source ids.
var ErrNotFound = errors.New("not found")

// FilterAll matches every category.
const FilterAll = "ALL"

// Filter narrows the incident list.
type Filter struct {
	// Category is FilterAll, empty, or a domain.Category. HAZARD also matches
	// WEATHER_HAZARD.
	Category string
	// Search matches the subtype label, street or city, case-insensitively.
	Search string
	Status domain.Status
}

// Stats summarizes the current board.
type Stats struct {
	Source      string                  `json:"source"`
	Total       int                     `json:"total"`
	ByCategory  map[domain.Category]int `json:"by_category"`
	ByStatus    map[domain.Status]int   `json:"by_status"`
	LastRefresh time.Time               `json:"last_refresh"`
	LastError   string                  `json:"last_error,omitempty"`
}

// Board is safe for concurrent use.
type Board struct {
	adapters map[string]feed.Adapter
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu          sync.RWMutex
	selected    string
	incidents   []domain.ManagedIncident
	lastRefresh time.Time
	lastErr     error
}

// New creates a board showing selected. The board is empty until Refresh.
func New(adapters []feed.Adapter, selected string, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) (*Board, error) {
	byID := make(map[string]feed.Adapter, len(adapters))
	for _, a := range adapters {
		byID[a.Source().ID] = a
	}
	if _, ok := byID[selected]; !ok {
		return nil, fmt.Errorf("dashboard source %q: %w", selected, ErrNotFound)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Board{
		adapters: byID,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		selected: selected,
	}, nil
}

// Selected returns the source currently shown.
func (b *Board) Selected() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.selected
}

// Select switches the board to another source and refreshes it. Statuses from
// the previous source are discarded.
func (b *Board) Select(ctx context.Context, sourceID string) error {
	if _, ok := b.adapters[sourceID]; !ok {
		return fmt.Errorf("source %q: %w", sourceID, ErrNotFound)
	}
	b.mu.Lock()
	if b.selected != sourceID {
		b.selected = sourceID
		b.incidents = nil
		b.lastErr = nil
	}
	b.mu.Unlock()
	return b.Refresh(ctx)
}

// Refresh fetches the selected source and merges the result into the board.
// On failure the last known good list is kept and the error returned.
func (b *Board) Refresh(ctx context.Context) error {
	selected := b.Selected()
	fresh, err := b.adapters[selected].Fetch(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.selected != selected {
		// Switched while fetching; the result belongs to the old source.
		return nil
	}
	if err != nil {
		b.lastErr = err
		b.metrics.BoardRefreshes.WithLabelValues("error").Inc()
		b.logger.Warn("board refresh failed, keeping last known incidents",
			"source", selected, "incidents", len(b.incidents), "error", err)
		return err
	}
	b.incidents = domain.MergeManaged(b.incidents, fresh)
	b.lastRefresh = b.clock.Now().UTC()
	b.lastErr = nil
	b.metrics.BoardRefreshes.WithLabelValues("success").Inc()
	return nil
}

// Incidents returns the matching incidents, newest first.
func (b *Board) Incidents(f Filter) []domain.ManagedIncident {
	b.mu.RLock()
	out := make([]domain.ManagedIncident, 0, len(b.incidents))
	for _, inc := range b.incidents {
		if f.matches(inc) {
			out = append(out, inc)
		}
	}
	b.mu.RUnlock()

	slices.SortStableFunc(out, func(a, c domain.ManagedIncident) int {
		return c.PublishedAt.Compare(a.PublishedAt)
	})
	return out
}

func (f Filter) matches(inc domain.ManagedIncident) bool {
	switch {
	case f.Category == "" || f.Category == FilterAll:
	case f.Category == string(domain.CategoryHazard):
		if !strings.Contains(string(inc.Category), string(domain.CategoryHazard)) {
			return false
		}
	case string(inc.Category) != f.Category:
		return false
	}

	if f.Status != "" && inc.Status != f.Status {
		return false
	}

	if f.Search != "" {
		term := strings.ToLower(f.Search)
		fields := []string{domain.SubtypeLabel(inc.Subcategory), inc.Street, inc.City}
		for _, field := range fields {
			if strings.Contains(strings.ToLower(field), term) {
				return true
			}
		}
		return false
	}
	return true
}

// SetStatus updates one incident's status and, when assignee is non-nil, its
// assignee.
func (b *Board) SetStatus(id string, status domain.Status, assignee *string) (domain.ManagedIncident, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.incidents {
		if b.incidents[i].ID != id {
			continue
		}
		b.incidents[i].Status = status
		if assignee != nil {
			b.incidents[i].Assignee = *assignee
		}
		return b.incidents[i], nil
	}
	return domain.ManagedIncident{}, fmt.Errorf("incident %q: %w", id, ErrNotFound)
}

// Stats counts the board by category and status. All hazard categories are
// grouped under HAZARD.
func (b *Board) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Stats{
		Source:      b.selected,
		Total:       len(b.incidents),
		ByCategory:  make(map[domain.Category]int),
		ByStatus:    make(map[domain.Status]int),
		LastRefresh: b.lastRefresh,
	}
	if b.lastErr != nil {
		s.LastError = b.lastErr.Error()
	}
	for _, inc := range b.incidents {
		cat := inc.Category
		if strings.Contains(string(cat), string(domain.CategoryHazard)) {
			cat = domain.CategoryHazard
		}
		s.ByCategory[cat]++
		s.ByStatus[inc.Status]++
	}
	return s
}

// Run loads the selected source once, then refreshes on a fixed interval
// until ctx is cancelled. A zero interval means manual refresh after the
// initial load and Run returns once it completes.
func (b *Board) Run(ctx context.Context, interval time.Duration) {
	_ = b.Refresh(ctx)
	if interval <= 0 {
		return
	}
	ticker := b.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			_ = b.Refresh(ctx)
		}
	}
}
