package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetentionConfig defines how long to keep data in each table. A zero
// duration keeps rows forever.
type RetentionConfig struct {
	Narratives time.Duration // default 30d
	Reports    time.Duration // default 365d
}

// DefaultRetention returns the default retention periods.
func DefaultRetention() RetentionConfig {
	return RetentionConfig{
		Narratives: 30 * 24 * time.Hour,
		Reports:    365 * 24 * time.Hour,
	}
}

// Prune removes rows older than their table's retention period.
func (s *Store) Prune(retention RetentionConfig) error {
	tables := []struct {
		name      string
		retention time.Duration
	}{
		{"narratives", retention.Narratives},
		{"reports", retention.Reports},
	}

	for _, t := range tables {
		if t.retention <= 0 {
			continue
		}
		if _, err := s.pruneTable(t.name, t.retention); err != nil {
			return err
		}
	}
	return nil
}

// PruneNarratives removes cached narratives stored more than olderThan ago
// and returns the number of rows removed.
func (s *Store) PruneNarratives(olderThan time.Duration) (int64, error) {
	return s.pruneTable("narratives", olderThan)
}

func (s *Store) pruneTable(table string, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan).Unix()
	result, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE ts < ?", table), cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning %s: %w", table, err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		slog.Info("pruned old data", "table", table, "rows", rows)
	}
	return rows, nil
}

// MemoryCache is an in-memory cache trimmed alongside the store.
type MemoryCache interface {
	Prune(cutoff time.Time) int
}

// Pruner periodically applies retention to the store and, optionally, to an
// in-memory narrative cache.
type Pruner struct {
	store     *Store
	retention RetentionConfig
	interval  time.Duration
	cache     MemoryCache
}

// NewPruner creates a pruner with the given retention config. c may be nil.
func NewPruner(store *Store, retention RetentionConfig, c MemoryCache) *Pruner {
	return &Pruner{
		store:     store,
		retention: retention,
		interval:  time.Hour,
		cache:     c,
	}
}

// Run prunes once at startup and then every interval. It blocks until the
// context is cancelled.
func (p *Pruner) Run(ctx context.Context) error {
	slog.Info("pruner started", "interval", p.interval)
	p.prune()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("pruner stopped")
			return ctx.Err()
		case <-ticker.C:
			p.prune()
		}
	}
}

func (p *Pruner) prune() {
	if err := p.store.Prune(p.retention); err != nil {
		slog.Error("pruning store", "error", err)
	}
	if p.cache != nil && p.retention.Narratives > 0 {
		if n := p.cache.Prune(p.store.now().Add(-p.retention.Narratives)); n > 0 {
			slog.Debug("pruned narrative cache", "entries", n)
		}
	}
}
