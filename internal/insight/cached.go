package insight

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/darshan-rambhia/opticdeck/internal/cache"
	"github.com/darshan-rambhia/opticdeck/internal/model"
)

// NarrativeStore persists narratives across runs.
type NarrativeStore interface {
	GetNarrative(kind model.InsightKind, input string, maxAge time.Duration) (string, bool, error)
	PutNarrative(kind model.InsightKind, input, narrative string) error
}

// CachedProvider memoizes another provider. Lookups go to the in-memory
// cache, then the store (when set), then the wrapped provider. Concurrent
// requests for the same input share one backend call. Failures are never
// cached.
type CachedProvider struct {
	next  Provider
	cache *cache.Cache
	store NarrativeStore
	ttl   time.Duration
	group singleflight.Group
}

// NewCached wraps next. store may be nil. A zero ttl keeps entries forever.
func NewCached(next Provider, c *cache.Cache, store NarrativeStore, ttl time.Duration) *CachedProvider {
	if c == nil {
		c = cache.New()
	}
	return &CachedProvider{next: next, cache: c, store: store, ttl: ttl}
}

// AnalyzePerformance returns the cached narrative for query, fetching it
// from the wrapped provider on a miss.
func (p *CachedProvider) AnalyzePerformance(ctx context.Context, query string) (string, error) {
	return p.lookup(ctx, model.InsightPerformance, query, p.next.AnalyzePerformance)
}

// ResearchHardware returns the cached narrative for hw, fetching it from the
// wrapped provider on a miss.
func (p *CachedProvider) ResearchHardware(ctx context.Context, hw string) (string, error) {
	return p.lookup(ctx, model.InsightHardware, hw, p.next.ResearchHardware)
}

func (p *CachedProvider) lookup(ctx context.Context, kind model.InsightKind, input string,
	fetch func(context.Context, string) (string, error),
) (string, error) {
	if text, ok := p.fromCache(kind, input); ok {
		return text, nil
	}

	// The shared fetch outlives any single caller; each caller can still
	// stop waiting when its own ctx ends.
	shared := context.WithoutCancel(ctx)
	ch := p.group.DoChan(string(kind)+"\x00"+input, func() (any, error) {
		if text, ok := p.fromCache(kind, input); ok {
			return text, nil
		}
		if text, ok := p.fromStore(kind, input); ok {
			p.cache.Set(kind, input, text)
			return text, nil
		}

		text, err := fetch(shared, input)
		if err != nil {
			return "", err
		}
		p.cache.Set(kind, input, text)
		if p.store != nil {
			if err := p.store.PutNarrative(kind, input, text); err != nil {
				slog.Warn("persisting narrative failed", "kind", kind, "error", err)
			}
		}
		return text, nil
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (p *CachedProvider) fromCache(kind model.InsightKind, input string) (string, bool) {
	e, ok := p.cache.Get(kind, input)
	if !ok {
		return "", false
	}
	if p.ttl > 0 && time.Since(e.Stored) > p.ttl {
		return "", false
	}
	return e.Narrative, true
}

func (p *CachedProvider) fromStore(kind model.InsightKind, input string) (string, bool) {
	if p.store == nil {
		return "", false
	}
	text, ok, err := p.store.GetNarrative(kind, input, p.ttl)
	if err != nil {
		slog.Warn("reading cached narrative failed", "kind", kind, "error", err)
		return "", false
	}
	return text, ok
}
