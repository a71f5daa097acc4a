// Package insight obtains narrative analysis for a project from an external
// provider.
package insight

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when a provider cannot produce a narrative.
// Callers treat it as "no insight" rather than a fatal condition.
var ErrUnavailable = errors.New("insight unavailable")

// Provider produces narratives for performance queries and hardware models.
// Implementations must be safe for concurrent use and honour ctx.
type Provider interface {
	AnalyzePerformance(ctx context.Context, query string) (string, error)
	ResearchHardware(ctx context.Context, model string) (string, error)
}
