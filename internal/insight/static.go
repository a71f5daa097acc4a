package insight

import (
	"context"
	"fmt"
	"time"
)

// StaticProvider returns canned narratives without contacting any service.
// It backs offline demos and tests.
type StaticProvider struct {
	// Delay simulates provider latency for each call.
	Delay time.Duration
}

// AnalyzePerformance returns a canned latency analysis mentioning query.
func (s StaticProvider) AnalyzePerformance(ctx context.Context, query string) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("[AI Analysis] Based on the IOPS pattern '%s', the system shows signs of latency spikes "+
		"during backup windows (2:00 AM - 4:00 AM). Recommendation: Review backup scheduling or move to Flash tier.", query), nil
}

// ResearchHardware returns a canned lifecycle summary for model.
func (s StaticProvider) ResearchHardware(ctx context.Context, model string) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("[AI Research] %s: Released ~2017. Specs: Intel Xeon Scalable (Skylake). "+
		"EOSL expected 2025. Upgrade recommended for workloads > 50k IOPS.", model), nil
}

func (s StaticProvider) wait(ctx context.Context) error {
	if s.Delay <= 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil
	}
	timer := time.NewTimer(s.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	case <-timer.C:
		return nil
	}
}
