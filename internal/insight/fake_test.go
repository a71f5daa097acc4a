package insight

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeProvider records calls and answers "<kind>:<input>" after an optional
// per-input delay. Inputs listed in fail return ErrUnavailable.
type fakeProvider struct {
	mu     sync.Mutex
	calls  []string
	delays map[string]time.Duration
	fail   map[string]bool

	inFlight, peak int
}

func newFake() *fakeProvider {
	return &fakeProvider{delays: map[string]time.Duration{}, fail: map[string]bool{}}
}

func (f *fakeProvider) AnalyzePerformance(ctx context.Context, query string) (string, error) {
	return f.answer(ctx, "perf", query)
}

func (f *fakeProvider) ResearchHardware(ctx context.Context, model string) (string, error) {
	return f.answer(ctx, "hw", model)
}

func (f *fakeProvider) answer(ctx context.Context, kind, input string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, kind+":"+input)
	f.inFlight++
	f.peak = max(f.peak, f.inFlight)
	delay, fail := f.delays[input], f.fail[input]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
		case <-time.After(delay):
		}
	}
	if fail {
		return "", fmt.Errorf("%w: scripted failure", ErrUnavailable)
	}
	return kind + ":" + input, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeProvider) hardwareCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if len(c) > 3 && c[:3] == "hw:" {
			out = append(out, c[3:])
		}
	}
	return out
}
