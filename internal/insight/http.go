package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jpillora/backoff"

	"github.com/darshan-rambhia/opticdeck/internal/model"
)

// HTTPConfig configures an HTTPProvider.
type HTTPConfig struct {
	URL        string
	APIKey     string
	Model      string
	Timeout    time.Duration // per attempt, default 30s
	MaxRetries int           // retries after the first attempt
	MinBackoff time.Duration // default 500ms
	MaxBackoff time.Duration // default 10s
}

// HTTPProvider requests narratives from a JSON endpoint.
type HTTPProvider struct {
	cfg    HTTPConfig
	client *http.Client
}

type narrativeRequest struct {
	Kind  model.InsightKind `json:"kind"`
	Input string            `json:"input"`
	Model string            `json:"model,omitempty"`
}

type narrativeResponse struct {
	Narrative string `json:"narrative"`
}

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

// NewHTTP creates a provider posting to cfg.URL.
func NewHTTP(cfg HTTPConfig) *HTTPProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	return &HTTPProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// AnalyzePerformance posts a performance query to the endpoint.
func (h *HTTPProvider) AnalyzePerformance(ctx context.Context, query string) (string, error) {
	return h.request(ctx, model.InsightPerformance, query)
}

// ResearchHardware posts a hardware model identifier to the endpoint.
func (h *HTTPProvider) ResearchHardware(ctx context.Context, hw string) (string, error) {
	return h.request(ctx, model.InsightHardware, hw)
}

// retryableError marks failures worth another attempt.
type retryableError struct{ err error }

func (e retryableError) Error() string { return e.err.Error() }
func (e retryableError) Unwrap() error { return e.err }

func (h *HTTPProvider) request(ctx context.Context, kind model.InsightKind, input string) (string, error) {
	body, err := json.Marshal(narrativeRequest{Kind: kind, Input: input, Model: h.cfg.Model})
	if err != nil {
		return "", fmt.Errorf("%w: marshal: %w", ErrUnavailable, err)
	}

	b := &backoff.Backoff{Min: h.cfg.MinBackoff, Max: h.cfg.MaxBackoff, Factor: 2, Jitter: true}
	for {
		text, err := h.attempt(ctx, body)
		if err == nil {
			return text, nil
		}

		var retry retryableError
		attempt := int(b.Attempt())
		if !errors.As(err, &retry) || attempt >= h.cfg.MaxRetries {
			return "", fmt.Errorf("%w: %s %q: %w", ErrUnavailable, kind, input, err)
		}

		d := b.Duration()
		slog.Debug("insight request failed, retrying", "kind", kind, "attempt", attempt+1, "delay", d, "error", err)
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("%w: %s %q: %w", ErrUnavailable, kind, input, ctx.Err())
		case <-timer.C:
		}
	}
}

func (h *HTTPProvider) attempt(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if h.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.cfg.APIKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", retryableError{fmt.Errorf("send: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return "", retryableError{fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out narrativeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	text := strings.TrimSpace(out.Narrative)
	if text == "" {
		return "", errors.New("empty narrative")
	}
	return text, nil
}
