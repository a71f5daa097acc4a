package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const sendTimeout = 10 * time.Second

func newClient() *http.Client { return &http.Client{Timeout: sendTimeout} }

// deliver performs one notification request. Errors carry the provider
// name as prefix; any non-2xx status is a failure.
func deliver(ctx context.Context, c *http.Client, provider, method, target string, body io.Reader, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", provider, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send: %w", provider, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s: unexpected status %d", provider, resp.StatusCode)
	}
	return nil
}
