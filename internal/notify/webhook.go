package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// WebhookProvider delivers the JSON-encoded Event to an arbitrary endpoint.
type WebhookProvider struct {
	target string
	method string
	header http.Header
	client *http.Client
}

// NewWebhook returns a webhook provider. method defaults to POST; headers
// are added to every request, after Content-Type.
func NewWebhook(target, method string, headers map[string]string) *WebhookProvider {
	if method == "" {
		method = http.MethodPost
	}
	h := http.Header{"Content-Type": {"application/json"}}
	for k, v := range headers {
		h.Set(k, v)
	}
	return &WebhookProvider{target: target, method: method, header: h, client: newClient()}
}

func (w *WebhookProvider) Name() string { return "webhook" }

func (w *WebhookProvider) Send(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}
	return deliver(ctx, w.client, w.Name(), w.method, w.target, bytes.NewReader(payload), w.header)
}
