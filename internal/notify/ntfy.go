package notify

import (
	"context"
	"net/http"
	"strings"
)

// NtfyProvider publishes the event message as plain text to {url}/{topic}.
type NtfyProvider struct {
	endpoint string
	client   *http.Client
}

func NewNtfy(baseURL, topic string) *NtfyProvider {
	return &NtfyProvider{
		endpoint: strings.TrimRight(baseURL, "/") + "/" + topic,
		client:   newClient(),
	}
}

func (n *NtfyProvider) Name() string { return "ntfy" }

func (n *NtfyProvider) Send(ctx context.Context, ev Event) error {
	priority, tags := "2", "bar_chart,"+ev.Kind
	if ev.Kind == ReportFailed {
		priority, tags = "4", "x,"+ev.Kind
	}
	h := http.Header{}
	h.Set("Title", ev.Title)
	h.Set("Priority", priority)
	h.Set("Tags", tags)
	return deliver(ctx, n.client, n.Name(), http.MethodPost, n.endpoint, strings.NewReader(ev.Message), h)
}
