package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/h2non/gock.v1"

	"github.com/darshan-rambhia/opticdeck/internal/model"
)

var at = time.Date(2026, 3, 9, 14, 30, 0, 0, time.FixedZone("CET", 3600))

func sampleRun() *model.ReportRun {
	return &model.ReportRun{
		ID:          "0b7e7d7c-1c1a-4a53-9a0d-9b1c8ef0a001",
		ProjectName: "Acme",
		SourcePath:  "/in/acme.xlsx",
		OutputPath:  "/out/Report_Acme_20260309.pptx",
		ServerCount: 2,
		TotalCPU:    64,
		Slides:      4,
		Insights:    2,
	}
}

func TestGenerated(t *testing.T) {
	ev := Generated(sampleRun(), at)
	assert.Equal(t, ReportGenerated, ev.Kind)
	assert.Equal(t, "Report ready: Acme", ev.Title)
	assert.Equal(t, "2 servers, 4 slides, 2 insights\n/out/Report_Acme_20260309.pptx", ev.Message)
	assert.Equal(t, "/in/acme.xlsx", ev.Input)
	assert.Equal(t, time.UTC, ev.Timestamp.Location())
	assert.Empty(t, ev.Error)
}

func TestFailed(t *testing.T) {
	ev := Failed("/in/bad.xlsx", errors.New("workbook unreadable"), at)
	assert.Equal(t, ReportFailed, ev.Kind)
	assert.Equal(t, "/in/bad.xlsx: workbook unreadable", ev.Message)
	assert.Equal(t, "workbook unreadable", ev.Error)
	assert.Nil(t, ev.Run)
}

// ---------------------------------------------------------------------------
// Webhook
// ---------------------------------------------------------------------------

func TestWebhookName(t *testing.T) {
	assert.Equal(t, "webhook", NewWebhook("http://localhost/hook", "", nil).Name())
}

func TestWebhookSendJSON(t *testing.T) {
	var got Event
	var gotContentType, gotMethod string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotMethod = r.Method
		b, _ := io.ReadAll(r.Body)
		json.Unmarshal(b, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL+"/hook", "", nil).Send(context.Background(), Generated(sampleRun(), at))
	require.NoError(t, err)

	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, ReportGenerated, got.Kind)
	require.NotNil(t, got.Run)
	assert.Equal(t, "Acme", got.Run.ProjectName)
	assert.Equal(t, 64, got.Run.TotalCPU)
}

func TestWebhookHeadersAndMethod(t *testing.T) {
	var gotAuth, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
	}))
	defer srv.Close()

	p := NewWebhook(srv.URL, http.MethodPut, map[string]string{"Authorization": "Bearer tok123"})
	require.NoError(t, p.Send(context.Background(), Failed("x.xlsx", errors.New("boom"), at)))
	assert.Equal(t, "Bearer tok123", gotAuth)
	assert.Equal(t, http.MethodPut, gotMethod)
}

func TestWebhookErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, "", nil).Send(context.Background(), Generated(sampleRun(), at))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewWebhook(srv.URL, "", nil).Send(ctx, Generated(sampleRun(), at))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook: send:")

	err = NewWebhook("://invalid", "", nil).Send(context.Background(), Generated(sampleRun(), at))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook: build request")
}

// ---------------------------------------------------------------------------
// ntfy
// ---------------------------------------------------------------------------

func TestNtfyName(t *testing.T) {
	assert.Equal(t, "ntfy", NewNtfy("http://localhost", "decks").Name())
}

func TestNtfySendGenerated(t *testing.T) {
	var gotReq *http.Request
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer srv.Close()

	ev := Generated(sampleRun(), at)
	require.NoError(t, NewNtfy(srv.URL, "decks").Send(context.Background(), ev))

	assert.Equal(t, "/decks", gotReq.URL.Path)
	assert.Equal(t, "Report ready: Acme", gotReq.Header.Get("Title"))
	assert.Equal(t, "2", gotReq.Header.Get("Priority"))
	assert.Equal(t, "bar_chart,report_generated", gotReq.Header.Get("Tags"))
	assert.Equal(t, ev.Message, gotBody)
}

func TestNtfySendFailed_Gock(t *testing.T) {
	defer gock.Off()

	p := NewNtfy("http://ntfy.example.com/", "decks")
	gock.InterceptClient(p.client)
	defer gock.RestoreClient(p.client)

	gock.New("http://ntfy.example.com").
		Post("/decks").
		MatchHeader("Priority", "4").
		MatchHeader("Tags", "x,report_failed").
		Reply(200)

	require.NoError(t, p.Send(context.Background(), Failed("bad.xlsx", errors.New("unreadable"), at)))
	assert.True(t, gock.IsDone())
}

func TestNtfyErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewNtfy(srv.URL, "decks").Send(context.Background(), Generated(sampleRun(), at))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")

	err = NewNtfy("://invalid", "decks").Send(context.Background(), Generated(sampleRun(), at))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ntfy:")
}

func TestNtfyTrailingSlash(t *testing.T) {
	assert.Equal(t, "http://example.com/decks", NewNtfy("http://example.com/", "decks").endpoint)
}

// ---------------------------------------------------------------------------
// Broadcast
// ---------------------------------------------------------------------------

type recordingProvider struct {
	mu   sync.Mutex
	name string
	err  error
	got  []Event
}

func (r *recordingProvider) Name() string { return r.name }

func (r *recordingProvider) Send(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ev)
	return r.err
}

func TestBroadcast_ContinuesPastFailures(t *testing.T) {
	broken := &recordingProvider{name: "broken", err: errors.New("down")}
	ok := &recordingProvider{name: "ok"}

	Broadcast(context.Background(), []Provider{broken, ok}, Generated(sampleRun(), at))

	assert.Len(t, broken.got, 1)
	require.Len(t, ok.got, 1)
	assert.Equal(t, ReportGenerated, ok.got[0].Kind)
}

func TestBroadcast_NoProviders(t *testing.T) {
	assert.NotPanics(t, func() {
		Broadcast(context.Background(), nil, Generated(sampleRun(), at))
	})
}
