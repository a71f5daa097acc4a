// Package notify announces finished and failed report runs.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/darshan-rambhia/opticdeck/internal/model"
)

// Event kinds.
const (
	ReportGenerated = "report_generated"
	ReportFailed    = "report_failed"
)

// Event describes the outcome of one workbook conversion.
type Event struct {
	Kind      string           `json:"kind"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Input     string           `json:"input"`
	Run       *model.ReportRun `json:"run,omitempty"`
	Error     string           `json:"error,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Provider sends events through a specific channel.
type Provider interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Generated builds the event for a successful run.
func Generated(run *model.ReportRun, at time.Time) Event {
	return Event{
		Kind:  ReportGenerated,
		Title: "Report ready: " + run.ProjectName,
		Message: fmt.Sprintf("%d servers, %d slides, %d insights\n%s",
			run.ServerCount, run.Slides, run.Insights, run.OutputPath),
		Input:     run.SourcePath,
		Run:       run,
		Timestamp: at.UTC(),
	}
}

// Failed builds the event for a run that produced no deck.
func Failed(input string, err error, at time.Time) Event {
	return Event{
		Kind:      ReportFailed,
		Title:     "Report failed",
		Message:   fmt.Sprintf("%s: %s", input, err),
		Input:     input,
		Error:     err.Error(),
		Timestamp: at.UTC(),
	}
}

// Broadcast sends ev to every provider. Delivery failures are logged and
// never returned.
func Broadcast(ctx context.Context, providers []Provider, ev Event) {
	for _, p := range providers {
		if err := p.Send(ctx, ev); err != nil {
			slog.Warn("notification failed", "provider", p.Name(), "kind", ev.Kind, "error", err)
		}
	}
}
