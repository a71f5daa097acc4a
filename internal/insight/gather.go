package insight

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/darshan-rambhia/opticdeck/internal/model"
)

// Defaults for GatherOptions.
const (
	DefaultCPUThreshold = 32
	DefaultConcurrency  = 4
)

// GatherOptions tunes Gather.
type GatherOptions struct {
	// CPUThreshold selects servers for hardware research: a server qualifies
	// when its CPU count is strictly greater. Zero or less means DefaultCPUThreshold.
	CPUThreshold int
	// Concurrency bounds in-flight provider calls. Zero or less means DefaultConcurrency.
	Concurrency int
	// PerformanceQuery overrides the query derived from the project.
	PerformanceQuery string
}

type task struct {
	kind    model.InsightKind
	subject string // server name for hardware, query for performance
	input   string
}

// Gather requests one performance analysis for the project and one hardware
// research narrative per server above the CPU threshold. Calls run
// concurrently; the result keeps request order (performance first, then
// servers in project order). Failed or cancelled calls are logged and left
// out, so the result may be empty.
func Gather(ctx context.Context, p Provider, project *model.Project, opts GatherOptions) []model.Insight {
	if p == nil || project == nil {
		return nil
	}
	if opts.CPUThreshold <= 0 {
		opts.CPUThreshold = DefaultCPUThreshold
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}

	query := opts.PerformanceQuery
	if query == "" {
		query = PerformanceQuery(project)
	}
	tasks := []task{{kind: model.InsightPerformance, subject: query, input: query}}
	for _, s := range project.Servers {
		if s.CPUCount > opts.CPUThreshold {
			tasks = append(tasks, task{kind: model.InsightHardware, subject: s.Name, input: HardwareIdentifier(s)})
		}
	}

	results := make([]*model.Insight, len(tasks))
	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	for i, t := range tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				slog.Warn("insight skipped", "kind", t.kind, "subject", t.subject, "error", err)
				return nil
			}
			text, err := call(ctx, p, t)
			if err != nil {
				slog.Warn("insight unavailable", "kind", t.kind, "subject", t.subject, "error", err)
				return nil
			}
			if t.kind == model.InsightHardware {
				text = fmt.Sprintf("Server %s: %s", t.subject, text)
			}
			results[i] = &model.Insight{Kind: t.kind, Subject: t.subject, Narrative: text}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.Insight, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	slog.Info("insights gathered", "requested", len(tasks), "received", len(out))
	return out
}

func call(ctx context.Context, p Provider, t task) (string, error) {
	if t.kind == model.InsightHardware {
		return p.ResearchHardware(ctx, t.input)
	}
	return p.AnalyzePerformance(ctx, t.input)
}

// HardwareIdentifier is the value sent for hardware research: the server's
// model when known, otherwise its name.
func HardwareIdentifier(s model.Server) string {
	if m := strings.TrimSpace(s.Model); m != "" {
		return m
	}
	return s.Name
}

// PerformanceQuery summarizes the project's performance counters into a
// query for AnalyzePerformance.
func PerformanceQuery(p *model.Project) string {
	var (
		peakIOPS, peakMBps, worstLatency float64
		latencyServer                    string
		series                           int
	)
	for _, s := range p.Servers {
		perf := s.Performance
		peakIOPS = max(peakIOPS, perf.PeakIOPS)
		peakMBps = max(peakMBps, perf.PeakThroughputMBps)
		if perf.AvgLatencyMs > worstLatency {
			worstLatency = perf.AvgLatencyMs
			latencyServer = s.Name
		}
		series += len(perf.IOHistory) + len(perf.CPUHistory)
	}

	if peakIOPS == 0 && peakMBps == 0 && worstLatency == 0 {
		return fmt.Sprintf("Project %s: no performance counters captured across %d servers", p.Name, len(p.Servers))
	}

	parts := []string{fmt.Sprintf("peak %s IOPS", humanize.CommafWithDigits(peakIOPS, 0))}
	if peakMBps > 0 {
		parts = append(parts, fmt.Sprintf("peak throughput %s MB/s", humanize.CommafWithDigits(peakMBps, 1)))
	}
	if worstLatency > 0 {
		parts = append(parts, fmt.Sprintf("average latency %s ms on %s", humanize.CommafWithDigits(worstLatency, 2), latencyServer))
	}
	if series > 0 {
		parts = append(parts, fmt.Sprintf("%s samples", humanize.Comma(int64(series))))
	}
	return fmt.Sprintf("Project %s: %s", p.Name, strings.Join(parts, ", "))
}
