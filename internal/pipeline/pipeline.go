// Package pipeline wires ingestion, insight gathering, composition and
// persistence into one workbook-to-deck run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/darshan-rambhia/opticdeck/internal/aggregate"
	"github.com/darshan-rambhia/opticdeck/internal/findings"
	"github.com/darshan-rambhia/opticdeck/internal/insight"
	"github.com/darshan-rambhia/opticdeck/internal/model"
	"github.com/darshan-rambhia/opticdeck/internal/notify"
	"github.com/darshan-rambhia/opticdeck/internal/report"
	"github.com/darshan-rambhia/opticdeck/internal/workbook"
)

// Recorder persists the history of completed runs.
type Recorder interface {
	InsertReport(run *model.ReportRun) error
}

// Options configures a Pipeline.
type Options struct {
	Report report.Options
	Gather insight.GatherOptions
	// Rules produce the findings slide. The zero value disables every rule.
	Rules findings.Rules
	// OutputDir is where decks go when Run is given no output path. Empty
	// means the directory of the input workbook.
	OutputDir string
	// BatchConcurrency bounds RunBatch. Zero or less means 2.
	BatchConcurrency int
	// Notifiers hear about every finished or failed run.
	Notifiers []notify.Provider
	Now       func() time.Time
}

// Pipeline converts workbooks into decks.
type Pipeline struct {
	provider insight.Provider
	recorder Recorder
	opts     Options
}

// New creates a pipeline. provider and recorder may be nil: without a
// provider no insight slides are produced, without a recorder runs are not
// persisted.
func New(provider insight.Provider, recorder Recorder, opts Options) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 2
	}
	if opts.Report.Now == nil {
		opts.Report.Now = opts.Now
	}
	return &Pipeline{provider: provider, recorder: recorder, opts: opts}
}

// Run ingests inPath, gathers insights, composes the deck and writes it to
// outPath. With an empty outPath the deck goes to DefaultOutputPath, with a
// numeric suffix when that name is already taken. The only fatal failures
// are an unreadable workbook (workbook.ErrUnreadable) and a failed write
// (report.ErrWriteFailure); insight and persistence problems are logged.
func (p *Pipeline) Run(ctx context.Context, inPath, outPath string) (*model.ReportRun, error) {
	run, _, err := p.execute(ctx, job{in: inPath, out: outPath, source: inPath, keep: true})
	return run, err
}

// RunUpload converts a workbook staged at inPath on behalf of a remote
// client; name is the client's file name and is recorded as the source.
// Without an OutputDir the deck is written next to inPath, which the caller
// is expected to remove, so no output path is recorded. The returned path is
// where the deck was written.
func (p *Pipeline) RunUpload(ctx context.Context, inPath, name string) (*model.ReportRun, string, error) {
	if name == "" {
		name = "upload"
	}
	return p.execute(ctx, job{in: inPath, source: name, keep: p.opts.OutputDir != ""})
}

type job struct {
	in, out string
	// source is recorded as ReportRun.SourcePath.
	source string
	// keep records the deck path; false when the caller deletes the deck.
	keep bool
}

func (p *Pipeline) execute(ctx context.Context, j job) (*model.ReportRun, string, error) {
	run, deckPath, err := p.run(ctx, j)
	if len(p.opts.Notifiers) > 0 {
		var ev notify.Event
		if err != nil {
			ev = notify.Failed(j.source, err, p.opts.Now())
		} else {
			ev = notify.Generated(run, p.opts.Now())
		}
		// Delivery is attempted even when ctx was cancelled mid-run.
		notify.Broadcast(context.WithoutCancel(ctx), p.opts.Notifiers, ev)
	}
	return run, deckPath, err
}

func (p *Pipeline) run(ctx context.Context, j job) (*model.ReportRun, string, error) {
	start := p.opts.Now()

	project, err := workbook.IngestFile(j.in)
	if err != nil {
		return nil, "", err
	}

	var insights []model.Insight
	if p.provider != nil {
		insights = insight.Gather(ctx, p.provider, project, p.opts.Gather)
	}

	ropts := p.opts.Report
	ropts.Findings = findings.Evaluate(project, p.opts.Rules)
	d, err := report.Compose(project, insights, ropts)
	if err != nil {
		return nil, "", fmt.Errorf("composing report: %w", err)
	}

	outPath := j.out
	if outPath == "" {
		dir := p.opts.OutputDir
		if dir == "" {
			dir = filepath.Dir(j.in)
		}
		if outPath, err = claimOutputPath(dir, DefaultOutputPath(project, start)); err != nil {
			return nil, "", err
		}
	}
	if err := report.WriteFile(d, outPath); err != nil {
		if j.out == "" {
			os.Remove(outPath)
		}
		return nil, "", err
	}

	sum := aggregate.Summarize(project)
	run := &model.ReportRun{
		ProjectName:   project.Name,
		SourcePath:    j.source,
		ServerCount:   sum.ServerCount,
		TotalCPU:      sum.TotalCPU,
		TotalMemoryGB: sum.TotalMemoryGB,
		Slides:        len(d.Slides),
		Insights:      len(insights),
		CreatedAt:     start.UTC(),
	}
	if j.keep {
		run.OutputPath = outPath
	}
	if p.recorder != nil {
		if err := p.recorder.InsertReport(run); err != nil {
			slog.Warn("recording report failed", "path", outPath, "error", err)
		}
	}

	slog.Info("report generated",
		"project", run.ProjectName,
		"servers", run.ServerCount,
		"slides", run.Slides,
		"insights", run.Insights,
		"findings", len(ropts.Findings),
		"output", outPath,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return run, outPath, nil
}

// maxOutputSuffix bounds the search for a free default output name.
const maxOutputSuffix = 1000

// claimOutputPath reserves name in dir by creating it exclusively. When the
// name is taken it tries name_2, name_3 and so on before the extension. The
// reserved file is empty until the deck is renamed over it.
func claimOutputPath(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; i <= maxOutputSuffix; i++ {
		candidate := name
		if i > 1 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", report.ErrWriteFailure, err)
		}
		f.Close()
		return path, nil
	}
	return "", fmt.Errorf("%w: no free name for %s in %s", report.ErrWriteFailure, name, dir)
}

// BatchResult is the outcome of one workbook in RunBatch.
type BatchResult struct {
	Input string
	Run   *model.ReportRun
	Err   error
}

// RunBatch converts several workbooks concurrently, writing each deck to
// its default output path. Results are returned in input order; one failed
// workbook does not stop the others. The returned error joins every failure.
func (p *Pipeline) RunBatch(ctx context.Context, inputs []string) ([]BatchResult, error) {
	results := make([]BatchResult, len(inputs))
	var g errgroup.Group
	g.SetLimit(p.opts.BatchConcurrency)
	for i, in := range inputs {
		g.Go(func() error {
			run, err := p.Run(ctx, in, "")
			results[i] = BatchResult{Input: in, Run: run, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Input, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

// DefaultOutputPath returns the file name Report_{project}_{yyyymmdd}.pptx.
// Characters that are unsafe in file names are replaced with underscores.
func DefaultOutputPath(project *model.Project, now time.Time) string {
	name := model.Unknown
	if project != nil && strings.TrimSpace(project.Name) != "" {
		name = project.Name
	}
	return fmt.Sprintf("Report_%s_%s.pptx", sanitizeFileName(strings.TrimSpace(name)), now.Format("20060102"))
}

func sanitizeFileName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, strings.ContainsRune(`<>:"/\|?*`, r):
			return '_'
		}
		return r
	}, s)
}
