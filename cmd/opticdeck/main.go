package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"github.com/darshan-rambhia/opticdeck/internal/api"
	"github.com/darshan-rambhia/opticdeck/internal/cache"
	"github.com/darshan-rambhia/opticdeck/internal/config"
	"github.com/darshan-rambhia/opticdeck/internal/findings"
	"github.com/darshan-rambhia/opticdeck/internal/insight"
	"github.com/darshan-rambhia/opticdeck/internal/notify"
	"github.com/darshan-rambhia/opticdeck/internal/pipeline"
	"github.com/darshan-rambhia/opticdeck/internal/report"
	"github.com/darshan-rambhia/opticdeck/internal/store"
	"github.com/darshan-rambhia/opticdeck/internal/workbook"
)

//go:generate go run github.com/swaggo/swag/cmd/swag@v1.16.6 init --dir ./,../../internal/api --generalInfo main.go --output ../../docs/swagger --outputTypes go,json

// @title opticdeck API
// @version 1.0
// @description Converts survey workbooks into presentation decks
// @host localhost:3810
// @BasePath /

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// buildInfo returns version, commit, build time, and VCS state. ldflags
// values win; debug.ReadBuildInfo fills in whatever was left as default.
func buildInfo() (ver, sha, built, dirty string) {
	ver, sha, built, dirty = version, commit, buildTime, "clean"

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if sha == "none" {
				sha = s.Value
			}
		case "vcs.time":
			if built == "unknown" {
				built = s.Value
			}
		case "vcs.modified":
			if s.Value == "true" {
				dirty = "dirty"
			}
		}
	}
	return
}

const usage = `usage: opticdeck [flags] -in workbook.xlsx [-out deck.pptx]
       opticdeck [flags] workbook.xlsx...
       opticdeck [flags] -history 20
       opticdeck [flags] -serve

flags:
`

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to opticdeck.yml config file")
	inPath := flag.String("in", "", "Live Optics workbook to convert")
	outPath := flag.String("out", "", "output deck path (default Report_{project}_{date}.pptx)")
	history := flag.Int("history", 0, "print the N most recent runs and exit (needs db_path)")
	serve := flag.Bool("serve", false, "serve the conversion API on server.listen")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	ver, sha, built, dirty := buildInfo()
	if *showVersion {
		fmt.Printf("opticdeck %s\n  commit:    %s (%s)\n  built:     %s\n  go:        %s\n  platform:  %s/%s\n",
			ver, sha, dirty, built, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return 0
	}

	inputs := flag.Args()
	if *inPath != "" {
		inputs = append([]string{*inPath}, inputs...)
	}
	if *history <= 0 && !*serve && len(inputs) == 0 {
		flag.Usage()
		return 2
	}
	if *outPath != "" && len(inputs) > 1 {
		fmt.Fprintln(os.Stderr, "error: -out cannot be combined with several workbooks")
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, config.ErrConfigFileNotFound) {
			fmt.Fprintf(os.Stderr, "error: %s\n\n", err)
			fmt.Fprintf(os.Stderr, "Copy the example config to get started:\n")
			fmt.Fprintf(os.Stderr, "  cp opticdeck.example.yml %s\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "error: loading config (%s): %s\n", *configPath, err)
		}
		return 1
	}
	setupLogging(cfg)

	slog.Debug("starting opticdeck",
		"version", ver,
		"commit", sha,
		"built", built,
		"dirty", dirty,
		"go", runtime.Version(),
		"provider", cfg.Insights.Provider,
	)

	retention := store.RetentionConfig{
		Narratives: cfg.Retention.Narratives.Duration,
		Reports:    cfg.Retention.Reports.Duration,
	}
	var st *store.Store
	if cfg.DBPath != "" {
		st, err = store.New(cfg.DBPath)
		if err != nil {
			slog.Error("opening database", "path", cfg.DBPath, "error", err)
			return 1
		}
		defer st.Close()
		if !*serve {
			if err := st.Prune(retention); err != nil {
				slog.Warn("pruning database", "error", err)
			}
		}
	}

	if *history > 0 {
		if st == nil {
			fmt.Fprintln(os.Stderr, "error: -history needs db_path to be configured")
			return 1
		}
		return printHistory(st, *history)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The interfaces stay nil when persistence is off; a typed nil *store.Store
	// would not.
	var (
		recorder  pipeline.Recorder
		narrStore insight.NarrativeStore
		hist      api.History
	)
	if st != nil {
		recorder, narrStore, hist = st, st, st
	}

	mem := cache.New()
	p := pipeline.New(newProvider(cfg, mem, narrStore), recorder, pipelineOptions(cfg))

	if *serve {
		g, gctx := errgroup.WithContext(ctx)
		if st != nil {
			pruner := store.NewPruner(st, retention, mem)
			g.Go(func() error { return pruner.Run(gctx) })
		}
		srv := api.NewServer(cfg.Server.Listen, p, hist, int64(cfg.Server.MaxUploadMB)<<20)
		g.Go(func() error { return srv.Run(gctx) })

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("fatal error", "error", err)
			return 1
		}
		slog.Info("opticdeck stopped gracefully")
		return 0
	}

	if len(inputs) == 1 {
		run, err := p.Run(ctx, inputs[0], *outPath)
		if err != nil {
			return reportFailure(err)
		}
		fmt.Println(run.OutputPath)
		return 0
	}

	results, err := p.RunBatch(ctx, inputs)
	for _, r := range results {
		if r.Err == nil {
			fmt.Println(r.Run.OutputPath)
		}
	}
	if err != nil {
		return reportFailure(err)
	}
	return 0
}

// newProvider builds the configured insight provider wrapped in the
// narrative cache. It returns nil when insights are disabled.
func newProvider(cfg *config.Config, mem *cache.Cache, narrStore insight.NarrativeStore) insight.Provider {
	var base insight.Provider
	switch cfg.Insights.Provider {
	case config.ProviderStatic:
		base = insight.StaticProvider{Delay: cfg.Insights.StaticDelay.Duration}
	case config.ProviderHTTP:
		base = insight.NewHTTP(insight.HTTPConfig{
			URL:        cfg.Insights.URL,
			APIKey:     cfg.Insights.APIKey,
			Model:      cfg.Insights.Model,
			Timeout:    cfg.Insights.Timeout.Duration,
			MaxRetries: cfg.Insights.MaxRetries,
		})
	default:
		return nil
	}
	return insight.NewCached(base, mem, narrStore, cfg.Insights.CacheTTL.Duration)
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		Report: report.Options{
			Title:            cfg.Report.Title,
			Creator:          cfg.Report.Creator,
			IncludeInventory: cfg.Report.IncludeInventory,
		},
		Gather: insight.GatherOptions{
			CPUThreshold:     cfg.Insights.CPUThreshold,
			Concurrency:      cfg.Insights.Concurrency,
			PerformanceQuery: cfg.Insights.PerformanceQuery,
		},
		Rules:     findingRules(cfg.Findings),
		OutputDir: cfg.Report.OutputDir,
		Notifiers: newNotifiers(cfg.Notifications),
	}
}

// findingRules enables the rules present in the config. A zero threshold or
// empty severity takes the stock value; omitted rules stay off.
func findingRules(fc config.FindingsConfig) findings.Rules {
	defaults := findings.DefaultRules()
	pick := func(def *findings.ThresholdRule, rc *config.RuleConfig) *findings.ThresholdRule {
		if rc == nil || rc.Disabled {
			return nil
		}
		r := *def
		if rc.Threshold > 0 {
			r.Threshold = rc.Threshold
		}
		if rc.Severity != "" {
			r.Severity = rc.Severity
		}
		return &r
	}
	return findings.Rules{
		DiskFull:    pick(defaults.DiskFull, fc.DiskFull),
		LatencyHigh: pick(defaults.LatencyHigh, fc.LatencyHigh),
		CPUDense:    pick(defaults.CPUDense, fc.CPUDense),
	}
}

func newNotifiers(cfgs []config.NotificationConfig) []notify.Provider {
	var providers []notify.Provider
	for _, n := range cfgs {
		switch n.Type {
		case "ntfy":
			providers = append(providers, notify.NewNtfy(n.URL, n.Topic))
		case "webhook":
			providers = append(providers, notify.NewWebhook(n.URL, n.Method, n.Headers))
		}
	}
	return providers
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func reportFailure(err error) int {
	switch {
	case errors.Is(err, workbook.ErrUnreadable):
		fmt.Fprintf(os.Stderr, "error: cannot read workbook: %s\n", err)
	case errors.Is(err, report.ErrWriteFailure):
		fmt.Fprintf(os.Stderr, "error: cannot write deck: %s\n", err)
	default:
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
	}
	return 1
}

func printHistory(st *store.Store, limit int) int {
	runs, err := st.ListReports(limit)
	if err != nil {
		slog.Error("listing reports", "error", err)
		return 1
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tPROJECT\tSERVERS\tCPU\tMEMORY GB\tSLIDES\tOUTPUT")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.1f\t%d\t%s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"), r.ProjectName,
			r.ServerCount, r.TotalCPU, r.TotalMemoryGB, r.Slides, r.OutputPath)
	}
	if err := w.Flush(); err != nil {
		return 1
	}
	return 0
}
