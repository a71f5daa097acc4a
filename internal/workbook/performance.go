package workbook

import (
	"log/slog"
	"strings"

	"github.com/darshan-rambhia/opticdeck/internal/model"
)

// seriesKind selects which history a performance sheet feeds.
type seriesKind int

const (
	seriesIO seriesKind = iota
	seriesCPU
)

func (k seriesKind) String() string {
	if k == seriesCPU {
		return "cpu"
	}
	return "io"
}

// Performance sheet name prefixes, compared after normalizeSheetName.
const (
	prefixIO  = "performance_io"
	prefixCPU = "performance_cpu"
)

// normalizeSheetName lower-cases a sheet name and folds spaces and dashes to
// underscores, so "Performance IO", "performance-io" and "Performance_IO"
// all compare equal across export versions.
func normalizeSheetName(name string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return '_'
		}
		return r
	}, strings.ToLower(strings.TrimSpace(name)))
}

// classifyPerformanceSheet reports whether name is a performance time-series
// sheet. The returned suffix is the original-case text following the prefix
// and separator ("Performance_IO_web01" → "web01"), used to name the server
// when the sheet has no Server Name column.
func classifyPerformanceSheet(name string) (seriesKind, string, bool) {
	trimmed := strings.TrimSpace(name)
	norm := normalizeSheetName(trimmed)

	var kind seriesKind
	var prefix string
	switch {
	case strings.HasPrefix(norm, prefixCPU):
		kind, prefix = seriesCPU, prefixCPU
	case strings.HasPrefix(norm, prefixIO):
		kind, prefix = seriesIO, prefixIO
	default:
		return 0, "", false
	}

	rest := norm[len(prefix):]
	if rest != "" && rest[0] != '_' {
		// "performance_iops" and the like are not series sheets.
		return 0, "", false
	}
	if len(trimmed) < len(prefix) {
		return kind, "", true
	}
	suffix := strings.TrimLeft(trimmed[len(prefix):], " _-")
	return kind, suffix, true
}

// readPerformanceSeries folds timestamped rows into the owning server's
// history. Rows without a resolvable server, timestamp or value are skipped.
func readPerformanceSeries(s *sheet, kind seriesKind, suffix string, servers []model.Server) {
	idx := serverIndex(servers)
	hasServerCol := s.hasColumn(ColServerName)
	if !hasServerCol && suffix == "" {
		slog.Debug("performance sheet has no server reference", "sheet", s.name)
		return
	}

	var added, skipped int
	for _, r := range s.dataRows() {
		name := suffix
		if hasServerCol {
			n, ok := r.Lookup(ColServerName)
			if !ok {
				skipped++
				continue
			}
			name = n
		}
		i, ok := idx[name]
		if !ok {
			skipped++
			continue
		}
		ts, ok := r.Time(ColTimestamp)
		if !ok {
			skipped++
			continue
		}
		v, ok := r.Float(ColValue)
		if !ok {
			skipped++
			continue
		}

		point := model.MetricPoint{Timestamp: ts, Value: v}
		perf := &servers[i].Performance
		if kind == seriesCPU {
			perf.CPUHistory = append(perf.CPUHistory, point)
		} else {
			perf.IOHistory = append(perf.IOHistory, point)
		}
		added++
	}
	slog.Debug("performance sheet ingested", "sheet", s.name, "series", kind, "points", added, "skipped", skipped)
}

// derivePeaks fills PeakIOPS from the IO history for servers whose summary
// row did not provide one.
func derivePeaks(servers []model.Server) {
	for i := range servers {
		perf := &servers[i].Performance
		if perf.PeakIOPS != 0 {
			continue
		}
		for _, p := range perf.IOHistory {
			if p.Value > perf.PeakIOPS {
				perf.PeakIOPS = p.Value
			}
		}
	}
}
