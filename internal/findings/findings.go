// Package findings evaluates assessment rules against an ingested project.
package findings

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/darshan-rambhia/opticdeck/internal/model"
)

// Severities, most urgent first.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Rule names.
const (
	RuleDiskFull    = "disk_full"
	RuleLatencyHigh = "latency_high"
	RuleCPUDense    = "cpu_dense"
)

// Rules holds the configured rules. A nil rule is disabled.
type Rules struct {
	DiskFull    *ThresholdRule // percent of capacity used
	LatencyHigh *ThresholdRule // average latency in ms
	CPUDense    *ThresholdRule // cores per server
}

// ThresholdRule fires when a value is strictly above Threshold.
type ThresholdRule struct {
	Threshold float64
	Severity  string
}

// DefaultRules returns the stock rule set.
func DefaultRules() Rules {
	return Rules{
		DiskFull:    &ThresholdRule{Threshold: 85, Severity: SeverityWarning},
		LatencyHigh: &ThresholdRule{Threshold: 20, Severity: SeverityWarning},
		CPUDense:    &ThresholdRule{Threshold: 32, Severity: SeverityInfo},
	}
}

// ValidSeverity reports whether s is a known severity.
func ValidSeverity(s string) bool {
	return rank(s) >= 0
}

// Finding is one rule hit.
type Finding struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Subject  string `json:"subject"`
	Message  string `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s", f.Severity, f.Message)
}

// Evaluate runs every enabled rule over p. Findings are ordered by
// severity, then by server order in the workbook.
func Evaluate(p *model.Project, rules Rules) []Finding {
	if p == nil {
		return nil
	}
	var out []Finding
	for _, s := range p.Servers {
		if r := rules.CPUDense; r != nil && float64(s.CPUCount) > r.Threshold {
			out = append(out, Finding{
				Rule:     RuleCPUDense,
				Severity: r.Severity,
				Subject:  s.Name,
				Message:  fmt.Sprintf("%s has %d cores (above %g), review hardware generation", s.Name, s.CPUCount, r.Threshold),
			})
		}
		if r := rules.LatencyHigh; r != nil && s.Performance.AvgLatencyMs > r.Threshold {
			out = append(out, Finding{
				Rule:     RuleLatencyHigh,
				Severity: r.Severity,
				Subject:  s.Name,
				Message:  fmt.Sprintf("%s average latency %.1f ms exceeds %g ms", s.Name, s.Performance.AvgLatencyMs, r.Threshold),
			})
		}
		if r := rules.DiskFull; r != nil {
			for _, d := range s.Disks {
				used, ok := usedPercent(d)
				if !ok || used <= r.Threshold {
					continue
				}
				out = append(out, Finding{
					Rule:     RuleDiskFull,
					Severity: r.Severity,
					Subject:  s.Name + "/" + d.Name,
					Message:  fmt.Sprintf("%s disk %s is %.0f%% full", s.Name, d.Name, used),
				})
			}
		}
	}
	slices.SortStableFunc(out, func(a, b Finding) int {
		return cmp.Compare(rank(a.Severity), rank(b.Severity))
	})
	return out
}

// usedPercent ignores disks without capacity. Free space above capacity
// counts as empty.
func usedPercent(d model.Disk) (float64, bool) {
	if d.CapacityGB <= 0 {
		return 0, false
	}
	free := min(max(d.FreeSpaceGB, 0), d.CapacityGB)
	return (d.CapacityGB - free) / d.CapacityGB * 100, true
}

func rank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	}
	return -1
}
