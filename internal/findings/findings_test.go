package findings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darshan-rambhia/opticdeck/internal/model"
)

func project() *model.Project {
	return &model.Project{
		Name: "Acme",
		Servers: []model.Server{
			{
				Name:     "web01",
				CPUCount: 16,
				Disks: []model.Disk{
					{Name: "C:", CapacityGB: 100, FreeSpaceGB: 10},  // 90%
					{Name: "D:", CapacityGB: 100, FreeSpaceGB: 50},  // 50%
					{Name: "E:", CapacityGB: 0, FreeSpaceGB: 0},     // no capacity
					{Name: "F:", CapacityGB: 100, FreeSpaceGB: 200}, // free above capacity
				},
				Performance: model.PerformanceProfile{AvgLatencyMs: 4.2},
			},
			{
				Name:        "db01",
				CPUCount:    48,
				Disks:       []model.Disk{{Name: "data", CapacityGB: 2000, FreeSpaceGB: 100}},
				Performance: model.PerformanceProfile{AvgLatencyMs: 31.5},
			},
		},
	}
}

func TestEvaluate_DefaultRules(t *testing.T) {
	got := Evaluate(project(), DefaultRules())
	require.Len(t, got, 4)

	// Warnings first in server order, then info.
	assert.Equal(t, Finding{RuleDiskFull, SeverityWarning, "web01/C:", "web01 disk C: is 90% full"}, got[0])
	assert.Equal(t, Finding{RuleLatencyHigh, SeverityWarning, "db01", "db01 average latency 31.5 ms exceeds 20 ms"}, got[1])
	assert.Equal(t, Finding{RuleDiskFull, SeverityWarning, "db01/data", "db01 disk data is 95% full"}, got[2])
	assert.Equal(t, RuleCPUDense, got[3].Rule)
	assert.Equal(t, SeverityInfo, got[3].Severity)
	assert.Equal(t, "db01 has 48 cores (above 32), review hardware generation", got[3].Message)
}

func TestEvaluate_ThresholdIsExclusive(t *testing.T) {
	p := &model.Project{Servers: []model.Server{{
		Name:        "edge",
		CPUCount:    32,
		Disks:       []model.Disk{{Name: "C:", CapacityGB: 100, FreeSpaceGB: 15}},
		Performance: model.PerformanceProfile{AvgLatencyMs: 20},
	}}}
	assert.Empty(t, Evaluate(p, DefaultRules()))
}

func TestEvaluate_DisabledRules(t *testing.T) {
	assert.Empty(t, Evaluate(project(), Rules{}))

	only := Evaluate(project(), Rules{CPUDense: &ThresholdRule{Threshold: 8, Severity: SeverityCritical}})
	require.Len(t, only, 2)
	assert.Equal(t, "web01", only[0].Subject)
	assert.Equal(t, "db01", only[1].Subject)
}

func TestEvaluate_SeverityOrdering(t *testing.T) {
	rules := Rules{
		DiskFull:    &ThresholdRule{Threshold: 85, Severity: SeverityInfo},
		LatencyHigh: &ThresholdRule{Threshold: 20, Severity: SeverityCritical},
	}
	got := Evaluate(project(), rules)
	require.Len(t, got, 3)
	assert.Equal(t, SeverityCritical, got[0].Severity)
	assert.Equal(t, "web01/C:", got[1].Subject)
	assert.Equal(t, "db01/data", got[2].Subject)
}

func TestEvaluate_NilAndEmpty(t *testing.T) {
	assert.Nil(t, Evaluate(nil, DefaultRules()))
	assert.Empty(t, Evaluate(model.NewProject(), DefaultRules()))
}

func TestUsedPercent(t *testing.T) {
	tests := []struct {
		disk   model.Disk
		want   float64
		wantOK bool
	}{
		{model.Disk{CapacityGB: 200, FreeSpaceGB: 50}, 75, true},
		{model.Disk{CapacityGB: 100, FreeSpaceGB: -5}, 100, true},
		{model.Disk{CapacityGB: 100, FreeSpaceGB: 500}, 0, true},
		{model.Disk{CapacityGB: 0, FreeSpaceGB: 10}, 0, false},
	}
	for _, tt := range tests {
		got, ok := usedPercent(tt.disk)
		assert.Equal(t, tt.wantOK, ok)
		assert.InDelta(t, tt.want, got, 0.0001)
	}
}

func TestFindingString(t *testing.T) {
	f := Finding{Severity: SeverityWarning, Message: "db01 disk data is 95% full"}
	assert.Equal(t, "[warning] db01 disk data is 95% full", f.String())
}

func TestValidSeverity(t *testing.T) {
	for _, s := range []string{SeverityCritical, SeverityWarning, SeverityInfo} {
		assert.True(t, ValidSeverity(s), s)
	}
	assert.False(t, ValidSeverity("panic"))
	assert.False(t, ValidSeverity(""))
}
