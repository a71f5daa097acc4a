// Package model defines all shared domain types for opticdeck.
package model

import "time"

// Unknown is the sentinel used for names that the workbook did not supply.
const Unknown = "Unknown"

// Project is one surveyed environment.
type Project struct {
	ID      int       `json:"id"`
	Name    string    `json:"name"`
	Created time.Time `json:"created"`
	Servers []Server  `json:"servers"`
}

// NewProject returns a project with the sentinel name and no servers.
func NewProject() *Project {
	return &Project{
		Name:    Unknown,
		Servers: []Server{},
	}
}

// Server is a single surveyed host.
type Server struct {
	Name        string             `json:"name"`
	OS          string             `json:"os"`
	Model       string             `json:"model,omitempty"` // hardware identifier, may be empty
	CPUCount    int                `json:"cpu_count"`
	MemoryGB    float64            `json:"memory_gb"`
	Disks       []Disk             `json:"disks"`
	Performance PerformanceProfile `json:"performance"`
}

// NewServer returns a server with sentinel names and zeroed numerics.
func NewServer() Server {
	return Server{
		Name:  Unknown,
		OS:    Unknown,
		Disks: []Disk{},
	}
}

// Disk is a logical or physical disk attached to a server. FreeSpaceGB is
// not checked against CapacityGB.
type Disk struct {
	Name        string  `json:"name"`
	CapacityGB  float64 `json:"capacity_gb"`
	FreeSpaceGB float64 `json:"free_space_gb"`
}

// PerformanceProfile holds the peak counters and the sampled history of a server.
type PerformanceProfile struct {
	PeakIOPS           float64       `json:"peak_iops"`
	PeakThroughputMBps float64       `json:"peak_throughput_mbps"`
	AvgLatencyMs       float64       `json:"avg_latency_ms"`
	IOHistory          []MetricPoint `json:"io_history,omitempty"`
	CPUHistory         []MetricPoint `json:"cpu_history,omitempty"`
}

// Empty reports whether no performance data was ingested for the profile.
func (p PerformanceProfile) Empty() bool {
	return p.PeakIOPS == 0 && p.PeakThroughputMBps == 0 && p.AvgLatencyMs == 0 &&
		len(p.IOHistory) == 0 && len(p.CPUHistory) == 0
}

// MetricPoint is a single time-series sample. Sequences keep insertion order.
type MetricPoint struct {
	Timestamp time.Time `json:"ts"`
	Value     float64   `json:"value"`
}

// InsightKind identifies which provider operation produced a narrative.
type InsightKind string

const (
	InsightPerformance InsightKind = "performance"
	InsightHardware    InsightKind = "hardware"
)

// Insight is a narrative returned by an insight provider.
type Insight struct {
	Kind      InsightKind `json:"kind"`
	Subject   string      `json:"subject"` // query or server name
	Narrative string      `json:"narrative"`
}

// ReportRun records one completed workbook-to-deck conversion.
type ReportRun struct {
	ID            string    `json:"id"`
	ProjectName   string    `json:"project_name"`
	SourcePath    string    `json:"source_path"`
	OutputPath    string    `json:"output_path"`
	ServerCount   int       `json:"server_count"`
	TotalCPU      int       `json:"total_cpu"`
	TotalMemoryGB float64   `json:"total_memory_gb"`
	Slides        int       `json:"slides"`
	Insights      int       `json:"insights"`
	CreatedAt     time.Time `json:"created_at"`
}
