// Package aggregate derives summary statistics from a project.
package aggregate

import "github.com/darshan-rambhia/opticdeck/internal/model"

// Summary is the set of totals shown on the executive summary slides.
type Summary struct {
	ServerCount    int
	TotalCPU       int
	TotalMemoryGB  float64
	DiskCount      int
	DiskCapacityGB float64
	DiskFreeGB     float64
	PeakIOPS       float64
}

// TotalCPU sums CPU core counts across all servers.
func TotalCPU(p *model.Project) int {
	if p == nil {
		return 0
	}
	total := 0
	for _, s := range p.Servers {
		total += s.CPUCount
	}
	return total
}

// TotalMemory sums memory capacity in GB across all servers.
func TotalMemory(p *model.Project) float64 {
	if p == nil {
		return 0
	}
	var total float64
	for _, s := range p.Servers {
		total += s.MemoryGB
	}
	return total
}

// DiskCount counts disks across all servers.
func DiskCount(p *model.Project) int {
	if p == nil {
		return 0
	}
	n := 0
	for _, s := range p.Servers {
		n += len(s.Disks)
	}
	return n
}

// TotalDiskCapacity sums disk capacity in GB.
func TotalDiskCapacity(p *model.Project) float64 {
	return sumDisks(p, func(d model.Disk) float64 { return d.CapacityGB })
}

// TotalFreeSpace sums free disk space in GB.
func TotalFreeSpace(p *model.Project) float64 {
	return sumDisks(p, func(d model.Disk) float64 { return d.FreeSpaceGB })
}

func sumDisks(p *model.Project, field func(model.Disk) float64) float64 {
	if p == nil {
		return 0
	}
	var total float64
	for _, s := range p.Servers {
		for _, d := range s.Disks {
			total += field(d)
		}
	}
	return total
}

// PeakIOPS returns the highest per-server peak IOPS.
func PeakIOPS(p *model.Project) float64 {
	if p == nil {
		return 0
	}
	var peak float64
	for _, s := range p.Servers {
		peak = max(peak, s.Performance.PeakIOPS)
	}
	return peak
}

// Summarize computes every total in one pass over the reducers above.
func Summarize(p *model.Project) Summary {
	count := 0
	if p != nil {
		count = len(p.Servers)
	}
	return Summary{
		ServerCount:    count,
		TotalCPU:       TotalCPU(p),
		TotalMemoryGB:  TotalMemory(p),
		DiskCount:      DiskCount(p),
		DiskCapacityGB: TotalDiskCapacity(p),
		DiskFreeGB:     TotalFreeSpace(p),
		PeakIOPS:       PeakIOPS(p),
	}
}
