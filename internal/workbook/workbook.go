// Package workbook converts a survey export workbook into a model.Project.
//
// Ingestion is schema-tolerant: every sheet and column is presence-checked
// before it is read and any cell that fails to parse falls back to its
// default. Only a container that cannot be opened or decoded is an error.
package workbook

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/darshan-rambhia/opticdeck/internal/model"
	"github.com/xuri/excelize/v2"
)

// ErrUnreadable is returned when the workbook container cannot be opened or decoded.
var ErrUnreadable = errors.New("workbook unreadable")

// Sheet names recognized by the ingestor. Matching is exact and case-sensitive.
const (
	SheetProjectInfo        = "Project Info"
	SheetServerInventory    = "Server Inventory"
	SheetDiskInventory      = "Disk Inventory"
	SheetPerformanceSummary = "Performance Summary"
)

// Column names recognized by the ingestor.
const (
	ColProjectName  = "Project Name"
	ColProjectID    = "Project ID"
	ColCreatedDate  = "Created Date"
	ColServerName   = "Server Name"
	ColOS           = "OS"
	ColModel        = "Model"
	ColCPUCount     = "CPU Count"
	ColMemoryGB     = "Total Memory (GB)"
	ColDiskName     = "Disk Name"
	ColCapacityGB   = "Capacity (GB)"
	ColFreeSpaceGB  = "Free Space (GB)"
	ColPeakIOPS     = "Peak IOPS"
	ColPeakMBps     = "Peak Throughput (MB/s)"
	ColAvgLatencyMs = "Avg Latency (ms)"
	ColTimestamp    = "Timestamp"
	ColValue        = "Value"
)

// IngestFile opens the workbook at path and ingests it.
func IngestFile(path string) (*model.Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	defer f.Close()

	p, err := Ingest(f)
	if err != nil {
		return nil, err
	}
	slog.Info("workbook ingested", "path", path, "project", p.Name, "servers", len(p.Servers))
	return p, nil
}

// Ingest decodes a workbook from r and builds the project model.
func Ingest(r io.Reader) (*model.Project, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	defer f.Close()

	sheets := make(map[string]*sheet)
	var order []string
	for _, name := range f.GetSheetList() {
		raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			// A single undecodable sheet is treated as absent.
			slog.Warn("skipping unreadable sheet", "sheet", name, "error", err)
			continue
		}
		sheets[name] = newSheet(name, raw)
		order = append(order, name)
	}

	p := model.NewProject()
	if s, ok := sheets[SheetProjectInfo]; ok {
		readProjectInfo(s, p)
	}
	if s, ok := sheets[SheetServerInventory]; ok {
		p.Servers = readServers(s)
	}
	if s, ok := sheets[SheetDiskInventory]; ok {
		readDisks(s, p.Servers)
	}
	if s, ok := sheets[SheetPerformanceSummary]; ok {
		readPerformanceSummary(s, p.Servers)
	}
	for _, name := range order {
		if kind, suffix, ok := classifyPerformanceSheet(name); ok {
			readPerformanceSeries(sheets[name], kind, suffix, p.Servers)
		}
	}
	derivePeaks(p.Servers)

	return p, nil
}

func readProjectInfo(s *sheet, p *model.Project) {
	rows := s.dataRows()
	if len(rows) == 0 {
		return
	}
	first := rows[0]
	p.Name = first.StringOr(ColProjectName, model.Unknown)
	p.ID = first.IntOr(ColProjectID, 0)
	if t, ok := first.Time(ColCreatedDate); ok {
		p.Created = t
	}
}

func readServers(s *sheet) []model.Server {
	servers := make([]model.Server, 0, len(s.rows))
	for _, r := range s.dataRows() {
		srv := model.NewServer()
		srv.Name = r.StringOr(ColServerName, model.Unknown)
		srv.OS = r.StringOr(ColOS, model.Unknown)
		srv.Model = r.StringOr(ColModel, "")
		srv.CPUCount = r.IntOr(ColCPUCount, 0)
		srv.MemoryGB = r.FloatOr(ColMemoryGB, 0)
		servers = append(servers, srv)
	}
	return servers
}

// serverIndex maps a server name to the position of its first occurrence.
func serverIndex(servers []model.Server) map[string]int {
	idx := make(map[string]int, len(servers))
	for i, s := range servers {
		if _, ok := idx[s.Name]; !ok {
			idx[s.Name] = i
		}
	}
	return idx
}

func readDisks(s *sheet, servers []model.Server) {
	idx := serverIndex(servers)
	for _, r := range s.dataRows() {
		name, ok := r.Lookup(ColServerName)
		if !ok {
			continue
		}
		i, ok := idx[name]
		if !ok {
			slog.Debug("disk row for unknown server", "server", name)
			continue
		}
		servers[i].Disks = append(servers[i].Disks, model.Disk{
			Name:        r.StringOr(ColDiskName, model.Unknown),
			CapacityGB:  r.FloatOr(ColCapacityGB, 0),
			FreeSpaceGB: r.FloatOr(ColFreeSpaceGB, 0),
		})
	}
}

func readPerformanceSummary(s *sheet, servers []model.Server) {
	idx := serverIndex(servers)
	for _, r := range s.dataRows() {
		name, ok := r.Lookup(ColServerName)
		if !ok {
			continue
		}
		i, ok := idx[name]
		if !ok {
			continue
		}
		perf := &servers[i].Performance
		perf.PeakIOPS = r.FloatOr(ColPeakIOPS, perf.PeakIOPS)
		perf.PeakThroughputMBps = r.FloatOr(ColPeakMBps, perf.PeakThroughputMBps)
		perf.AvgLatencyMs = r.FloatOr(ColAvgLatencyMs, perf.AvgLatencyMs)
	}
}
