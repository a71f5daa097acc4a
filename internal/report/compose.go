// Package report turns an ingested project and its insight narratives into a
// slide deck.
package report

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/darshan-rambhia/opticdeck/internal/aggregate"
	"github.com/darshan-rambhia/opticdeck/internal/deck"
	"github.com/darshan-rambhia/opticdeck/internal/findings"
	"github.com/darshan-rambhia/opticdeck/internal/model"
)

// Slide titles.
const (
	DefaultTitle   = "Live Optics Analysis Report"
	SummaryTitle   = "Executive Summary"
	InventoryTitle = "Server Inventory"
	StorageTitle   = "Storage"
	FindingsTitle  = "Risk Findings"
	InsightsTitle  = "AI Insights"
)

// maxInventoryLines caps the inventory slide so it fits the body frame.
const maxInventoryLines = 12

type slideText struct {
	title, body string
}

// Options controls optional content of the composed deck.
type Options struct {
	Title            string
	Creator          string
	IncludeInventory bool
	// Findings become the last slide when non-empty.
	Findings []findings.Finding
	// Now stamps the deck's creation time. Defaults to time.Now.
	Now func() time.Time
}

// Compose builds the deck for a project. Slides are, in order: the title
// slide, the executive summary, the inventory and storage slides when
// enabled, one slide per distinct non-empty insight narrative, then the
// findings slide when there are findings.
func Compose(p *model.Project, insights []model.Insight, opts Options) (*deck.Deck, error) {
	if p == nil {
		p = model.NewProject()
	}
	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}

	d := deck.New(title)
	d.Creator = opts.Creator
	if opts.Now != nil {
		d.Created = opts.Now().UTC()
	}
	layout := d.DefaultLayout()

	sum := aggregate.Summarize(p)
	slides := []slideText{
		{title, "Project: " + p.Name},
		{SummaryTitle, summaryBody(sum)},
	}
	if opts.IncludeInventory {
		slides = append(slides,
			slideText{InventoryTitle, inventoryBody(p)},
			slideText{StorageTitle, storageBody(sum)},
		)
	}
	for _, text := range narratives(insights) {
		slides = append(slides, slideText{InsightsTitle, text})
	}
	if len(opts.Findings) > 0 {
		slides = append(slides, slideText{FindingsTitle, findingsBody(opts.Findings)})
	}

	for _, s := range slides {
		if _, err := d.AddSlide(layout.ID, s.title, s.body); err != nil {
			return nil, fmt.Errorf("composing %q slide: %w", s.title, err)
		}
	}

	slog.Debug("deck composed", "project", p.Name, "slides", len(d.Slides))
	return d, nil
}

func summaryBody(s aggregate.Summary) string {
	return fmt.Sprintf("Analyzed %s %s.\nTotal CPU Cores: %s\nTotal Memory: %s GB",
		humanize.Comma(int64(s.ServerCount)), plural(s.ServerCount, "server", "servers"),
		humanize.Comma(int64(s.TotalCPU)),
		formatGB(s.TotalMemoryGB))
}

func inventoryBody(p *model.Project) string {
	if len(p.Servers) == 0 {
		return "No servers found."
	}
	var b strings.Builder
	for i, s := range p.Servers {
		if i == maxInventoryLines {
			fmt.Fprintf(&b, "\n... and %d more", len(p.Servers)-i)
			break
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s (%s): %s cores, %s GB", s.Name, s.OS, humanize.Comma(int64(s.CPUCount)), formatGB(s.MemoryGB))
	}
	return b.String()
}

func storageBody(s aggregate.Summary) string {
	used := s.DiskCapacityGB - s.DiskFreeGB
	lines := []string{
		fmt.Sprintf("Disks: %s", humanize.Comma(int64(s.DiskCount))),
		fmt.Sprintf("Capacity: %s GB", formatGB(s.DiskCapacityGB)),
		fmt.Sprintf("Free: %s GB", formatGB(s.DiskFreeGB)),
		fmt.Sprintf("Used: %s GB", formatGB(used)),
	}
	if s.PeakIOPS > 0 {
		lines = append(lines, fmt.Sprintf("Peak IOPS: %s", humanize.CommafWithDigits(s.PeakIOPS, 0)))
	}
	return strings.Join(lines, "\n")
}

func findingsBody(fs []findings.Finding) string {
	var b strings.Builder
	for i, f := range fs {
		if i == maxInventoryLines {
			fmt.Fprintf(&b, "\n... and %d more", len(fs)-i)
			break
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.String())
	}
	return b.String()
}

// narratives returns the distinct non-empty narratives in first-seen order.
func narratives(insights []model.Insight) []string {
	seen := make(map[string]bool, len(insights))
	var out []string
	for _, in := range insights {
		if strings.TrimSpace(in.Narrative) == "" || seen[in.Narrative] {
			continue
		}
		seen[in.Narrative] = true
		out = append(out, in.Narrative)
	}
	return out
}

func formatGB(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
