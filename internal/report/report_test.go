package report

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/darshan-rambhia/opticdeck/internal/deck"
	"github.com/darshan-rambhia/opticdeck/internal/findings"
	"github.com/darshan-rambhia/opticdeck/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func acme() *model.Project {
	p := model.NewProject()
	p.Name = "Acme"
	p.Servers = []model.Server{
		{
			Name: "web01", OS: "Windows Server 2019", CPUCount: 16, MemoryGB: 64,
			Disks: []model.Disk{{Name: "C:", CapacityGB: 500, FreeSpaceGB: 100}},
		},
		{
			Name: "db01", OS: "RHEL 8", CPUCount: 48, MemoryGB: 256,
			Disks:       []model.Disk{{Name: "/data", CapacityGB: 2000, FreeSpaceGB: 750.5}},
			Performance: model.PerformanceProfile{PeakIOPS: 12500},
		},
	}
	return p
}

func titles(d *deck.Deck) []string {
	var out []string
	for _, s := range d.Slides {
		out = append(out, s.Title())
	}
	return out
}

func TestCompose_NoInsights(t *testing.T) {
	d, err := Compose(acme(), nil, Options{})
	require.NoError(t, err)

	require.Len(t, d.Slides, 2)
	assert.Equal(t, []string{DefaultTitle, SummaryTitle}, titles(d))
	assert.Equal(t, "Project: Acme", d.Slides[0].Body())
	assert.Equal(t, DefaultTitle, d.Title)
}

func TestCompose_SummaryFigures(t *testing.T) {
	d, err := Compose(acme(), nil, Options{})
	require.NoError(t, err)

	body := d.Slides[1].Body()
	assert.Equal(t, "Analyzed 2 servers.\nTotal CPU Cores: 64\nTotal Memory: 320 GB", body)
}

func TestCompose_SingleServerAndFractionalMemory(t *testing.T) {
	p := model.NewProject()
	p.Servers = []model.Server{{Name: "a", CPUCount: 2, MemoryGB: 7.5}}

	d, err := Compose(p, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Analyzed 1 server.\nTotal CPU Cores: 2\nTotal Memory: 7.5 GB", d.Slides[1].Body())
}

func TestCompose_EmptyProject(t *testing.T) {
	d, err := Compose(model.NewProject(), nil, Options{})
	require.NoError(t, err)

	require.Len(t, d.Slides, 2)
	assert.Equal(t, "Project: Unknown", d.Slides[0].Body())
	assert.Equal(t, "Analyzed 0 servers.\nTotal CPU Cores: 0\nTotal Memory: 0 GB", d.Slides[1].Body())

	d, err = Compose(nil, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Project: Unknown", d.Slides[0].Body())
}

func TestCompose_InsightsVerbatim(t *testing.T) {
	narrative := "[AI Analysis] Latency spikes during backup windows.\nReview scheduling."
	d, err := Compose(acme(), []model.Insight{
		{Kind: model.InsightPerformance, Narrative: narrative},
	}, Options{})
	require.NoError(t, err)

	require.Len(t, d.Slides, 3)
	assert.Equal(t, InsightsTitle, d.Slides[2].Title())
	assert.Equal(t, narrative, d.Slides[2].Body())
}

func TestCompose_InsightsDeduplicatedInOrder(t *testing.T) {
	d, err := Compose(acme(), []model.Insight{
		{Kind: model.InsightPerformance, Narrative: "first"},
		{Kind: model.InsightHardware, Subject: "db01", Narrative: "second"},
		{Kind: model.InsightHardware, Subject: "db02", Narrative: "first"},
		{Kind: model.InsightHardware, Subject: "db03", Narrative: ""},
		{Kind: model.InsightHardware, Subject: "db04", Narrative: "   "},
	}, Options{})
	require.NoError(t, err)

	require.Len(t, d.Slides, 4)
	assert.Equal(t, "first", d.Slides[2].Body())
	assert.Equal(t, "second", d.Slides[3].Body())
}

func TestCompose_Inventory(t *testing.T) {
	d, err := Compose(acme(), []model.Insight{{Narrative: "n"}}, Options{IncludeInventory: true})
	require.NoError(t, err)

	assert.Equal(t, []string{DefaultTitle, SummaryTitle, InventoryTitle, StorageTitle, InsightsTitle}, titles(d))
	assert.Equal(t,
		"web01 (Windows Server 2019): 16 cores, 64 GB\ndb01 (RHEL 8): 48 cores, 256 GB",
		d.Slides[2].Body())
	assert.Equal(t,
		"Disks: 2\nCapacity: 2,500 GB\nFree: 850.5 GB\nUsed: 1,649.5 GB\nPeak IOPS: 12,500",
		d.Slides[3].Body())
}

func TestCompose_InventoryTruncates(t *testing.T) {
	p := model.NewProject()
	for i := range maxInventoryLines + 3 {
		s := model.NewServer()
		s.Name = fmt.Sprintf("srv%02d", i)
		p.Servers = append(p.Servers, s)
	}

	d, err := Compose(p, nil, Options{IncludeInventory: true})
	require.NoError(t, err)

	lines := strings.Split(d.Slides[2].Body(), "\n")
	require.Len(t, lines, maxInventoryLines+1)
	assert.Equal(t, "... and 3 more", lines[maxInventoryLines])
}

func TestCompose_Findings(t *testing.T) {
	rules := findings.DefaultRules()
	rules.DiskFull.Threshold = 75
	fs := findings.Evaluate(acme(), rules)
	d, err := Compose(acme(), []model.Insight{{Narrative: "n"}}, Options{Findings: fs})
	require.NoError(t, err)

	// Insight slides keep their place right after the summary.
	assert.Equal(t, []string{DefaultTitle, SummaryTitle, InsightsTitle, FindingsTitle}, titles(d))
	assert.Equal(t, "n", d.Slides[2].Body())
	assert.Equal(t,
		"[warning] web01 disk C: is 80% full\n[info] db01 has 48 cores (above 32), review hardware generation",
		d.Slides[3].Body())
}

func TestCompose_FindingsTruncate(t *testing.T) {
	var fs []findings.Finding
	for i := range maxInventoryLines + 2 {
		fs = append(fs, findings.Finding{Severity: findings.SeverityInfo, Message: fmt.Sprintf("f%d", i)})
	}
	d, err := Compose(acme(), nil, Options{Findings: fs})
	require.NoError(t, err)

	lines := strings.Split(d.Slides[2].Body(), "\n")
	require.Len(t, lines, maxInventoryLines+1)
	assert.Equal(t, "[info] f0", lines[0])
	assert.Equal(t, "... and 2 more", lines[maxInventoryLines])
}

func TestCompose_Options(t *testing.T) {
	fixed := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	d, err := Compose(acme(), nil, Options{
		Title:   "Quarterly Review",
		Creator: "ops",
		Now:     func() time.Time { return fixed },
	})
	require.NoError(t, err)

	assert.Equal(t, "Quarterly Review", d.Title)
	assert.Equal(t, "Quarterly Review", d.Slides[0].Title())
	assert.Equal(t, "ops", d.Creator)
	assert.Equal(t, fixed, d.Created)
}

func TestCompose_EverySlideUsesDeckLayout(t *testing.T) {
	d, err := Compose(acme(), []model.Insight{{Narrative: "a"}, {Narrative: "b"}}, Options{IncludeInventory: true})
	require.NoError(t, err)

	for _, s := range d.Slides {
		_, ok := d.Layout(s.LayoutID)
		assert.True(t, ok, "slide %d references missing layout %d", s.ID, s.LayoutID)
	}
	assert.NoError(t, d.Validate())
}

func TestWriteFile(t *testing.T) {
	d, err := Compose(acme(), []model.Insight{{Narrative: "insight"}}, Options{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "Report_Acme.pptx")
	require.NoError(t, WriteFile(d, path))

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	var slides int
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") {
			slides++
		}
	}
	assert.Equal(t, 3, slides)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestWriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pptx")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	d, err := Compose(acme(), nil, Options{})
	require.NoError(t, err)
	require.NoError(t, WriteFile(d, path))

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	zr.Close()
}

func TestWriteFile_Failures(t *testing.T) {
	valid := func(t *testing.T) *deck.Deck {
		d, err := Compose(acme(), nil, Options{})
		require.NoError(t, err)
		return d
	}

	t.Run("missing directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "no", "such", "dir", "out.pptx")
		err := WriteFile(valid(t), path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrWriteFailure)
		assert.NoFileExists(t, path)
	})

	t.Run("destination is a directory", func(t *testing.T) {
		dir := t.TempDir()
		target := filepath.Join(dir, "out.pptx")
		require.NoError(t, os.Mkdir(target, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(target, "keep"), nil, 0o644))

		err := WriteFile(valid(t), target)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrWriteFailure)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "temporary file left behind")
	})

	t.Run("invalid deck", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "out.pptx")
		d := valid(t)
		d.Slides[0].LayoutID = 99

		err := WriteFile(d, path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrWriteFailure)
		assert.ErrorIs(t, err, deck.ErrUnknownLayout)
		assert.NoFileExists(t, path)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("nil deck", func(t *testing.T) {
		err := WriteFile(nil, filepath.Join(t.TempDir(), "out.pptx"))
		assert.ErrorIs(t, err, ErrWriteFailure)
	})
}
