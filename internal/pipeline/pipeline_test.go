package pipeline

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/darshan-rambhia/opticdeck/internal/findings"
	"github.com/darshan-rambhia/opticdeck/internal/insight"
	"github.com/darshan-rambhia/opticdeck/internal/model"
	"github.com/darshan-rambhia/opticdeck/internal/notify"
	"github.com/darshan-rambhia/opticdeck/internal/report"
	"github.com/darshan-rambhia/opticdeck/internal/store"
	"github.com/darshan-rambhia/opticdeck/internal/workbook"
)

var fixedNow = time.Date(2026, 3, 9, 14, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// writeWorkbook saves an Acme workbook with one large and one small server.
func writeWorkbook(t *testing.T, dir, name, project string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheets := map[string][][]any{
		workbook.SheetProjectInfo: {
			{workbook.ColProjectName, workbook.ColProjectID},
			{project, 7},
		},
		workbook.SheetServerInventory: {
			{workbook.ColServerName, workbook.ColOS, workbook.ColCPUCount, workbook.ColMemoryGB, workbook.ColModel},
			{"web01", "Ubuntu 22.04", 16, 64, "PowerEdge R640"},
			{"db01", "Windows Server 2019", 48, 256, "PowerEdge R740xd"},
		},
	}
	for sheet, rows := range sheets {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
		for i, r := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			row := r
			require.NoError(t, f.SetSheetRow(sheet, cell, &row))
		}
	}
	require.NoError(t, f.DeleteSheet("Sheet1"))

	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func slideCount(t *testing.T, path string) int {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	n := 0
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			n++
		}
	}
	return n
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "opticdeck.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type failingRecorder struct{ calls int }

func (r *failingRecorder) InsertReport(*model.ReportRun) error {
	r.calls++
	return errors.New("database is locked")
}

func TestRun_WithInsights(t *testing.T) {
	dir := t.TempDir()
	in := writeWorkbook(t, dir, "acme.xlsx", "Acme")
	out := filepath.Join(dir, "deck.pptx")
	st := newTestStore(t)

	p := New(insight.StaticProvider{}, st, Options{Now: clock})
	run, err := p.Run(context.Background(), in, out)
	require.NoError(t, err)

	assert.Equal(t, "Acme", run.ProjectName)
	assert.Equal(t, in, run.SourcePath)
	assert.Equal(t, out, run.OutputPath)
	assert.Equal(t, 2, run.ServerCount)
	assert.Equal(t, 64, run.TotalCPU)
	assert.InDelta(t, 320.0, run.TotalMemoryGB, 0.001)
	// Only db01 exceeds 32 cores: one performance and one hardware insight.
	assert.Equal(t, 2, run.Insights)
	assert.Equal(t, 4, run.Slides)
	assert.Equal(t, fixedNow, run.CreatedAt)
	assert.NotEmpty(t, run.ID)

	assert.Equal(t, 4, slideCount(t, out))

	runs, err := st.ListReports(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, out, runs[0].OutputPath)
}

func TestRun_NoProvider(t *testing.T) {
	dir := t.TempDir()
	in := writeWorkbook(t, dir, "acme.xlsx", "Acme")
	out := filepath.Join(dir, "deck.pptx")

	run, err := New(nil, nil, Options{Now: clock}).Run(context.Background(), in, out)
	require.NoError(t, err)
	assert.Zero(t, run.Insights)
	assert.Equal(t, 2, run.Slides)
	assert.Equal(t, 2, slideCount(t, out))
	assert.Empty(t, run.ID, "nothing recorded without a recorder")
}

func TestRun_DefaultOutputPath(t *testing.T) {
	dir := t.TempDir()
	in := writeWorkbook(t, dir, "acme.xlsx", "Acme Corp")

	run, err := New(nil, nil, Options{Now: clock}).Run(context.Background(), in, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Report_Acme Corp_20260309.pptx"), run.OutputPath)
	assert.FileExists(t, run.OutputPath)

	outDir := t.TempDir()
	run, err = New(nil, nil, Options{Now: clock, OutputDir: outDir}).Run(context.Background(), in, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "Report_Acme Corp_20260309.pptx"), run.OutputPath)
}

func TestRun_UnreadableInput(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "notes.xlsx")
	require.NoError(t, os.WriteFile(bogus, []byte("plain text"), 0644))

	p := New(insight.StaticProvider{}, nil, Options{Now: clock})
	_, err := p.Run(context.Background(), bogus, filepath.Join(dir, "out.pptx"))
	assert.ErrorIs(t, err, workbook.ErrUnreadable)
	assert.NoFileExists(t, filepath.Join(dir, "out.pptx"))

	_, err = p.Run(context.Background(), filepath.Join(dir, "missing.xlsx"), "")
	assert.ErrorIs(t, err, workbook.ErrUnreadable)
}

func TestRun_UnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	in := writeWorkbook(t, dir, "acme.xlsx", "Acme")
	st := newTestStore(t)

	_, err := New(nil, st, Options{Now: clock}).Run(context.Background(), in, filepath.Join(dir, "no", "such", "deck.pptx"))
	assert.ErrorIs(t, err, report.ErrWriteFailure)

	runs, err := st.ListReports(0)
	require.NoError(t, err)
	assert.Empty(t, runs, "failed runs are not recorded")
}

func TestRun_RecorderFailureNotFatal(t *testing.T) {
	dir := t.TempDir()
	in := writeWorkbook(t, dir, "acme.xlsx", "Acme")
	rec := &failingRecorder{}

	run, err := New(nil, rec, Options{Now: clock}).Run(context.Background(), in, filepath.Join(dir, "deck.pptx"))
	require.NoError(t, err)
	assert.NotNil(t, run)
	assert.Equal(t, 1, rec.calls)
}

func TestRun_CancelledContextStillWritesDeck(t *testing.T) {
	dir := t.TempDir()
	in := writeWorkbook(t, dir, "acme.xlsx", "Acme")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := New(insight.StaticProvider{Delay: time.Minute}, nil, Options{Now: clock}).
		Run(ctx, in, filepath.Join(dir, "deck.pptx"))
	require.NoError(t, err)
	assert.Zero(t, run.Insights)
	assert.Equal(t, 2, run.Slides)
}

func TestRunBatch(t *testing.T) {
	dir := t.TempDir()
	good1 := writeWorkbook(t, dir, "one.xlsx", "One")
	good2 := writeWorkbook(t, dir, "two.xlsx", "Two")
	bad := filepath.Join(dir, "bad.xlsx")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0644))

	p := New(insight.StaticProvider{}, nil, Options{Now: clock, BatchConcurrency: 3})
	results, err := p.RunBatch(context.Background(), []string{good1, bad, good2})
	require.Error(t, err)
	assert.ErrorIs(t, err, workbook.ErrUnreadable)
	assert.Contains(t, err.Error(), "bad.xlsx")

	require.Len(t, results, 3)
	assert.Equal(t, good1, results[0].Input)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "One", results[0].Run.ProjectName)
	assert.ErrorIs(t, results[1].Err, workbook.ErrUnreadable)
	assert.Nil(t, results[1].Run)
	assert.Equal(t, "Two", results[2].Run.ProjectName)

	assert.FileExists(t, filepath.Join(dir, "Report_One_20260309.pptx"))
	assert.FileExists(t, filepath.Join(dir, "Report_Two_20260309.pptx"))
}

func TestRunBatch_AllGood(t *testing.T) {
	dir := t.TempDir()
	in := writeWorkbook(t, dir, "one.xlsx", "One")

	results, err := New(nil, nil, Options{Now: clock}).RunBatch(context.Background(), []string{in})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
}

func TestRunBatch_SameProjectNameGetsDistinctDecks(t *testing.T) {
	dir := t.TempDir()
	siteA := writeWorkbook(t, dir, "site-a.xlsx", "Acme")
	siteB := writeWorkbook(t, dir, "site-b.xlsx", "Acme")

	results, err := New(nil, nil, Options{Now: clock}).RunBatch(context.Background(), []string{siteA, siteB})
	require.NoError(t, err)
	require.Len(t, results, 2)

	outs := []string{results[0].Run.OutputPath, results[1].Run.OutputPath}
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "Report_Acme_20260309.pptx"),
		filepath.Join(dir, "Report_Acme_20260309_2.pptx"),
	}, outs)
	for _, out := range outs {
		assert.Equal(t, 2, slideCount(t, out))
	}
}

func TestRun_DefaultOutputPathNotOverwritten(t *testing.T) {
	dir := t.TempDir()
	in := writeWorkbook(t, dir, "acme.xlsx", "Acme")
	existing := filepath.Join(dir, "Report_Acme_20260309.pptx")
	require.NoError(t, os.WriteFile(existing, []byte("keep me"), 0644))

	run, err := New(nil, nil, Options{Now: clock}).Run(context.Background(), in, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Report_Acme_20260309_2.pptx"), run.OutputPath)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestRun_ExplicitOutputPathOverwrites(t *testing.T) {
	dir := t.TempDir()
	in := writeWorkbook(t, dir, "acme.xlsx", "Acme")
	out := filepath.Join(dir, "deck.pptx")
	require.NoError(t, os.WriteFile(out, []byte("old"), 0644))

	run, err := New(nil, nil, Options{Now: clock}).Run(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, out, run.OutputPath)
	assert.Equal(t, 2, slideCount(t, out))
}

func TestRun_DefaultOutputDirMissing(t *testing.T) {
	dir := t.TempDir()
	in := writeWorkbook(t, dir, "acme.xlsx", "Acme")

	_, err := New(nil, nil, Options{Now: clock, OutputDir: filepath.Join(dir, "nope")}).
		Run(context.Background(), in, "")
	assert.ErrorIs(t, err, report.ErrWriteFailure)
}

func TestRunUpload(t *testing.T) {
	dir := t.TempDir()
	in := writeWorkbook(t, dir, "workbook.xlsx", "Acme")
	st := newTestStore(t)

	run, deckPath, err := New(nil, st, Options{Now: clock}).RunUpload(context.Background(), in, "acme.xlsx")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Report_Acme_20260309.pptx"), deckPath)
	assert.FileExists(t, deckPath)
	assert.Equal(t, "acme.xlsx", run.SourcePath)
	assert.Empty(t, run.OutputPath, "decks beside the staged upload are not kept")

	runs, err := st.ListReports(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Empty(t, runs[0].OutputPath)

	outDir := t.TempDir()
	run, deckPath, err = New(nil, nil, Options{Now: clock, OutputDir: outDir}).RunUpload(context.Background(), in, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "Report_Acme_20260309.pptx"), deckPath)
	assert.Equal(t, deckPath, run.OutputPath)
	assert.Equal(t, "upload", run.SourcePath)
}

func TestDefaultOutputPath(t *testing.T) {
	tests := []struct {
		name    string
		project *model.Project
		want    string
	}{
		{"plain", &model.Project{Name: "Acme"}, "Report_Acme_20260309.pptx"},
		{"spaces kept", &model.Project{Name: "Acme Corp"}, "Report_Acme Corp_20260309.pptx"},
		{"unsafe characters", &model.Project{Name: `a/b\c:d*e?"f"<g>|h`}, "Report_a_b_c_d_e__f__g__h_20260309.pptx"},
		{"trimmed", &model.Project{Name: "  Acme  "}, "Report_Acme_20260309.pptx"},
		{"blank name", &model.Project{Name: "   "}, "Report_" + model.Unknown + "_20260309.pptx"},
		{"nil project", nil, "Report_" + model.Unknown + "_20260309.pptx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultOutputPath(tt.project, fixedNow))
		})
	}
}

type capture struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *capture) Name() string { return "capture" }

func (c *capture) Send(_ context.Context, ev notify.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func TestRun_Notifies(t *testing.T) {
	dir := t.TempDir()
	in := writeWorkbook(t, dir, "acme.xlsx", "Acme")
	c := &capture{}
	p := New(nil, nil, Options{Now: clock, Notifiers: []notify.Provider{c}})

	_, err := p.Run(context.Background(), in, filepath.Join(dir, "deck.pptx"))
	require.NoError(t, err)
	_, err = p.Run(context.Background(), filepath.Join(dir, "missing.xlsx"), "")
	require.Error(t, err)

	require.Len(t, c.events, 2)
	assert.Equal(t, notify.ReportGenerated, c.events[0].Kind)
	assert.Equal(t, "Acme", c.events[0].Run.ProjectName)
	assert.Equal(t, notify.ReportFailed, c.events[1].Kind)
	assert.Contains(t, c.events[1].Message, "missing.xlsx")
}

func TestRun_FindingsSlide(t *testing.T) {
	dir := t.TempDir()
	in := writeWorkbook(t, dir, "acme.xlsx", "Acme")

	run, err := New(nil, nil, Options{Now: clock, Rules: findings.DefaultRules()}).
		Run(context.Background(), in, filepath.Join(dir, "deck.pptx"))
	require.NoError(t, err)
	// db01 has 48 cores, which the dense-CPU rule reports.
	assert.Equal(t, 3, run.Slides)
}
