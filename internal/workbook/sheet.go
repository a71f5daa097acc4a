package workbook

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// timeLayouts are tried in order for textual timestamp cells.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
}

// maxExcelSerial is 9999-12-31, the last date Excel can represent.
const maxExcelSerial = 2958465

// sheet is a header-indexed view over the raw rows of one worksheet.
type sheet struct {
	name   string
	header map[string]int
	folded map[string]int // lower-cased header → column
	rows   [][]string     // data rows, header excluded
}

func newSheet(name string, raw [][]string) *sheet {
	s := &sheet{
		name:   name,
		header: make(map[string]int),
		folded: make(map[string]int),
	}
	if len(raw) == 0 {
		return s
	}
	for i, h := range raw[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, dup := s.header[h]; !dup {
			s.header[h] = i
		}
		if _, dup := s.folded[strings.ToLower(h)]; !dup {
			s.folded[strings.ToLower(h)] = i
		}
	}
	s.rows = raw[1:]
	return s
}

// column returns the index of the named column. Exact (trimmed) matches win
// over case-insensitive ones.
func (s *sheet) column(name string) (int, bool) {
	if i, ok := s.header[name]; ok {
		return i, true
	}
	i, ok := s.folded[strings.ToLower(name)]
	return i, ok
}

func (s *sheet) hasColumn(name string) bool {
	_, ok := s.column(name)
	return ok
}

// dataRows returns every non-blank data row in sheet order.
func (s *sheet) dataRows() []row {
	out := make([]row, 0, len(s.rows))
	for _, cells := range s.rows {
		if blank(cells) {
			continue
		}
		out = append(out, row{sheet: s, cells: cells})
	}
	return out
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// row gives typed access to the cells of one data row. Every accessor
// returns ok=false when the column is missing, the cell is blank, or the
// value does not parse; the *Or variants substitute a default instead.
type row struct {
	sheet *sheet
	cells []string
}

// Lookup returns the trimmed cell text for a column.
func (r row) Lookup(col string) (string, bool) {
	i, ok := r.sheet.column(col)
	if !ok || i >= len(r.cells) {
		return "", false
	}
	v := strings.TrimSpace(r.cells[i])
	if v == "" {
		return "", false
	}
	return v, true
}

// StringOr returns the cell text, or def when absent or blank.
func (r row) StringOr(col, def string) string {
	if v, ok := r.Lookup(col); ok {
		return v
	}
	return def
}

// Int parses a non-negative integer. Integral floats such as "16.0" are
// accepted since numeric cells may carry a decimal representation.
func (r row) Int(col string) (int, bool) {
	v, ok := r.Lookup(col)
	if !ok {
		return 0, false
	}
	return parseCount(v)
}

// IntOr returns the parsed integer or def.
func (r row) IntOr(col string, def int) int {
	if n, ok := r.Int(col); ok {
		return n
	}
	return def
}

// Float parses a finite, non-negative real number.
func (r row) Float(col string) (float64, bool) {
	v, ok := r.Lookup(col)
	if !ok {
		return 0, false
	}
	return parseAmount(v)
}

// FloatOr returns the parsed real or def.
func (r row) FloatOr(col string, def float64) float64 {
	if f, ok := r.Float(col); ok {
		return f
	}
	return def
}

// Time parses a timestamp cell: either an Excel serial date or one of the
// textual layouts in timeLayouts. Textual values without a zone are UTC.
func (r row) Time(col string) (time.Time, bool) {
	v, ok := r.Lookup(col)
	if !ok {
		return time.Time{}, false
	}
	return parseTimestamp(v)
}

// parseCount is locale-agnostic: thousands separators and decimal commas are
// rejected rather than guessed at. Counts above MaxInt32 are rejected so
// totals cannot overflow.
func parseCount(v string) (int, bool) {
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 || n > math.MaxInt32 {
			return 0, false
		}
		return n, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func parseAmount(v string) (float64, bool) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}

func parseTimestamp(v string) (time.Time, bool) {
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		if serial <= 0 || serial > maxExcelSerial || math.IsNaN(serial) {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
