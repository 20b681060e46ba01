// Package dataset holds the tabular data handle passed between the loaders,
// processors, the regression pipeline and the exporters.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither a workbook
	// nor parseable as CSV.
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	// ErrEmptyDataset is returned when a file has no header row.
	ErrEmptyDataset = errors.New("dataset is empty")
	// ErrColumnNotFound is returned when a named column does not exist.
	ErrColumnNotFound = errors.New("column not found")
	// ErrNotFinite is returned for NaN and infinite cells.
	ErrNotFinite = errors.New("value is not finite")
	// ErrBadNumber is returned for cells that do not parse as a number.
	ErrBadNumber = errors.New("invalid number")
)

// digits grouped in threes, e.g. 1,234,567.89
var thousandsGrouped = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)

// Dataset is an in-memory table. Rows may be ragged; missing trailing cells
// read as blank. No schema is enforced.
type Dataset struct {
	Columns []string
	Rows    [][]string
	// Source is the file the dataset was loaded from, if any.
	Source string
}

// New builds a dataset from a header and rows.
func New(columns []string, rows [][]string) *Dataset {
	return &Dataset{Columns: columns, Rows: rows}
}

// NumRows returns the number of data rows.
func (d *Dataset) NumRows() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// NumColumns returns the number of header columns.
func (d *Dataset) NumColumns() int {
	if d == nil {
		return 0
	}
	return len(d.Columns)
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}

	out := &Dataset{
		Columns: append([]string(nil), d.Columns...),
		Rows:    make([][]string, len(d.Rows)),
		Source:  d.Source,
	}
	for i, row := range d.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// ColumnIndex returns the index of the named column or -1.
func (d *Dataset) ColumnIndex(name string) int {
	if d == nil {
		return -1
	}
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at row i, column j, blank when the row is short.
func (d *Dataset) Cell(i, j int) string {
	row := d.Rows[i]
	if j >= len(row) {
		return ""
	}
	return row[j]
}

// Float64Column parses every value of the named column as float64.
func (d *Dataset) Float64Column(name string) ([]float64, error) {
	j := d.ColumnIndex(name)
	if j < 0 {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}

	out := make([]float64, d.NumRows())
	for i := range d.Rows {
		v, err := ParseFloat(d.Cell(i, j))
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", name, i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

// ParseFloat parses a numeric cell, tolerating surrounding blanks. Commas
// are accepted only as thousands separators ("1,234.5"); "1,5" is an
// error rather than 15. NaN and infinities are rejected.
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrBadNumber)
	}
	if strings.Contains(s, ",") {
		if !thousandsGrouped.MatchString(s) {
			return 0, fmt.Errorf("%w: %q", ErrBadNumber, s)
		}
		s = strings.ReplaceAll(s, ",", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadNumber, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNotFinite, s)
	}
	return v, nil
}

// Completeness returns the fraction of non-blank cells over rows × columns.
// An empty dataset is complete.
func (d *Dataset) Completeness() float64 {
	total := d.NumRows() * d.NumColumns()
	if total == 0 {
		return 1
	}

	filled := 0
	for i := range d.Rows {
		for j := range d.Columns {
			if strings.TrimSpace(d.Cell(i, j)) != "" {
				filled++
			}
		}
	}
	return float64(filled) / float64(total)
}
