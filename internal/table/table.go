// Package table holds the in-memory tabular model shared by the workbook reader,
// the reconciliation engine, and the writers.
package table

import (
	"strconv"
	"strings"
)

// Kind describes how a cell was stored in its source file.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	default:
		return "empty"
	}
}

// Cell is a single value. Raw is the text as it appeared in the source and is
// what writers emit, so copying a Cell preserves its representation.
type Cell struct {
	Kind Kind
	Raw  string
}

// Empty returns a blank cell.
func Empty() Cell {
	return Cell{}
}

// Text returns a text cell. An empty string yields an empty cell.
func Text(s string) Cell {
	if s == "" {
		return Cell{}
	}
	return Cell{Kind: KindText, Raw: s}
}

// Number returns a numeric cell formatted without a trailing fraction for whole values.
func Number(f float64) Cell {
	return Cell{Kind: KindNumber, Raw: strconv.FormatFloat(f, 'f', -1, 64)}
}

// IsEmpty reports whether the cell holds no value.
func (c Cell) IsEmpty() bool {
	return c.Kind == KindEmpty
}

func (c Cell) String() string {
	return c.Raw
}

// Table is an ordered set of rows under a header. Rows may be ragged; missing
// trailing cells read as empty.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]Cell

	// CaseSensitiveHeaders turns off the case-insensitive fallback of Index.
	CaseSensitiveHeaders bool

	// BOM and CRLF describe the byte layout of a delimited source so the
	// writer can reproduce it.
	BOM  bool
	CRLF bool
}

// New creates an empty table with the given header.
func New(name string, columns []string) *Table {
	return &Table{
		Name:    name,
		Columns: append([]string(nil), columns...),
	}
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of the named column, or -1.
//
// Both the header and name are whitespace-trimmed. An exact match wins; otherwise
// the first case-insensitive match is used unless CaseSensitiveHeaders is set.
func (t *Table) Index(name string) int {
	want := strings.TrimSpace(name)

	fold := -1
	for i, col := range t.Columns {
		got := strings.TrimSpace(col)
		if got == want {
			return i
		}
		if fold < 0 && !t.CaseSensitiveHeaders && strings.EqualFold(got, want) {
			fold = i
		}
	}
	return fold
}

// Cell returns the cell at row, col. Out-of-range positions read as empty.
func (t *Table) Cell(row, col int) Cell {
	if row < 0 || row >= len(t.Rows) || col < 0 {
		return Cell{}
	}
	r := t.Rows[row]
	if col >= len(r) {
		return Cell{}
	}
	return r[col]
}

// Set writes c at row, col, growing a ragged row as needed.
func (t *Table) Set(row, col int, c Cell) {
	r := t.Rows[row]
	if col >= len(r) {
		grown := make([]Cell, col+1)
		copy(grown, r)
		r = grown
		t.Rows[row] = r
	}
	r[col] = c
}

// Column returns the raw text of every cell in column col.
func (t *Table) Column(col int) []string {
	out := make([]string, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Cell(i, col).Raw
	}
	return out
}

// EnsureColumn returns the index of the named column, appending it with every
// row set to fill when it does not exist. The second result reports creation.
func (t *Table) EnsureColumn(name string, fill Cell) (int, bool) {
	if idx := t.Index(name); idx >= 0 {
		return idx, false
	}

	t.Columns = append(t.Columns, name)
	idx := len(t.Columns) - 1
	for i := range t.Rows {
		t.Set(i, idx, fill)
	}
	return idx, true
}

// AppendRow adds a row of cells.
func (t *Table) AppendRow(cells ...Cell) {
	t.Rows = append(t.Rows, cells)
}
