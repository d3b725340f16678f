package table

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIndex_TrimsHeaders(t *testing.T) {
	tbl := New("ref.xlsx", []string{"Name", " MI Key  ", "Other"})

	if got := tbl.Index("MI Key"); got != 1 {
		t.Errorf("Index(MI Key) = %d, want 1", got)
	}
	if got := tbl.Index(" MI Key "); got != 1 {
		t.Errorf("Index with padded name = %d, want 1", got)
	}
	if got := tbl.Index("Missing"); got != -1 {
		t.Errorf("Index(Missing) = %d, want -1", got)
	}
}

func TestIndex_PrefersExactMatch(t *testing.T) {
	tbl := New("", []string{"IDS", "Ids"})

	if got := tbl.Index("Ids"); got != 1 {
		t.Errorf("Index(Ids) = %d, want exact match at 1", got)
	}
	if got := tbl.Index("ids"); got != 0 {
		t.Errorf("Index(ids) = %d, want first case-insensitive match at 0", got)
	}
}

func TestIndex_CaseSensitiveHeaders(t *testing.T) {
	tbl := New("", []string{" ids ", "MI Key"})
	tbl.CaseSensitiveHeaders = true

	if got := tbl.Index("Ids"); got != -1 {
		t.Errorf("Index(Ids) = %d, want -1 without case folding", got)
	}
	if got := tbl.Index("ids"); got != 0 {
		t.Errorf("Index(ids) = %d, want trimmed exact match at 0", got)
	}
	if _, created := tbl.EnsureColumn("mi key", Text("NA")); !created {
		t.Error("EnsureColumn should add a column that differs only in case")
	}
}

func TestCell_Ragged(t *testing.T) {
	tbl := New("", []string{"A", "B", "C"})
	tbl.AppendRow(Text("x"))

	if got := tbl.Cell(0, 2); !got.IsEmpty() {
		t.Errorf("Cell(0,2) = %+v, want empty", got)
	}
	if got := tbl.Cell(5, 0); !got.IsEmpty() {
		t.Errorf("Cell(5,0) = %+v, want empty", got)
	}

	tbl.Set(0, 2, Text("z"))
	if got := tbl.Cell(0, 2).Raw; got != "z" {
		t.Errorf("after Set, Cell(0,2) = %q, want z", got)
	}
	if got := tbl.Cell(0, 0).Raw; got != "x" {
		t.Errorf("Set must keep existing cells, Cell(0,0) = %q", got)
	}
}

func TestEnsureColumn(t *testing.T) {
	tbl := New("", []string{"Ids", "Taxonomy"})
	tbl.AppendRow(Text("1"), Text("keep"))
	tbl.AppendRow(Text("2"))

	idx, created := tbl.EnsureColumn(" Taxonomy ", Text("NA"))
	if created || idx != 1 {
		t.Errorf("EnsureColumn(existing) = (%d, %v), want (1, false)", idx, created)
	}

	idx, created = tbl.EnsureColumn("PAI", Text("NA"))
	if !created || idx != 2 {
		t.Fatalf("EnsureColumn(PAI) = (%d, %v), want (2, true)", idx, created)
	}
	for i := range tbl.Rows {
		if got := tbl.Cell(i, idx).Raw; got != "NA" {
			t.Errorf("row %d PAI = %q, want NA", i, got)
		}
	}
	if got := tbl.Cell(0, 1).Raw; got != "keep" {
		t.Errorf("existing data changed: %q", got)
	}
}

func TestColumn(t *testing.T) {
	tbl := New("", []string{"Ids"})
	tbl.AppendRow(Text("100"))
	tbl.AppendRow(Number(200))
	tbl.AppendRow()

	want := []string{"100", "200", ""}
	if diff := cmp.Diff(want, tbl.Column(0)); diff != "" {
		t.Errorf("Column mismatch (-want +got):\n%s", diff)
	}
}

func TestCellConstructors(t *testing.T) {
	tests := []struct {
		name string
		cell Cell
		kind Kind
		raw  string
	}{
		{"text", Text("abc"), KindText, "abc"},
		{"empty text", Text(""), KindEmpty, ""},
		{"whole number", Number(12345), KindNumber, "12345"},
		{"fraction", Number(1.5), KindNumber, "1.5"},
		{"empty", Empty(), KindEmpty, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cell.Kind != tt.kind || tt.cell.Raw != tt.raw {
				t.Errorf("got (%v, %q), want (%v, %q)", tt.cell.Kind, tt.cell.Raw, tt.kind, tt.raw)
			}
		})
	}
}
