package ident

import (
	"math"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// ============================================================================
// Normalize Tests
// ============================================================================

func TestNormalize(t *testing.T) {
	n := Default()

	tests := []struct {
		name string
		raw  string
		want ID
	}{
		{"plain integer", "12345", Present(12345)},
		{"decimal zero fraction", "12345.0", Present(12345)},
		{"surrounding whitespace", " 12345 ", Present(12345)},
		{"tab and newline", "\t12345\n", Present(12345)},
		{"explicit plus sign", "+42", Present(42)},
		{"negative", "-7", Present(-7)},
		{"fraction truncated", "12345.9", Present(12345)},
		{"scientific notation", "1.2345E4", Present(12345)},
		{"leading dot", ".5", Present(0)},
		{"max int64", "9223372036854775807", Present(math.MaxInt64)},
		{"NA placeholder", "NA", Absent()},
		{"N/A placeholder", "N/A", Absent()},
		{"lowercase placeholder", "n/a", Absent()},
		{"padded placeholder", "  NA ", Absent()},
		{"empty", "", Absent()},
		{"only whitespace", "   ", Absent()},
		{"text", "EXISTING", Absent()},
		{"mixed text and digits", "123abc", Absent()},
		{"thousands separator", "12,345", Absent()},
		{"NaN", "NaN", Absent()},
		{"infinity", "Inf", Absent()},
		{"hex", "0x1F", Absent()},
		{"overflow integer", "9223372036854775808", Absent()},
		{"overflow float", "1e30", Absent()},
		{"huge exponent", "1e400", Absent()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(tt.raw)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalize_EquivalentRepresentations(t *testing.T) {
	n := Default()
	numeric := strconv.FormatFloat(12345, 'f', -1, 64)

	for _, raw := range []string{"12345", numeric, "12345.0", " 12345 "} {
		v, ok := n.Normalize(raw).Value()
		if !ok || v != 12345 {
			t.Errorf("Normalize(%q) = (%d, %v), want (12345, true)", raw, v, ok)
		}
	}
}

func TestNormalizeAll_PreservesLength(t *testing.T) {
	n := Default()
	raw := []string{"1", "", "NA", "x", "2.0"}

	got := n.NormalizeAll(raw)
	want := []ID{Present(1), Absent(), Absent(), Absent(), Present(2)}

	if diff := cmp.Diff(want, got, cmp.AllowUnexported(ID{})); diff != "" {
		t.Errorf("NormalizeAll mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeAll_Empty(t *testing.T) {
	got := Default().NormalizeAll(nil)
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d entries", len(got))
	}
}

// ============================================================================
// Placeholder Tests
// ============================================================================

func TestIsPlaceholder_CaseSensitive(t *testing.T) {
	n := New(Options{Placeholders: []string{"NA", "N/A"}, CaseSensitive: true})

	if !n.IsPlaceholder("NA") {
		t.Error("expected NA to be a placeholder")
	}
	if n.IsPlaceholder("na") {
		t.Error("expected na not to be a placeholder when case sensitive")
	}
	if !n.IsPlaceholder("") {
		t.Error("empty string must always be a placeholder")
	}
}

func TestIsPlaceholder_CustomTokens(t *testing.T) {
	n := New(Options{Placeholders: []string{"n.a.", "-", " missing "}})

	for _, raw := range []string{"N.A.", "-", "MISSING", ""} {
		if !n.IsPlaceholder(raw) {
			t.Errorf("IsPlaceholder(%q) = false, want true", raw)
		}
	}
	// Default tokens are replaced, not extended.
	if n.IsPlaceholder("NA") {
		t.Error("IsPlaceholder(NA) = true, want false with custom tokens")
	}
}

func TestIsPlaceholder_EmptyTokenList(t *testing.T) {
	n := New(Options{Placeholders: []string{}})

	if n.IsPlaceholder("NA") {
		t.Error("expected no tokens besides the empty string")
	}
	if got := n.Normalize("NA"); got.IsPresent() {
		t.Errorf("Normalize(NA) = %v, want absent (non-numeric)", got)
	}
}

func TestPlaceholders_Sorted(t *testing.T) {
	n := New(Options{Placeholders: []string{"N/A", " NA", ""}})

	want := []string{"N/A", "NA"}
	if diff := cmp.Diff(want, n.Placeholders()); diff != "" {
		t.Errorf("Placeholders mismatch (-want +got):\n%s", diff)
	}
}

// ============================================================================
// Set Tests
// ============================================================================

func TestSet(t *testing.T) {
	s := NewSet(Present(100), Absent(), Present(300), Present(100))

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if !s.Contains(Present(100)) {
		t.Error("expected 100 in set")
	}
	if s.Contains(Present(200)) {
		t.Error("did not expect 200 in set")
	}
	if s.Contains(Absent()) {
		t.Error("absent must never be a member")
	}
}

func TestSet_Merge(t *testing.T) {
	a := NewSet(Present(1), Present(2))
	b := NewSet(Present(2), Present(3))

	a.Merge(b)

	for _, v := range []int64{1, 2, 3} {
		if !a.Contains(Present(v)) {
			t.Errorf("expected %d after merge", v)
		}
	}
	if b.Len() != 2 {
		t.Errorf("merge must not modify its argument, Len() = %d", b.Len())
	}
}

func TestID_String(t *testing.T) {
	if got := Present(42).String(); got != "42" {
		t.Errorf("Present(42).String() = %q", got)
	}
	if got := Absent().String(); got != "<absent>" {
		t.Errorf("Absent().String() = %q", got)
	}
}
