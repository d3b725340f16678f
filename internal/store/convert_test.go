package store

import (
	"testing"

	"github.com/JonMunkholm/esgmap/internal/core"
	"github.com/JonMunkholm/esgmap/internal/reconcile"
	"github.com/google/go-cmp/cmp"
)

var (
	_ core.RunRecorder = (*Store)(nil)
	_ core.RunLister   = (*Store)(nil)
)

// ----------------------------------------------------------------------------
// toPgText Tests
// ----------------------------------------------------------------------------

func TestToPgText(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		wantValue string
	}{
		{name: "simple", input: "book.xlsx", wantValid: true, wantValue: "book.xlsx"},
		{name: "trims whitespace", input: "  curl/8 ", wantValid: true, wantValue: "curl/8"},
		{name: "empty", input: "", wantValid: false},
		{name: "whitespace only", input: " \t ", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toPgText(tt.input)
			if got.Valid != tt.wantValid {
				t.Errorf("toPgText(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
			if got.Valid && got.String != tt.wantValue {
				t.Errorf("toPgText(%q).String = %q, want %q", tt.input, got.String, tt.wantValue)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// toPgInt4 Tests
// ----------------------------------------------------------------------------

func TestToPgInt4(t *testing.T) {
	tests := []struct {
		input     int
		wantValid bool
	}{
		{input: 0, wantValid: true},
		{input: 42, wantValid: true},
		{input: -1, wantValid: false},
	}

	for _, tt := range tests {
		got := toPgInt4(tt.input)
		if got.Valid != tt.wantValid {
			t.Errorf("toPgInt4(%d).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
		}
		if got.Valid && int(got.Int32) != tt.input {
			t.Errorf("toPgInt4(%d).Int32 = %d", tt.input, got.Int32)
		}
	}
}

// ----------------------------------------------------------------------------
// parseIPAddress Tests
// ----------------------------------------------------------------------------

func TestParseIPAddress(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string // "" means nil
	}{
		{name: "ipv4", input: "10.0.0.1", want: "10.0.0.1"},
		{name: "ipv4 with port", input: "10.0.0.1:5555", want: "10.0.0.1"},
		{name: "ipv6 with port", input: "[::1]:8080", want: "::1"},
		{name: "empty", input: "", want: ""},
		{name: "garbage", input: "not-an-ip", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseIPAddress(tt.input)
			if tt.want == "" {
				if got != nil {
					t.Errorf("parseIPAddress(%q) = %v, want nil", tt.input, got)
				}
				return
			}
			if got == nil || got.String() != tt.want {
				t.Errorf("parseIPAddress(%q) = %v, want %s", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// JSON column Tests
// ----------------------------------------------------------------------------

func TestMarshalJSON_EmptyIsNull(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{name: "nil", input: nil},
		{name: "nil slice", input: []string(nil)},
		{name: "empty slice", input: []string{}},
		{name: "empty map", input: map[string][]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := marshalJSON(tt.input)
			if err != nil {
				t.Fatalf("marshalJSON() error = %v", err)
			}
			if got != nil {
				t.Errorf("marshalJSON() = %s, want nil", got)
			}
		})
	}
}

func TestJSONColumns_RoundTrip(t *testing.T) {
	counts := []reconcile.Count{
		{Field: "Taxonomy", Updated: 3, Matched: 4, ReferenceIDs: 10},
		{Field: "ESG", Updated: 1, Matched: 1, ReferenceIDs: 2, Created: true},
	}

	data, err := marshalJSON(counts)
	if err != nil {
		t.Fatalf("marshalJSON() error = %v", err)
	}

	var got []reconcile.Count
	if err := unmarshalJSON(data, &got); err != nil {
		t.Fatalf("unmarshalJSON() error = %v", err)
	}
	if diff := cmp.Diff(counts, got); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalJSON_NullLeavesDestination(t *testing.T) {
	got := []string{"keep"}
	if err := unmarshalJSON(nil, &got); err != nil {
		t.Fatalf("unmarshalJSON() error = %v", err)
	}
	if len(got) != 1 || got[0] != "keep" {
		t.Errorf("destination changed: %v", got)
	}
}
