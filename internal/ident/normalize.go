package ident

// normalize.go turns raw cell text into IDs.
//
// Rules, applied in order:
//  1. Trimmed text equal to a placeholder token ("", "NA", "N/A" by default) is absent.
//  2. Integer text parses exactly into an int64.
//  3. Decimal or scientific text ("12345.0", "1.2345E4") is truncated to its integer part.
//  4. Anything else (non-numeric text, NaN, values outside int64) is absent.

import (
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// DefaultPlaceholders are the "not available" markers used when none are configured.
// The empty string is always a placeholder and need not be listed.
var DefaultPlaceholders = []string{"NA", "N/A"}

var (
	integerRegex = regexp.MustCompile(`^[+-]?\d+$`)
	numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)
)

// Options configures a Normalizer.
type Options struct {
	// Placeholders lists the tokens treated as "not available". Nil means DefaultPlaceholders.
	Placeholders []string

	// CaseSensitive disables case folding when matching placeholders.
	CaseSensitive bool
}

// Normalizer classifies cell text as placeholder or identifier. It holds no
// per-run state and may be shared.
type Normalizer struct {
	placeholders  []string
	tokens        map[string]struct{}
	caseSensitive bool
}

// New builds a Normalizer from opts.
func New(opts Options) *Normalizer {
	placeholders := opts.Placeholders
	if placeholders == nil {
		placeholders = DefaultPlaceholders
	}

	n := &Normalizer{
		tokens:        make(map[string]struct{}, len(placeholders)),
		caseSensitive: opts.CaseSensitive,
	}
	for _, p := range placeholders {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n.placeholders = append(n.placeholders, p)
		n.tokens[n.key(p)] = struct{}{}
	}
	slices.Sort(n.placeholders)
	return n
}

// Default returns a case-insensitive Normalizer using DefaultPlaceholders.
func Default() *Normalizer {
	return New(Options{})
}

// Placeholders returns the configured tokens in sorted order.
func (n *Normalizer) Placeholders() []string {
	return slices.Clone(n.placeholders)
}

// IsPlaceholder reports whether raw is empty or matches a placeholder token
// after trimming surrounding whitespace.
func (n *Normalizer) IsPlaceholder(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" {
		return true
	}
	_, ok := n.tokens[n.key(s)]
	return ok
}

// Normalize converts a single raw cell into an ID.
func (n *Normalizer) Normalize(raw string) ID {
	if n.IsPlaceholder(raw) {
		return Absent()
	}
	v, ok := parseInteger(strings.TrimSpace(raw))
	if !ok {
		return Absent()
	}
	return Present(v)
}

// NormalizeAll converts a column of raw cells. The result has the same length as raw.
func (n *Normalizer) NormalizeAll(raw []string) []ID {
	out := make([]ID, len(raw))
	for i, s := range raw {
		out[i] = n.Normalize(s)
	}
	return out
}

func (n *Normalizer) key(s string) string {
	if n.caseSensitive {
		return s
	}
	// Casers carry state, so a fresh one per call.
	return cases.Fold().String(s)
}

// parseInteger parses s as a whole number, truncating any fractional part.
func parseInteger(s string) (int64, bool) {
	if integerRegex.MatchString(s) {
		v, err := strconv.ParseInt(s, 10, 64)
		return v, err == nil
	}

	if !numericRegex.MatchString(s) {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}

	t := math.Trunc(f)
	if t < math.MinInt64 || t >= math.MaxInt64 {
		return 0, false
	}
	return int64(t), true
}
