// Package reconcile fills status columns on a primary table with the row's identifier
// wherever that identifier appears in the target's reference files.
//
// For each [Target] the engine unions the identifier sets of its [Source] tables,
// then walks the primary table once. A row is updated when its identity is present,
// is a member of the union, and the target cell is still a placeholder. The written
// value is the row's original identity cell, so "12345" stays text and 12345 stays
// numeric. Populated cells are left alone unless the [PolicyOverwrite] policy is set.
//
// A source that failed to load or lacks its column contributes nothing and is
// reported as a [Warning]; the run carries on with the remaining sources and targets.
package reconcile

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/esgmap/internal/ident"
	"github.com/JonMunkholm/esgmap/internal/table"
)

var (
	// ErrMissingIdentityField is fatal: the primary table lacks its identity column.
	ErrMissingIdentityField = errors.New("identity field not found")

	// ErrReferenceColumnNotFound is non-fatal: a reference table lacks its source column.
	ErrReferenceColumnNotFound = errors.New("reference column not found")

	// ErrNoSources is non-fatal: a target was configured with no reference tables.
	ErrNoSources = errors.New("no reference tables supplied")
)

// Policy decides whether a matched row may replace an existing value.
type Policy string

const (
	// PolicyPreserve writes only into placeholder cells.
	PolicyPreserve Policy = "preserve"

	// PolicyOverwrite writes every matched row, replacing existing values.
	PolicyOverwrite Policy = "overwrite"
)

// ParsePolicy validates a policy name. The empty string selects PolicyPreserve.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyPreserve:
		return PolicyPreserve, nil
	case PolicyOverwrite:
		return PolicyOverwrite, nil
	default:
		return "", fmt.Errorf("unknown overwrite policy %q (want %q or %q)", s, PolicyPreserve, PolicyOverwrite)
	}
}

// Source is one reference table feeding a target.
type Source struct {
	Name   string       // File name, used in warnings
	Table  *table.Table // Nil when the file could not be loaded
	Column string       // Identifier column to read
	Err    error        // Load failure, if any
}

// Target binds a status column on the primary table to its reference tables.
type Target struct {
	Field   string
	Sources []Source
}

// Options configures an Engine.
type Options struct {
	// Normalizer classifies identity and target cells. Nil means ident.Default().
	Normalizer *ident.Normalizer

	// Fill is written into every cell of a target column the engine creates.
	// The zero value writes empty cells.
	Fill table.Cell

	// Policy selects the overwrite behaviour. Empty means PolicyPreserve.
	Policy Policy
}

// Count summarises one target after a run.
type Count struct {
	Field        string `json:"field"`
	Updated      int    `json:"updated"`       // Rows written this run
	Matched      int    `json:"matched"`       // Rows whose identity is in the reference set
	ReferenceIDs int    `json:"reference_ids"` // Size of the unioned reference set
	Created      bool   `json:"created"`       // Column did not exist before the run
}

// Warning records a non-fatal problem with one source.
type Warning struct {
	Field  string
	Source string
	Err    error
}

func (w Warning) Error() string {
	if w.Source == "" {
		return fmt.Sprintf("%s: %v", w.Field, w.Err)
	}
	return fmt.Sprintf("%s: skipping %s: %v", w.Field, w.Source, w.Err)
}

func (w Warning) Unwrap() error {
	return w.Err
}

// Result is the outcome of a successful run.
type Result struct {
	TotalRows int
	Counts    []Count
	Warnings  []Warning
}

// Count returns the summary for field, if present.
func (r Result) Count(field string) (Count, bool) {
	for _, c := range r.Counts {
		if c.Field == field {
			return c, true
		}
	}
	return Count{}, false
}

// Engine applies targets to a primary table.
type Engine struct {
	norm   *ident.Normalizer
	fill   table.Cell
	policy Policy
}

// New creates an Engine.
func New(opts Options) *Engine {
	norm := opts.Normalizer
	if norm == nil {
		norm = ident.Default()
	}
	policy := opts.Policy
	if policy == "" {
		policy = PolicyPreserve
	}
	return &Engine{norm: norm, fill: opts.Fill, policy: policy}
}

// Reconcile mutates primary in place. On error the table is untouched.
func (e *Engine) Reconcile(primary *table.Table, identityField string, targets []Target) (Result, error) {
	idCol := primary.Index(identityField)
	if idCol < 0 {
		return Result{}, fmt.Errorf("%w: %q", ErrMissingIdentityField, identityField)
	}

	ids := e.norm.NormalizeAll(primary.Column(idCol))
	result := Result{TotalRows: primary.Len()}

	for _, target := range targets {
		refs, warnings := e.ReferenceSet(target)
		result.Warnings = append(result.Warnings, warnings...)

		count := e.apply(primary, idCol, ids, target.Field, refs)
		result.Counts = append(result.Counts, count)
	}

	return result, nil
}

// ReferenceSet unions the identifiers of every usable source in target.
func (e *Engine) ReferenceSet(target Target) (ident.Set, []Warning) {
	refs := make(ident.Set)
	var warnings []Warning

	if len(target.Sources) == 0 {
		warnings = append(warnings, Warning{Field: target.Field, Err: ErrNoSources})
		return refs, warnings
	}

	for _, src := range target.Sources {
		set, err := e.Extract(src)
		if err != nil {
			warnings = append(warnings, Warning{Field: target.Field, Source: src.Name, Err: err})
			continue
		}
		refs.Merge(set)
	}
	return refs, warnings
}

// Extract normalizes the source column of a single reference table.
func (e *Engine) Extract(src Source) (ident.Set, error) {
	if src.Err != nil {
		return nil, src.Err
	}
	if src.Table == nil {
		return nil, errors.New("reference table not loaded")
	}

	col := src.Table.Index(src.Column)
	if col < 0 {
		return nil, fmt.Errorf("%w: %q", ErrReferenceColumnNotFound, src.Column)
	}
	return ident.NewSet(e.norm.NormalizeAll(src.Table.Column(col))...), nil
}

func (e *Engine) apply(primary *table.Table, idCol int, ids []ident.ID, field string, refs ident.Set) Count {
	col, created := primary.EnsureColumn(field, e.fill)
	count := Count{Field: field, ReferenceIDs: refs.Len(), Created: created}

	for row, id := range ids {
		if !refs.Contains(id) {
			continue
		}
		count.Matched++

		if e.policy == PolicyPreserve && !e.isPlaceholder(primary.Cell(row, col)) {
			continue
		}

		primary.Set(row, col, primary.Cell(row, idCol))
		count.Updated++
	}
	return count
}

// isPlaceholder treats the configured fill value as a placeholder even when it is
// not among the normalizer's tokens, so created columns are always eligible.
func (e *Engine) isPlaceholder(c table.Cell) bool {
	return e.norm.IsPlaceholder(c.Raw) || (!e.fill.IsEmpty() && c.Raw == e.fill.Raw)
}
