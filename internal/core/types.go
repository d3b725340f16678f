package core

import (
	"io"
	"time"

	"github.com/JonMunkholm/esgmap/internal/reconcile"
	"github.com/JonMunkholm/esgmap/internal/workbook"
	"github.com/google/uuid"
)

// Upload is one file handed to a run.
type Upload struct {
	Name   string
	Reader io.Reader
}

// RunInput carries the primary table and the reference uploads, keyed by the
// target's source key ("taxonomy", "pai", "esg" by default).
type RunInput struct {
	Primary *Upload
	Sources map[string][]Upload
}

// RunResult is a successful run: the filled file and its diagnostics.
type RunResult struct {
	RunID       uuid.UUID
	TotalRows   int
	Counts      []reconcile.Count
	Warnings    []reconcile.Warning
	Output      []byte
	OutputName  string
	Format      workbook.Format
	ContentType string
	Duration    time.Duration
}

// Summary is the transport-neutral diagnostics view of a run.
type Summary struct {
	RunID      string            `json:"run_id"`
	TotalRows  int               `json:"total_rows"`
	Counts     []reconcile.Count `json:"counts"`
	Warnings   []WarningView     `json:"warnings"`
	OutputName string            `json:"output_name"`
	DurationMS int64             `json:"duration_ms"`
}

// WarningView is a warning with its user-facing message.
type WarningView struct {
	Field   string `json:"field"`
	Source  string `json:"source,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Summary builds the diagnostics view.
func (r *RunResult) Summary() Summary {
	s := Summary{
		RunID:      r.RunID.String(),
		TotalRows:  r.TotalRows,
		Counts:     r.Counts,
		Warnings:   make([]WarningView, 0, len(r.Warnings)),
		OutputName: r.OutputName,
		DurationMS: r.Duration.Milliseconds(),
	}
	if s.Counts == nil {
		s.Counts = []reconcile.Count{}
	}
	for _, w := range r.Warnings {
		s.Warnings = append(s.Warnings, WarningView{
			Field:   w.Field,
			Source:  w.Source,
			Message: w.Error(),
			Code:    MapError(w).Code,
		})
	}
	return s
}

// warningStrings flattens warnings for the audit record.
func warningStrings(ws []reconcile.Warning) []string {
	if len(ws) == 0 {
		return nil
	}
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Error()
	}
	return out
}
