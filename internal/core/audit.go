package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/esgmap/internal/reconcile"
	"github.com/google/uuid"
)

// ErrHistoryDisabled is returned by listers when no run history is kept.
var ErrHistoryDisabled = errors.New("run history disabled")

// DefaultHistoryLimit is used when a non-positive limit is requested.
const DefaultHistoryLimit = 50

// RunStatus is the outcome of a run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunRecord is the audit entry written once per run.
type RunRecord struct {
	ID          uuid.UUID           `json:"id"`
	Status      RunStatus           `json:"status"`
	StartedAt   time.Time           `json:"started_at"`
	Duration    time.Duration       `json:"duration_ns"`
	PrimaryFile string              `json:"primary_file"`
	SourceFiles map[string][]string `json:"source_files,omitempty"`
	TotalRows   int                 `json:"total_rows"`
	Counts      []reconcile.Count   `json:"counts,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
	Error       string              `json:"error,omitempty"`
	IPAddress   string              `json:"ip_address,omitempty"`
	UserAgent   string              `json:"user_agent,omitempty"`
}

// RunRecorder persists run records.
type RunRecorder interface {
	RecordRun(ctx context.Context, rec RunRecord) error
}

// RunLister returns the most recent runs, newest first.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// LogRecorder writes run records to a structured logger.
type LogRecorder struct {
	Logger *slog.Logger
}

// RecordRun implements RunRecorder.
func (r LogRecorder) RecordRun(ctx context.Context, rec RunRecord) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	level := slog.LevelInfo
	if rec.Status == RunFailed {
		level = slog.LevelWarn
	}

	attrs := []any{
		"run_id", rec.ID.String(),
		"status", rec.Status,
		"primary_file", rec.PrimaryFile,
		"total_rows", rec.TotalRows,
		"duration_ms", rec.Duration.Milliseconds(),
		"warnings", len(rec.Warnings),
	}
	for _, c := range rec.Counts {
		attrs = append(attrs, "updated_"+c.Field, c.Updated)
	}
	if rec.Error != "" {
		attrs = append(attrs, "error", rec.Error)
	}

	logger.Log(ctx, level, "run recorded", attrs...)
	return nil
}

// MemoryHistory keeps the most recent runs in memory. It serves GET /api/runs
// when no database is configured; history is lost on restart.
type MemoryHistory struct {
	mu      sync.Mutex
	records []RunRecord
	max     int
}

// NewMemoryHistory keeps at most max records.
func NewMemoryHistory(max int) *MemoryHistory {
	if max <= 0 {
		max = DefaultHistoryLimit
	}
	return &MemoryHistory{max: max}
}

// RecordRun implements RunRecorder.
func (h *MemoryHistory) RecordRun(_ context.Context, rec RunRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, rec)
	if over := len(h.records) - h.max; over > 0 {
		h.records = append(h.records[:0:0], h.records[over:]...)
	}
	return nil
}

// ListRuns implements RunLister.
func (h *MemoryHistory) ListRuns(_ context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	n := min(limit, len(h.records))
	out := make([]RunRecord, 0, n)
	for i := len(h.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.records[i])
	}
	return out, nil
}

// MultiRecorder fans a record out to every recorder, returning the first error.
type MultiRecorder []RunRecorder

// RecordRun implements RunRecorder.
func (m MultiRecorder) RecordRun(ctx context.Context, rec RunRecord) error {
	var first error
	for _, r := range m {
		if err := r.RecordRun(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}
