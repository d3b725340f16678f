package core

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/esgmap/internal/config"
	"github.com/JonMunkholm/esgmap/internal/ident"
	"github.com/JonMunkholm/esgmap/internal/logging"
	"github.com/JonMunkholm/esgmap/internal/reconcile"
	"github.com/JonMunkholm/esgmap/internal/table"
	"github.com/JonMunkholm/esgmap/internal/workbook"
	"github.com/google/uuid"
)

// Service runs reconciliations against a fixed mapping.
type Service struct {
	mapping  config.MappingConfig
	targets  []config.TargetConfig
	engine   *reconcile.Engine
	limiter  *RunLimiter
	recorder RunRecorder
	timeout  time.Duration
	now      func() time.Time
}

// NewService builds a service from validated configuration. A nil recorder logs
// run records instead of persisting them.
func NewService(cfg *config.Config, recorder RunRecorder) (*Service, error) {
	policy, err := reconcile.ParsePolicy(cfg.Mapping.OverwritePolicy)
	if err != nil {
		return nil, err
	}

	norm := ident.New(ident.Options{
		Placeholders:  cfg.Mapping.Placeholders,
		CaseSensitive: cfg.Mapping.PlaceholderCaseSensitive,
	})

	if recorder == nil {
		recorder = LogRecorder{}
	}

	return &Service{
		mapping: cfg.Mapping,
		targets: cfg.Mapping.Targets(),
		engine: reconcile.New(reconcile.Options{
			Normalizer: norm,
			Fill:       table.Text(cfg.Mapping.FillValue),
			Policy:     policy,
		}),
		limiter:  NewRunLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		recorder: recorder,
		timeout:  cfg.Upload.Timeout,
		now:      time.Now,
	}, nil
}

// Targets returns the effective target list.
func (s *Service) Targets() []config.TargetConfig {
	return append([]config.TargetConfig(nil), s.targets...)
}

// Mapping returns the mapping the service was built with.
func (s *Service) Mapping() config.MappingConfig {
	m := s.mapping
	m.TargetList = s.Targets()
	return m
}

// Sources returns the upload keys the service accepts, in target order.
func (s *Service) Sources() []string {
	keys := make([]string, len(s.targets))
	for i, t := range s.targets {
		keys[i] = t.Source
	}
	return keys
}

// LimiterStatus reports run slot usage.
func (s *Service) LimiterStatus() RunLimiterStatus {
	return s.limiter.Status()
}

// WaitForRuns blocks until in-flight runs finish or ctx ends.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// CheckInputs reports every missing input at once, before any file is read.
func (s *Service) CheckInputs(in RunInput) error {
	var missing []string
	if in.Primary == nil {
		missing = append(missing, "primary table")
	}
	for _, t := range s.targets {
		if got := len(in.Sources[t.Source]); got < t.MinFiles {
			missing = append(missing, fmt.Sprintf("%s reference files (%q): need at least %d, got %d",
				t.Field, t.Source, t.MinFiles, got))
		}
	}
	if len(missing) > 0 {
		return &MissingInputError{Inputs: missing}
	}
	return nil
}

// Run reconciles one primary table against its reference files.
//
// The context is honoured while waiting for a run slot; once the run starts it
// completes. Fatal errors return no result; warnings ride along in RunResult.
func (s *Service) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.CheckInputs(in); err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	started := s.now()
	runID := uuid.New()
	logger := logging.WithFields(ctx, "run_id", runID.String())

	rec := RunRecord{
		ID:          runID,
		StartedAt:   started,
		PrimaryFile: in.Primary.Name,
		SourceFiles: sourceNames(in.Sources),
		IPAddress:   IPAddressFromContext(ctx),
		UserAgent:   UserAgentFromContext(ctx),
	}

	logger.Info("run started", "primary_file", in.Primary.Name, "sources", len(rec.SourceFiles))
	s.warnUnknownSources(logger, in.Sources)

	result, err := s.execute(in, logger)
	rec.Duration = s.now().Sub(started)

	if err != nil {
		rec.Status = RunFailed
		rec.Error = err.Error()
		logger.Warn("run failed", "error", err)
		s.record(ctx, logger, rec)
		return nil, err
	}

	result.RunID = runID
	result.Duration = rec.Duration

	rec.Status = RunSucceeded
	rec.TotalRows = result.TotalRows
	rec.Counts = result.Counts
	rec.Warnings = warningStrings(result.Warnings)
	s.record(ctx, logger, rec)

	for _, w := range result.Warnings {
		logger.Warn("reference skipped", "field", w.Field, "source", w.Source, "error", w.Err)
	}
	for _, c := range result.Counts {
		logger.Info("target filled",
			"field", c.Field,
			"updated", c.Updated,
			"matched", c.Matched,
			"reference_ids", c.ReferenceIDs,
			"created", c.Created,
		)
	}
	logger.Info("run complete", "total_rows", result.TotalRows, "duration_ms", rec.Duration.Milliseconds())

	return result, nil
}

func (s *Service) execute(in RunInput, logger *slog.Logger) (*RunResult, error) {
	format, err := workbook.DetectFormat(in.Primary.Name)
	if err != nil {
		return nil, fmt.Errorf("primary table %s: %w", in.Primary.Name, err)
	}

	primary, err := workbook.Read(in.Primary.Reader, in.Primary.Name, workbook.ReadOptions{
		HeaderRow:            s.mapping.PrimaryHeaderRow,
		DetectKinds:          true,
		CaseSensitiveHeaders: s.mapping.HeaderCaseSensitive,
	})
	if err != nil {
		return nil, fmt.Errorf("primary table: %w", err)
	}
	if primary.Index(s.mapping.IdentityField) < 0 {
		return nil, fmt.Errorf("primary table %s: %w: %q", in.Primary.Name, reconcile.ErrMissingIdentityField, s.mapping.IdentityField)
	}
	logger.Debug("primary table loaded", "rows", primary.Len(), "columns", len(primary.Columns))

	targets := make([]reconcile.Target, len(s.targets))
	for i, tc := range s.targets {
		targets[i] = reconcile.Target{Field: tc.Field, Sources: s.loadSources(tc, in.Sources[tc.Source], logger)}
	}

	res, err := s.engine.Reconcile(primary, s.mapping.IdentityField, targets)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := workbook.Write(&buf, primary, format); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}

	return &RunResult{
		TotalRows:   res.TotalRows,
		Counts:      res.Counts,
		Warnings:    res.Warnings,
		Output:      buf.Bytes(),
		OutputName:  workbook.OutputName(in.Primary.Name, s.mapping.OutputSuffix, format),
		Format:      format,
		ContentType: format.ContentType(),
	}, nil
}

// loadSources reads each reference upload. Read failures become source errors so
// the engine reports them as warnings and carries on.
func (s *Service) loadSources(tc config.TargetConfig, uploads []Upload, logger *slog.Logger) []reconcile.Source {
	sources := make([]reconcile.Source, 0, len(uploads))
	for _, u := range uploads {
		src := reconcile.Source{Name: u.Name, Column: tc.Column}
		tbl, err := workbook.Read(u.Reader, u.Name, workbook.ReadOptions{
			HeaderRow:            tc.HeaderRow,
			Sheet:                tc.Sheet,
			CaseSensitiveHeaders: s.mapping.HeaderCaseSensitive,
		})
		if err != nil {
			src.Err = err
		} else {
			src.Table = tbl
			logger.Debug("reference table loaded", "field", tc.Field, "file", u.Name, "rows", tbl.Len())
		}
		sources = append(sources, src)
	}
	return sources
}

func (s *Service) record(ctx context.Context, logger *slog.Logger, rec RunRecord) {
	// The run's own deadline may have passed; the audit write gets a fresh one.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.recorder.RecordRun(recCtx, rec); err != nil {
		logger.Error("failed to record run", "error", err)
	}
}

func (s *Service) warnUnknownSources(logger *slog.Logger, sources map[string][]Upload) {
	known := make(map[string]bool, len(s.targets))
	for _, t := range s.targets {
		known[t.Source] = true
	}
	for key, files := range sources {
		if !known[key] {
			logger.Warn("ignoring uploads for unknown source", "source", key, "files", len(files))
		}
	}
}

func sourceNames(sources map[string][]Upload) map[string][]string {
	if len(sources) == 0 {
		return nil
	}
	out := make(map[string][]string, len(sources))
	for key, files := range sources {
		names := make([]string, len(files))
		for i, f := range files {
			names[i] = f.Name
		}
		out[key] = names
	}
	return out
}
