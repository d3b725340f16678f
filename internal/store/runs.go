package store

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/JonMunkholm/esgmap/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// RecordRun implements core.RunRecorder.
func (s *Store) RecordRun(ctx context.Context, rec core.RunRecord) error {
	args, err := runArgs(rec)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO reconcile_runs (
			id, status, started_at, duration_ms, primary_file, source_files,
			total_rows, counts, warnings, error, ip_address, user_agent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.ID, err)
	}
	return nil
}

// runArgs returns the insert values for rec in reconcile_runs column order,
// the same order scanRun reads them back in.
func runArgs(rec core.RunRecord) ([]any, error) {
	sources, err := marshalJSON(rec.SourceFiles)
	if err != nil {
		return nil, fmt.Errorf("encode source files: %w", err)
	}
	counts, err := marshalJSON(rec.Counts)
	if err != nil {
		return nil, fmt.Errorf("encode counts: %w", err)
	}
	warnings, err := marshalJSON(rec.Warnings)
	if err != nil {
		return nil, fmt.Errorf("encode warnings: %w", err)
	}

	return []any{
		pgtype.UUID{Bytes: rec.ID, Valid: true},
		string(rec.Status),
		pgtype.Timestamptz{Time: rec.StartedAt, Valid: true},
		rec.Duration.Milliseconds(),
		toPgText(rec.PrimaryFile),
		sources,
		toPgInt4(rec.TotalRows),
		counts,
		warnings,
		toPgText(rec.Error),
		parseIPAddress(rec.IPAddress),
		toPgText(rec.UserAgent),
	}, nil
}

// ListRuns implements core.RunLister. A non-positive limit uses the configured
// history limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]core.RunRecord, error) {
	if limit <= 0 {
		limit = s.historyLimit
	}
	if limit <= 0 {
		limit = core.DefaultHistoryLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, status, started_at, duration_ms, primary_file, source_files,
			total_rows, counts, warnings, error, ip_address, user_agent
		FROM reconcile_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, scanRun)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// scanRun scans one row of reconcile_runs.
func scanRun(row pgx.CollectableRow) (core.RunRecord, error) {
	var (
		id          pgtype.UUID
		status      string
		startedAt   pgtype.Timestamptz
		durationMS  int64
		primaryFile pgtype.Text
		sources     []byte
		totalRows   pgtype.Int4
		counts      []byte
		warnings    []byte
		errText     pgtype.Text
		ipAddress   *netip.Addr
		userAgent   pgtype.Text
	)

	err := row.Scan(
		&id, &status, &startedAt, &durationMS, &primaryFile, &sources,
		&totalRows, &counts, &warnings, &errText, &ipAddress, &userAgent,
	)
	if err != nil {
		return core.RunRecord{}, err
	}

	rec := core.RunRecord{
		Status:      core.RunStatus(status),
		StartedAt:   startedAt.Time,
		Duration:    time.Duration(durationMS) * time.Millisecond,
		PrimaryFile: primaryFile.String,
		Error:       errText.String,
		UserAgent:   userAgent.String,
	}
	if id.Valid {
		rec.ID = id.Bytes
	}
	if totalRows.Valid {
		rec.TotalRows = int(totalRows.Int32)
	}
	if ipAddress != nil {
		rec.IPAddress = ipAddress.String()
	}
	if err := unmarshalJSON(sources, &rec.SourceFiles); err != nil {
		return core.RunRecord{}, fmt.Errorf("decode source files: %w", err)
	}
	if err := unmarshalJSON(counts, &rec.Counts); err != nil {
		return core.RunRecord{}, fmt.Errorf("decode counts: %w", err)
	}
	if err := unmarshalJSON(warnings, &rec.Warnings); err != nil {
		return core.RunRecord{}, fmt.Errorf("decode warnings: %w", err)
	}

	return rec, nil
}
