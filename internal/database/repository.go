// Package database records job history in Postgres.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/personaforge/studiopod/internal/config"
	"github.com/personaforge/studiopod/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS job_results (
	job_id      TEXT PRIMARY KEY,
	job_type    TEXT NOT NULL,
	quality     TEXT NOT NULL,
	success     BOOLEAN NOT NULL,
	output      JSONB,
	metadata    JSONB,
	error       TEXT,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Repository stores finished job results.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository connects to the history database and ensures the schema.
// Returns nil without error when no DSN is configured; callers then skip
// history recording.
func NewRepository(ctx context.Context, cfg config.DatabaseConfig) (*Repository, error) {
	if cfg.DSN == "" {
		return nil, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// RecordResult upserts one finished job. Redelivered jobs overwrite their
// previous row rather than duplicating it.
func (r *Repository) RecordResult(ctx context.Context, req *models.JobRequest, result *models.JobResult) error {
	output, err := json.Marshal(result.Output)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	metadata, err := json.Marshal(result.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO job_results (job_id, job_type, quality, success, output, metadata, error, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (job_id) DO UPDATE SET
			success = EXCLUDED.success,
			output = EXCLUDED.output,
			metadata = EXCLUDED.metadata,
			error = EXCLUDED.error,
			duration_ms = EXCLUDED.duration_ms`,
		req.JobID, string(req.Type), models.ResolveProfile(req.Quality).Name,
		result.Success, output, metadata, result.Error, result.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to record job %s: %w", req.JobID, err)
	}
	return nil
}

// GetResult loads a recorded result by job ID, or nil when unknown.
func (r *Repository) GetResult(ctx context.Context, jobID string) (*models.JobResult, error) {
	var (
		result   models.JobResult
		output   []byte
		metadata []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT success, output, metadata, error, duration_ms
		FROM job_results WHERE job_id = $1`, jobID,
	).Scan(&result.Success, &output, &metadata, &result.Error, &result.DurationMs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	if len(output) > 0 {
		if err := json.Unmarshal(output, &result.Output); err != nil {
			return nil, fmt.Errorf("failed to decode output for job %s: %w", jobID, err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &result.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for job %s: %w", jobID, err)
		}
	}
	return &result, nil
}

// Close shuts the pool down.
func (r *Repository) Close() {
	r.pool.Close()
}
