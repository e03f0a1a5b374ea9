package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/labetl/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type runLogRepository struct {
	pool *pgxpool.Pool
}

// NewRunLogRepository wires a repository backed by pgxpool.
func NewRunLogRepository(pool *pgxpool.Pool) RunLogRepository {
	return &runLogRepository{pool: pool}
}

// Ensure creates the run log table if it does not exist. Called once at
// startup; the sandbox schema is shared with the feature table.
func Ensure(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE SCHEMA IF NOT EXISTS sandbox`,
		`CREATE TABLE IF NOT EXISTS sandbox.etl_runs (
			id UUID PRIMARY KEY,
			status TEXT NOT NULL,
			message TEXT NOT NULL,
			row_count INTEGER NOT NULL,
			duration_ms BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, statement := range statements {
		if _, err := pool.Exec(ctx, statement); err != nil {
			return fmt.Errorf("failed to ensure run log table: %w", err)
		}
	}
	return nil
}

func (r *runLogRepository) Record(ctx context.Context, entry domain.RunLogEntry) error {
	if r.pool == nil {
		return fmt.Errorf("run log repository not initialized")
	}

	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO sandbox.etl_runs (id, status, message, row_count, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID,
		string(entry.Status),
		entry.Message,
		entry.RowCount,
		entry.DurationMS,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record etl run: %w", err)
	}

	return nil
}

func (r *runLogRepository) List(ctx context.Context, limit int) ([]domain.RunLogEntry, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("run log repository not initialized")
	}

	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, status, message, row_count, duration_ms, created_at
		 FROM sandbox.etl_runs
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list etl runs: %w", err)
	}
	defer rows.Close()

	entries := []domain.RunLogEntry{}
	for rows.Next() {
		var (
			entry     domain.RunLogEntry
			status    string
			createdAt pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&entry.ID,
			&status,
			&entry.Message,
			&entry.RowCount,
			&entry.DurationMS,
			&createdAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan etl run: %w", scanErr)
		}

		entry.Status = domain.RunStatus(status)
		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time
		}

		entries = append(entries, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate etl runs: %w", rowsErr)
	}

	return entries, nil
}
