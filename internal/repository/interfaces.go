package repository

import (
	"context"

	"github.com/rpattn/labetl/internal/domain"
)

// RunLogRepository records and lists ETL run outcomes.
type RunLogRepository interface {
	Record(ctx context.Context, entry domain.RunLogEntry) error
	List(ctx context.Context, limit int) ([]domain.RunLogEntry, error)
}
