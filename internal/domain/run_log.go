package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus tags the outcome of one ETL run.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusError   RunStatus = "error"
)

// RunLogEntry records one ETL run for operability: what happened, how many
// rows were produced, and how long the run took.
type RunLogEntry struct {
	ID         uuid.UUID `json:"id"`
	Status     RunStatus `json:"status"`
	Message    string    `json:"message"`
	RowCount   int       `json:"row_count"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewRunLogEntry creates a run log entry with a fresh identifier.
func NewRunLogEntry(status RunStatus, message string, rowCount int, duration time.Duration) RunLogEntry {
	return RunLogEntry{
		ID:         uuid.New(),
		Status:     status,
		Message:    message,
		RowCount:   rowCount,
		DurationMS: duration.Milliseconds(),
		CreatedAt:  time.Now(),
	}
}
