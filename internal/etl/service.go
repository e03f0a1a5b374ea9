package etl

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/rpattn/labetl/internal/domain"
	"github.com/rpattn/labetl/internal/pipeline"
	"github.com/rpattn/labetl/internal/repository"
	"github.com/rpattn/labetl/internal/sink"
)

// Source file names, resolved against the configured data directory.
const (
	UsersFile       = "users.csv"
	CompoundsFile   = "compounds.csv"
	ExperimentsFile = "user_experiments.csv"
)

// Loader reads one delimited source file into a cleaned string table.
type Loader func(path string) (domain.Table, error)

// Sink is the persistence contract the facade drives. The postgres
// implementation lives in internal/sink; tests substitute stubs.
type Sink interface {
	Ping(ctx context.Context) error
	EnsureSchema(ctx context.Context) error
	EnsureTable(ctx context.Context, table domain.Table) error
	Write(ctx context.Context, table domain.Table) (sink.WriteResult, error)
	Read(ctx context.Context) (domain.Table, error)
}

// Result is the tagged outcome of one ETL run. Nothing raises past the
// facade; every failure is captured here.
type Result struct {
	Status  domain.RunStatus `json:"status"`
	Message string           `json:"message"`
	Rows    int              `json:"rows,omitempty"`
}

// Service orchestrates Loader -> Pipeline -> Sink and exposes run/fetch.
type Service struct {
	dataDir string
	loader  Loader
	sink    Sink
	runLog  repository.RunLogRepository

	// Serializes overlapping trigger requests; the sink's content-equality
	// check only prevents redundant writes, not conflicting ones.
	runMu sync.Mutex
}

// NewService creates the ETL facade. runLog may be nil; run recording is
// best effort and never fails a run.
func NewService(dataDir string, loader Loader, s Sink, runLog repository.RunLogRepository) *Service {
	return &Service{
		dataDir: dataDir,
		loader:  loader,
		sink:    s,
		runLog:  runLog,
	}
}

// Run executes the full ETL chain and returns a tagged result. The whole
// feature set is recomputed from scratch; the first failure aborts the rest
// of the run with no partial table persisted.
func (s *Service) Run(ctx context.Context) Result {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now()
	result := s.run(ctx)
	s.recordRun(ctx, result, time.Since(start))
	return result
}

func (s *Service) run(ctx context.Context) Result {
	users, err := s.loader(filepath.Join(s.dataDir, UsersFile))
	if err != nil {
		return errorResult(err)
	}
	compounds, err := s.loader(filepath.Join(s.dataDir, CompoundsFile))
	if err != nil {
		return errorResult(err)
	}
	experiments, err := s.loader(filepath.Join(s.dataDir, ExperimentsFile))
	if err != nil {
		return errorResult(err)
	}

	features, err := pipeline.Derive(users, compounds, experiments)
	if err != nil {
		return errorResult(err)
	}

	// Connection failure skips every dependent storage step.
	if err := s.sink.Ping(ctx); err != nil {
		return errorResult(err)
	}
	if err := s.sink.EnsureSchema(ctx); err != nil {
		return errorResult(err)
	}
	if err := s.sink.EnsureTable(ctx, features); err != nil {
		return errorResult(err)
	}
	writeResult, err := s.sink.Write(ctx, features)
	if err != nil {
		return errorResult(err)
	}

	message := fmt.Sprintf("ETL process completed for %d rows", writeResult.Rows)
	if writeResult.Status == sink.WriteUnchanged {
		message += " (already up to date)"
	}
	return Result{
		Status:  domain.RunStatusSuccess,
		Message: message,
		Rows:    writeResult.Rows,
	}
}

// Results returns the persisted feature table.
func (s *Service) Results(ctx context.Context) (domain.Table, error) {
	return s.sink.Read(ctx)
}

// Runs lists recorded ETL runs, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]domain.RunLogEntry, error) {
	if s.runLog == nil {
		return []domain.RunLogEntry{}, nil
	}
	return s.runLog.List(ctx, limit)
}

func (s *Service) recordRun(ctx context.Context, result Result, duration time.Duration) {
	if s.runLog == nil {
		return
	}
	entry := domain.NewRunLogEntry(result.Status, result.Message, result.Rows, duration)
	if err := s.runLog.Record(ctx, entry); err != nil {
		log.Printf("[etl] failed to record run %s: %v", entry.ID, err)
	}
}

func errorResult(err error) Result {
	log.Printf("[etl] run failed: %v", err)
	return Result{
		Status:  domain.RunStatusError,
		Message: err.Error(),
	}
}
