// Package storage keeps a SQLite catalog of ingestion runs and what each run indexed.
package storage

import (
	"context"
	"time"

	"github.com/hyperjump/portfolio-rag/internal/models"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is one ingestion of the knowledge directory.
type Run struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Documents  int        `json:"documents"`
	Chunks     int        `json:"chunks"`
	Dimension  int        `json:"dimension"`
	Error      string     `json:"error,omitempty"`
}

// Stats summarises the catalog.
type Stats struct {
	Runs      int   `json:"runs"`
	Documents int   `json:"documents"`
	Chunks    int   `json:"chunks"`
	LastRun   *Run  `json:"last_run,omitempty"`
	DiskBytes int64 `json:"disk_bytes,omitempty"`
}

// Catalog records ingestion runs. Documents and chunks are kept for the latest completed run only.
type Catalog interface {
	StartRun(ctx context.Context) (*Run, error)
	CompleteRun(ctx context.Context, run *Run, docs []models.Document, chunks []models.Chunk, dimension int) error
	FailRun(ctx context.Context, run *Run, cause error) error

	GetRun(ctx context.Context, id string) (*Run, error)
	LatestRun(ctx context.Context) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	ListDocuments(ctx context.Context) ([]models.Document, error)
	ChunksByDocument(ctx context.Context, docID string) ([]models.Chunk, error)
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*Stats, error)

	Close() error
}
