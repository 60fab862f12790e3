// Package store persists query runs and their dead letters for later
// audit and replay. Persistence is optional; the pipeline runs fully in
// memory without it.
package store

import (
	"context"
	"time"

	"github.com/sells-group/order-agent/internal/model"
)

// Run is one persisted query execution.
type Run struct {
	ID        string          `json:"id"`
	Query     string          `json:"query"`
	Meta      model.QueryMeta `json:"meta"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store defines the persistence interface for query runs.
type Store interface {
	// SaveRun persists a completed run with its result and dead letters,
	// returning the new run ID.
	SaveRun(ctx context.Context, query string, result *model.AgentResult) (string, error)
	// GetRun returns one run's full result.
	GetRun(ctx context.Context, runID string) (*Run, *model.AgentResult, error)
	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
