// Package store persists query runs so every answered question is
// auditable after the fact.
package store

import (
	"context"

	"github.com/haiwise/knowledge-cli/internal/model"
)

// RunFilter specifies criteria for listing query runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Agent  string          `json:"agent,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for query runs.
type Store interface {
	SaveRun(ctx context.Context, run *model.QueryRun) error
	GetRun(ctx context.Context, runID string) (*model.QueryRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.QueryRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
