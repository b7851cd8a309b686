// Package store persists evaluation run history in a local SQLite
// database.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrRunNotFound is returned when a run ID has no stored record.
var ErrRunNotFound = errors.New("evaluation run not found")

// RunRecord is one persisted evaluation run.
type RunRecord struct {
	// ID is the run's unique identifier.
	ID string
	// Pipeline is the configuration name the run evaluated.
	Pipeline string
	// PipelineType is the configuration's pipeline type.
	PipelineType string
	// Dataset is the path of the evaluated dataset.
	Dataset string

	Samples int
	Passed  int
	Failed  int

	// Metrics holds aggregate metric values keyed by metric name.
	Metrics map[string]float64

	StartedAt  time.Time
	FinishedAt time.Time
}

// RunStore is the persistence interface for evaluation runs.
type RunStore interface {
	Create(ctx context.Context, run *RunRecord) error
	Get(ctx context.Context, id string) (*RunRecord, error)
	// List returns the most recent runs, newest first, at most limit.
	List(ctx context.Context, limit int) ([]*RunRecord, error)
	Close() error
}
