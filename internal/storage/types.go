package storage

import (
	"context"
	"errors"
	"time"

	"taskmill/internal/task"
)

var (
	ErrNotFound = errors.New("task not found")
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "memory": process-local store, used in tests
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the task repository surface the engine depends on.
//
// FindPendingActive returns every active task still carrying schedulable
// work: pending, recurring (awaiting its next natural occurrence), and
// failed (retried at its next cadence). Due-ness is recomputed per tick,
// so the scan stays a cheap status filter.
type Store interface {
	Create(ctx context.Context, t *task.Task) error
	GetByID(ctx context.Context, id string) (*task.Task, error)
	FindPendingActive(ctx context.Context) ([]task.Task, error)

	// UpdateStatus persists a lifecycle transition. A non-empty result is
	// stored as the task's last result text.
	UpdateStatus(ctx context.Context, id string, st task.Status, result string) error
	SetLastExecution(ctx context.Context, id string, at time.Time) error
	SetNextExecution(ctx context.Context, id string, at time.Time) error

	// Deactivate soft-deletes: the task is excluded from every future
	// pending scan but the record is kept.
	Deactivate(ctx context.Context, id string) error

	// DeactivateCompletedBefore retires completed one-shot tasks whose last
	// run predates cutoff. Returns the number of rows touched.
	DeactivateCompletedBefore(ctx context.Context, cutoff time.Time) (int, error)

	// ResetRunning returns active running tasks to pending. The engine calls
	// it on startup: a crash mid-run must not strand a task in a state no
	// scan revisits. Returns the number of rows touched.
	ResetRunning(ctx context.Context) (int, error)

	Close() error
}
