package task

import (
	"time"

	"taskmill/internal/schedule"
)

// Kind determines content-generation routing and priority weighting.
type Kind string

const (
	KindReminder Kind = "reminder"
	KindSummary  Kind = "summary"
	KindFetch    Kind = "fetch"
	KindLearning Kind = "learning"
)

func (k Kind) Valid() bool {
	switch k {
	case KindReminder, KindSummary, KindFetch, KindLearning:
		return true
	}
	return false
}

// Status is the task lifecycle state.
//
// pending -> running -> {recurring | completed | failed}. A recurring task
// stays on the same record with a freshly computed next execution time and
// is rescanned on later ticks.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusRecurring Status = "recurring"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Task is the unit of schedulable work.
type Task struct {
	ID          string
	Description string
	Kind        Kind
	Schedule    *schedule.Schedule
	Params      Params
	Status      Status

	// Active is a soft-delete flag. An inactive task is never selected as
	// pending regardless of status.
	Active bool

	LastResult      string
	LastExecutionAt *time.Time
	NextExecutionAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduledAt returns the task's nominal scheduled instant for the cycle
// containing now, or now itself when the task has no schedule.
func (t *Task) ScheduledAt(now time.Time) time.Time {
	if t.Schedule == nil {
		return now
	}
	return t.Schedule.At(now)
}

// Recurring reports whether the task has a non-terminal recurrence rule.
func (t *Task) Recurring() bool {
	return t.Schedule != nil && t.Schedule.Frequency != schedule.Once
}
