package scheduler

import (
	"time"

	"taskmill/internal/schedule"
	"taskmill/internal/task"
)

// Config controls the scheduling loop and the executor.
type Config struct {
	Enabled bool

	// PollInterval is the tick cadence. Default 10s.
	PollInterval time.Duration

	// MaxConcurrent bounds how many due tasks one tick may dispatch.
	// Default 10.
	MaxConcurrent int

	// TaskTimeout bounds a single task execution, content call included.
	// Expiry is treated as a failed outcome. Default 2m.
	TaskTimeout time.Duration

	// Retention controls the daily sweep retiring completed one-shot tasks.
	// 0 disables the sweep.
	Retention time.Duration

	// Weights overrides the priority policy tables; zero value means
	// DefaultWeights().
	Weights Weights
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 10
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = 2 * time.Minute
	}
	if c.Weights.Kind == nil && c.Weights.Frequency == nil {
		c.Weights = DefaultWeights()
	}
	return c
}

// Weights are the priority policy tables. They order due tasks; they never
// decide due-ness.
type Weights struct {
	Kind      map[task.Kind]int
	Frequency map[schedule.Frequency]int
}

func DefaultWeights() Weights {
	return Weights{
		Kind: map[task.Kind]int{
			task.KindReminder: 100,
			task.KindSummary:  50,
			task.KindLearning: 30,
			task.KindFetch:    20,
		},
		Frequency: map[schedule.Frequency]int{
			schedule.Hourly:        200,
			schedule.EveryXMinutes: 150,
			schedule.MultipleTimes: 150,
			schedule.Daily:         100,
			schedule.Weekly:        50,
			schedule.Monthly:       25,
		},
	}
}

const (
	overdueBase = 1000
	overdueCap  = 2000
)

// queueItem is one due task in a tick's execution plan.
type queueItem struct {
	t           task.Task
	priority    int
	scheduledAt time.Time
	windowStart time.Time
	windowEnd   time.Time
}

// TaskEvent is the bus payload for scheduler lifecycle events.
type TaskEvent struct {
	ID       string        `json:"id"`
	Kind     string        `json:"kind"`
	Status   string        `json:"status"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}
