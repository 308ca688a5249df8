package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskmill/internal/task"
)

// Memory is a mutex-guarded in-process store. It backs tests and the
// "memory" driver; semantics mirror the sqlite store.
type Memory struct {
	mu    sync.Mutex
	tasks map[string]*task.Task
}

func NewMemory() *Memory {
	return &Memory{tasks: map[string]*task.Task{}}
}

func (m *Memory) Create(_ context.Context, t *task.Task) error {
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = task.StatusPending
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *Memory) GetByID(_ context.Context, id string) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) FindPendingActive(_ context.Context) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []task.Task
	for _, t := range m.tasks {
		if !t.Active {
			continue
		}
		switch t.Status {
		case task.StatusPending, task.StatusRecurring, task.StatusFailed:
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateStatus(_ context.Context, id string, st task.Status, result string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = st
	if result != "" {
		t.LastResult = result
	}
	t.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) SetLastExecution(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	ts := at
	t.LastExecutionAt = &ts
	t.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) SetNextExecution(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	ts := at
	t.NextExecutionAt = &ts
	t.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	t.Active = false
	t.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) DeactivateCompletedBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if t.Active && t.Status == task.StatusCompleted &&
			t.LastExecutionAt != nil && t.LastExecutionAt.Before(cutoff) {
			t.Active = false
			t.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (m *Memory) ResetRunning(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if t.Active && t.Status == task.StatusRunning {
			t.Status = task.StatusPending
			t.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (m *Memory) Close() error { return nil }
