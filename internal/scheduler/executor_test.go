package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"taskmill/internal/content"
	"taskmill/internal/eventbus"
	"taskmill/internal/notifier"
	"taskmill/internal/schedule"
	"taskmill/internal/storage"
	"taskmill/internal/task"
	logx "taskmill/pkg/logx"
)

func newTestService(t *testing.T, gen content.Generator) (*Service, *storage.Memory, eventbus.Bus) {
	t.Helper()
	store := storage.NewMemory()
	bus := eventbus.New()
	notif, err := notifier.New(notifier.Config{}, logx.Nop(), bus)
	if err != nil {
		t.Fatalf("notifier.New error: %v", err)
	}
	svc := New(Config{Enabled: true, PollInterval: time.Hour}, logx.Nop(), store, gen, notif, bus)
	return svc, store, bus
}

func mustCreate(t *testing.T, store storage.Store, tk *task.Task) *task.Task {
	t.Helper()
	if err := store.Create(context.Background(), tk); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	return tk
}

func itemFor(tk *task.Task, now time.Time) queueItem {
	scheduledAt := tk.ScheduledAt(now)
	return queueItem{
		t:           *tk,
		scheduledAt: scheduledAt,
		windowStart: scheduledAt.Add(-schedule.Tolerance),
		windowEnd:   scheduledAt.Add(schedule.Tolerance),
	}
}

// gateGen blocks inside Generate until released, counting calls.
type gateGen struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func newGateGen() *gateGen {
	return &gateGen{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gateGen) Generate(_ context.Context, _ task.Kind, _ task.Params) (string, error) {
	g.mu.Lock()
	g.calls++
	first := g.calls == 1
	g.mu.Unlock()
	if first {
		close(g.started)
	}
	<-g.release
	return "generated", nil
}

func (g *gateGen) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func TestExecuteOneSingleFlight(t *testing.T) {
	t.Parallel()
	gen := newGateGen()
	svc, store, _ := newTestService(t, gen)
	ctx := context.Background()

	tk := mustCreate(t, store, &task.Task{
		Description: "daily digest",
		Kind:        task.KindSummary,
		Schedule:    &schedule.Schedule{Frequency: schedule.Daily, Time: "09:00"},
		Params:      task.SummaryParams{Target: "space"},
		Status:      task.StatusPending,
		Active:      true,
	})
	now := time.Now()
	item := itemFor(tk, now)

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.executeOne(ctx, item)
	}()
	<-gen.started

	// Same id while the first execution is still in flight: must be skipped.
	svc.executeOne(ctx, item)
	if got := gen.callCount(); got != 1 {
		t.Fatalf("generator called %d times, want 1 (second dispatch skipped)", got)
	}

	close(gen.release)
	<-done

	got, err := store.GetByID(ctx, tk.ID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.Status != task.StatusRecurring {
		t.Fatalf("Status = %s, want recurring", got.Status)
	}
	if got.LastResult != "generated" {
		t.Fatalf("LastResult = %q, want generated", got.LastResult)
	}
	if got.NextExecutionAt == nil {
		t.Fatal("recurring task must have a next execution time")
	}
	if got.LastExecutionAt == nil {
		t.Fatal("executed task must have a last execution time")
	}
}

// errGen fails every generation.
type errGen struct{}

func (errGen) Generate(_ context.Context, _ task.Kind, _ task.Params) (string, error) {
	return "", errors.New("model unavailable")
}

func TestExecuteBatchIsolatesFailures(t *testing.T) {
	t.Parallel()
	svc, store, _ := newTestService(t, errGen{})
	ctx := context.Background()
	now := time.Now()

	failing := mustCreate(t, store, &task.Task{
		Description: "daily digest",
		Kind:        task.KindSummary,
		Schedule:    &schedule.Schedule{Frequency: schedule.Daily, Time: "09:00"},
		Status:      task.StatusPending,
		Active:      true,
	})
	reminder := mustCreate(t, store, &task.Task{
		Description: "stretch",
		Kind:        task.KindReminder,
		Schedule:    &schedule.Schedule{Frequency: schedule.Once, Time: "09:00", Date: now.Format("2006-01-02")},
		Status:      task.StatusPending,
		Active:      true,
	})

	svc.executeBatch(ctx, []queueItem{itemFor(failing, now), itemFor(reminder, now)})

	got, err := store.GetByID(ctx, failing.ID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.Status != task.StatusFailed {
		t.Fatalf("failing task Status = %s, want failed", got.Status)
	}
	// A failed recurring task keeps its next natural occurrence.
	if got.NextExecutionAt == nil {
		t.Fatal("failed recurring task must keep a next execution time")
	}

	got, err = store.GetByID(ctx, reminder.ID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.Status != task.StatusCompleted {
		t.Fatalf("reminder Status = %s, want completed (isolated from the failure)", got.Status)
	}
	if got.LastResult != "Time for: stretch" {
		t.Fatalf("reminder LastResult = %q", got.LastResult)
	}
	// A completed once task is terminal: no next occurrence is ever set.
	if got.NextExecutionAt != nil {
		t.Fatalf("once task NextExecutionAt = %v, want nil", got.NextExecutionAt)
	}
}

// panicGen panics to simulate a crashing provider.
type panicGen struct{}

func (panicGen) Generate(_ context.Context, _ task.Kind, _ task.Params) (string, error) {
	panic("provider exploded")
}

func TestExecuteOneRecoversPanic(t *testing.T) {
	t.Parallel()
	svc, store, _ := newTestService(t, panicGen{})
	ctx := context.Background()
	now := time.Now()

	tk := mustCreate(t, store, &task.Task{
		Description: "daily digest",
		Kind:        task.KindSummary,
		Schedule:    &schedule.Schedule{Frequency: schedule.Daily, Time: "09:00"},
		Status:      task.StatusPending,
		Active:      true,
	})

	svc.executeOne(ctx, itemFor(tk, now))

	got, err := store.GetByID(ctx, tk.ID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.Status != task.StatusFailed {
		t.Fatalf("Status = %s, want failed after panic", got.Status)
	}
}

func TestExecuteOnePublishesLifecycleEvent(t *testing.T) {
	t.Parallel()
	svc, store, bus := newTestService(t, content.Template{})
	ctx := context.Background()
	now := time.Now()

	events, unsub := bus.Subscribe(8)
	defer unsub()

	tk := mustCreate(t, store, &task.Task{
		Description: "stretch",
		Kind:        task.KindReminder,
		Schedule:    &schedule.Schedule{Frequency: schedule.Once, Time: "09:00", Date: now.Format("2006-01-02")},
		Status:      task.StatusPending,
		Active:      true,
	})

	svc.executeOne(ctx, itemFor(tk, now))

	var saw bool
	for {
		select {
		case ev := <-events:
			if ev.Type != "scheduler.task" {
				continue
			}
			te, ok := ev.Data.(TaskEvent)
			if !ok {
				t.Fatalf("event data type %T", ev.Data)
			}
			if te.ID != tk.ID || te.Status != string(task.StatusCompleted) {
				t.Fatalf("unexpected event %+v", te)
			}
			saw = true
		default:
			if !saw {
				t.Fatal("no scheduler.task event published")
			}
			return
		}
	}
}
