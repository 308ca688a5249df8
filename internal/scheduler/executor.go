package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"taskmill/internal/eventbus"
	"taskmill/internal/notifier"
	"taskmill/internal/schedule"
	"taskmill/internal/task"
	logx "taskmill/pkg/logx"
)

// executeBatch fans the tick's plan out to concurrent executions and waits
// for all of them. Dispatch follows queue order; completion order does not.
func (s *Service) executeBatch(ctx context.Context, items []queueItem) {
	var wg sync.WaitGroup
	for i := range items {
		item := items[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.executeOne(ctx, item)
		}()
	}
	wg.Wait()
}

// executeOne drives one task through its lifecycle:
// pending -> running (persisted before any external call) ->
// {recurring | completed | failed}. Failures are isolated per task.
func (s *Service) executeOne(ctx context.Context, item queueItem) {
	t := item.t
	if !s.inflight.tryAcquire(t.ID) {
		s.log.Debug("task already in flight, skipping", logx.String("id", t.ID))
		return
	}
	defer s.inflight.release(t.ID)

	timeout := s.config().TaskTimeout
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	if err := s.store.UpdateStatus(runCtx, t.ID, task.StatusRunning, ""); err != nil {
		// Task stays in its prior persisted state for re-evaluation next tick.
		s.log.Warn("failed to mark task running", logx.String("id", t.ID), logx.Err(err))
		return
	}
	if err := s.store.SetLastExecution(runCtx, t.ID, start); err != nil {
		s.log.Warn("failed to stamp last execution", logx.String("id", t.ID), logx.Err(err))
	}

	s.notif.Publish(notifier.EventTaskStarted,
		notifier.NewContent(&t, item.scheduledAt, fmt.Sprintf("Task %q is starting", t.Description), "info"))

	result, err := s.runContent(runCtx, &t)
	dur := time.Since(start)

	if err != nil {
		s.log.Warn("task failed",
			logx.String("id", t.ID), logx.String("kind", string(t.Kind)),
			logx.Duration("dur", dur), logx.Err(err))
		s.finishFailed(ctx, &t, item.scheduledAt, start, dur, err)
		return
	}

	s.finishOK(ctx, &t, item.scheduledAt, start, dur, result)
}

// runContent produces the task's payload. Summary and learning tasks go
// through the content generator; reminder and fetch tasks use a templated
// message and skip generation entirely. Panics become errors so one bad
// task cannot take the batch down.
func (s *Service) runContent(ctx context.Context, t *task.Task) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.log.Error("task panicked",
				logx.String("id", t.ID), logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	switch t.Kind {
	case task.KindSummary, task.KindLearning:
		return s.gen.Generate(ctx, t.Kind, t.Params)
	case task.KindReminder:
		return fmt.Sprintf("Time for: %s", t.Description), nil
	case task.KindFetch:
		return fmt.Sprintf("Content fetched: %s", t.Description), nil
	default:
		return "", fmt.Errorf("unknown task kind %q", t.Kind)
	}
}

func (s *Service) finishOK(ctx context.Context, t *task.Task, scheduledAt, start time.Time, dur time.Duration, result string) {
	status := task.StatusCompleted
	if t.Recurring() {
		status = task.StatusRecurring
		if next, ok := schedule.NextOccurrence(t.Schedule, start); ok {
			if err := s.store.SetNextExecution(ctx, t.ID, next); err != nil {
				s.log.Warn("failed to persist next execution", logx.String("id", t.ID), logx.Err(err))
			}
		}
	}

	if err := s.store.UpdateStatus(ctx, t.ID, status, result); err != nil {
		s.log.Warn("failed to persist task outcome", logx.String("id", t.ID), logx.Err(err))
		return
	}

	s.log.Info("task completed",
		logx.String("id", t.ID), logx.String("kind", string(t.Kind)),
		logx.String("status", string(status)), logx.Duration("dur", dur))

	s.notif.Publish(notifier.EventTaskCompleted,
		notifier.NewContent(t, scheduledAt, completionMessage(t, result), "success"))

	s.publishEvent(TaskEvent{ID: t.ID, Kind: string(t.Kind), Status: string(status), Started: start, Duration: dur})
}

func (s *Service) finishFailed(ctx context.Context, t *task.Task, scheduledAt, start time.Time, dur time.Duration, cause error) {
	// A failed recurring task keeps its next natural occurrence; it will be
	// retried at its regular cadence without backoff.
	if t.Recurring() {
		if next, ok := schedule.NextOccurrence(t.Schedule, start); ok {
			if err := s.store.SetNextExecution(ctx, t.ID, next); err != nil {
				s.log.Warn("failed to persist next execution", logx.String("id", t.ID), logx.Err(err))
			}
		}
	}

	if err := s.store.UpdateStatus(ctx, t.ID, task.StatusFailed, ""); err != nil {
		s.log.Warn("failed to persist task failure", logx.String("id", t.ID), logx.Err(err))
	}

	s.notif.Publish(notifier.EventTaskFailed,
		notifier.NewContent(t, scheduledAt, fmt.Sprintf("Error in task %q: %v", t.Description, cause), "error"))

	s.publishEvent(TaskEvent{ID: t.ID, Kind: string(t.Kind), Status: string(task.StatusFailed), Started: start, Duration: dur, Error: cause.Error()})
}

func (s *Service) publishEvent(ev TaskEvent) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: "scheduler.task", Time: time.Now(), Data: ev})
	}
}

func completionMessage(t *task.Task, result string) string {
	switch t.Kind {
	case task.KindSummary:
		if p, ok := t.Params.(task.SummaryParams); ok && p.Target != "" {
			return fmt.Sprintf("New summary about %s has been generated!", p.Target)
		}
		return "New summary has been generated!"
	case task.KindLearning:
		if p, ok := t.Params.(task.LearningParams); ok && p.Topic != "" {
			return fmt.Sprintf("New learning content about %s is ready!", p.Topic)
		}
		return "New learning content is ready!"
	default:
		if result != "" {
			return result
		}
		return fmt.Sprintf("Task %q completed successfully", t.Description)
	}
}
