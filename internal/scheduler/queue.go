package scheduler

import (
	"sort"
	"time"

	"taskmill/internal/schedule"
	"taskmill/internal/task"
)

// score ranks a due task. Overdue bonus dominates, then the kind and
// frequency policy tables. Scoring orders the queue; it never decides
// due-ness.
func score(w Weights, t *task.Task, now time.Time) int {
	p := 0

	scheduledAt := t.ScheduledAt(now)
	if overdue := int(now.Sub(scheduledAt) / time.Second); overdue > 0 {
		bonus := overdueBase + overdue
		if bonus > overdueCap {
			bonus = overdueCap
		}
		p += bonus
	}

	p += w.Kind[t.Kind]
	if t.Schedule != nil {
		p += w.Frequency[t.Schedule.Frequency]
	}
	return p
}

// buildQueue turns the pending snapshot into one tick's execution plan:
// filter by due-ness, rank by score (scheduled instant breaks ties), keep
// only items whose execution window contains now, and cap at maxConcurrent.
// Tasks held back stay pending and are re-evaluated next tick with a larger
// overdue bonus.
func buildQueue(w Weights, tasks []task.Task, now time.Time, maxConcurrent int) []queueItem {
	var due []queueItem
	for i := range tasks {
		t := tasks[i]
		if !schedule.IsDue(t.Schedule, now, t.LastExecutionAt) {
			continue
		}
		scheduledAt := t.ScheduledAt(now)
		due = append(due, queueItem{
			t:           t,
			priority:    score(w, &t, now),
			scheduledAt: scheduledAt,
			windowStart: scheduledAt.Add(-schedule.Tolerance),
			windowEnd:   scheduledAt.Add(schedule.Tolerance),
		})
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].priority != due[j].priority {
			return due[i].priority > due[j].priority
		}
		return due[i].scheduledAt.Before(due[j].scheduledAt)
	})

	out := due[:0]
	for _, item := range due {
		if now.Before(item.windowStart) || now.After(item.windowEnd) {
			continue
		}
		out = append(out, item)
		if len(out) >= maxConcurrent {
			break
		}
	}
	return out
}
