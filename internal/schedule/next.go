package schedule

import (
	"time"
)

// NextOccurrence computes the next scheduled instant strictly after from.
// Calendar frequencies take from's date at the schedule's wall-clock time
// and advance one full period; Hourly and the interval frequencies advance
// from the aligned boundary at or before from, so a run late in one cycle
// still lands on the very next boundary rather than a stale hour-of-day.
// Once schedules are terminal and report ok=false.
func NextOccurrence(s *Schedule, from time.Time) (time.Time, bool) {
	if s == nil || s.Validate() != nil {
		return time.Time{}, false
	}

	h, m := 0, 0
	if s.Time != "" {
		h, m, _ = ParseClock(s.Time)
	}

	switch s.Frequency {
	case Once:
		return time.Time{}, false
	case Hourly:
		return prevBoundary(from, 3600, m*60).Add(time.Hour), true
	case Daily:
		return dayBase(from, h, m).AddDate(0, 0, 1), true
	case Weekly:
		return dayBase(from, h, m).AddDate(0, 0, 7), true
	case Monthly:
		return addMonthClamped(dayBase(from, h, m)), true
	case EveryXMinutes:
		if s.Interval <= 0 {
			return time.Time{}, false
		}
		period := s.Interval * 60
		return prevBoundary(from, period, h*3600+m*60).Add(time.Duration(period) * time.Second), true
	case MultipleTimes:
		spacing := s.spacingMinutes()
		if spacing <= 0 {
			return time.Time{}, false
		}
		period := spacing * 60
		return prevBoundary(from, period, h*3600+m*60).Add(time.Duration(period) * time.Second), true
	}
	return time.Time{}, false
}

func dayBase(t time.Time, h, m int) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, h, m, 0, 0, t.Location())
}

// addMonthClamped advances by one calendar month, clamping the day-of-month
// so Jan 31 lands on Feb 28/29 instead of normalizing into March.
func addMonthClamped(t time.Time) time.Time {
	y, mo, d := t.Date()
	firstOfNext := time.Date(y, mo+1, 1, t.Hour(), t.Minute(), 0, 0, t.Location())
	last := daysInMonth(firstOfNext.Year(), firstOfNext.Month())
	if d > last {
		d = last
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), d, t.Hour(), t.Minute(), 0, 0, t.Location())
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
