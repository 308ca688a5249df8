package schedule

import (
	"time"
)

// Tolerance is the fixed band around a scheduled instant inside which a task
// counts as due. It absorbs polling jitter and is deliberately not
// configurable per task.
const Tolerance = 30 * time.Second

const toleranceSeconds = int(Tolerance / time.Second)

// IsDue reports whether a schedule should fire at now, given the task's last
// execution. It is pure and deterministic; a nil or malformed schedule is
// never due (fails closed so one corrupt task cannot halt a scan). An empty
// wall-clock time anchors at midnight, matching At and NextOccurrence.
func IsDue(s *Schedule, now time.Time, lastExecution *time.Time) bool {
	if s == nil || s.Validate() != nil {
		return false
	}
	schedH, schedM := 0, 0
	if s.Time != "" {
		var err error
		schedH, schedM, err = ParseClock(s.Time)
		if err != nil {
			return false
		}
	}

	schedSec := schedH*3600 + schedM*60
	nowSec := now.Hour()*3600 + now.Minute()*60 + now.Second()

	switch s.Frequency {
	case Once:
		return s.Date == now.Format(dateLayout) && absInt(nowSec-schedSec) <= toleranceSeconds

	case Hourly:
		// Minute-of-hour match, date-independent.
		minuteSec := now.Minute()*60 + now.Second()
		if absInt(minuteSec-schedM*60) > toleranceSeconds {
			return false
		}
		return !s.ranThisOccurrence(now, lastExecution)

	case EveryXMinutes:
		return intervalDue(s.Interval, schedSec, nowSec, now, lastExecution)

	case MultipleTimes:
		return intervalDue(s.spacingMinutes(), schedSec, nowSec, now, lastExecution)

	case Daily:
		if absInt(nowSec-schedSec) > toleranceSeconds {
			return false
		}
		// Must not have run on today's calendar date already.
		return lastExecution == nil || lastExecution.Format(dateLayout) != now.Format(dateLayout)

	case Weekly:
		if absInt(nowSec-schedSec) > toleranceSeconds {
			return false
		}
		if s.ranThisOccurrence(now, lastExecution) {
			return false
		}
		if lastExecution != nil {
			return now.Weekday() == lastExecution.Weekday()
		}
		// Never ran: anchor on the configured day if there is one, otherwise
		// the first time-of-day match fires and anchors the weekday.
		if wd, ok := parseWeekday(s.Day); ok {
			return now.Weekday() == wd
		}
		return true

	case Monthly:
		if absInt(nowSec-schedSec) > toleranceSeconds {
			return false
		}
		if s.ranThisOccurrence(now, lastExecution) {
			return false
		}
		if lastExecution != nil {
			return now.Day() == lastExecution.Day()
		}
		if s.Date != "" {
			if anchor, perr := time.Parse(dateLayout, s.Date); perr == nil {
				return now.Day() == anchor.Day()
			}
		}
		return true
	}

	return false
}

// ranThisOccurrence reports whether the last execution already fired inside
// the tolerance window of the occurrence containing now. Recurring tasks
// stay in the pending scan between occurrences, so without this guard a
// task would re-fire on every poll of the same window.
func (s *Schedule) ranThisOccurrence(now time.Time, lastExecution *time.Time) bool {
	if lastExecution == nil {
		return false
	}
	at := s.At(now)
	return !lastExecution.Before(at.Add(-Tolerance)) && !lastExecution.After(at.Add(Tolerance))
}

// intervalDue applies the every-X-minutes rule: enough time elapsed since the
// last run AND the current time-of-day sits on an X-minute boundary relative
// to the scheduled time, within the tolerance band.
func intervalDue(intervalMin, schedSec, nowSec int, now time.Time, lastExecution *time.Time) bool {
	if intervalMin <= 0 {
		return false
	}
	if lastExecution != nil {
		elapsed := int(now.Sub(*lastExecution) / time.Minute)
		if elapsed < intervalMin {
			return false
		}
	}
	period := intervalMin * 60
	return absInt(nowSec%period-schedSec%period) <= toleranceSeconds
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
