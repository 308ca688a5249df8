package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frequency classifies how often a task recurs.
type Frequency string

const (
	Once          Frequency = "once"
	Hourly        Frequency = "hourly"
	Daily         Frequency = "daily"
	Weekly        Frequency = "weekly"
	Monthly       Frequency = "monthly"
	EveryXMinutes Frequency = "every_x_minutes"
	MultipleTimes Frequency = "multiple_times"
)

func (f Frequency) Valid() bool {
	switch f {
	case Once, Hourly, Daily, Weekly, Monthly, EveryXMinutes, MultipleTimes:
		return true
	}
	return false
}

// Period is the span a multiple_times count applies to.
type Period string

const (
	PerHour  Period = "hour"
	PerDay   Period = "day"
	PerWeek  Period = "week"
	PerMonth Period = "month"
)

// Schedule is the recurrence rule attached to a task. It is a value object
// owned by exactly one task and never shared.
//
// Time is a wall-clock "HH:mm". Date ("YYYY-MM-DD") is required for Once and
// acts as the anchor for the other frequencies when first created. Interval
// is a minute count for EveryXMinutes and a count-per-period for
// MultipleTimes (the period unit lives in Per).
type Schedule struct {
	Frequency Frequency `json:"frequency"`
	Time      string    `json:"time,omitempty"`
	Day       string    `json:"day,omitempty"`
	Date      string    `json:"date,omitempty"`
	Interval  int       `json:"interval,omitempty"`
	Per       Period    `json:"per,omitempty"`
}

const clockLayout = "15:04"
const dateLayout = "2006-01-02"

func (s *Schedule) Validate() error {
	if s == nil {
		return fmt.Errorf("schedule is nil")
	}
	if !s.Frequency.Valid() {
		return fmt.Errorf("unknown frequency %q", s.Frequency)
	}
	if s.Time != "" {
		if _, _, err := ParseClock(s.Time); err != nil {
			return err
		}
	}
	if s.Date != "" {
		if _, err := time.Parse(dateLayout, s.Date); err != nil {
			return fmt.Errorf("invalid date %q: %w", s.Date, err)
		}
	}
	switch s.Frequency {
	case Once:
		if s.Date == "" {
			return fmt.Errorf("once schedule requires a date")
		}
	case EveryXMinutes:
		if s.Interval <= 0 {
			return fmt.Errorf("every_x_minutes schedule requires a positive interval")
		}
	case MultipleTimes:
		if s.Interval <= 0 {
			return fmt.Errorf("multiple_times schedule requires a positive count")
		}
		switch s.Per {
		case PerHour, PerDay, PerWeek, PerMonth:
		default:
			return fmt.Errorf("multiple_times schedule requires per one of hour/day/week/month")
		}
	}
	return nil
}

// ParseClock parses "HH:mm" into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:mm", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

// At returns the nominal scheduled instant for the cycle containing now.
// For calendar frequencies that is today (or the anchor date for Once) at
// the schedule's wall-clock time; for Hourly and the interval frequencies
// it is the aligned boundary nearest to now, even when that boundary sits
// across an hour or day edge. The execution window is centered on this
// instant, so it must track the cycle, not the anchor.
func (s *Schedule) At(now time.Time) time.Time {
	h, m, err := ParseClock(s.Time)
	if err != nil {
		h, m = 0, 0
	}
	y, mo, d := now.Date()

	switch s.Frequency {
	case Hourly:
		return nearestBoundary(now, 3600, m*60)

	case EveryXMinutes, MultipleTimes:
		interval := s.Interval
		if s.Frequency == MultipleTimes {
			interval = s.spacingMinutes()
		}
		if interval > 0 {
			return nearestBoundary(now, interval*60, h*3600+m*60)
		}

	case Once:
		if s.Date != "" {
			if anchor, perr := time.Parse(dateLayout, s.Date); perr == nil {
				y, mo, d = anchor.Date()
			}
		}
	}
	return time.Date(y, mo, d, h, m, 0, 0, now.Location())
}

// prevBoundary returns the latest aligned instant at or before t for a cycle
// of periodSec seconds anchored phaseSec seconds past midnight.
func prevBoundary(t time.Time, periodSec, phaseSec int) time.Time {
	nowSec := t.Hour()*3600 + t.Minute()*60 + t.Second()
	delta := mod(nowSec-phaseSec, periodSec)
	y, mo, d := t.Date()
	midnight := time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
	return midnight.Add(time.Duration(nowSec-delta) * time.Second)
}

// nearestBoundary returns whichever aligned instant, before or after t, is
// closer.
func nearestBoundary(t time.Time, periodSec, phaseSec int) time.Time {
	prev := prevBoundary(t, periodSec, phaseSec)
	next := prev.Add(time.Duration(periodSec) * time.Second)
	if next.Sub(t) < t.Sub(prev) {
		return next
	}
	return prev
}

// mod is a floored modulo: the result is always in [0, m).
func mod(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// parseWeekday accepts full English weekday names, case-insensitive.
func parseWeekday(s string) (time.Weekday, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sunday":
		return time.Sunday, true
	case "monday":
		return time.Monday, true
	case "tuesday":
		return time.Tuesday, true
	case "wednesday":
		return time.Wednesday, true
	case "thursday":
		return time.Thursday, true
	case "friday":
		return time.Friday, true
	case "saturday":
		return time.Saturday, true
	}
	return 0, false
}

// spacingMinutes derives the whole-minute gap between occurrences of a
// multiple_times schedule: the span divided by the count, floored the same
// way the recurrence calculator floors it.
func (s *Schedule) spacingMinutes() int {
	if s.Interval <= 0 {
		return 0
	}
	switch s.Per {
	case PerHour:
		return 60 / s.Interval
	case PerDay:
		return (24 / s.Interval) * 60
	case PerWeek:
		return (7 / s.Interval) * 24 * 60
	case PerMonth:
		return (30 / s.Interval) * 24 * 60
	}
	return 0
}
