package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	relativeRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(min(?:ute)?s?|hour(?:s)?)`)
	halfHourRe = regexp.MustCompile(`half\s+an?\s+hour`)
)

// Normalize fills a partially specified schedule with sensible defaults:
// frequency defaults to once, the wall-clock time defaults to now, and a
// once schedule without a date anchors on today. When the originating
// prompt carries a relative time phrase ("in 10 minutes", "in 2 hours",
// "half an hour") the phrase wins: the resolved time and date are set and
// the frequency is forced to once.
func Normalize(s Schedule, now time.Time, prompt string) Schedule {
	if s.Frequency == "" {
		s.Frequency = Once
	}
	if s.Time == "" {
		s.Time = now.Format(clockLayout)
	}
	if s.Frequency == Once && s.Date == "" {
		s.Date = now.Format(dateLayout)
	}

	p := strings.ToLower(prompt)
	if strings.Contains(p, "in ") && (strings.Contains(p, "min") || strings.Contains(p, "hour")) {
		at, ok := RelativeTime(now, prompt)
		if ok {
			s.Time = at.Format(clockLayout)
			s.Date = at.Format(dateLayout)
			s.Frequency = Once
		}
	}
	return s
}

// RelativeTime resolves a relative-time phrase against now. If the resolved
// instant would land earlier than now on the clock, it rolls over to the
// next day.
func RelativeTime(now time.Time, prompt string) (time.Time, bool) {
	p := strings.ToLower(prompt)
	base := now.Truncate(time.Minute)

	var at time.Time
	if m := relativeRe.FindStringSubmatch(p); m != nil {
		amount, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return time.Time{}, false
		}
		unit := m[2]
		if strings.HasPrefix(unit, "min") {
			at = base.Add(time.Duration(amount * float64(time.Minute)))
		} else {
			at = base.Add(time.Duration(amount * float64(time.Hour)))
		}
	} else if halfHourRe.MatchString(p) {
		at = base.Add(30 * time.Minute)
	} else {
		return time.Time{}, false
	}

	if at.Before(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at, true
}

// Describe renders a short human-readable summary of the rule, used in
// notifications and logs.
func Describe(s *Schedule) string {
	if s == nil {
		return "unscheduled"
	}
	switch s.Frequency {
	case Once:
		return fmt.Sprintf("once on %s at %s", s.Date, s.Time)
	case Hourly:
		return fmt.Sprintf("hourly at minute %s", minutePart(s.Time))
	case Daily:
		return fmt.Sprintf("daily at %s", s.Time)
	case Weekly:
		if s.Day != "" {
			return fmt.Sprintf("weekly on %s at %s", strings.ToLower(s.Day), s.Time)
		}
		return fmt.Sprintf("weekly at %s", s.Time)
	case Monthly:
		return fmt.Sprintf("monthly at %s", s.Time)
	case EveryXMinutes:
		return fmt.Sprintf("every %d minutes", s.Interval)
	case MultipleTimes:
		return fmt.Sprintf("%d times per %s", s.Interval, s.Per)
	}
	return string(s.Frequency)
}

func minutePart(clock string) string {
	if _, m, err := ParseClock(clock); err == nil {
		return fmt.Sprintf("%02d", m)
	}
	return "00"
}
