// Package schedule turns the human-entered interval and time-of-day strings of a
// reminder into concrete firing instants.
package schedule

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// StepKind distinguishes fixed day counts from calendar months.
type StepKind int

const (
	// FixedDays advances by a number of calendar days.
	FixedDays StepKind = iota
	// CalendarMonths advances by calendar months, clamping to the last day of shorter months.
	CalendarMonths
)

// DefaultStep is used whenever an interval cannot be parsed.
var DefaultStep = Step{Kind: FixedDays, Count: 7}

// Upper bounds on a single step. Larger counts are treated as unparseable.
const (
	MaxStepDays   = 10000
	MaxStepMonths = 1200
)

// Step is a resolved recurrence cadence. Count is always positive.
type Step struct {
	Kind  StepKind
	Count int
}

var intervalRegex = regexp.MustCompile(`(?i)^\s*(\d+)\s*(day|days|week|weeks|month|months)\s*$`)

// ParseInterval resolves phrases like "2 weeks" or "3 months". It never fails:
// anything it does not understand, including a zero count or a count beyond
// MaxStepDays / MaxStepMonths, yields DefaultStep.
func ParseInterval(text string) Step {
	matches := intervalRegex.FindStringSubmatch(strings.TrimSpace(text))
	if len(matches) < 3 {
		return DefaultStep
	}

	n, err := strconv.Atoi(matches[1])
	if err != nil || n <= 0 {
		return DefaultStep
	}

	unit := strings.ToLower(matches[2])
	switch {
	case strings.HasPrefix(unit, "day"):
		if n > MaxStepDays {
			return DefaultStep
		}
		return Step{Kind: FixedDays, Count: n}
	case strings.HasPrefix(unit, "week"):
		if n > MaxStepDays/7 {
			return DefaultStep
		}
		return Step{Kind: FixedDays, Count: 7 * n}
	default:
		if n > MaxStepMonths {
			return DefaultStep
		}
		return Step{Kind: CalendarMonths, Count: n}
	}
}

// Advance returns anchor moved forward by k steps.
func (s Step) Advance(anchor time.Time, k int) time.Time {
	if s.Kind == CalendarMonths {
		return addMonths(anchor, s.Count*k)
	}
	return anchor.AddDate(0, 0, s.Count*k)
}

// addMonths adds n calendar months keeping the day of month where possible and
// clamping to the last day of the target month otherwise (Jan 31 + 1 month = Feb 28/29).
// Advance always counts from the anchor, so a monthly series never sticks on a
// clamped day: Jan 31, Feb 29, Mar 31.
func addMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
