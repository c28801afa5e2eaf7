package schedule

import (
	"strconv"
	"strings"
	"time"
)

const (
	defaultHour   = 9
	defaultMinute = 0
)

// ParseTimeOfDay reads "HH:MM". Values without a colon or with non-numeric parts
// fall back to 09:00; numeric values outside the valid range are clamped.
func ParseTimeOfDay(s string) (hour, minute int) {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultHour, defaultMinute
	}
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return defaultHour, defaultMinute
	}

	h, err := strconv.Atoi(strings.TrimSpace(hh))
	if err != nil {
		return defaultHour, defaultMinute
	}
	m, err := strconv.Atoi(strings.TrimSpace(mm))
	if err != nil {
		return defaultHour, defaultMinute
	}
	return clamp(h, 0, 23), clamp(m, 0, 59)
}

// NextRun computes the first instant strictly after now at which a reminder fires.
//
// The candidate starts at start's calendar date (now's date when start is nil)
// combined with the time of day, in now's location, and is advanced by whole
// interval steps until it passes now. The result is therefore always the anchor
// plus an integer multiple of the step.
func NextRun(intervalText, timeOfDay string, start *time.Time, now time.Time) time.Time {
	loc := now.Location()
	year, month, day := now.Date()
	if start != nil {
		// start is a calendar date; its own location is irrelevant.
		year, month, day = start.Date()
	}

	hour, minute := ParseTimeOfDay(timeOfDay)
	anchor := time.Date(year, month, day, hour, minute, 0, 0, loc)

	step := ParseInterval(intervalText)
	if step.Count <= 0 {
		step = DefaultStep
	}

	if next, ok := rollForward(step, anchor, now); ok {
		return next
	}
	next, _ := rollForward(DefaultStep, anchor, now)
	return next
}

// rollForward advances anchor by whole steps until it passes now. It reports
// false if a step fails to move the candidate forward.
func rollForward(step Step, anchor, now time.Time) (time.Time, bool) {
	k := firstStepGuess(step, anchor, now)
	candidate := step.Advance(anchor, k)
	for !candidate.After(now) {
		k++
		next := step.Advance(anchor, k)
		if !next.After(candidate) {
			return time.Time{}, false
		}
		candidate = next
	}
	return candidate, true
}

// firstStepGuess skips ahead over steps that are certainly in the past so an old
// anchor with a short interval does not loop once per elapsed step. It never
// overshoots the answer.
func firstStepGuess(step Step, anchor, now time.Time) int {
	if step.Count <= 0 || !now.After(anchor) {
		return 0
	}
	var approx int
	switch step.Kind {
	case CalendarMonths:
		approx = ((now.Year()-anchor.Year())*12 + int(now.Month()) - int(anchor.Month())) / step.Count
	default:
		approx = int(now.Sub(anchor).Hours()/24) / step.Count
	}
	// Leave headroom for DST shifts and month clamping.
	if approx -= 2; approx < 0 {
		approx = 0
	}
	return approx
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DateOf strips the clock from t, keeping its calendar date in t's location,
// and returns it as midnight UTC for storage as a start date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
