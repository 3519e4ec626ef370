// Package schedule normalizes and validates publish times, and holds the
// arithmetic behind the date and time pickers.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// MinuteMultiple is the granularity of the minute picker.
	MinuteMultiple = 5
	// MinLead is the platform's 15 minute lead plus a margin for filling
	// the form.
	MinLead = 20 * time.Minute
	// MaxHorizon is how far ahead a post can be scheduled.
	MaxHorizon = 10 * 24 * time.Hour
)

// ErrOutOfRange means a publish time is too soon or too far ahead.
var ErrOutOfRange = errors.New("schedule out of range")

// Normalize converts t to UTC, drops seconds, and rounds the minute forward
// to the next multiple of MinuteMultiple. Times already on a multiple keep
// their minute.
func Normalize(t time.Time) time.Time {
	t = t.UTC().Truncate(time.Minute)
	if rem := t.Minute() % MinuteMultiple; rem != 0 {
		t = t.Add(time.Duration(MinuteMultiple-rem) * time.Minute)
	}
	return t
}

// Validate checks that t falls within [now+MinLead, now+MaxHorizon].
func Validate(t, now time.Time) error {
	earliest := now.Add(MinLead)
	latest := now.Add(MaxHorizon)
	if t.Before(earliest) {
		return fmt.Errorf("%w: %s is earlier than %s", ErrOutOfRange, t.Format(time.RFC3339), earliest.Format(time.RFC3339))
	}
	if t.After(latest) {
		return fmt.Errorf("%w: %s is later than %s", ErrOutOfRange, t.Format(time.RFC3339), latest.Format(time.RFC3339))
	}
	return nil
}

// ParseMonth reads a calendar title such as "March" or "March 2025".
func ParseMonth(title string) (time.Month, error) {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty month title")
	}
	for _, layout := range []string{"January", "Jan"} {
		if m, err := time.Parse(layout, fields[0]); err == nil {
			return m.Month(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized month %q", title)
}

// MonthSteps returns how many pages the calendar must move to get from
// current to target. Positive is forward. The calendar only spans a few
// weeks, so the shorter way round the year is taken.
func MonthSteps(current, target time.Month) int {
	d := int(target) - int(current)
	if d > 6 {
		d -= 12
	} else if d < -6 {
		d += 12
	}
	return d
}

// MinuteOptionIndex maps a minute to its picker option.
func MinuteOptionIndex(minute int) int {
	return minute / MinuteMultiple
}

// ParsePickedDate reads the date picker's "YYYY-MM-DD" value.
func ParsePickedDate(s string) (time.Month, int, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return 0, 0, fmt.Errorf("unexpected date %q", s)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("unexpected date %q: %w", s, err)
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, fmt.Errorf("unexpected date %q: %w", s, err)
	}
	return time.Month(month), day, nil
}

// ParsePickedTime reads the time picker's "HH:MM" value.
func ParsePickedTime(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("unexpected time %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("unexpected time %q: %w", s, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("unexpected time %q: %w", s, err)
	}
	return hour, minute, nil
}

// Parse reads a publish time given on the command line or in a manifest:
// RFC3339, or "2006-01-02 15:04" in loc.
func Parse(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule %q: want RFC3339 or \"YYYY-MM-DD HH:MM\"", s)
	}
	return t, nil
}
