package availability

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Weekday is the canonical day-of-week used throughout the booking domain.
// Numbering matches time.Weekday and common calendar grids: Sunday=0 through Saturday=6.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// ErrInvalidWeekday indicates a weekday name that could not be normalized.
var ErrInvalidWeekday = errors.New("availability: invalid weekday")

var weekdayNames = [...]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// ParseWeekday normalizes a weekday name. Matching is case-insensitive and
// accepts full names as well as three letter abbreviations ("Mon", "TUE").
func ParseWeekday(value string) (Weekday, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return 0, ErrInvalidWeekday
	}
	for i, name := range weekdayNames {
		if normalized == name || (len(normalized) == 3 && strings.HasPrefix(name, normalized)) {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, value)
}

// WeekdayOf reports the canonical weekday of a calendar date.
func WeekdayOf(date time.Time) Weekday {
	return Weekday(date.Weekday())
}

// Valid reports whether d is one of the seven canonical days.
func (d Weekday) Valid() bool {
	return d >= Sunday && d <= Saturday
}

// String returns the lowercase storage name of the weekday.
func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// Title returns the capitalized display name, e.g. "Monday".
func (d Weekday) Title() string {
	if !d.Valid() {
		return d.String()
	}
	return time.Weekday(d).String()
}
