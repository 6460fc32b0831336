package availability

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the naive calendar date format exchanged with clients and stored verbatim.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidClock indicates a malformed "HH:MM" value.
	ErrInvalidClock = errors.New("availability: invalid time of day")
	// ErrInvalidDate indicates a malformed "YYYY-MM-DD" value.
	ErrInvalidDate = errors.New("availability: invalid date")
)

// ClockTime is a naive local time of day expressed in minutes after midnight.
type ClockTime int

// ParseClock parses a 24-hour "HH:MM" value. Single digit hours ("9:30") are
// accepted; output is always zero padded.
func ParseClock(value string) (ClockTime, error) {
	hourPart, minutePart, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok || len(hourPart) < 1 || len(hourPart) > 2 || len(minutePart) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	hour, hourOK := digits(hourPart)
	minute, minuteOK := digits(minutePart)
	if !hourOK || !minuteOK || hour > 23 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	return ClockTime(hour*60 + minute), nil
}

func digits(s string) (int, bool) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// MustClock is ParseClock for literals; it panics on malformed input.
func MustClock(value string) ClockTime {
	c, err := ParseClock(value)
	if err != nil {
		panic(err)
	}
	return c
}

// String formats the clock time as zero padded "HH:MM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// ParseDate parses a "YYYY-MM-DD" calendar date. The result carries no time zone
// semantics; it is anchored at UTC midnight purely for calendar arithmetic.
func ParseDate(value string) (time.Time, error) {
	date, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return date, nil
}

// FormatDate renders a date in DateLayout.
func FormatDate(date time.Time) string {
	return date.Format(DateLayout)
}
