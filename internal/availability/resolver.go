// Package availability turns mentor-declared weekly availability into concrete
// bookable slots.
//
// The resolver is pure: callers pass a snapshot of availability rules and
// existing bookings and receive slot start times. Nothing here touches storage,
// so results are safe to compute concurrently for different mentors or dates.
package availability

import (
	"sort"
	"time"
)

// SlotWidth is the fixed length of a bookable slot.
const SlotWidth = 30 * time.Minute

const slotMinutes = ClockTime(SlotWidth / time.Minute)

// Rule is a recurring weekly window during which a mentor accepts bookings.
type Rule struct {
	ID       string
	MentorID string
	Weekday  Weekday
	Start    ClockTime
	End      ClockTime
}

// Booking is the slot-relevant projection of a session record.
type Booking struct {
	ID        string
	MentorID  string
	Date      string
	Time      string
	HoldsSlot bool
}

// ExpandSlots slices [start, end) into SlotWidth steps. A slot is produced only
// when its start lies strictly before end, so an empty or inverted window
// produces nothing.
func ExpandSlots(start, end ClockTime) []ClockTime {
	if end <= start {
		return nil
	}
	slots := make([]ClockTime, 0, int((end-start)/slotMinutes)+1)
	for current := start; current < end; current += slotMinutes {
		slots = append(slots, current)
	}
	return slots
}

// IntervalsForDate returns the ascending "HH:MM" start times still bookable with
// mentorID on date. Slots held by a booking on the same date are excluded.
func IntervalsForDate(rules []Rule, bookings []Booking, mentorID string, date time.Time) []string {
	weekday := WeekdayOf(date)

	candidates := make(map[ClockTime]struct{})
	for _, rule := range rules {
		if rule.MentorID != mentorID || rule.Weekday != weekday {
			continue
		}
		for _, slot := range ExpandSlots(rule.Start, rule.End) {
			candidates[slot] = struct{}{}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	booked := BookedTimes(bookings, mentorID, FormatDate(date))

	open := make([]ClockTime, 0, len(candidates))
	for slot := range candidates {
		if _, taken := booked[slot.String()]; taken {
			continue
		}
		open = append(open, slot)
	}
	if len(open) == 0 {
		return nil
	}
	sort.Slice(open, func(i, j int) bool { return open[i] < open[j] })

	result := make([]string, len(open))
	for i, slot := range open {
		result[i] = slot.String()
	}
	return result
}

// BookedTimes collects the times held by bookings for mentorID on date.
func BookedTimes(bookings []Booking, mentorID, date string) map[string]struct{} {
	booked := make(map[string]struct{})
	for _, booking := range bookings {
		if !booking.HoldsSlot || booking.MentorID != mentorID || booking.Date != date {
			continue
		}
		booked[booking.Time] = struct{}{}
	}
	return booked
}

// DaysForMonth returns the days of month that still offer at least one slot.
func DaysForMonth(rules []Rule, bookings []Booking, mentorID string, year int, month time.Month) []int {
	var active [7]bool
	hasRules := false
	for _, rule := range rules {
		if rule.MentorID == mentorID && rule.Weekday.Valid() && rule.Start < rule.End {
			active[rule.Weekday] = true
			hasRules = true
		}
	}
	if !hasRules {
		return nil
	}

	grid := MonthGrid(year, month)
	days := make([]int, 0, grid.Days)
	for day := 1; day <= grid.Days; day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		if !active[WeekdayOf(date)] {
			continue
		}
		if len(IntervalsForDate(rules, bookings, mentorID, date)) > 0 {
			days = append(days, day)
		}
	}
	if len(days) == 0 {
		return nil
	}
	return days
}

// Grid describes the calendar layout of a month.
type Grid struct {
	Year  int
	Month time.Month
	// Days is the number of days in the month (28-31).
	Days int
	// FirstWeekday is the weekday of day 1, i.e. the number of leading blank
	// cells in a Sunday-first grid.
	FirstWeekday Weekday
}

// MonthGrid computes the layout of the given month.
func MonthGrid(year int, month time.Month) Grid {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return Grid{
		Year:         first.Year(),
		Month:        first.Month(),
		Days:         last.Day(),
		FirstWeekday: WeekdayOf(first),
	}
}
