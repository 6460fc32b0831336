// Package scheduler detects collisions between availability windows and
// between bookings competing for the same slot.
package scheduler

import (
	"sort"
	"time"

	"github.com/example/mentorbook/internal/availability"
)

// ConflictType describes the type of conflict detected.
type ConflictType string

const (
	// ConflictTypeOverlap indicates two availability windows of one mentor share time on the same weekday.
	ConflictTypeOverlap ConflictType = "overlap"
	// ConflictTypeSlotTaken indicates a booking targets a slot already held by another session.
	ConflictTypeSlotTaken ConflictType = "slot_taken"
)

// Conflict details a colliding relation that callers can present to users.
// Overlaps name the rule; taken slots name the session and date holding them.
type Conflict struct {
	WithRuleID    string
	WithSessionID string
	Type          ConflictType
	Date          string
	Weekday       availability.Weekday
	Start         availability.ClockTime
	End           availability.ClockTime
}

// DetectConflicts identifies existing rules whose window overlaps the candidate.
// Windows are half-open, so adjacent rules (09:00-10:00 and 10:00-11:00) do not
// conflict. Results are ordered by start time.
func DetectConflicts(existing []availability.Rule, candidate availability.Rule) []Conflict {
	if candidate.Start >= candidate.End {
		return nil
	}
	var conflicts []Conflict
	for _, rule := range existing {
		if rule.ID != "" && rule.ID == candidate.ID {
			continue
		}
		if rule.MentorID != candidate.MentorID || rule.Weekday != candidate.Weekday {
			continue
		}
		if rule.Start < candidate.End && candidate.Start < rule.End {
			conflicts = append(conflicts, Conflict{
				WithRuleID: rule.ID,
				Type:       ConflictTypeOverlap,
				Weekday:    rule.Weekday,
				Start:      rule.Start,
				End:        rule.End,
			})
		}
	}
	sort.SliceStable(conflicts, func(i, j int) bool { return conflicts[i].Start < conflicts[j].Start })
	return conflicts
}

// FindSlotConflict returns the slot_taken conflict for the first slot-holding
// booking that occupies mentorID's slot at date and clock.
func FindSlotConflict(bookings []availability.Booking, mentorID, date, clock string) (Conflict, bool) {
	for _, booking := range bookings {
		if !booking.HoldsSlot || booking.MentorID != mentorID || booking.Date != date || booking.Time != clock {
			continue
		}
		conflict := Conflict{WithSessionID: booking.ID, Type: ConflictTypeSlotTaken, Date: date}
		if start, err := availability.ParseClock(clock); err == nil {
			conflict.Start = start
			conflict.End = start + availability.ClockTime(availability.SlotWidth/time.Minute)
		}
		if parsed, err := availability.ParseDate(date); err == nil {
			conflict.Weekday = availability.WeekdayOf(parsed)
		}
		return conflict, true
	}
	return Conflict{}, false
}

// SlotOffered reports whether any rule produces clock as a slot start on date,
// ignoring existing bookings.
func SlotOffered(rules []availability.Rule, mentorID string, date string, clock string) bool {
	parsed, err := availability.ParseDate(date)
	if err != nil {
		return false
	}
	for _, slot := range availability.IntervalsForDate(rules, nil, mentorID, parsed) {
		if slot == clock {
			return true
		}
	}
	return false
}
