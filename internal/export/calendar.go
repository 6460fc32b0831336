// Package export renders a user's sessions as an iCalendar feed or a spreadsheet.
package export

import (
	"fmt"
	"io"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/example/mentorbook/internal/application"
	"github.com/example/mentorbook/internal/availability"
)

// SessionLength is the fixed duration of one booked slot.
const SessionLength = 30 * time.Minute

// floatingLayout carries no zone: session times are naive local wall clock.
const floatingLayout = "20060102T150405"

// NameLookup resolves a user ID to a display name.
type NameLookup func(userID string) string

// WriteCalendar writes the approved sessions as a VCALENDAR. Sessions in any
// other status are skipped.
func WriteCalendar(w io.Writer, sessions []application.Session, names NameLookup, generatedAt time.Time) error {
	if names == nil {
		names = func(id string) string { return id }
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//mentorbook//sessions//EN")
	cal.SetName("Mentorbook sessions")

	for _, session := range sessions {
		if session.Status != application.StatusApproved {
			continue
		}
		start, err := sessionStart(session)
		if err != nil {
			return err
		}

		event := cal.AddEvent(session.ID + "@mentorbook")
		event.SetDtStampTime(generatedAt.UTC())
		event.SetProperty(ics.ComponentPropertyDtStart, start.Format(floatingLayout))
		event.SetProperty(ics.ComponentPropertyDtEnd, start.Add(SessionLength).Format(floatingLayout))
		event.SetSummary(fmt.Sprintf("%s: %s with %s", session.Topic, names(session.MentorID), names(session.MenteeID)))
		event.SetStatus(ics.ObjectStatusConfirmed)
		if session.Notes != "" {
			event.SetDescription(session.Notes)
		}
		if session.MeetingLink != "" {
			event.SetURL(session.MeetingLink)
			event.SetLocation(session.MeetingLink)
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}

func sessionStart(session application.Session) (time.Time, error) {
	date, err := availability.ParseDate(session.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("session %s: %w", session.ID, err)
	}
	clock, err := availability.ParseClock(session.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("session %s: %w", session.ID, err)
	}
	return date.Add(time.Duration(clock) * time.Minute), nil
}
