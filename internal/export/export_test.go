package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"

	"github.com/example/mentorbook/internal/application"
)

var generatedAt = time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC)

func names(id string) string {
	return map[string]string{"mentor-1": "Mina", "mentee-1": "Ren"}[id]
}

func sampleSessions() []application.Session {
	return []application.Session{
		{ID: "s-1", MentorID: "mentor-1", MenteeID: "mentee-1", Topic: "Go review", Date: "2024-05-06", Time: "09:30", Status: application.StatusApproved, MeetingLink: "https://meet.example/abc"},
		{ID: "s-2", MentorID: "mentor-1", MenteeID: "mentee-1", Topic: "Career", Date: "2024-05-07", Time: "10:00", Status: application.StatusPending},
		{ID: "s-3", MentorID: "mentor-1", MenteeID: "mentee-1", Topic: "Retro", Date: "2024-05-08", Time: "11:00", Status: application.StatusCanceled, Notes: "moved"},
	}
}

func TestWriteCalendarIncludesApprovedSessionsOnly(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCalendar(&buf, sampleSessions(), names, generatedAt); err != nil {
		t.Fatalf("WriteCalendar failed: %v", err)
	}

	cal, err := ics.ParseCalendar(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("ParseCalendar failed: %v", err)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	event := events[0]
	if event.Id() != "s-1@mentorbook" {
		t.Fatalf("unexpected UID %q", event.Id())
	}
	if got := event.GetProperty(ics.ComponentPropertyDtStart).Value; got != "20240506T093000" {
		t.Fatalf("expected floating start, got %q", got)
	}
	if got := event.GetProperty(ics.ComponentPropertyDtEnd).Value; got != "20240506T100000" {
		t.Fatalf("expected 30 minute event, got %q", got)
	}
	if got := event.GetProperty(ics.ComponentPropertyUrl).Value; got != "https://meet.example/abc" {
		t.Fatalf("unexpected URL %q", got)
	}
	if got := event.GetProperty(ics.ComponentPropertySummary).Value; !strings.Contains(got, "Mina") || !strings.Contains(got, "Ren") {
		t.Fatalf("expected participant names in summary, got %q", got)
	}
}

func TestWriteCalendarRejectsMalformedSession(t *testing.T) {
	bad := []application.Session{{ID: "s-x", Status: application.StatusApproved, Date: "2024-13-01", Time: "09:00"}}
	if err := WriteCalendar(&bytes.Buffer{}, bad, nil, generatedAt); err == nil {
		t.Fatalf("expected error for malformed date")
	}
}

func TestWriteHistory(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHistory(&buf, sampleSessions(), names); err != nil {
		t.Fatalf("WriteHistory failed: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(historySheet)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "Date" || rows[0][6] != "Meeting link" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if rows[1][3] != "Mina" || rows[1][4] != "Ren" || rows[1][6] != "https://meet.example/abc" {
		t.Fatalf("unexpected first row %v", rows[1])
	}
	if rows[3][2] != "canceled" || rows[3][7] != "moved" {
		t.Fatalf("unexpected last row %v", rows[3])
	}
}
