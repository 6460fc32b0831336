package scheduler

import (
	"testing"

	"github.com/example/mentorbook/internal/availability"
)

func rule(id string, weekday availability.Weekday, start, end string) availability.Rule {
	return availability.Rule{
		ID:       id,
		MentorID: "mentor-1",
		Weekday:  weekday,
		Start:    availability.MustClock(start),
		End:      availability.MustClock(end),
	}
}

func TestDetectConflictsFindsOverlaps(t *testing.T) {
	existing := []availability.Rule{
		rule("late", availability.Monday, "13:00", "15:00"),
		rule("early", availability.Monday, "09:00", "10:30"),
		rule("other-day", availability.Tuesday, "09:00", "17:00"),
	}
	conflicts := DetectConflicts(existing, rule("", availability.Monday, "10:00", "14:00"))
	if len(conflicts) != 2 {
		t.Fatalf("expected 2 conflicts, got %d", len(conflicts))
	}
	if conflicts[0].WithRuleID != "early" || conflicts[1].WithRuleID != "late" {
		t.Fatalf("unexpected conflict order: %+v", conflicts)
	}
	if conflicts[0].Type != ConflictTypeOverlap {
		t.Fatalf("unexpected conflict type %s", conflicts[0].Type)
	}
}

func TestDetectConflictsAllowsAdjacentWindows(t *testing.T) {
	existing := []availability.Rule{rule("morning", availability.Monday, "09:00", "10:00")}
	if conflicts := DetectConflicts(existing, rule("", availability.Monday, "10:00", "11:00")); len(conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %+v", conflicts)
	}
}

func TestDetectConflictsIgnoresOtherMentors(t *testing.T) {
	other := rule("other", availability.Monday, "09:00", "10:00")
	other.MentorID = "mentor-2"
	if conflicts := DetectConflicts([]availability.Rule{other}, rule("", availability.Monday, "09:00", "10:00")); len(conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %+v", conflicts)
	}
}

func TestFindSlotConflictAndSlotOffered(t *testing.T) {
	bookings := []availability.Booking{
		{ID: "s-1", MentorID: "mentor-1", Date: "2024-05-06", Time: "09:00", HoldsSlot: true},
		{ID: "s-2", MentorID: "mentor-1", Date: "2024-05-06", Time: "09:30", HoldsSlot: false},
		{ID: "s-3", MentorID: "mentor-2", Date: "2024-05-06", Time: "10:00", HoldsSlot: true},
	}
	conflict, taken := FindSlotConflict(bookings, "mentor-1", "2024-05-06", "09:00")
	if !taken {
		t.Fatalf("expected held slot to be taken")
	}
	want := Conflict{
		WithSessionID: "s-1",
		Type:          ConflictTypeSlotTaken,
		Date:          "2024-05-06",
		Weekday:       availability.Monday,
		Start:         availability.MustClock("09:00"),
		End:           availability.MustClock("09:30"),
	}
	if conflict != want {
		t.Fatalf("expected %+v, got %+v", want, conflict)
	}
	if _, taken := FindSlotConflict(bookings, "mentor-1", "2024-05-06", "09:30"); taken {
		t.Fatalf("expected released slot to be free")
	}
	if _, taken := FindSlotConflict(bookings, "mentor-1", "2024-05-06", "10:00"); taken {
		t.Fatalf("expected another mentor's booking not to conflict")
	}

	rules := []availability.Rule{rule("r", availability.Monday, "09:00", "10:00")}
	if !SlotOffered(rules, "mentor-1", "2024-05-06", "09:30") {
		t.Fatalf("expected 09:30 to be offered")
	}
	if SlotOffered(rules, "mentor-1", "2024-05-06", "10:00") {
		t.Fatalf("expected 10:00 not to be offered")
	}
	if SlotOffered(rules, "mentor-1", "not-a-date", "09:00") {
		t.Fatalf("expected malformed date not to be offered")
	}
}
