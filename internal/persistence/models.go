package persistence

import "time"

// User represents a mentor or mentee account.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	Role         string
	Bio          string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AvailabilityRule is a mentor's weekly recurring window. Weekday holds the
// lowercase day name exactly as written to storage.
type AvailabilityRule struct {
	ID        string
	MentorID  string
	Weekday   string
	StartTime string
	EndTime   string
	CreatedAt time.Time
}

// Session is a booking between a mentor and a mentee.
type Session struct {
	ID          string
	MentorID    string
	MenteeID    string
	Topic       string
	Date        string
	Time        string
	Status      string
	Notes       *string
	MeetingLink *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Feedback is one participant's rating of a completed session.
type Feedback struct {
	ID        string
	SessionID string
	FromID    string
	ToID      string
	Rating    int
	Comment   *string
	CreatedAt time.Time
}

// Activity is a feed entry addressed to a single user.
type Activity struct {
	ID            string
	UserID        string
	Type          string
	Content       string
	RelatedUserID *string
	SessionID     *string
	CreatedAt     time.Time
}
