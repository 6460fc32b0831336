package persistence

import (
	"context"
	"time"
)

// UserRepository exposes operations for user accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsersByRole(ctx context.Context, role string) ([]User, error)
}

// RuleCheck inspects the mentor's current rules inside the write transaction
// and returns an error to abort the insert.
type RuleCheck func(existing []AvailabilityRule) error

// AvailabilitySnapshot holds a mentor's rules and the sessions booked with the
// mentor in a date range, read at one point in time.
type AvailabilitySnapshot struct {
	Rules    []AvailabilityRule
	Sessions []Session
}

// AvailabilityRepository stores availability rules. Rules are never updated in place.
// Snapshot reads rules and sessions dated within [dateFrom, dateTo] together
// so a concurrent booking is seen by both or by neither.
type AvailabilityRepository interface {
	CreateRuleChecked(ctx context.Context, rule AvailabilityRule, check RuleCheck) error
	GetRule(ctx context.Context, id string) (AvailabilityRule, error)
	ListRules(ctx context.Context, mentorID string) ([]AvailabilityRule, error)
	DeleteRule(ctx context.Context, id string) error
	Snapshot(ctx context.Context, mentorID, dateFrom, dateTo string) (AvailabilitySnapshot, error)
}

// SlotCheck inspects the mentor's rules and the sessions already booked on the
// same date inside the write transaction and returns an error to abort the insert.
type SlotCheck func(rules []AvailabilityRule, sameDay []Session) error

// SessionFilter narrows session queries. Empty fields match everything.
type SessionFilter struct {
	MentorID      string
	MenteeID      string
	ParticipantID string
	Date          string
	DateFrom      string
	DateTo        string
	Statuses      []string
}

// SessionRepository stores sessions. Status changes only go through
// TransitionSession, which writes iff the stored status still equals from.
type SessionRepository interface {
	CreateSessionChecked(ctx context.Context, session Session, check SlotCheck) error
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
	TransitionSession(ctx context.Context, id, from, to string, meetingLink *string, updatedAt time.Time) (Session, error)
}

// FeedbackRepository stores feedback records, unique per (session, giver).
type FeedbackRepository interface {
	CreateFeedback(ctx context.Context, feedback Feedback) error
	GetFeedbackBySessionAndGiver(ctx context.Context, sessionID, fromID string) (Feedback, error)
	ListFeedbackForSession(ctx context.Context, sessionID string) ([]Feedback, error)
	ListFeedbackReceived(ctx context.Context, toID string) ([]Feedback, error)
}

// ActivityRepository stores feed entries.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity Activity) error
	ListActivities(ctx context.Context, userID string, limit int) ([]Activity, error)
}
