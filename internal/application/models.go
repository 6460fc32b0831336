package application

import (
	"strings"
	"time"

	"github.com/example/mentorbook/internal/availability"
)

// Role identifies which side of a mentorship a user takes.
type Role string

const (
	RoleMentor Role = "mentor"
	RoleMentee Role = "mentee"
)

// ParseRole normalizes a role name, reporting false for unknown roles.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleMentor:
		return RoleMentor, true
	case RoleMentee:
		return RoleMentee, true
	}
	return "", false
}

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Role   Role
}

// User represents a mentor or mentee account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	Bio         string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// RegisterUserParams captures the data required to create an account.
type RegisterUserParams struct {
	Email       string
	DisplayName string
	Role        string
	Bio         string
	Password    string
}

// RatingSummary aggregates the feedback a user has received.
type RatingSummary struct {
	Count   int
	Average float64
}

// MentorSummary pairs a mentor with their rating for discovery listings.
type MentorSummary struct {
	User   User
	Rating RatingSummary
}

// AvailabilityRule is a mentor's recurring weekly window.
type AvailabilityRule struct {
	ID        string
	MentorID  string
	Weekday   availability.Weekday
	Start     availability.ClockTime
	End       availability.ClockTime
	CreatedAt time.Time
}

// Rule converts the record into the resolver's input shape.
func (r AvailabilityRule) Rule() availability.Rule {
	return availability.Rule{ID: r.ID, MentorID: r.MentorID, Weekday: r.Weekday, Start: r.Start, End: r.End}
}

// CreateRuleParams wraps the data required to declare a weekly window.
type CreateRuleParams struct {
	Principal Principal
	Weekday   string
	Start     string
	End       string
}

// DateAvailability lists the open slot start times of one mentor on one date.
type DateAvailability struct {
	MentorID string
	Date     string
	Times    []string
}

// MonthAvailability lists the days of a month with at least one open slot.
// DaysInMonth and FirstWeekday describe the calendar grid for presentation.
type MonthAvailability struct {
	MentorID     string
	Year         int
	Month        time.Month
	Days         []int
	DaysInMonth  int
	FirstWeekday availability.Weekday
}

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusApproved  SessionStatus = "approved"
	StatusCompleted SessionStatus = "completed"
	StatusCanceled  SessionStatus = "canceled"
	StatusRejected  SessionStatus = "rejected"
)

// ParseSessionStatus normalizes a status name, reporting false for unknown values.
func ParseSessionStatus(raw string) (SessionStatus, bool) {
	status := SessionStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case StatusPending, StatusApproved, StatusCompleted, StatusCanceled, StatusRejected:
		return status, true
	}
	return "", false
}

// HoldsSlot reports whether a session in this status occupies its slot.
func (s SessionStatus) HoldsSlot() bool {
	return s == StatusPending || s == StatusApproved || s == StatusCompleted
}

// Terminal reports whether no further transition is possible.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled || s == StatusRejected
}

// Session is a booking between one mentor and one mentee at a naive local date and time.
type Session struct {
	ID          string
	MentorID    string
	MenteeID    string
	Topic       string
	Date        string
	Time        string
	Status      SessionStatus
	Notes       string
	MeetingLink string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsParticipant reports whether userID is the mentor or the mentee.
func (s Session) IsParticipant(userID string) bool {
	return userID != "" && (userID == s.MentorID || userID == s.MenteeID)
}

// Counterpart returns the other participant relative to userID.
func (s Session) Counterpart(userID string) string {
	switch userID {
	case s.MentorID:
		return s.MenteeID
	case s.MenteeID:
		return s.MentorID
	}
	return ""
}

// Booking converts the session into the resolver's input shape.
func (s Session) Booking() availability.Booking {
	return availability.Booking{ID: s.ID, MentorID: s.MentorID, Date: s.Date, Time: s.Time, HoldsSlot: s.Status.HoldsSlot()}
}

// SessionFilter narrows session queries issued to the repository. Empty fields
// do not constrain the result.
type SessionFilter struct {
	MentorID      string
	MenteeID      string
	ParticipantID string
	Date          string
	DateFrom      string
	DateTo        string
	Statuses      []SessionStatus
}

// CreateSessionParams wraps the data required to request a session.
type CreateSessionParams struct {
	Principal Principal
	MentorID  string
	Topic     string
	Date      string
	Time      string
	Notes     string
}

// ListSessionsParams wraps the data required to list the principal's sessions.
// Role restricts results to sessions where the principal takes that role.
type ListSessionsParams struct {
	Principal Principal
	Statuses  []SessionStatus
	Role      Role
}

// Action names a lifecycle transition.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// ParseAction normalizes an action name, reporting false for unknown values.
func ParseAction(raw string) (Action, bool) {
	action := Action(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := transitions[action]; ok {
		return action, true
	}
	return "", false
}

// TransitionCommand asks for one lifecycle step on a session.
type TransitionCommand struct {
	Principal Principal
	SessionID string
	Action    Action
}

// Feedback is one participant's rating of a completed session.
type Feedback struct {
	ID        string
	SessionID string
	FromID    string
	ToID      string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// SubmitFeedbackParams wraps the data required to rate a session.
type SubmitFeedbackParams struct {
	Principal Principal
	SessionID string
	ToID      string
	Rating    int
	Comment   string
}

// ActivityType classifies feed entries.
type ActivityType string

const (
	ActivitySessionRequested ActivityType = "session_requested"
	ActivitySessionApproved  ActivityType = "session_approved"
	ActivitySessionRejected  ActivityType = "session_rejected"
	ActivitySessionCompleted ActivityType = "session_completed"
	ActivitySessionCanceled  ActivityType = "session_canceled"
	ActivityFeedbackGiven    ActivityType = "feedback_given"
	ActivityFeedbackReceived ActivityType = "feedback_received"
)

// Activity is a feed entry addressed to one user.
type Activity struct {
	ID            string
	UserID        string
	Type          ActivityType
	Content       string
	RelatedUserID string
	SessionID     string
	CreatedAt     time.Time
}

// ActivityInput carries the caller supplied parts of an activity.
type ActivityInput struct {
	UserID        string
	Type          ActivityType
	Content       string
	RelatedUserID string
	SessionID     string
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User      User
	Token     string
	ExpiresAt time.Time
}

// IssuedToken is a signed access token handed to a client.
type IssuedToken struct {
	ID        string
	Value     string
	ExpiresAt time.Time
}

// TokenClaims are the verified contents of an access token.
type TokenClaims struct {
	ID        string
	UserID    string
	Role      Role
	ExpiresAt time.Time
}
