package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/mentorbook/internal/application"
	"github.com/example/mentorbook/internal/persistence"
)

var (
	userCounter    uint64
	ruleCounter    uint64
	sessionCounter uint64
)

// referenceTime is a Monday; 2024-01-01 through 2024-01-07 span Monday to Sunday.
var referenceTime = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// TestPassword is the plaintext behind every fixture password hash.
const TestPassword = "fixture-password"

// FastArgon2idParams keeps password hashing cheap in tests.
var FastArgon2idParams = application.Argon2idParams{
	Memory:      8 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// FastHash hashes with FastArgon2idParams.
func FastHash(password string) (string, error) {
	return application.CreatePasswordHash(password, FastArgon2idParams)
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic mentor or mentee account.
type UserFixture struct {
	ID          string
	Email       string
	DisplayName string
	Role        application.Role
	Bio         string
	Password    string
	CreatedAt   time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic mentee fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	fixture := UserFixture{
		ID:          id,
		Email:       fmt.Sprintf("%s@example.com", id),
		DisplayName: fmt.Sprintf("User %03d", idx),
		Role:        application.RoleMentee,
		Password:    TestPassword,
		CreatedAt:   referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// NewMentorFixture is NewUserFixture with the mentor role.
func NewMentorFixture(opts ...UserOption) UserFixture {
	return NewUserFixture(append([]UserOption{WithUserRole(application.RoleMentor)}, opts...)...)
}

func WithUserID(id string) UserOption {
	return func(f *UserFixture) { f.ID = id }
}

func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) { f.Email = email }
}

func WithUserDisplayName(name string) UserOption {
	return func(f *UserFixture) { f.DisplayName = name }
}

func WithUserRole(role application.Role) UserOption {
	return func(f *UserFixture) { f.Role = role }
}

func WithUserBio(bio string) UserOption {
	return func(f *UserFixture) { f.Bio = bio }
}

func WithUserPassword(password string) UserOption {
	return func(f *UserFixture) { f.Password = password }
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		Role:        f.Role,
		Bio:         f.Bio,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.CreatedAt,
	}
}

// Principal returns an application.Principal derived from the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, Role: f.Role}
}

// Persistence returns the fixture as a persistence.User, hashing Password
// with FastArgon2idParams.
func (f UserFixture) Persistence() (persistence.User, error) {
	hash, err := FastHash(f.Password)
	if err != nil {
		return persistence.User{}, err
	}
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		Role:         string(f.Role),
		Bio:          f.Bio,
		PasswordHash: hash,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.CreatedAt,
	}, nil
}

// ----------------------------- Rule fixtures -----------------------------

// RuleFixture represents a weekly availability window.
type RuleFixture struct {
	ID        string
	MentorID  string
	Weekday   string
	StartTime string
	EndTime   string
	CreatedAt time.Time
}

type RuleOption func(*RuleFixture)

// NewRuleFixture returns a Monday 09:00 to 10:00 rule for mentorID.
func NewRuleFixture(mentorID string, opts ...RuleOption) RuleFixture {
	idx := atomic.AddUint64(&ruleCounter, 1)
	fixture := RuleFixture{
		ID:        fmt.Sprintf("rule-%03d", idx),
		MentorID:  mentorID,
		Weekday:   "monday",
		StartTime: "09:00",
		EndTime:   "10:00",
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithRuleID(id string) RuleOption {
	return func(f *RuleFixture) { f.ID = id }
}

// WithRuleWindow sets the weekday and the half-open time window.
func WithRuleWindow(weekday, start, end string) RuleOption {
	return func(f *RuleFixture) {
		f.Weekday = weekday
		f.StartTime = start
		f.EndTime = end
	}
}

// Persistence returns the fixture as a persistence.AvailabilityRule value.
func (f RuleFixture) Persistence() persistence.AvailabilityRule {
	return persistence.AvailabilityRule{
		ID:        f.ID,
		MentorID:  f.MentorID,
		Weekday:   f.Weekday,
		StartTime: f.StartTime,
		EndTime:   f.EndTime,
		CreatedAt: f.CreatedAt,
	}
}

// ----------------------------- Session fixtures --------------------------

// SessionFixture represents a deterministic booking.
type SessionFixture struct {
	ID          string
	MentorID    string
	MenteeID    string
	Topic       string
	Date        string
	Time        string
	Status      application.SessionStatus
	Notes       string
	MeetingLink string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type SessionOption func(*SessionFixture)

// NewSessionFixture returns a pending Monday 2024-01-01 09:00 booking.
func NewSessionFixture(mentorID, menteeID string, opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:        fmt.Sprintf("session-%03d", idx),
		MentorID:  mentorID,
		MenteeID:  menteeID,
		Topic:     fmt.Sprintf("Topic %03d", idx),
		Date:      "2024-01-01",
		Time:      "09:00",
		Status:    application.StatusPending,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) { f.ID = id }
}

func WithSessionSlot(date, clock string) SessionOption {
	return func(f *SessionFixture) {
		f.Date = date
		f.Time = clock
	}
}

func WithSessionStatus(status application.SessionStatus) SessionOption {
	return func(f *SessionFixture) { f.Status = status }
}

func WithSessionMeetingLink(link string) SessionOption {
	return func(f *SessionFixture) { f.MeetingLink = link }
}

func WithSessionNotes(notes string) SessionOption {
	return func(f *SessionFixture) { f.Notes = notes }
}

// Application returns the fixture as an application.Session value.
func (f SessionFixture) Application() application.Session {
	return application.Session{
		ID:          f.ID,
		MentorID:    f.MentorID,
		MenteeID:    f.MenteeID,
		Topic:       f.Topic,
		Date:        f.Date,
		Time:        f.Time,
		Status:      f.Status,
		Notes:       f.Notes,
		MeetingLink: f.MeetingLink,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:          f.ID,
		MentorID:    f.MentorID,
		MenteeID:    f.MenteeID,
		Topic:       f.Topic,
		Date:        f.Date,
		Time:        f.Time,
		Status:      string(f.Status),
		Notes:       optionalString(f.Notes),
		MeetingLink: optionalString(f.MeetingLink),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
