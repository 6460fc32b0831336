package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/mentorbook/internal/persistence"
)

var referenceTime = time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC)

// storeStub is an in-memory stand-in for every repository the services use.
// It returns persistence sentinels so the services' error mapping is exercised.
type storeStub struct {
	mu         sync.Mutex
	users      map[string]User
	hashes     map[string]string
	rules      map[string]AvailabilityRule
	sessions   map[string]Session
	feedback   map[string]Feedback
	activities []Activity

	err          error
	activityErr  error
	transitionFn func(id string, from, to SessionStatus) error
	snapshotHook func()
}

func newStoreStub() *storeStub {
	return &storeStub{
		users:    make(map[string]User),
		hashes:   make(map[string]string),
		rules:    make(map[string]AvailabilityRule),
		sessions: make(map[string]Session),
		feedback: make(map[string]Feedback),
	}
}

func (s *storeStub) addUser(id string, role Role, name string) User {
	user := User{ID: id, Email: id + "@example.com", DisplayName: name, Role: role, CreatedAt: referenceTime, UpdatedAt: referenceTime}
	s.mu.Lock()
	s.users[id] = user
	s.mu.Unlock()
	return user
}

func (s *storeStub) addSession(session Session) Session {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = referenceTime
		session.UpdatedAt = referenceTime
	}
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return session
}

func (s *storeStub) CreateUser(_ context.Context, user User, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return persistence.ErrDuplicate
		}
	}
	s.users[user.ID] = user
	s.hashes[user.ID] = passwordHash
	return nil
}

func (s *storeStub) GetUser(_ context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return User{}, s.err
	}
	user, ok := s.users[id]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (s *storeStub) GetUserCredentialsByEmail(_ context.Context, email string) (UserCredentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return UserCredentials{}, s.err
	}
	for id, user := range s.users {
		if user.Email == email {
			return UserCredentials{User: user, PasswordHash: s.hashes[id]}, nil
		}
	}
	return UserCredentials{}, persistence.ErrNotFound
}

func (s *storeStub) ListUsersByRole(_ context.Context, role Role) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []User
	for _, user := range s.users {
		if user.Role == role {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *storeStub) CreateRule(_ context.Context, rule AvailabilityRule, check func([]AvailabilityRule) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if check != nil {
		if err := check(s.rulesForLocked(rule.MentorID)); err != nil {
			return err
		}
	}
	s.rules[rule.ID] = rule
	return nil
}

func (s *storeStub) GetRule(_ context.Context, id string) (AvailabilityRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[id]
	if !ok {
		return AvailabilityRule{}, persistence.ErrNotFound
	}
	return rule, nil
}

func (s *storeStub) ListRules(_ context.Context, mentorID string) ([]AvailabilityRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.rulesForLocked(mentorID), nil
}

// Snapshot runs snapshotHook after reading, so the hook can model a write that
// lands between the read and the caller's use of it.
func (s *storeStub) Snapshot(ctx context.Context, mentorID, dateFrom, dateTo string) (AvailabilitySnapshot, error) {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return AvailabilitySnapshot{}, s.err
	}
	rules := s.rulesForLocked(mentorID)
	s.mu.Unlock()

	sessions, err := s.ListSessions(ctx, SessionFilter{MentorID: mentorID, DateFrom: dateFrom, DateTo: dateTo})
	if err != nil {
		return AvailabilitySnapshot{}, err
	}
	if s.snapshotHook != nil {
		s.snapshotHook()
	}
	return AvailabilitySnapshot{Rules: rules, Sessions: sessions}, nil
}

func (s *storeStub) rulesForLocked(mentorID string) []AvailabilityRule {
	var out []AvailabilityRule
	for _, rule := range s.rules {
		if rule.MentorID == mentorID {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *storeStub) DeleteRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

func (s *storeStub) CreateSession(_ context.Context, session Session, check SlotCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if check != nil {
		var sameDay []Session
		for _, existing := range s.sessions {
			if existing.MentorID == session.MentorID && existing.Date == session.Date {
				sameDay = append(sameDay, existing)
			}
		}
		if err := check(s.rulesForLocked(session.MentorID), sameDay); err != nil {
			return err
		}
	}
	for _, existing := range s.sessions {
		if existing.Status.HoldsSlot() && existing.MentorID == session.MentorID && existing.Date == session.Date && existing.Time == session.Time {
			return persistence.ErrDuplicate
		}
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *storeStub) GetSession(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Session{}, s.err
	}
	session, ok := s.sessions[id]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	return session, nil
}

func (s *storeStub) ListSessions(_ context.Context, filter SessionFilter) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []Session
	for _, session := range s.sessions {
		if filter.MentorID != "" && session.MentorID != filter.MentorID {
			continue
		}
		if filter.MenteeID != "" && session.MenteeID != filter.MenteeID {
			continue
		}
		if filter.ParticipantID != "" && !session.IsParticipant(filter.ParticipantID) {
			continue
		}
		if filter.Date != "" && session.Date != filter.Date {
			continue
		}
		if filter.DateFrom != "" && session.Date < filter.DateFrom {
			continue
		}
		if filter.DateTo != "" && session.Date > filter.DateTo {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, session.Status) {
			continue
		}
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func containsStatus(statuses []SessionStatus, status SessionStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

func (s *storeStub) TransitionSession(_ context.Context, id string, from, to SessionStatus, meetingLink string, at time.Time) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transitionFn != nil {
		if err := s.transitionFn(id, from, to); err != nil {
			return Session{}, err
		}
	}
	session, ok := s.sessions[id]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	if session.Status != from {
		return Session{}, persistence.ErrStaleState
	}
	session.Status = to
	if meetingLink != "" {
		session.MeetingLink = meetingLink
	}
	session.UpdatedAt = at
	s.sessions[id] = session
	return session, nil
}

func (s *storeStub) CreateFeedback(_ context.Context, feedback Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := feedback.SessionID + "|" + feedback.FromID
	if _, exists := s.feedback[key]; exists {
		return persistence.ErrDuplicate
	}
	s.feedback[key] = feedback
	return nil
}

func (s *storeStub) FindFeedback(_ context.Context, sessionID, fromID string) (Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	feedback, ok := s.feedback[sessionID+"|"+fromID]
	if !ok {
		return Feedback{}, persistence.ErrNotFound
	}
	return feedback, nil
}

func (s *storeStub) ListFeedbackReceived(_ context.Context, userID string) ([]Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Feedback
	for _, feedback := range s.feedback {
		if feedback.ToID == userID {
			out = append(out, feedback)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *storeStub) CreateActivity(_ context.Context, activity Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activityErr != nil {
		return s.activityErr
	}
	s.activities = append(s.activities, activity)
	return nil
}

func (s *storeStub) ListActivities(_ context.Context, userID string, limit int) ([]Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Activity
	for i := len(s.activities) - 1; i >= 0; i-- {
		if s.activities[i].UserID == userID {
			out = append(out, s.activities[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *storeStub) activitiesFor(userID string) []Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Activity
	for _, activity := range s.activities {
		if activity.UserID == userID {
			out = append(out, activity)
		}
	}
	return out
}

type linkProviderStub struct {
	link  string
	err   error
	calls int
}

func (l *linkProviderStub) Next(context.Context) (string, error) {
	l.calls++
	return l.link, l.err
}

type invalidatorStub struct {
	mentors []string
}

func (i *invalidatorStub) InvalidateMentor(mentorID string) {
	i.mentors = append(i.mentors, mentorID)
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func fixedNow() time.Time { return referenceTime }

var errBoom = errors.New("boom")
