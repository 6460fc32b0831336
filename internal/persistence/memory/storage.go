// Package memory provides an in-process implementation of the persistence
// repositories with the same constraint semantics as the SQLite store.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/mentorbook/internal/persistence"
)

// slotHolding mirrors the partial unique index of the SQLite schema.
var slotHolding = map[string]bool{"pending": true, "approved": true, "completed": true}

// Storage is a map-backed persistence layer guarded by a single RWMutex.
type Storage struct {
	mu         sync.RWMutex
	users      map[string]persistence.User
	rules      map[string]persistence.AvailabilityRule
	sessions   map[string]persistence.Session
	feedback   map[string]persistence.Feedback
	activities []persistence.Activity
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		users:    make(map[string]persistence.User),
		rules:    make(map[string]persistence.AvailabilityRule),
		sessions: make(map[string]persistence.Session),
		feedback: make(map[string]persistence.Feedback),
	}
}

// --- UserRepository implementation ---

// CreateUser stores a new user.
func (s *Storage) CreateUser(_ context.Context, user persistence.User) error {
	if user.ID == "" || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("%w: user %s already exists", persistence.ErrDuplicate, user.ID)
	}
	user.Email = normalizeEmail(user.Email)
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return fmt.Errorf("%w: email %s already exists", persistence.ErrDuplicate, user.Email)
		}
	}

	s.users[user.ID] = user
	return nil
}

// GetUser retrieves a user by ID.
func (s *Storage) GetUser(_ context.Context, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address.
func (s *Storage) GetUserByEmail(_ context.Context, email string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	normalized := normalizeEmail(email)
	for _, user := range s.users {
		if user.Email == normalized {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

// ListUsersByRole returns users holding role ordered by display name then ID.
func (s *Storage) ListUsersByRole(_ context.Context, role string) ([]persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []persistence.User
	for _, user := range s.users {
		if user.Role == role {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].DisplayName == users[j].DisplayName {
			return users[i].ID < users[j].ID
		}
		return users[i].DisplayName < users[j].DisplayName
	})
	return users, nil
}

// --- AvailabilityRepository implementation ---

// CreateRuleChecked stores a rule after check approves the mentor's current rules.
func (s *Storage) CreateRuleChecked(_ context.Context, rule persistence.AvailabilityRule, check persistence.RuleCheck) error {
	if rule.ID == "" || rule.MentorID == "" {
		return persistence.ErrConstraintViolation
	}
	if rule.StartTime >= rule.EndTime {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[rule.MentorID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	if _, ok := s.rules[rule.ID]; ok {
		return persistence.ErrDuplicate
	}
	if check != nil {
		if err := check(s.rulesForMentorLocked(rule.MentorID)); err != nil {
			return err
		}
	}

	s.rules[rule.ID] = rule
	return nil
}

// GetRule retrieves a rule by ID.
func (s *Storage) GetRule(_ context.Context, id string) (persistence.AvailabilityRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[id]
	if !ok {
		return persistence.AvailabilityRule{}, persistence.ErrNotFound
	}
	return rule, nil
}

// ListRules returns the mentor's rules ordered by creation time.
func (s *Storage) ListRules(_ context.Context, mentorID string) ([]persistence.AvailabilityRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rulesForMentorLocked(mentorID), nil
}

// DeleteRule removes a rule by ID.
func (s *Storage) DeleteRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

// Snapshot reads the mentor's rules and sessions under one read lock.
func (s *Storage) Snapshot(_ context.Context, mentorID, dateFrom, dateTo string) (persistence.AvailabilitySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filter := persistence.SessionFilter{MentorID: mentorID, DateFrom: dateFrom, DateTo: dateTo}
	var sessions []persistence.Session
	for _, session := range s.sessions {
		if matchesSessionFilter(session, filter) {
			sessions = append(sessions, cloneSession(session))
		}
	}
	sortSessions(sessions)
	return persistence.AvailabilitySnapshot{Rules: s.rulesForMentorLocked(mentorID), Sessions: sessions}, nil
}

func (s *Storage) rulesForMentorLocked(mentorID string) []persistence.AvailabilityRule {
	var rules []persistence.AvailabilityRule
	for _, rule := range s.rules {
		if rule.MentorID == mentorID {
			rules = append(rules, rule)
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].ID < rules[j].ID
		}
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})
	return rules
}

// --- SessionRepository implementation ---

// CreateSessionChecked stores a session after check approves the slot.
func (s *Storage) CreateSessionChecked(_ context.Context, session persistence.Session, check persistence.SlotCheck) error {
	if session.ID == "" || session.MentorID == "" || session.MenteeID == "" || session.MentorID == session.MenteeID {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[session.MentorID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	if _, ok := s.users[session.MenteeID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	if _, ok := s.sessions[session.ID]; ok {
		return persistence.ErrDuplicate
	}

	var sameDay []persistence.Session
	for _, existing := range s.sessions {
		if existing.MentorID == session.MentorID && existing.Date == session.Date {
			sameDay = append(sameDay, cloneSession(existing))
		}
	}
	sortSessions(sameDay)

	if check != nil {
		if err := check(s.rulesForMentorLocked(session.MentorID), sameDay); err != nil {
			return err
		}
	}

	if slotHolding[session.Status] {
		for _, existing := range sameDay {
			if existing.Time == session.Time && slotHolding[existing.Status] {
				return fmt.Errorf("%w: slot %s %s already held", persistence.ErrDuplicate, session.Date, session.Time)
			}
		}
	}

	s.sessions[session.ID] = cloneSession(session)
	return nil
}

// GetSession retrieves a session by ID.
func (s *Storage) GetSession(_ context.Context, id string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

// ListSessions returns sessions matching filter ordered by date and time.
func (s *Storage) ListSessions(_ context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []persistence.Session
	for _, session := range s.sessions {
		if matchesSessionFilter(session, filter) {
			sessions = append(sessions, cloneSession(session))
		}
	}
	sortSessions(sessions)
	return sessions, nil
}

// TransitionSession applies a guarded status change.
func (s *Storage) TransitionSession(_ context.Context, id, from, to string, meetingLink *string, updatedAt time.Time) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	if session.Status != from {
		return persistence.Session{}, persistence.ErrStaleState
	}

	session.Status = to
	if meetingLink != nil {
		link := *meetingLink
		session.MeetingLink = &link
	}
	session.UpdatedAt = updatedAt
	s.sessions[id] = session
	return cloneSession(session), nil
}

// --- FeedbackRepository implementation ---

// CreateFeedback stores a feedback record, unique per session and giver.
func (s *Storage) CreateFeedback(_ context.Context, feedback persistence.Feedback) error {
	if feedback.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if feedback.Rating < 1 || feedback.Rating > 5 {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[feedback.SessionID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	for _, existing := range s.feedback {
		if existing.SessionID == feedback.SessionID && existing.FromID == feedback.FromID {
			return persistence.ErrDuplicate
		}
	}
	if _, ok := s.feedback[feedback.ID]; ok {
		return persistence.ErrDuplicate
	}

	s.feedback[feedback.ID] = cloneFeedback(feedback)
	return nil
}

// GetFeedbackBySessionAndGiver returns the record fromID left on sessionID.
func (s *Storage) GetFeedbackBySessionAndGiver(_ context.Context, sessionID, fromID string) (persistence.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, feedback := range s.feedback {
		if feedback.SessionID == sessionID && feedback.FromID == fromID {
			return cloneFeedback(feedback), nil
		}
	}
	return persistence.Feedback{}, persistence.ErrNotFound
}

// ListFeedbackForSession returns all feedback left on a session.
func (s *Storage) ListFeedbackForSession(_ context.Context, sessionID string) ([]persistence.Feedback, error) {
	return s.listFeedback(func(f persistence.Feedback) bool { return f.SessionID == sessionID }, false), nil
}

// ListFeedbackReceived returns feedback addressed to toID, newest first.
func (s *Storage) ListFeedbackReceived(_ context.Context, toID string) ([]persistence.Feedback, error) {
	return s.listFeedback(func(f persistence.Feedback) bool { return f.ToID == toID }, true), nil
}

func (s *Storage) listFeedback(match func(persistence.Feedback) bool, newestFirst bool) []persistence.Feedback {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []persistence.Feedback
	for _, feedback := range s.feedback {
		if match(feedback) {
			records = append(records, cloneFeedback(feedback))
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		if newestFirst {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records
}

// --- ActivityRepository implementation ---

// CreateActivity appends a feed entry.
func (s *Storage) CreateActivity(_ context.Context, activity persistence.Activity) error {
	if activity.ID == "" || activity.UserID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.activities = append(s.activities, cloneActivity(activity))
	return nil
}

// ListActivities returns up to limit entries for userID, newest first.
func (s *Storage) ListActivities(_ context.Context, userID string, limit int) ([]persistence.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var activities []persistence.Activity
	for _, activity := range s.activities {
		if activity.UserID == userID {
			activities = append(activities, cloneActivity(activity))
		}
	}
	sort.SliceStable(activities, func(i, j int) bool {
		if activities[i].CreatedAt.Equal(activities[j].CreatedAt) {
			return activities[i].ID > activities[j].ID
		}
		return activities[i].CreatedAt.After(activities[j].CreatedAt)
	})
	if limit > 0 && len(activities) > limit {
		activities = activities[:limit]
	}
	return activities, nil
}

// --- Helpers ---

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copy := *value
	return &copy
}

func cloneSession(session persistence.Session) persistence.Session {
	session.Notes = cloneString(session.Notes)
	session.MeetingLink = cloneString(session.MeetingLink)
	return session
}

func cloneFeedback(feedback persistence.Feedback) persistence.Feedback {
	feedback.Comment = cloneString(feedback.Comment)
	return feedback
}

func cloneActivity(activity persistence.Activity) persistence.Activity {
	activity.RelatedUserID = cloneString(activity.RelatedUserID)
	activity.SessionID = cloneString(activity.SessionID)
	return activity
}

func sortSessions(sessions []persistence.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func matchesSessionFilter(session persistence.Session, filter persistence.SessionFilter) bool {
	if filter.MentorID != "" && session.MentorID != filter.MentorID {
		return false
	}
	if filter.MenteeID != "" && session.MenteeID != filter.MenteeID {
		return false
	}
	if filter.ParticipantID != "" && session.MentorID != filter.ParticipantID && session.MenteeID != filter.ParticipantID {
		return false
	}
	if filter.Date != "" && session.Date != filter.Date {
		return false
	}
	if filter.DateFrom != "" && session.Date < filter.DateFrom {
		return false
	}
	if filter.DateTo != "" && session.Date > filter.DateTo {
		return false
	}
	if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, session.Status) {
		return false
	}
	return true
}
