// Package adapters converts between the persistence records and the
// application models so services can run on any persistence backend.
package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/mentorbook/internal/application"
	"github.com/example/mentorbook/internal/availability"
	"github.com/example/mentorbook/internal/persistence"
	"github.com/example/mentorbook/internal/persistence/memory"
	"github.com/example/mentorbook/internal/persistence/sqlite"
)

// Repositories bundles one backend's persistence repositories.
type Repositories struct {
	Users        persistence.UserRepository
	Availability persistence.AvailabilityRepository
	Sessions     persistence.SessionRepository
	Feedback     persistence.FeedbackRepository
	Activities   persistence.ActivityRepository
}

// FromMemory exposes an in-memory storage as Repositories.
func FromMemory(storage *memory.Storage) Repositories {
	return Repositories{
		Users:        storage,
		Availability: storage,
		Sessions:     storage,
		Feedback:     storage,
		Activities:   storage,
	}
}

// FromSQLite exposes an opened SQLite store as Repositories.
func FromSQLite(store *sqlite.Store) Repositories {
	return Repositories{
		Users:        store.Users,
		Availability: store.Availability,
		Sessions:     store.Sessions,
		Feedback:     store.Feedback,
		Activities:   store.Activities,
	}
}

// Set holds the application-facing view of Repositories.
type Set struct {
	Users        *UserRepository
	Availability *AvailabilityRepository
	Sessions     *SessionRepository
	Feedback     *FeedbackRepository
	Activities   *ActivityRepository
}

// New wraps every repository of repos.
func New(repos Repositories) Set {
	return Set{
		Users:        &UserRepository{repo: repos.Users},
		Availability: &AvailabilityRepository{repo: repos.Availability},
		Sessions:     &SessionRepository{repo: repos.Sessions},
		Feedback:     &FeedbackRepository{repo: repos.Feedback},
		Activities:   &ActivityRepository{repo: repos.Activities},
	}
}

// UserRepository implements application.UserRepository and application.CredentialStore.
type UserRepository struct {
	repo persistence.UserRepository
}

func (a *UserRepository) CreateUser(ctx context.Context, user application.User, passwordHash string) error {
	return a.repo.CreateUser(ctx, toPersistenceUser(user, passwordHash))
}

func (a *UserRepository) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *UserRepository) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

func (a *UserRepository) ListUsersByRole(ctx context.Context, role application.Role) ([]application.User, error) {
	models, err := a.repo.ListUsersByRole(ctx, string(role))
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

// AvailabilityRepository implements application.AvailabilityRepository.
type AvailabilityRepository struct {
	repo persistence.AvailabilityRepository
}

func (a *AvailabilityRepository) CreateRule(ctx context.Context, rule application.AvailabilityRule, check func([]application.AvailabilityRule) error) error {
	var guard persistence.RuleCheck
	if check != nil {
		guard = func(existing []persistence.AvailabilityRule) error {
			rules, err := toApplicationRules(existing)
			if err != nil {
				return err
			}
			return check(rules)
		}
	}
	return a.repo.CreateRuleChecked(ctx, toPersistenceRule(rule), guard)
}

func (a *AvailabilityRepository) GetRule(ctx context.Context, id string) (application.AvailabilityRule, error) {
	stored, err := a.repo.GetRule(ctx, id)
	if err != nil {
		return application.AvailabilityRule{}, err
	}
	return toApplicationRule(stored)
}

func (a *AvailabilityRepository) ListRules(ctx context.Context, mentorID string) ([]application.AvailabilityRule, error) {
	models, err := a.repo.ListRules(ctx, mentorID)
	if err != nil {
		return nil, err
	}
	return toApplicationRules(models)
}

func (a *AvailabilityRepository) DeleteRule(ctx context.Context, id string) error {
	return a.repo.DeleteRule(ctx, id)
}

// Snapshot converts one consistent read of rules and sessions.
func (a *AvailabilityRepository) Snapshot(ctx context.Context, mentorID, dateFrom, dateTo string) (application.AvailabilitySnapshot, error) {
	stored, err := a.repo.Snapshot(ctx, mentorID, dateFrom, dateTo)
	if err != nil {
		return application.AvailabilitySnapshot{}, err
	}
	rules, err := toApplicationRules(stored.Rules)
	if err != nil {
		return application.AvailabilitySnapshot{}, err
	}
	return application.AvailabilitySnapshot{Rules: rules, Sessions: toApplicationSessions(stored.Sessions)}, nil
}

// SessionRepository implements application.SessionRepository.
type SessionRepository struct {
	repo persistence.SessionRepository
}

func (a *SessionRepository) CreateSession(ctx context.Context, session application.Session, check application.SlotCheck) error {
	var guard persistence.SlotCheck
	if check != nil {
		guard = func(rules []persistence.AvailabilityRule, sameDay []persistence.Session) error {
			converted, err := toApplicationRules(rules)
			if err != nil {
				return err
			}
			return check(converted, toApplicationSessions(sameDay))
		}
	}
	return a.repo.CreateSessionChecked(ctx, toPersistenceSession(session), guard)
}

func (a *SessionRepository) GetSession(ctx context.Context, id string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *SessionRepository) ListSessions(ctx context.Context, filter application.SessionFilter) ([]application.Session, error) {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, status := range filter.Statuses {
		statuses = append(statuses, string(status))
	}
	models, err := a.repo.ListSessions(ctx, persistence.SessionFilter{
		MentorID:      filter.MentorID,
		MenteeID:      filter.MenteeID,
		ParticipantID: filter.ParticipantID,
		Date:          filter.Date,
		DateFrom:      filter.DateFrom,
		DateTo:        filter.DateTo,
		Statuses:      statuses,
	})
	if err != nil {
		return nil, err
	}
	return toApplicationSessions(models), nil
}

// TransitionSession keeps the stored link when meetingLink is empty.
func (a *SessionRepository) TransitionSession(ctx context.Context, id string, from, to application.SessionStatus, meetingLink string, at time.Time) (application.Session, error) {
	var link *string
	if meetingLink != "" {
		link = &meetingLink
	}
	stored, err := a.repo.TransitionSession(ctx, id, string(from), string(to), link, at)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

// FeedbackRepository implements application.FeedbackRepository.
type FeedbackRepository struct {
	repo persistence.FeedbackRepository
}

func (a *FeedbackRepository) CreateFeedback(ctx context.Context, feedback application.Feedback) error {
	return a.repo.CreateFeedback(ctx, toPersistenceFeedback(feedback))
}

func (a *FeedbackRepository) FindFeedback(ctx context.Context, sessionID, fromID string) (application.Feedback, error) {
	stored, err := a.repo.GetFeedbackBySessionAndGiver(ctx, sessionID, fromID)
	if err != nil {
		return application.Feedback{}, err
	}
	return toApplicationFeedback(stored), nil
}

func (a *FeedbackRepository) ListFeedbackReceived(ctx context.Context, userID string) ([]application.Feedback, error) {
	models, err := a.repo.ListFeedbackReceived(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	records := make([]application.Feedback, 0, len(models))
	for _, model := range models {
		records = append(records, toApplicationFeedback(model))
	}
	return records, nil
}

// ActivityRepository implements application.ActivityRepository.
type ActivityRepository struct {
	repo persistence.ActivityRepository
}

func (a *ActivityRepository) CreateActivity(ctx context.Context, activity application.Activity) error {
	return a.repo.CreateActivity(ctx, persistence.Activity{
		ID:            activity.ID,
		UserID:        activity.UserID,
		Type:          string(activity.Type),
		Content:       activity.Content,
		RelatedUserID: optionalString(activity.RelatedUserID),
		SessionID:     optionalString(activity.SessionID),
		CreatedAt:     activity.CreatedAt,
	})
}

func (a *ActivityRepository) ListActivities(ctx context.Context, userID string, limit int) ([]application.Activity, error) {
	models, err := a.repo.ListActivities(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	activities := make([]application.Activity, 0, len(models))
	for _, model := range models {
		activities = append(activities, application.Activity{
			ID:            model.ID,
			UserID:        model.UserID,
			Type:          application.ActivityType(model.Type),
			Content:       model.Content,
			RelatedUserID: derefString(model.RelatedUserID),
			SessionID:     derefString(model.SessionID),
			CreatedAt:     model.CreatedAt,
		})
	}
	return activities, nil
}

func toApplicationUser(model persistence.User) application.User {
	role, _ := application.ParseRole(model.Role)
	return application.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		Role:        role,
		Bio:         model.Bio,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		Role:         string(user.Role),
		Bio:          user.Bio,
		PasswordHash: passwordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toPersistenceRule(rule application.AvailabilityRule) persistence.AvailabilityRule {
	return persistence.AvailabilityRule{
		ID:        rule.ID,
		MentorID:  rule.MentorID,
		Weekday:   rule.Weekday.String(),
		StartTime: rule.Start.String(),
		EndTime:   rule.End.String(),
		CreatedAt: rule.CreatedAt,
	}
}

// toApplicationRule fails only on rows that bypassed the service validation.
func toApplicationRule(model persistence.AvailabilityRule) (application.AvailabilityRule, error) {
	weekday, err := availability.ParseWeekday(model.Weekday)
	if err != nil {
		return application.AvailabilityRule{}, fmt.Errorf("rule %s: %w", model.ID, err)
	}
	start, err := availability.ParseClock(model.StartTime)
	if err != nil {
		return application.AvailabilityRule{}, fmt.Errorf("rule %s: %w", model.ID, err)
	}
	end, err := availability.ParseClock(model.EndTime)
	if err != nil {
		return application.AvailabilityRule{}, fmt.Errorf("rule %s: %w", model.ID, err)
	}
	return application.AvailabilityRule{
		ID:        model.ID,
		MentorID:  model.MentorID,
		Weekday:   weekday,
		Start:     start,
		End:       end,
		CreatedAt: model.CreatedAt,
	}, nil
}

func toApplicationRules(models []persistence.AvailabilityRule) ([]application.AvailabilityRule, error) {
	if len(models) == 0 {
		return nil, nil
	}
	rules := make([]application.AvailabilityRule, 0, len(models))
	for _, model := range models {
		rule, err := toApplicationRule(model)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:          model.ID,
		MentorID:    model.MentorID,
		MenteeID:    model.MenteeID,
		Topic:       model.Topic,
		Date:        model.Date,
		Time:        model.Time,
		Status:      application.SessionStatus(model.Status),
		Notes:       derefString(model.Notes),
		MeetingLink: derefString(model.MeetingLink),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toApplicationSessions(models []persistence.Session) []application.Session {
	if len(models) == 0 {
		return nil
	}
	sessions := make([]application.Session, 0, len(models))
	for _, model := range models {
		sessions = append(sessions, toApplicationSession(model))
	}
	return sessions
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:          session.ID,
		MentorID:    session.MentorID,
		MenteeID:    session.MenteeID,
		Topic:       session.Topic,
		Date:        session.Date,
		Time:        session.Time,
		Status:      string(session.Status),
		Notes:       optionalString(session.Notes),
		MeetingLink: optionalString(session.MeetingLink),
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
	}
}

func toApplicationFeedback(model persistence.Feedback) application.Feedback {
	return application.Feedback{
		ID:        model.ID,
		SessionID: model.SessionID,
		FromID:    model.FromID,
		ToID:      model.ToID,
		Rating:    model.Rating,
		Comment:   derefString(model.Comment),
		CreatedAt: model.CreatedAt,
	}
}

func toPersistenceFeedback(feedback application.Feedback) persistence.Feedback {
	return persistence.Feedback{
		ID:        feedback.ID,
		SessionID: feedback.SessionID,
		FromID:    feedback.FromID,
		ToID:      feedback.ToID,
		Rating:    feedback.Rating,
		Comment:   optionalString(feedback.Comment),
		CreatedAt: feedback.CreatedAt,
	}
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	clone := value
	return &clone
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
