package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const maxCommentLength = 2000

// FeedbackRepository captures the persistence interactions for feedback.
type FeedbackRepository interface {
	CreateFeedback(ctx context.Context, feedback Feedback) error
	FindFeedback(ctx context.Context, sessionID, fromID string) (Feedback, error)
	ListFeedbackReceived(ctx context.Context, userID string) ([]Feedback, error)
}

// SessionReader exposes single session lookups.
type SessionReader interface {
	GetSession(ctx context.Context, id string) (Session, error)
}

// FeedbackService decides feedback eligibility and records ratings.
type FeedbackService struct {
	feedback    FeedbackRepository
	sessions    SessionReader
	users       UserDirectory
	activities  ActivityRecorder
	idGenerator func() string
	now         func() time.Time
	logger      *zap.Logger
}

// NewFeedbackService wires dependencies for feedback operations.
func NewFeedbackService(feedback FeedbackRepository, sessions SessionReader, users UserDirectory, activities ActivityRecorder, idGenerator func() string, now func() time.Time) *FeedbackService {
	return NewFeedbackServiceWithLogger(feedback, sessions, users, activities, idGenerator, now, nil)
}

// NewFeedbackServiceWithLogger wires dependencies with a specified logger.
func NewFeedbackServiceWithLogger(feedback FeedbackRepository, sessions SessionReader, users UserDirectory, activities ActivityRecorder, idGenerator func() string, now func() time.Time, logger *zap.Logger) *FeedbackService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &FeedbackService{
		feedback:    feedback,
		sessions:    sessions,
		users:       users,
		activities:  activities,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *FeedbackService) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.logger, "FeedbackService", operation, fields...)
}

// CanSubmitFeedback reports whether the principal may still rate the session:
// it must be completed, the principal must take part in it, and no earlier
// feedback from the principal may exist.
func (s *FeedbackService) CanSubmitFeedback(ctx context.Context, principal Principal, sessionID string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("FeedbackService is nil")
	}
	if s.sessions == nil || s.feedback == nil {
		return false, fmt.Errorf("feedback dependencies not configured")
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return false, mapRepoError(err, nil)
	}
	if session.Status != StatusCompleted || !session.IsParticipant(principal.UserID) {
		return false, nil
	}
	exists, err := s.hasFeedback(ctx, session.ID, principal.UserID)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// SubmitFeedback records the principal's rating of the other participant.
// Failures are checked in order: ErrNotFound, ErrForbidden,
// ErrInvalidTransition, validation, then ErrAlreadyExists.
func (s *FeedbackService) SubmitFeedback(ctx context.Context, params SubmitFeedbackParams) (feedback Feedback, err error) {
	if s == nil {
		return Feedback{}, fmt.Errorf("FeedbackService is nil")
	}
	if s.sessions == nil || s.feedback == nil {
		return Feedback{}, fmt.Errorf("feedback dependencies not configured")
	}

	principal := params.Principal
	logger := s.loggerWith(ctx, "SubmitFeedback",
		zap.String("principal_id", principal.UserID),
		zap.String("session_id", params.SessionID),
		zap.Int("rating", params.Rating),
	)
	defer func() {
		logOutcome(logger, err, "submit feedback", zap.String("feedback_id", feedback.ID))
	}()

	session, err := s.sessions.GetSession(ctx, params.SessionID)
	if err != nil {
		return Feedback{}, mapRepoError(err, nil)
	}
	if !session.IsParticipant(principal.UserID) {
		return Feedback{}, ErrForbidden
	}
	if session.Status != StatusCompleted {
		return Feedback{}, ErrInvalidTransition
	}

	comment := strings.TrimSpace(params.Comment)
	vErr := &ValidationError{}
	if strings.TrimSpace(params.ToID) != session.Counterpart(principal.UserID) {
		vErr.add("to_id", "must be the other participant of the session")
	}
	if params.Rating < 1 || params.Rating > 5 {
		vErr.add("rating", "must be between 1 and 5")
	}
	if utf8.RuneCountInString(comment) > maxCommentLength {
		vErr.add("comment", fmt.Sprintf("must be at most %d characters", maxCommentLength))
	}
	if vErr.HasErrors() {
		return Feedback{}, vErr
	}

	exists, err := s.hasFeedback(ctx, session.ID, principal.UserID)
	if err != nil {
		return Feedback{}, err
	}
	if exists {
		return Feedback{}, ErrAlreadyExists
	}

	feedback = Feedback{
		ID:        s.idGenerator(),
		SessionID: session.ID,
		FromID:    principal.UserID,
		ToID:      session.Counterpart(principal.UserID),
		Rating:    params.Rating,
		Comment:   comment,
		CreatedAt: s.now().UTC(),
	}
	if err = s.feedback.CreateFeedback(ctx, feedback); err != nil {
		return Feedback{}, mapRepoError(err, ErrAlreadyExists)
	}

	s.notify(ctx, feedback)
	return feedback, nil
}

func (s *FeedbackService) hasFeedback(ctx context.Context, sessionID, fromID string) (bool, error) {
	_, err := s.feedback.FindFeedback(ctx, sessionID, fromID)
	switch mapped := mapRepoError(err, nil); {
	case err == nil:
		return true, nil
	case errors.Is(mapped, ErrNotFound):
		return false, nil
	default:
		return false, mapped
	}
}

func (s *FeedbackService) notify(ctx context.Context, feedback Feedback) {
	if s.activities == nil {
		return
	}
	giver, receiver := User{ID: feedback.FromID}, User{ID: feedback.ToID}
	if s.users != nil {
		if user, err := s.users.GetUser(ctx, feedback.FromID); err == nil {
			giver = user
		}
		if user, err := s.users.GetUser(ctx, feedback.ToID); err == nil {
			receiver = user
		}
	}
	s.activities.Record(ctx, ActivityInput{
		UserID:        feedback.FromID,
		Type:          ActivityFeedbackGiven,
		Content:       fmt.Sprintf("You rated your session with %s %d/5", displayName(receiver), feedback.Rating),
		RelatedUserID: feedback.ToID,
		SessionID:     feedback.SessionID,
	})
	s.activities.Record(ctx, ActivityInput{
		UserID:        feedback.ToID,
		Type:          ActivityFeedbackReceived,
		Content:       fmt.Sprintf("%s rated your session %d/5", displayName(giver), feedback.Rating),
		RelatedUserID: feedback.FromID,
		SessionID:     feedback.SessionID,
	})
}

// ListFeedbackReceived returns the feedback addressed to a user with its summary.
func (s *FeedbackService) ListFeedbackReceived(ctx context.Context, userID string) ([]Feedback, RatingSummary, error) {
	if s == nil {
		return nil, RatingSummary{}, fmt.Errorf("FeedbackService is nil")
	}
	if s.feedback == nil {
		return nil, RatingSummary{}, nil
	}
	if s.users != nil {
		if _, err := s.users.GetUser(ctx, userID); err != nil {
			return nil, RatingSummary{}, mapRepoError(err, nil)
		}
	}
	records, err := s.feedback.ListFeedbackReceived(ctx, userID)
	if err != nil {
		return nil, RatingSummary{}, mapRepoError(err, nil)
	}
	return records, summarizeRatings(records), nil
}

func summarizeRatings(records []Feedback) RatingSummary {
	if len(records) == 0 {
		return RatingSummary{}
	}
	total := 0
	for _, record := range records {
		total += record.Rating
	}
	return RatingSummary{Count: len(records), Average: float64(total) / float64(len(records))}
}
