package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// ActivityRepository captures the persistence interactions for feed entries.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity Activity) error
	ListActivities(ctx context.Context, userID string, limit int) ([]Activity, error)
}

// ActivityPublisher fans out a recorded activity to live subscribers.
type ActivityPublisher interface {
	PublishActivity(ctx context.Context, activity Activity) error
}

// ActivityRecorder is the fire-and-forget sink used by the lifecycle services.
type ActivityRecorder interface {
	Record(ctx context.Context, input ActivityInput)
}

// ActivityService stores feed entries and lists them for their owner.
type ActivityService struct {
	activities  ActivityRepository
	publisher   ActivityPublisher
	idGenerator func() string
	now         func() time.Time
	logger      *zap.Logger
}

// NewActivityService constructs an ActivityService. publisher may be nil.
func NewActivityService(activities ActivityRepository, publisher ActivityPublisher, idGenerator func() string, now func() time.Time) *ActivityService {
	return NewActivityServiceWithLogger(activities, publisher, idGenerator, now, nil)
}

// NewActivityServiceWithLogger constructs an ActivityService with a specified logger.
func NewActivityServiceWithLogger(activities ActivityRepository, publisher ActivityPublisher, idGenerator func() string, now func() time.Time, logger *zap.Logger) *ActivityService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ActivityService{
		activities:  activities,
		publisher:   publisher,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *ActivityService) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.logger, "ActivityService", operation, fields...)
}

// Record persists an activity and publishes it when a publisher is configured.
// Failures are logged and never reach the caller.
func (s *ActivityService) Record(ctx context.Context, input ActivityInput) {
	if s == nil || s.activities == nil {
		return
	}
	logger := s.loggerWith(ctx, "Record",
		zap.String("user_id", input.UserID),
		zap.String("activity_type", string(input.Type)),
	)
	if strings.TrimSpace(input.UserID) == "" {
		logger.Warn("activity dropped", zap.String("reason", "missing user"))
		return
	}

	activity := Activity{
		ID:            s.idGenerator(),
		UserID:        input.UserID,
		Type:          input.Type,
		Content:       input.Content,
		RelatedUserID: input.RelatedUserID,
		SessionID:     input.SessionID,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.activities.CreateActivity(ctx, activity); err != nil {
		logger.Error("activity not recorded", zap.Error(err), zap.String("error_kind", ErrorKind(mapRepoError(err, nil))))
		return
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishActivity(ctx, activity); err != nil {
		logger.Warn("activity not published", zap.Error(err))
	}
}

// List returns the principal's feed, newest first. A non-positive limit uses
// the default page size; larger limits are capped.
func (s *ActivityService) List(ctx context.Context, principal Principal, limit int) (activities []Activity, err error) {
	if s == nil {
		return nil, fmt.Errorf("ActivityService is nil")
	}
	if principal.UserID == "" {
		return nil, ErrUnauthenticated
	}
	switch {
	case limit <= 0:
		limit = defaultActivityLimit
	case limit > maxActivityLimit:
		limit = maxActivityLimit
	}

	logger := s.loggerWith(ctx, "List", zap.String("principal_id", principal.UserID), zap.Int("limit", limit))
	defer func() {
		logOutcome(logger, err, "list activities", zap.Int("count", len(activities)))
	}()

	if s.activities == nil {
		return nil, nil
	}
	activities, err = s.activities.ListActivities(ctx, principal.UserID, limit)
	if err != nil {
		return nil, mapRepoError(err, nil)
	}
	return activities, nil
}
