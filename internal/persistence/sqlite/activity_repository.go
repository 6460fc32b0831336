package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/mentorbook/internal/persistence"
)

const activityColumns = `id, user_id, type, content, related_user_id, session_id, created_at`

// ActivityRepository implements persistence.ActivityRepository using SQLite
type ActivityRepository struct {
	pool *ConnectionPool
}

// NewActivityRepository creates a new SQLite activity repository
func NewActivityRepository(pool *ConnectionPool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// CreateActivity inserts a feed entry
func (r *ActivityRepository) CreateActivity(ctx context.Context, activity persistence.Activity) error {
	if activity.ID == "" || activity.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO activities (`+activityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		activity.ID,
		activity.UserID,
		activity.Type,
		activity.Content,
		nullString(activity.RelatedUserID),
		nullString(activity.SessionID),
		formatTimestamp(activity.CreatedAt),
	)
	return err
}

// ListActivities returns up to limit entries for userID, newest first
func (r *ActivityRepository) ListActivities(ctx context.Context, userID string, limit int) ([]persistence.Activity, error) {
	if limit <= 0 {
		limit = -1
	}
	var activities []persistence.Activity
	err := r.pool.QueryRows(ctx, func(rows *sql.Rows) error {
		var (
			activity                 persistence.Activity
			relatedUserID, sessionID sql.NullString
			createdAtStr             string
		)
		if err := rows.Scan(&activity.ID, &activity.UserID, &activity.Type, &activity.Content, &relatedUserID, &sessionID, &createdAtStr); err != nil {
			return err
		}
		activity.RelatedUserID = stringPtr(relatedUserID)
		activity.SessionID = stringPtr(sessionID)
		createdAt, err := parseTimestamp(createdAtStr)
		if err != nil {
			return err
		}
		activity.CreatedAt = createdAt
		activities = append(activities, activity)
		return nil
	}, `SELECT `+activityColumns+` FROM activities WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	return activities, nil
}
