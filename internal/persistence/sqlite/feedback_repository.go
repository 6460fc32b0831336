package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/mentorbook/internal/persistence"
)

const feedbackColumns = `id, session_id, from_id, to_id, rating, comment, created_at`

// FeedbackRepository implements persistence.FeedbackRepository using SQLite
type FeedbackRepository struct {
	pool *ConnectionPool
}

// NewFeedbackRepository creates a new SQLite feedback repository
func NewFeedbackRepository(pool *ConnectionPool) *FeedbackRepository {
	return &FeedbackRepository{pool: pool}
}

// CreateFeedback inserts a feedback record. A second record for the same
// session and giver fails with ErrDuplicate.
func (r *FeedbackRepository) CreateFeedback(ctx context.Context, feedback persistence.Feedback) error {
	if feedback.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO feedback (`+feedbackColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		feedback.ID,
		feedback.SessionID,
		feedback.FromID,
		feedback.ToID,
		feedback.Rating,
		nullString(feedback.Comment),
		formatTimestamp(feedback.CreatedAt),
	)
	return err
}

// GetFeedbackBySessionAndGiver returns the record fromID left on sessionID
func (r *FeedbackRepository) GetFeedbackBySessionAndGiver(ctx context.Context, sessionID, fromID string) (persistence.Feedback, error) {
	var feedback persistence.Feedback
	err := r.pool.QueryRow(ctx, func(row *sql.Row) error {
		var scanErr error
		feedback, scanErr = scanFeedback(row)
		return scanErr
	}, `SELECT `+feedbackColumns+` FROM feedback WHERE session_id = ? AND from_id = ?`, sessionID, fromID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Feedback{}, persistence.ErrNotFound
		}
		return persistence.Feedback{}, err
	}
	return feedback, nil
}

// ListFeedbackForSession returns all feedback left on a session
func (r *FeedbackRepository) ListFeedbackForSession(ctx context.Context, sessionID string) ([]persistence.Feedback, error) {
	return r.list(ctx, `SELECT `+feedbackColumns+` FROM feedback WHERE session_id = ? ORDER BY created_at ASC, id ASC`, sessionID)
}

// ListFeedbackReceived returns feedback addressed to toID, newest first
func (r *FeedbackRepository) ListFeedbackReceived(ctx context.Context, toID string) ([]persistence.Feedback, error) {
	return r.list(ctx, `SELECT `+feedbackColumns+` FROM feedback WHERE to_id = ? ORDER BY created_at DESC, id ASC`, toID)
}

func (r *FeedbackRepository) list(ctx context.Context, query string, args ...any) ([]persistence.Feedback, error) {
	var records []persistence.Feedback
	err := r.pool.QueryRows(ctx, func(rows *sql.Rows) error {
		feedback, err := scanFeedback(rows)
		if err != nil {
			return err
		}
		records = append(records, feedback)
		return nil
	}, query, args...)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func scanFeedback(row rowScanner) (persistence.Feedback, error) {
	var (
		feedback     persistence.Feedback
		comment      sql.NullString
		createdAtStr string
	)
	if err := row.Scan(&feedback.ID, &feedback.SessionID, &feedback.FromID, &feedback.ToID, &feedback.Rating, &comment, &createdAtStr); err != nil {
		return persistence.Feedback{}, err
	}
	feedback.Comment = stringPtr(comment)
	createdAt, err := parseTimestamp(createdAtStr)
	if err != nil {
		return persistence.Feedback{}, err
	}
	feedback.CreatedAt = createdAt
	return feedback, nil
}
