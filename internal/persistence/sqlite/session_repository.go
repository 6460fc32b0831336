package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/example/mentorbook/internal/persistence"
)

const sessionColumns = `id, mentor_id, mentee_id, topic, date, time, status, notes, meeting_link, created_at, updated_at`

// SessionRepository implements persistence.SessionRepository using SQLite
type SessionRepository struct {
	pool *ConnectionPool
}

// NewSessionRepository creates a new SQLite session repository
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// CreateSessionChecked inserts session after check approves the mentor's rules
// and the sessions already booked that day. Both run in one write transaction;
// the partial unique index on held slots backs the check under races.
func (r *SessionRepository) CreateSessionChecked(ctx context.Context, session persistence.Session, check persistence.SlotCheck) error {
	if session.ID == "" || session.MentorID == "" || session.MenteeID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if check != nil {
			rules, err := queryRules(ctx, tx, `SELECT `+ruleColumns+` FROM availability_rules WHERE mentor_id = ? ORDER BY created_at, id`, session.MentorID)
			if err != nil {
				return err
			}
			sameDay, err := querySessions(ctx, tx, `SELECT `+sessionColumns+` FROM sessions WHERE mentor_id = ? AND date = ? ORDER BY time, id`, session.MentorID, session.Date)
			if err != nil {
				return err
			}
			if err := check(rules, sameDay); err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (`+sessionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			session.ID,
			session.MentorID,
			session.MenteeID,
			session.Topic,
			session.Date,
			session.Time,
			session.Status,
			nullString(session.Notes),
			nullString(session.MeetingLink),
			formatTimestamp(session.CreatedAt),
			formatTimestamp(session.UpdatedAt),
		)
		return mapError(ctx, err)
	})
}

// GetSession retrieves a session by ID
func (r *SessionRepository) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	var session persistence.Session
	err := r.pool.QueryRow(ctx, func(row *sql.Row) error {
		var scanErr error
		session, scanErr = scanSession(row)
		return scanErr
	}, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Session{}, persistence.ErrNotFound
		}
		return persistence.Session{}, err
	}
	return session, nil
}

// ListSessions returns sessions matching filter ordered by date and time
func (r *SessionRepository) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.MentorID != "" {
		clauses = append(clauses, "mentor_id = ?")
		args = append(args, filter.MentorID)
	}
	if filter.MenteeID != "" {
		clauses = append(clauses, "mentee_id = ?")
		args = append(args, filter.MenteeID)
	}
	if filter.ParticipantID != "" {
		clauses = append(clauses, "(mentor_id = ? OR mentee_id = ?)")
		args = append(args, filter.ParticipantID, filter.ParticipantID)
	}
	if filter.Date != "" {
		clauses = append(clauses, "date = ?")
		args = append(args, filter.Date)
	}
	if filter.DateFrom != "" {
		clauses = append(clauses, "date >= ?")
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		clauses = append(clauses, "date <= ?")
		args = append(args, filter.DateTo)
	}
	if len(filter.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(filter.Statuses)), ", ")
		clauses = append(clauses, "status IN ("+placeholders+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY date ASC, time ASC, created_at ASC, id ASC"

	var sessions []persistence.Session
	err := r.pool.QueryRows(ctx, func(rows *sql.Rows) error {
		session, err := scanSession(rows)
		if err != nil {
			return err
		}
		sessions = append(sessions, session)
		return nil
	}, query, args...)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// TransitionSession moves the session from one status to another with a
// guarded update. A nil meetingLink keeps the stored link. It returns
// ErrStaleState when the stored status no longer equals from.
func (r *SessionRepository) TransitionSession(ctx context.Context, id, from, to string, meetingLink *string, updatedAt time.Time) (persistence.Session, error) {
	var updated persistence.Session
	err := r.pool.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE sessions
			SET status = ?, meeting_link = COALESCE(?, meeting_link), updated_at = ?
			WHERE id = ? AND status = ?
		`, to, nullString(meetingLink), formatTimestamp(updatedAt), id, from)
		if err != nil {
			return mapError(ctx, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}

		rows, err := querySessions(ctx, tx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return persistence.ErrNotFound
		}
		if affected == 0 {
			return persistence.ErrStaleState
		}
		updated = rows[0]
		return nil
	})
	if err != nil {
		return persistence.Session{}, err
	}
	return updated, nil
}

func querySessions(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]persistence.Session, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	defer rows.Close()

	var sessions []persistence.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, mapError(ctx, err)
		}
		sessions = append(sessions, session)
	}
	return sessions, mapError(ctx, rows.Err())
}

func scanSession(row rowScanner) (persistence.Session, error) {
	var (
		session                    persistence.Session
		notes, meetingLink         sql.NullString
		createdAtStr, updatedAtStr string
	)
	if err := row.Scan(
		&session.ID,
		&session.MentorID,
		&session.MenteeID,
		&session.Topic,
		&session.Date,
		&session.Time,
		&session.Status,
		&notes,
		&meetingLink,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return persistence.Session{}, err
	}

	session.Notes = stringPtr(notes)
	session.MeetingLink = stringPtr(meetingLink)

	var err error
	if session.CreatedAt, err = parseTimestamp(createdAtStr); err != nil {
		return persistence.Session{}, err
	}
	if session.UpdatedAt, err = parseTimestamp(updatedAtStr); err != nil {
		return persistence.Session{}, err
	}
	return session, nil
}
