package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/mentorbook/internal/persistence"
)

const ruleColumns = `id, mentor_id, weekday, start_time, end_time, created_at`

// AvailabilityRepository implements persistence.AvailabilityRepository using SQLite
type AvailabilityRepository struct {
	pool *ConnectionPool
}

// NewAvailabilityRepository creates a new SQLite availability repository
func NewAvailabilityRepository(pool *ConnectionPool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

// CreateRuleChecked inserts rule after check approves the mentor's current
// rules, both inside one write transaction.
func (r *AvailabilityRepository) CreateRuleChecked(ctx context.Context, rule persistence.AvailabilityRule, check persistence.RuleCheck) error {
	if rule.ID == "" || rule.MentorID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if check != nil {
			existing, err := queryRules(ctx, tx, `SELECT `+ruleColumns+` FROM availability_rules WHERE mentor_id = ? ORDER BY weekday, start_time, id`, rule.MentorID)
			if err != nil {
				return err
			}
			if err := check(existing); err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO availability_rules (`+ruleColumns+`)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rule.ID, rule.MentorID, rule.Weekday, rule.StartTime, rule.EndTime, formatTimestamp(rule.CreatedAt))
		return mapError(ctx, err)
	})
}

// GetRule retrieves a rule by ID
func (r *AvailabilityRepository) GetRule(ctx context.Context, id string) (persistence.AvailabilityRule, error) {
	var rule persistence.AvailabilityRule
	err := r.pool.QueryRow(ctx, func(row *sql.Row) error {
		var scanErr error
		rule, scanErr = scanRule(row)
		return scanErr
	}, `SELECT `+ruleColumns+` FROM availability_rules WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.AvailabilityRule{}, persistence.ErrNotFound
		}
		return persistence.AvailabilityRule{}, err
	}
	return rule, nil
}

// ListRules returns the mentor's rules ordered by creation time
func (r *AvailabilityRepository) ListRules(ctx context.Context, mentorID string) ([]persistence.AvailabilityRule, error) {
	var rules []persistence.AvailabilityRule
	err := r.pool.QueryRows(ctx, func(rows *sql.Rows) error {
		rule, err := scanRule(rows)
		if err != nil {
			return err
		}
		rules = append(rules, rule)
		return nil
	}, `SELECT `+ruleColumns+` FROM availability_rules WHERE mentor_id = ? ORDER BY created_at ASC, id ASC`, mentorID)
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// DeleteRule removes a rule by ID
func (r *AvailabilityRepository) DeleteRule(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM availability_rules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// Snapshot reads the mentor's rules and sessions in one read-only transaction.
func (r *AvailabilityRepository) Snapshot(ctx context.Context, mentorID, dateFrom, dateTo string) (persistence.AvailabilitySnapshot, error) {
	var snap persistence.AvailabilitySnapshot
	err := r.pool.WithReadOnlyTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rules, err := queryRules(ctx, tx, `SELECT `+ruleColumns+` FROM availability_rules WHERE mentor_id = ? ORDER BY created_at, id`, mentorID)
		if err != nil {
			return err
		}
		sessions, err := querySessions(ctx, tx, `
			SELECT `+sessionColumns+` FROM sessions
			WHERE mentor_id = ? AND date >= ? AND date <= ?
			ORDER BY date, time, created_at, id
		`, mentorID, dateFrom, dateTo)
		if err != nil {
			return err
		}
		snap = persistence.AvailabilitySnapshot{Rules: rules, Sessions: sessions}
		return nil
	})
	if err != nil {
		return persistence.AvailabilitySnapshot{}, err
	}
	return snap, nil
}

func queryRules(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]persistence.AvailabilityRule, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	defer rows.Close()

	var rules []persistence.AvailabilityRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, mapError(ctx, err)
		}
		rules = append(rules, rule)
	}
	return rules, mapError(ctx, rows.Err())
}

func scanRule(row rowScanner) (persistence.AvailabilityRule, error) {
	var (
		rule         persistence.AvailabilityRule
		createdAtStr string
	)
	if err := row.Scan(&rule.ID, &rule.MentorID, &rule.Weekday, &rule.StartTime, &rule.EndTime, &createdAtStr); err != nil {
		return persistence.AvailabilityRule{}, err
	}
	createdAt, err := parseTimestamp(createdAtStr)
	if err != nil {
		return persistence.AvailabilityRule{}, err
	}
	rule.CreatedAt = createdAt
	return rule, nil
}
