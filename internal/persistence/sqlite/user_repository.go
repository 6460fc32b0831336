package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/example/mentorbook/internal/persistence"
)

const userColumns = `id, email, display_name, role, bio, password_hash, created_at, updated_at`

// UserRepository implements persistence.UserRepository using SQLite
type UserRepository struct {
	pool *ConnectionPool
}

// NewUserRepository creates a new SQLite user repository
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{pool: pool}
}

// CreateUser inserts a new user. Emails are stored lowercased and unique.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		user.ID,
		normalizeEmail(user.Email),
		user.DisplayName,
		user.Role,
		user.Bio,
		user.PasswordHash,
		formatTimestamp(user.CreatedAt),
		formatTimestamp(user.UpdatedAt),
	)
	return err
}

// GetUser retrieves a user by ID
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if id == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByEmail retrieves a user by email address, case-insensitively
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	normalized := normalizeEmail(email)
	if normalized == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalized)
}

// ListUsersByRole returns users holding role ordered by display name then ID
func (r *UserRepository) ListUsersByRole(ctx context.Context, role string) ([]persistence.User, error) {
	var users []persistence.User
	err := r.pool.QueryRows(ctx, func(rows *sql.Rows) error {
		user, err := scanUser(rows)
		if err != nil {
			return err
		}
		users = append(users, user)
		return nil
	}, `SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY display_name ASC, id ASC`, role)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...any) (persistence.User, error) {
	var user persistence.User
	err := r.pool.QueryRow(ctx, func(row *sql.Row) error {
		var scanErr error
		user, scanErr = scanUser(row)
		return scanErr
	}, query, args...)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.User{}, persistence.ErrNotFound
		}
		return persistence.User{}, err
	}
	return user, nil
}

func scanUser(row rowScanner) (persistence.User, error) {
	var (
		user                       persistence.User
		createdAtStr, updatedAtStr string
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.Role,
		&user.Bio,
		&user.PasswordHash,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return persistence.User{}, err
	}

	var err error
	if user.CreatedAt, err = parseTimestamp(createdAtStr); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTimestamp(updatedAtStr); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

// normalizeEmail normalizes email addresses for consistent storage and lookup
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
