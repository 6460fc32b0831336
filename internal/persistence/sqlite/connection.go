package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/mentorbook/internal/persistence"
	"github.com/example/mentorbook/internal/persistence/sqlite/migration"
)

// ConnectionPool manages SQLite database connections with transaction support
// and a per-operation deadline.
type ConnectionPool struct {
	db      *sql.DB
	timeout time.Duration
	retry   *RetryHelper
}

// NewConnectionPool opens a pool. A non-positive timeout disables the deadline.
func NewConnectionPool(config migration.SQLiteConfig, timeout time.Duration) (*ConnectionPool, error) {
	db, err := migration.NewConnectionManager(config).GetConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &ConnectionPool{db: db, timeout: timeout, retry: NewRetryHelper(DefaultRetryConfig())}, nil
}

// DB returns the underlying database connection
func (cp *ConnectionPool) DB() *sql.DB {
	return cp.db
}

// Close closes the connection pool
func (cp *ConnectionPool) Close() error {
	if cp.db != nil {
		return cp.db.Close()
	}
	return nil
}

// Ping tests the database connection
func (cp *ConnectionPool) Ping(ctx context.Context) error {
	ctx, cancel := cp.bound(ctx)
	defer cancel()
	return mapError(ctx, cp.db.PingContext(ctx))
}

// bound applies the configured store deadline to ctx.
func (cp *ConnectionPool) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if cp.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, cp.timeout)
}

// TransactionFunc represents a function that executes within a transaction
type TransactionFunc func(ctx context.Context, tx *sql.Tx) error

// WithTransaction executes fn within a database transaction under the store
// deadline. The transaction is rolled back when fn returns an error or panics
// and committed otherwise. Lock contention is retried with backoff.
func (cp *ConnectionPool) WithTransaction(ctx context.Context, fn TransactionFunc) error {
	ctx, cancel := cp.bound(ctx)
	defer cancel()

	err := cp.retry.WithRetry(ctx, func() error {
		return cp.runTransaction(ctx, fn)
	})
	return mapError(ctx, err)
}

func (cp *ConnectionPool) runTransaction(ctx context.Context, fn TransactionFunc) (err error) {
	tx, err := cp.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// WithReadOnlyTransaction executes fn within a read-only transaction so all
// queries observe one snapshot.
func (cp *ConnectionPool) WithReadOnlyTransaction(ctx context.Context, fn TransactionFunc) error {
	ctx, cancel := cp.bound(ctx)
	defer cancel()

	err := cp.retry.WithRetry(ctx, func() (err error) {
		tx, err := cp.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			return fmt.Errorf("failed to begin read-only transaction: %w", err)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()
		if err = fn(ctx, tx); err != nil {
			return err
		}
		return tx.Commit()
	})
	return mapError(ctx, err)
}

// Exec runs a statement outside an explicit transaction under the store deadline.
func (cp *ConnectionPool) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := cp.bound(ctx)
	defer cancel()

	var result sql.Result
	err := cp.retry.WithRetry(ctx, func() error {
		var execErr error
		result, execErr = cp.db.ExecContext(ctx, query, args...)
		return execErr
	})
	return result, mapError(ctx, err)
}

// QueryRows runs a query under the store deadline and hands each row to scan.
func (cp *ConnectionPool) QueryRows(ctx context.Context, scan func(*sql.Rows) error, query string, args ...any) error {
	ctx, cancel := cp.bound(ctx)
	defer cancel()

	rows, err := cp.db.QueryContext(ctx, query, args...)
	if err != nil {
		return mapError(ctx, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return mapError(ctx, err)
		}
	}
	return mapError(ctx, rows.Err())
}

// QueryRow runs a single-row query under the store deadline.
func (cp *ConnectionPool) QueryRow(ctx context.Context, scan func(*sql.Row) error, query string, args ...any) error {
	ctx, cancel := cp.bound(ctx)
	defer cancel()
	return mapError(ctx, scan(cp.db.QueryRowContext(ctx, query, args...)))
}

// mapError maps SQLite-specific errors to persistence layer errors. Errors
// that already carry a persistence sentinel pass through untouched.
func mapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	for _, sentinel := range []error{
		persistence.ErrNotFound,
		persistence.ErrDuplicate,
		persistence.ErrConstraintViolation,
		persistence.ErrForeignKeyViolation,
		persistence.ErrStaleState,
		persistence.ErrUnavailable,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}

	if errors.Is(err, context.DeadlineExceeded) || (ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}

	errStr := err.Error()
	switch {
	case containsAny(errStr, "UNIQUE constraint failed", "PRIMARY KEY"):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case containsAny(errStr, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	case containsAny(errStr, "CHECK constraint failed", "NOT NULL constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	case isBusy(err):
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}
	return err
}

func containsAny(s string, substrings ...string) bool {
	for _, substr := range substrings {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(), "database is locked", "database table is locked", "SQLITE_BUSY", "database is busy")
}

// RetryConfig configures retry behavior for database operations
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns a retry configuration with sensible defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryHelper retries operations that failed on lock contention.
type RetryHelper struct {
	config RetryConfig
}

// NewRetryHelper creates a new retry helper
func NewRetryHelper(config RetryConfig) *RetryHelper {
	return &RetryHelper{config: config}
}

// WithRetry executes fn, retrying busy/locked failures until MaxRetries or ctx ends.
func (rh *RetryHelper) WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := rh.config.InitialDelay

	for attempt := 0; attempt <= rh.config.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%w: %v", persistence.ErrUnavailable, lastErr)
			case <-timer.C:
			}
			delay = time.Duration(float64(delay) * rh.config.BackoffFactor)
			if delay > rh.config.MaxDelay {
				delay = rh.config.MaxDelay
			}
		}

		lastErr = fn()
		if lastErr == nil || !isBusy(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("%w: operation failed after %d retries: %v", persistence.ErrUnavailable, rh.config.MaxRetries, lastErr)
}
