package application

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/mentorbook/internal/logging"
)

func defaultLogger(logger *zap.Logger) *zap.Logger {
	if logger != nil {
		return logger
	}
	return zap.NewNop()
}

func serviceLogger(ctx context.Context, base *zap.Logger, serviceName, operation string, fields ...zap.Field) *zap.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pairs := []zap.Field{zap.String("service", serviceName)}
	if operation != "" {
		pairs = append(pairs, zap.String("operation", operation))
	}
	pairs = append(pairs, fields...)
	return logger.With(pairs...)
}

// logOutcome writes the deferred result line shared by every service operation.
// Caller mistakes are logged at warn, everything else at error.
func logOutcome(logger *zap.Logger, err error, action string, fields ...zap.Field) {
	if err == nil {
		logger.Info(action+" succeeded", fields...)
		return
	}
	kind := ErrorKind(err)
	fields = append(fields, zap.Error(err), zap.String("error_kind", kind))
	switch kind {
	case "store_unavailable", "unexpected":
		logger.Error(action+" failed", fields...)
	default:
		logger.Warn(action+" rejected", fields...)
	}
}

// ErrorKind maps sentinel and validation errors to a stable machine-readable label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrSlotConflict):
		return "slot_conflict"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "invalid_argument"
	}

	return "unexpected"
}
