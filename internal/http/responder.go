package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/example/mentorbook/internal/application"
	"github.com/example/mentorbook/internal/logging"
)

var (
	errBadRequestBody = errors.New("request body is malformed")
	errMissingToken   = errors.New("an access token is required")
)

type responder struct {
	logger *zap.Logger
}

func newResponder(logger *zap.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).Error("failed to encode response", zap.Error(err))
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, code string, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
	}
	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: code, Message: message})
}

// errorStatus maps an application error kind to its HTTP status and message.
var errorStatus = map[string]struct {
	status  int
	message string
}{
	"not_found":           {http.StatusNotFound, "the requested resource was not found"},
	"forbidden":           {http.StatusForbidden, "you are not allowed to perform this action"},
	"invalid_transition":  {http.StatusConflict, "the session cannot make this transition from its current status"},
	"invalid_argument":    {http.StatusUnprocessableEntity, "the request contains invalid fields"},
	"already_exists":      {http.StatusConflict, "the resource already exists"},
	"slot_conflict":       {http.StatusConflict, "the requested slot is no longer available"},
	"store_unavailable":   {http.StatusServiceUnavailable, "the service is temporarily unavailable"},
	"unauthenticated":     {http.StatusUnauthorized, "authentication is required"},
	"invalid_credentials": {http.StatusUnauthorized, "email or password is incorrect"},
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := application.ErrorKind(err)
	mapped, ok := errorStatus[kind]
	if !ok {
		r.loggerFor(ctx).Error("unexpected service error", zap.Error(err))
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{ErrorCode: "unexpected", Message: "an internal error occurred"})
		return
	}

	resp := errorResponse{ErrorCode: kind, Message: mapped.message}
	var vErr *application.ValidationError
	if errors.As(err, &vErr) && len(vErr.FieldErrors) > 0 {
		resp.Errors = vErr.FieldErrors
	}
	r.writeJSON(ctx, w, mapped.status, resp)
}

func (r responder) loggerFor(ctx context.Context) *zap.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
