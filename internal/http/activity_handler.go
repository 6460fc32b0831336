package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/example/mentorbook/internal/application"
)

type activityService interface {
	List(ctx context.Context, principal application.Principal, limit int) ([]application.Activity, error)
}

// ActivityHandler serves the principal's activity feed.
type ActivityHandler struct {
	service   activityService
	responder responder
}

func NewActivityHandler(service activityService, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{service: service, responder: newResponder(logger)}
}

// List handles GET /activities?limit=.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(h.responder, w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.responder.handleServiceError(r.Context(), w, &application.ValidationError{FieldErrors: map[string]string{"limit": "must be a non-negative number"}})
			return
		}
		limit = parsed
	}

	activities, err := h.service.List(r.Context(), principal, limit)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := activityListResponse{Activities: make([]activityDTO, 0, len(activities))}
	for _, activity := range activities {
		resp.Activities = append(resp.Activities, activityDTO{
			ID:            activity.ID,
			Type:          string(activity.Type),
			Content:       activity.Content,
			RelatedUserID: activity.RelatedUserID,
			SessionID:     activity.SessionID,
			CreatedAt:     formatTimestamp(activity.CreatedAt),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

type activityDTO struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Content       string `json:"content"`
	RelatedUserID string `json:"related_user_id,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type activityListResponse struct {
	Activities []activityDTO `json:"activities"`
}
