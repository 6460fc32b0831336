package http

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/example/mentorbook/internal/application"
)

type feedbackService interface {
	CanSubmitFeedback(ctx context.Context, principal application.Principal, sessionID string) (bool, error)
	SubmitFeedback(ctx context.Context, params application.SubmitFeedbackParams) (application.Feedback, error)
	ListFeedbackReceived(ctx context.Context, userID string) ([]application.Feedback, application.RatingSummary, error)
}

type FeedbackHandler struct {
	service   feedbackService
	responder responder
	logger    *zap.Logger
}

func NewFeedbackHandler(service feedbackService, logger *zap.Logger) *FeedbackHandler {
	base := defaultLogger(logger)
	return &FeedbackHandler{service: service, responder: newResponder(base), logger: base}
}

// Eligibility handles GET /sessions/{id}/feedback/eligibility.
func (h *FeedbackHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(h.responder, w, r)
	if !ok {
		return
	}

	allowed, err := h.service.CanSubmitFeedback(r.Context(), principal, mux.Vars(r)["id"])
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, eligibilityResponse{CanSubmit: allowed})
}

// Submit handles POST /sessions/{id}/feedback.
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(h.responder, w, r)
	if !ok {
		return
	}

	var req submitFeedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		handlerLogger(r.Context(), h.logger, "FeedbackHandler", "Submit").Warn("failed to decode feedback", zap.Error(err))
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "bad_request", errBadRequestBody)
		return
	}

	feedback, err := h.service.SubmitFeedback(r.Context(), application.SubmitFeedbackParams{
		Principal: principal,
		SessionID: mux.Vars(r)["id"],
		ToID:      req.ToID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, feedbackResponse{Feedback: toFeedbackDTO(feedback)})
}

// ListReceived handles GET /users/{id}/feedback.
func (h *FeedbackHandler) ListReceived(w http.ResponseWriter, r *http.Request) {
	records, summary, err := h.service.ListFeedbackReceived(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := feedbackListResponse{
		Feedback:    make([]feedbackDTO, 0, len(records)),
		RatingCount: summary.Count,
		RatingAvg:   summary.Average,
	}
	for _, record := range records {
		resp.Feedback = append(resp.Feedback, toFeedbackDTO(record))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

type submitFeedbackRequest struct {
	ToID    string `json:"to_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type eligibilityResponse struct {
	CanSubmit bool `json:"can_submit"`
}

type feedbackDTO struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	FromID    string `json:"from_id"`
	ToID      string `json:"to_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
	CreatedAt string `json:"created_at"`
}

type feedbackResponse struct {
	Feedback feedbackDTO `json:"feedback"`
}

type feedbackListResponse struct {
	Feedback    []feedbackDTO `json:"feedback"`
	RatingCount int           `json:"rating_count"`
	RatingAvg   float64       `json:"rating_average"`
}

func toFeedbackDTO(feedback application.Feedback) feedbackDTO {
	return feedbackDTO{
		ID:        feedback.ID,
		SessionID: feedback.SessionID,
		FromID:    feedback.FromID,
		ToID:      feedback.ToID,
		Rating:    feedback.Rating,
		Comment:   feedback.Comment,
		CreatedAt: formatTimestamp(feedback.CreatedAt),
	}
}
