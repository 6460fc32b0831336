package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/example/mentorbook/internal/application"
)

type availabilityService interface {
	CreateRule(ctx context.Context, params application.CreateRuleParams) (application.AvailabilityRule, error)
	DeleteRule(ctx context.Context, principal application.Principal, ruleID string) error
	ListRules(ctx context.Context, mentorID string) ([]application.AvailabilityRule, error)
	DateAvailability(ctx context.Context, mentorID, date string) (application.DateAvailability, error)
	MonthAvailability(ctx context.Context, mentorID string, year, month int) (application.MonthAvailability, error)
}

// AvailabilityHandler exposes weekly rules and the resolved open slots.
type AvailabilityHandler struct {
	service   availabilityService
	responder responder
	logger    *zap.Logger
}

func NewAvailabilityHandler(service availabilityService, logger *zap.Logger) *AvailabilityHandler {
	base := defaultLogger(logger)
	return &AvailabilityHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AvailabilityHandler) log(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return handlerLogger(ctx, h.logger, "AvailabilityHandler", operation, fields...)
}

// ListRules handles GET /mentors/{id}/availability/rules.
func (h *AvailabilityHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.ListRules(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := ruleListResponse{Rules: make([]ruleDTO, 0, len(rules))}
	for _, rule := range rules {
		resp.Rules = append(resp.Rules, toRuleDTO(rule))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// CreateRule handles POST /availability/rules.
func (h *AvailabilityHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(h.responder, w, r)
	if !ok {
		return
	}

	var req createRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "CreateRule").Warn("failed to decode rule", zap.Error(err))
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "bad_request", errBadRequestBody)
		return
	}

	rule, err := h.service.CreateRule(r.Context(), application.CreateRuleParams{
		Principal: principal,
		Weekday:   req.Weekday,
		Start:     req.StartTime,
		End:       req.EndTime,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, ruleResponse{Rule: toRuleDTO(rule)})
}

// DeleteRule handles DELETE /availability/rules/{id}.
func (h *AvailabilityHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(h.responder, w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRule(r.Context(), principal, mux.Vars(r)["id"]); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Month handles GET /mentors/{id}/availability/month?year=&month=.
func (h *AvailabilityHandler) Month(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	fieldErrors := map[string]string{}
	year, err := strconv.Atoi(strings.TrimSpace(query.Get("year")))
	if err != nil {
		fieldErrors["year"] = "must be a number"
	}
	month, err := strconv.Atoi(strings.TrimSpace(query.Get("month")))
	if err != nil {
		fieldErrors["month"] = "must be a number"
	}
	if len(fieldErrors) > 0 {
		h.responder.handleServiceError(r.Context(), w, &application.ValidationError{FieldErrors: fieldErrors})
		return
	}

	view, err := h.service.MonthAvailability(r.Context(), mux.Vars(r)["id"], year, month)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	days := view.Days
	if days == nil {
		days = []int{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, monthResponse{
		MentorID:     view.MentorID,
		Year:         view.Year,
		Month:        int(view.Month),
		Days:         days,
		DaysInMonth:  view.DaysInMonth,
		FirstWeekday: int(view.FirstWeekday),
	})
}

// Date handles GET /mentors/{id}/availability/date?date=.
func (h *AvailabilityHandler) Date(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.DateAvailability(r.Context(), mux.Vars(r)["id"], r.URL.Query().Get("date"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	times := view.Times
	if times == nil {
		times = []string{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dateResponse{MentorID: view.MentorID, Date: view.Date, Times: times})
}

type createRuleRequest struct {
	Weekday   string `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type ruleDTO struct {
	ID        string `json:"id"`
	MentorID  string `json:"mentor_id"`
	Weekday   string `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	CreatedAt string `json:"created_at"`
}

type ruleResponse struct {
	Rule ruleDTO `json:"rule"`
}

type ruleListResponse struct {
	Rules []ruleDTO `json:"rules"`
}

type monthResponse struct {
	MentorID     string `json:"mentor_id"`
	Year         int    `json:"year"`
	Month        int    `json:"month"`
	Days         []int  `json:"days"`
	DaysInMonth  int    `json:"days_in_month"`
	FirstWeekday int    `json:"first_weekday"`
}

type dateResponse struct {
	MentorID string   `json:"mentor_id"`
	Date     string   `json:"date"`
	Times    []string `json:"times"`
}

func toRuleDTO(rule application.AvailabilityRule) ruleDTO {
	return ruleDTO{
		ID:        rule.ID,
		MentorID:  rule.MentorID,
		Weekday:   rule.Weekday.String(),
		StartTime: rule.Start.String(),
		EndTime:   rule.End.String(),
		CreatedAt: formatTimestamp(rule.CreatedAt),
	}
}

func requirePrincipal(resp responder, w http.ResponseWriter, r *http.Request) (application.Principal, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok || principal.UserID == "" {
		resp.writeError(r.Context(), w, http.StatusUnauthorized, "unauthenticated", errMissingToken)
		return application.Principal{}, false
	}
	return principal, true
}
