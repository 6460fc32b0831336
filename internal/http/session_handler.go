package http

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/example/mentorbook/internal/application"
	"github.com/example/mentorbook/internal/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type sessionService interface {
	CreateSession(ctx context.Context, params application.CreateSessionParams) (application.Session, error)
	Transition(ctx context.Context, cmd application.TransitionCommand) (application.Session, error)
	GetSession(ctx context.Context, principal application.Principal, sessionID string) (application.Session, error)
	ListSessions(ctx context.Context, params application.ListSessionsParams) ([]application.Session, error)
}

type userLookup interface {
	GetUser(ctx context.Context, id string) (application.User, error)
}

// SessionHandler serves booking, the lifecycle transitions and the session exports.
type SessionHandler struct {
	service   sessionService
	users     userLookup
	responder responder
	logger    *zap.Logger
	now       func() time.Time
}

func NewSessionHandler(service sessionService, users userLookup, now func() time.Time, logger *zap.Logger) *SessionHandler {
	base := defaultLogger(logger)
	if now == nil {
		now = time.Now
	}
	return &SessionHandler{service: service, users: users, responder: newResponder(base), logger: base, now: now}
}

func (h *SessionHandler) log(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return handlerLogger(ctx, h.logger, "SessionHandler", operation, fields...)
}

// Create handles POST /sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(h.responder, w, r)
	if !ok {
		return
	}

	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create").Warn("failed to decode session request", zap.Error(err))
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "bad_request", errBadRequestBody)
		return
	}

	session, err := h.service.CreateSession(r.Context(), application.CreateSessionParams{
		Principal: principal,
		MentorID:  req.MentorID,
		Topic:     req.Topic,
		Date:      req.Date,
		Time:      req.Time,
		Notes:     req.Notes,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, sessionResponse{Session: toSessionDTO(session)})
}

// List handles GET /sessions?status=a,b&role=mentor|mentee.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(h.responder, w, r)
	if !ok {
		return
	}

	params, vErr := parseListQuery(principal, r)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	sessions, err := h.service.ListSessions(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := sessionListResponse{Sessions: make([]sessionDTO, 0, len(sessions))}
	for _, session := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionDTO(session))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func parseListQuery(principal application.Principal, r *http.Request) (application.ListSessionsParams, *application.ValidationError) {
	query := r.URL.Query()
	params := application.ListSessionsParams{Principal: principal}

	for _, raw := range strings.Split(query.Get("status"), ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		status, ok := application.ParseSessionStatus(raw)
		if !ok {
			return application.ListSessionsParams{}, &application.ValidationError{FieldErrors: map[string]string{"status": "unknown session status"}}
		}
		params.Statuses = append(params.Statuses, status)
	}

	if raw := strings.TrimSpace(query.Get("role")); raw != "" {
		role, ok := application.ParseRole(raw)
		if !ok {
			return application.ListSessionsParams{}, &application.ValidationError{FieldErrors: map[string]string{"role": "must be mentor or mentee"}}
		}
		params.Role = role
	}
	return params, nil
}

// Get handles GET /sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(h.responder, w, r)
	if !ok {
		return
	}

	session, err := h.service.GetSession(r.Context(), principal, mux.Vars(r)["id"])
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

// Transition handles POST /sessions/{id}/transitions.
func (h *SessionHandler) Transition(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(h.responder, w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Transition").Warn("failed to decode transition", zap.Error(err))
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "bad_request", errBadRequestBody)
		return
	}

	session, err := h.service.Transition(r.Context(), application.TransitionCommand{
		Principal: principal,
		SessionID: mux.Vars(r)["id"],
		Action:    application.Action(strings.ToLower(strings.TrimSpace(req.Action))),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

// Calendar handles GET /sessions/calendar.ics.
func (h *SessionHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(h.responder, w, r)
	if !ok {
		return
	}

	sessions, err := h.service.ListSessions(r.Context(), application.ListSessionsParams{
		Principal: principal,
		Statuses:  []application.SessionStatus{application.StatusApproved},
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCalendar(&buf, sessions, h.nameLookup(r.Context()), h.now()); err != nil {
		h.log(r.Context(), "Calendar").Error("failed to render calendar", zap.Error(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.writeFile(r.Context(), w, "text/calendar; charset=utf-8", "mentorbook.ics", buf.Bytes())
}

// History handles GET /sessions/history.xlsx.
func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(h.responder, w, r)
	if !ok {
		return
	}

	sessions, err := h.service.ListSessions(r.Context(), application.ListSessionsParams{Principal: principal})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteHistory(&buf, sessions, h.nameLookup(r.Context())); err != nil {
		h.log(r.Context(), "History").Error("failed to render history", zap.Error(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.writeFile(r.Context(), w, xlsxContentType, "mentorbook-history.xlsx", buf.Bytes())
}

func (h *SessionHandler) writeFile(ctx context.Context, w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.log(ctx, "writeFile").Warn("failed to write export", zap.Error(err))
	}
}

// nameLookup memoizes display names for one export.
func (h *SessionHandler) nameLookup(ctx context.Context) export.NameLookup {
	names := map[string]string{}
	return func(id string) string {
		if name, ok := names[id]; ok {
			return name
		}
		name := id
		if h.users != nil {
			if user, err := h.users.GetUser(ctx, id); err == nil && user.DisplayName != "" {
				name = user.DisplayName
			}
		}
		names[id] = name
		return name
	}
}

type createSessionRequest struct {
	MentorID string `json:"mentor_id"`
	Topic    string `json:"topic"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Notes    string `json:"notes"`
}

type transitionRequest struct {
	Action string `json:"action"`
}

type sessionDTO struct {
	ID          string `json:"id"`
	MentorID    string `json:"mentor_id"`
	MenteeID    string `json:"mentee_id"`
	Topic       string `json:"topic"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Status      string `json:"status"`
	Notes       string `json:"notes,omitempty"`
	MeetingLink string `json:"meeting_link,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type sessionResponse struct {
	Session sessionDTO `json:"session"`
}

type sessionListResponse struct {
	Sessions []sessionDTO `json:"sessions"`
}

func toSessionDTO(session application.Session) sessionDTO {
	return sessionDTO{
		ID:          session.ID,
		MentorID:    session.MentorID,
		MenteeID:    session.MenteeID,
		Topic:       session.Topic,
		Date:        session.Date,
		Time:        session.Time,
		Status:      string(session.Status),
		Notes:       session.Notes,
		MeetingLink: session.MeetingLink,
		CreatedAt:   formatTimestamp(session.CreatedAt),
		UpdatedAt:   formatTimestamp(session.UpdatedAt),
	}
}
