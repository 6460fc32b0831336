package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/example/mentorbook/internal/application"
)

type userService interface {
	Register(ctx context.Context, params application.RegisterUserParams) (application.User, error)
	GetUser(ctx context.Context, id string) (application.User, error)
	ListMentors(ctx context.Context) ([]application.MentorSummary, error)
}

// UserHandler serves registration, profiles and mentor discovery.
type UserHandler struct {
	service   userService
	responder responder
	logger    *zap.Logger
}

func NewUserHandler(service userService, logger *zap.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return handlerLogger(ctx, h.logger, "UserHandler", operation, fields...)
}

// Register handles POST /users.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Register").Warn("failed to decode registration", zap.Error(err))
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "bad_request", errBadRequestBody)
		return
	}

	user, err := h.service.Register(r.Context(), application.RegisterUserParams{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        req.Role,
		Bio:         req.Bio,
		Password:    req.Password,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Register", zap.String("user_id", user.ID)).Info("user registered")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, userResponse{User: toUserDTO(user)})
}

// Get handles GET /users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

// ListMentors handles GET /mentors.
func (h *UserHandler) ListMentors(w http.ResponseWriter, r *http.Request) {
	mentors, err := h.service.ListMentors(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := mentorListResponse{Mentors: make([]mentorDTO, 0, len(mentors))}
	for _, mentor := range mentors {
		resp.Mentors = append(resp.Mentors, mentorDTO{
			userDTO:     toUserDTO(mentor.User),
			RatingCount: mentor.Rating.Count,
			RatingAvg:   mentor.Rating.Average,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Bio         string `json:"bio"`
	Password    string `json:"password"`
}

type userDTO struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Bio         string `json:"bio,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type userResponse struct {
	User userDTO `json:"user"`
}

type mentorDTO struct {
	userDTO
	RatingCount int     `json:"rating_count"`
	RatingAvg   float64 `json:"rating_average"`
}

type mentorListResponse struct {
	Mentors []mentorDTO `json:"mentors"`
}

func toUserDTO(user application.User) userDTO {
	return userDTO{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
		Bio:         user.Bio,
		CreatedAt:   formatTimestamp(user.CreatedAt),
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
