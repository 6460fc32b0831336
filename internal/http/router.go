package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Auth           *AuthHandler
	Users          *UserHandler
	Availability   *AvailabilityHandler
	Sessions       *SessionHandler
	Feedback       *FeedbackHandler
	Activities     *ActivityHandler
	Tokens         TokenValidator
	Logger         *zap.Logger
	AllowedOrigins []string
	Middleware     []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)
	resp := newResponder(logger)

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp.writeError(r.Context(), w, http.StatusNotFound, "not_found", nil)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp.writeError(r.Context(), w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})

	if cfg.Auth != nil {
		router.HandleFunc("/login", cfg.Auth.Login).Methods(http.MethodPost)
	}
	if cfg.Users != nil {
		router.HandleFunc("/users", cfg.Users.Register).Methods(http.MethodPost)
	}

	protected := router.NewRoute().Subrouter()
	if cfg.Tokens != nil {
		protected.Use(mux.MiddlewareFunc(RequireToken(cfg.Tokens, logger)))
	}

	if cfg.Auth != nil {
		protected.HandleFunc("/logout", cfg.Auth.Logout).Methods(http.MethodPost)
	}

	if cfg.Users != nil {
		protected.HandleFunc("/mentors", cfg.Users.ListMentors).Methods(http.MethodGet)
		protected.HandleFunc("/users/{id}", cfg.Users.Get).Methods(http.MethodGet)
	}

	if cfg.Availability != nil {
		protected.HandleFunc("/mentors/{id}/availability/rules", cfg.Availability.ListRules).Methods(http.MethodGet)
		protected.HandleFunc("/mentors/{id}/availability/month", cfg.Availability.Month).Methods(http.MethodGet)
		protected.HandleFunc("/mentors/{id}/availability/date", cfg.Availability.Date).Methods(http.MethodGet)
		protected.HandleFunc("/availability/rules", cfg.Availability.CreateRule).Methods(http.MethodPost)
		protected.HandleFunc("/availability/rules/{id}", cfg.Availability.DeleteRule).Methods(http.MethodDelete)
	}

	if cfg.Sessions != nil {
		// Fixed export paths go before /sessions/{id}.
		protected.HandleFunc("/sessions/calendar.ics", cfg.Sessions.Calendar).Methods(http.MethodGet)
		protected.HandleFunc("/sessions/history.xlsx", cfg.Sessions.History).Methods(http.MethodGet)
		protected.HandleFunc("/sessions", cfg.Sessions.List).Methods(http.MethodGet)
		protected.HandleFunc("/sessions", cfg.Sessions.Create).Methods(http.MethodPost)
		protected.HandleFunc("/sessions/{id}", cfg.Sessions.Get).Methods(http.MethodGet)
		protected.HandleFunc("/sessions/{id}/transitions", cfg.Sessions.Transition).Methods(http.MethodPost)
	}

	if cfg.Feedback != nil {
		protected.HandleFunc("/sessions/{id}/feedback/eligibility", cfg.Feedback.Eligibility).Methods(http.MethodGet)
		protected.HandleFunc("/sessions/{id}/feedback", cfg.Feedback.Submit).Methods(http.MethodPost)
		protected.HandleFunc("/users/{id}/feedback", cfg.Feedback.ListReceived).Methods(http.MethodGet)
	}

	if cfg.Activities != nil {
		protected.HandleFunc("/activities", cfg.Activities.List).Methods(http.MethodGet)
	}

	var handler http.Handler = router
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	handler = RequestLogger(logger)(handler)

	if len(cfg.AllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
			AllowCredentials: true,
		}).Handler(handler)
	}
	return handler
}
