package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/mentorbook/internal/adapters"
	"github.com/example/mentorbook/internal/application"
	"github.com/example/mentorbook/internal/config"
	httptransport "github.com/example/mentorbook/internal/http"
	"github.com/example/mentorbook/internal/logging"
	"github.com/example/mentorbook/internal/meeting"
	"github.com/example/mentorbook/internal/persistence/sqlite"
	"github.com/example/mentorbook/internal/redis"
	"github.com/example/mentorbook/internal/token"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server encountered error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", zap.Error(err))
		}
	}()

	logger.Info("mentorbook API listening", zap.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// app owns the wired handler and everything that must be closed on exit.
type app struct {
	handler http.Handler
	closers []func() error
	logger  *zap.Logger
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to release resource", zap.Error(err))
		}
	}
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	store, err := sqlite.Open(sqlite.Options{DSN: cfg.SQLiteDSN, StoreTimeout: cfg.StoreTimeout, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	if err := store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("storage not ready: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	links, err := loadMeetingPool(cfg.MeetingLinksFile)
	if err != nil {
		return nil, err
	}
	if links.Len() == 0 {
		logger.Warn("meeting link pool is empty; approvals use the fallback link", zap.String("fallback", cfg.MeetingLinkFallback))
	}

	var (
		blacklist token.Blacklist
		publisher application.ActivityPublisher
	)
	if cfg.RedisAddr != "" {
		client, err := redis.NewClient(ctx, redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		blacklist = client
		publisher = client
	} else {
		logger.Info("redis not configured; token revocations are kept in memory")
	}

	now := time.Now
	tokens, err := token.NewManager(token.Options{Secret: cfg.TokenSecret, TTL: cfg.TokenTTL, Blacklist: blacklist, Now: now})
	if err != nil {
		return nil, err
	}

	idGenerator := uuid.NewString
	repos := adapters.New(adapters.FromSQLite(store))

	activityService := application.NewActivityServiceWithLogger(repos.Activities, publisher, idGenerator, now, logger)
	availabilityService := application.NewAvailabilityServiceWithLogger(repos.Availability, repos.Users, idGenerator, now, cfg.AvailabilityCacheTTL, logger)
	sessionService := application.NewSessionServiceWithLogger(
		repos.Sessions,
		repos.Users,
		application.MeetingLinks{Provider: links, Fallback: cfg.MeetingLinkFallback},
		activityService,
		availabilityService,
		idGenerator,
		now,
		logger,
	)
	feedbackService := application.NewFeedbackServiceWithLogger(repos.Feedback, repos.Sessions, repos.Users, activityService, idGenerator, now, logger)
	userService := application.NewUserServiceWithLogger(repos.Users, repos.Feedback, application.HashPassword, idGenerator, now, logger)
	authService := application.NewAuthServiceWithLogger(repos.Users, tokens, application.VerifyPassword, logger)

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Auth:           httptransport.NewAuthHandler(authService, cfg.CookieSecure, logger),
		Users:          httptransport.NewUserHandler(userService, logger),
		Availability:   httptransport.NewAvailabilityHandler(availabilityService, logger),
		Sessions:       httptransport.NewSessionHandler(sessionService, userService, now, logger),
		Feedback:       httptransport.NewFeedbackHandler(feedbackService, logger),
		Activities:     httptransport.NewActivityHandler(activityService, logger),
		Tokens:         authService,
		Logger:         logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})
	return a, nil
}

// loadMeetingPool reads the link file when one is configured. Without a
// file the pool is empty and every approval falls back.
func loadMeetingPool(path string) (*meeting.Pool, error) {
	if path == "" {
		return meeting.NewPool(nil)
	}
	pool, err := meeting.LoadPoolFile(os.DirFS(filepath.Dir(path)), filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("load meeting links from %s: %w", path, err)
	}
	return pool, nil
}
