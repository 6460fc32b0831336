package testfixtures

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/mentorbook/internal/adapters"
	"github.com/example/mentorbook/internal/application"
	"github.com/example/mentorbook/internal/meeting"
	"github.com/example/mentorbook/internal/token"
)

// DefaultMeetingLink is the single room handed out by stacks built without
// explicit MeetingLinks.
const DefaultMeetingLink = "https://meet.mentorbook.example/fixture-room"

// TokenSecret signs tokens issued by fixture stacks.
const TokenSecret = "fixture-token-secret"

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// StackOptions tunes NewStack.
type StackOptions struct {
	MeetingLinks []string
	Fallback     string
	Publisher    application.ActivityPublisher
	CacheTTL     time.Duration
	TokenTTL     time.Duration
	Logger       *zap.Logger
}

// Stack is every application service wired over one persistence backend.
type Stack struct {
	Raw   adapters.Repositories
	Repos adapters.Set

	Tokens       *token.Manager
	Links        *meeting.Pool
	Users        *application.UserService
	Auth         *application.AuthService
	Availability *application.AvailabilityService
	Sessions     *application.SessionService
	Feedback     *application.FeedbackService
	Activities   *application.ActivityService
}

// NewStack wires the services the same way the server binary does, using
// the factory's clock and identifiers.
func (f *ServiceFactory) NewStack(repos adapters.Repositories, opts StackOptions) (*Stack, error) {
	links := opts.MeetingLinks
	if links == nil {
		links = []string{DefaultMeetingLink}
	}
	pool, err := meeting.NewPool(links)
	if err != nil {
		return nil, fmt.Errorf("testfixtures: meeting pool: %w", err)
	}

	tokenTTL := opts.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	now := f.Clock.NowFunc()
	tokens, err := token.NewManager(token.Options{
		Secret: TokenSecret,
		TTL:    tokenTTL,
		Now:    now,
		NewID:  NewIDGenerator("jti").NextFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("testfixtures: token manager: %w", err)
	}

	set := adapters.New(repos)
	idGen := f.IDGenerator.NextFunc()
	logger := opts.Logger

	activities := application.NewActivityServiceWithLogger(set.Activities, opts.Publisher, idGen, now, logger)
	availability := application.NewAvailabilityServiceWithLogger(set.Availability, set.Users, idGen, now, opts.CacheTTL, logger)
	sessions := application.NewSessionServiceWithLogger(
		set.Sessions,
		set.Users,
		application.MeetingLinks{Provider: pool, Fallback: opts.Fallback},
		activities,
		availability,
		idGen,
		now,
		logger,
	)

	return &Stack{
		Raw:          repos,
		Repos:        set,
		Tokens:       tokens,
		Links:        pool,
		Users:        application.NewUserServiceWithLogger(set.Users, set.Feedback, FastHash, idGen, now, logger),
		Auth:         application.NewAuthServiceWithLogger(set.Users, tokens, application.VerifyPassword, logger),
		Availability: availability,
		Sessions:     sessions,
		Feedback:     application.NewFeedbackServiceWithLogger(set.Feedback, set.Sessions, set.Users, activities, idGen, now, logger),
		Activities:   activities,
	}, nil
}

// SeedUser writes the fixture straight to storage.
func (s *Stack) SeedUser(ctx context.Context, fixture UserFixture) error {
	record, err := fixture.Persistence()
	if err != nil {
		return err
	}
	return s.Raw.Users.CreateUser(ctx, record)
}

// SeedRule writes the rule straight to storage, skipping overlap checks.
func (s *Stack) SeedRule(ctx context.Context, fixture RuleFixture) error {
	if err := s.Raw.Availability.CreateRuleChecked(ctx, fixture.Persistence(), nil); err != nil {
		return err
	}
	s.Availability.InvalidateMentor(fixture.MentorID)
	return nil
}

// SeedSession writes the session straight to storage, skipping slot checks.
func (s *Stack) SeedSession(ctx context.Context, fixture SessionFixture) error {
	if err := s.Raw.Sessions.CreateSessionChecked(ctx, fixture.Persistence(), nil); err != nil {
		return err
	}
	s.Availability.InvalidateMentor(fixture.MentorID)
	return nil
}

// IssueToken signs an access token for the fixture user.
func (s *Stack) IssueToken(ctx context.Context, fixture UserFixture) (string, error) {
	issued, err := s.Tokens.Issue(ctx, fixture.Principal())
	if err != nil {
		return "", err
	}
	return issued.Value, nil
}
