package application

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	minPasswordLength = 8
	maxBioLength      = 2000
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, user User, passwordHash string) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	ListUsersByRole(ctx context.Context, role Role) ([]User, error)
}

// FeedbackLister exposes the feedback a user received.
type FeedbackLister interface {
	ListFeedbackReceived(ctx context.Context, userID string) ([]Feedback, error)
}

// PasswordHasher derives a storable hash from a plaintext password.
type PasswordHasher func(password string) (string, error)

// UserService registers accounts and serves profiles and mentor discovery.
type UserService struct {
	users       UserRepository
	feedback    FeedbackLister
	hash        PasswordHasher
	idGenerator func() string
	now         func() time.Time
	logger      *zap.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, feedback FeedbackLister, hash PasswordHasher, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, feedback, hash, idGenerator, now, nil)
}

// NewUserServiceWithLogger wires dependencies with a specified logger.
func NewUserServiceWithLogger(users UserRepository, feedback FeedbackLister, hash PasswordHasher, idGenerator func() string, now func() time.Time, logger *zap.Logger) *UserService {
	if hash == nil {
		hash = HashPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:       users,
		feedback:    feedback,
		hash:        hash,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, fields...)
}

// Register validates input and persists a new mentor or mentee account.
func (s *UserService) Register(ctx context.Context, params RegisterUserParams) (user User, err error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	normalized := normalizeRegistration(params)
	logger := s.loggerWith(ctx, "Register", zap.String("email", normalized.Email), zap.String("role", normalized.Role))
	defer func() {
		logOutcome(logger, err, "register user", zap.String("user_id", user.ID))
	}()

	role, vErr := validateRegistration(normalized)
	if vErr.HasErrors() {
		return User{}, vErr
	}

	hash, err := s.hash(params.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user = User{
		ID:          s.idGenerator(),
		Email:       normalized.Email,
		DisplayName: normalized.DisplayName,
		Role:        role,
		Bio:         normalized.Bio,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err = s.users.CreateUser(ctx, user, hash); err != nil {
		return User{}, mapRepoError(err, ErrAlreadyExists)
	}
	return user, nil
}

func normalizeRegistration(params RegisterUserParams) RegisterUserParams {
	return RegisterUserParams{
		Email:       strings.ToLower(strings.TrimSpace(params.Email)),
		DisplayName: strings.TrimSpace(params.DisplayName),
		Role:        strings.ToLower(strings.TrimSpace(params.Role)),
		Bio:         strings.TrimSpace(params.Bio),
		Password:    params.Password,
	}
}

func validateRegistration(input RegisterUserParams) (Role, *ValidationError) {
	vErr := &ValidationError{}

	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "email is invalid")
	}
	if input.DisplayName == "" {
		vErr.add("display_name", "display name is required")
	}
	role, ok := ParseRole(input.Role)
	if !ok {
		vErr.add("role", "role must be mentor or mentee")
	}
	if utf8.RuneCountInString(input.Password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if utf8.RuneCountInString(input.Bio) > maxBioLength {
		vErr.add("bio", fmt.Sprintf("bio must be at most %d characters", maxBioLength))
	}
	return role, vErr
}

// GetUser returns a public profile.
func (s *UserService) GetUser(ctx context.Context, id string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return User{}, mapRepoError(err, nil)
	}
	return user, nil
}

// ListMentors returns every mentor with their rating summary, best rated first.
func (s *UserService) ListMentors(ctx context.Context) (mentors []MentorSummary, err error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListMentors")
	defer func() {
		logOutcome(logger, err, "list mentors", zap.Int("count", len(mentors)))
	}()

	users, err := s.users.ListUsersByRole(ctx, RoleMentor)
	if err != nil {
		return nil, mapRepoError(err, nil)
	}

	mentors = make([]MentorSummary, 0, len(users))
	for _, user := range users {
		summary := MentorSummary{User: user}
		if s.feedback != nil {
			received, ferr := s.feedback.ListFeedbackReceived(ctx, user.ID)
			if ferr != nil {
				return nil, mapRepoError(ferr, nil)
			}
			summary.Rating = summarizeRatings(received)
		}
		mentors = append(mentors, summary)
	}

	sort.SliceStable(mentors, func(i, j int) bool {
		if mentors[i].Rating.Average != mentors[j].Rating.Average {
			return mentors[i].Rating.Average > mentors[j].Rating.Average
		}
		return strings.ToLower(mentors[i].User.DisplayName) < strings.ToLower(mentors[j].User.DisplayName)
	})
	return mentors, nil
}
