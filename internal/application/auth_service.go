package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// CredentialStore exposes user credential lookup operations required by the auth service.
type CredentialStore interface {
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	GetUser(ctx context.Context, id string) (User, error)
}

// TokenManager issues, verifies and revokes access tokens.
type TokenManager interface {
	Issue(ctx context.Context, principal Principal) (IssuedToken, error)
	Parse(ctx context.Context, token string) (TokenClaims, error)
	Revoke(ctx context.Context, claims TokenClaims) error
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// AuthService coordinates login, token validation and logout.
type AuthService struct {
	credentials    CredentialStore
	tokens         TokenManager
	verifyPassword PasswordVerifier
	logger         *zap.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, tokens TokenManager, verify PasswordVerifier) *AuthService {
	return NewAuthServiceWithLogger(credentials, tokens, verify, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(credentials CredentialStore, tokens TokenManager, verify PasswordVerifier, logger *zap.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	return &AuthService{
		credentials:    credentials,
		tokens:         tokens,
		verifyPassword: verify,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, fields...)
}

// Authenticate validates credentials and issues a new access token.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		return AuthenticateResult{}, fmt.Errorf("AuthService is nil")
	}
	if s.credentials == nil || s.tokens == nil {
		return AuthenticateResult{}, fmt.Errorf("auth dependencies not configured")
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	logger := s.loggerWith(ctx, "Authenticate", zap.String("email", email))
	defer func() {
		logOutcome(logger, err, "authentication", zap.String("user_id", result.User.ID))
	}()

	if email == "" || params.Password == "" {
		return AuthenticateResult{}, ErrInvalidCredentials
	}

	creds, err := s.credentials.GetUserCredentialsByEmail(ctx, email)
	if err != nil {
		mapped := mapRepoError(err, nil)
		if errors.Is(mapped, ErrNotFound) {
			return AuthenticateResult{}, ErrInvalidCredentials
		}
		return AuthenticateResult{}, mapped
	}

	if err = s.verifyPassword(creds.PasswordHash, params.Password); err != nil {
		return AuthenticateResult{}, ErrInvalidCredentials
	}

	issued, err := s.tokens.Issue(ctx, Principal{UserID: creds.User.ID, Role: creds.User.Role})
	if err != nil {
		return AuthenticateResult{}, fmt.Errorf("issue token: %w", err)
	}

	return AuthenticateResult{User: creds.User, Token: issued.Value, ExpiresAt: issued.ExpiresAt}, nil
}

// ValidateToken verifies a token and resolves the principal it was issued to.
// The role is read from the store so a stale claim cannot outlive a role change.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		return Principal{}, fmt.Errorf("AuthService is nil")
	}
	if s.credentials == nil || s.tokens == nil {
		return Principal{}, fmt.Errorf("auth dependencies not configured")
	}

	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Principal{}, ErrUnauthenticated
	}

	claims, err := s.tokens.Parse(ctx, trimmed)
	if err != nil {
		s.loggerWith(ctx, "ValidateToken").Debug("token rejected", zap.Error(err))
		return Principal{}, ErrUnauthenticated
	}

	user, err := s.credentials.GetUser(ctx, claims.UserID)
	if err != nil {
		mapped := mapRepoError(err, nil)
		if errors.Is(mapped, ErrNotFound) {
			return Principal{}, ErrUnauthenticated
		}
		return Principal{}, mapped
	}
	return Principal{UserID: user.ID, Role: user.Role}, nil
}

// Logout revokes the token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, token string) (err error) {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.tokens == nil {
		return fmt.Errorf("token manager not configured")
	}

	logger := s.loggerWith(ctx, "Logout")
	var claims TokenClaims
	defer func() {
		logOutcome(logger, err, "logout", zap.String("user_id", claims.UserID), zap.String("token_id", claims.ID))
	}()

	claims, err = s.tokens.Parse(ctx, strings.TrimSpace(token))
	if err != nil {
		return ErrUnauthenticated
	}
	if err = s.tokens.Revoke(ctx, claims); err != nil {
		return fmt.Errorf("%w: revoke token: %v", ErrStoreUnavailable, err)
	}
	return nil
}
