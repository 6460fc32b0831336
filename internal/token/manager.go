// Package token issues and verifies the HS256 access tokens handed out at login.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/example/mentorbook/internal/application"
)

const issuer = "mentorbook"

var (
	ErrTokenExpired = errors.New("token: expired")
	ErrTokenInvalid = errors.New("token: invalid")
	ErrTokenRevoked = errors.New("token: revoked")
)

// Blacklist remembers revoked token IDs until the token would have expired.
type Blacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// Claims are the JWT claims carried by an access token.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwtv5.RegisteredClaims
}

// Options configures a Manager.
type Options struct {
	Secret    string
	TTL       time.Duration
	Blacklist Blacklist
	Now       func() time.Time
	NewID     func() string
}

// Manager implements application.TokenManager.
type Manager struct {
	secret    []byte
	ttl       time.Duration
	blacklist Blacklist
	now       func() time.Time
	newID     func() string
}

// NewManager validates opts and returns a Manager. A nil blacklist keeps
// revocations in process memory.
func NewManager(opts Options) (*Manager, error) {
	if opts.Secret == "" {
		return nil, errors.New("token: secret is required")
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("token: ttl must be positive, got %s", opts.TTL)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	if opts.Blacklist == nil {
		opts.Blacklist = NewMemoryBlacklist(opts.Now)
	}
	return &Manager{
		secret:    []byte(opts.Secret),
		ttl:       opts.TTL,
		blacklist: opts.Blacklist,
		now:       opts.Now,
		newID:     opts.NewID,
	}, nil
}

// Issue signs a new access token for principal.
func (m *Manager) Issue(_ context.Context, principal application.Principal) (application.IssuedToken, error) {
	now := m.now()
	expires := now.Add(m.ttl)
	claims := Claims{
		UserID: principal.UserID,
		Role:   string(principal.Role),
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        m.newID(),
			Subject:   principal.UserID,
			Issuer:    issuer,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(expires),
		},
	}

	signed, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return application.IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}
	return application.IssuedToken{ID: claims.ID, Value: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Parse verifies the signature, expiry and revocation state of raw.
func (m *Manager) Parse(ctx context.Context, raw string) (application.TokenClaims, error) {
	claims, err := m.parse(raw)
	if err != nil {
		return application.TokenClaims{}, err
	}

	revoked, err := m.blacklist.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return application.TokenClaims{}, fmt.Errorf("check blacklist: %w", err)
	}
	if revoked {
		return application.TokenClaims{}, ErrTokenRevoked
	}

	role, _ := application.ParseRole(claims.Role)
	return application.TokenClaims{
		ID:        claims.ID,
		UserID:    claims.UserID,
		Role:      role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (m *Manager) parse(raw string) (*Claims, error) {
	token, err := jwtv5.ParseWithClaims(raw, &Claims{}, func(t *jwtv5.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.secret, nil
	},
		jwtv5.WithTimeFunc(m.now),
		jwtv5.WithIssuer(issuer),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID == "" || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Revoke blacklists the token for the rest of its lifetime.
func (m *Manager) Revoke(ctx context.Context, claims application.TokenClaims) error {
	if claims.ID == "" {
		return ErrTokenInvalid
	}
	return m.blacklist.BlacklistToken(ctx, claims.ID, claims.ExpiresAt.Sub(m.now()))
}
