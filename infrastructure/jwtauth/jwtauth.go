// Package jwtauth verifies HS256 bearer tokens issued by the identity
// provider and mints development tokens for local use.
package jwtauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrazmi/allmyducks/sdk/environment"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingUser  = errors.New("token carries no user id")
)

// Claims is the token payload. Providers put the user id in either sub or id.
type Claims struct {
	ID string `json:"id,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns sub, falling back to id.
func (c Claims) UserID() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.ID
}

// Options represents the exportable auth configuration
type Options struct {
	Secret string        `toml:"secret" env:"JWT_SECRET" required:"true"`
	Issuer string        `toml:"issuer" env:"JWT_ISSUER"`
	TTL    time.Duration `toml:"ttl" env:"JWT_TTL" default:"24h"`
}

// Auth verifies and issues tokens with one shared secret.
type Auth struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures Auth.
type Option func(*Auth)

// WithClock replaces time.Now for expiry checks and issued tokens.
func WithClock(now func() time.Time) Option {
	return func(a *Auth) {
		a.now = now
	}
}

func NewFromEnv(prefix string, opts ...Option) (*Auth, error) {
	var cfg Options
	if err := environment.ParseEnvTags(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing auth config: %w", err)
	}
	return New(cfg, opts...)
}

func New(cfg Options, opts ...Option) (*Auth, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	a := &Auth{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		now:    time.Now,
	}
	if a.ttl <= 0 {
		a.ttl = 24 * time.Hour
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// Verify checks the signature and registered claims and returns the user id.
func (a *Auth) Verify(token string) (string, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, parserOpts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	userID := claims.UserID()
	if userID == "" {
		return "", ErrMissingUser
	}
	return userID, nil
}

// Issue signs a token for userID that expires after the configured TTL.
func (a *Auth) Issue(userID string) (string, error) {
	if userID == "" {
		return "", ErrMissingUser
	}
	now := a.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
