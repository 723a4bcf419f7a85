// Package session issues and verifies the authenticated session tokens that
// surround the WebAuthn ceremonies: registration requires one, and a
// successful authentication produces one.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/latchkey-auth/latchkey/internal/platform/errors"
	"github.com/latchkey-auth/latchkey/internal/platform/id"
)

// CookieName is the HTTP cookie carrying the session token.
const CookieName = "latchkey_session"

const issuer = "latchkey"

// Config defines how session tokens are signed and how long they live.
type Config struct {
	Secret string        `env:"LATCHKEY_SESSION_SECRET"`
	TTL    time.Duration `env:"LATCHKEY_SESSION_TTL" envDefault:"24h"`
}

// LoadConfigFromEnv reads session configuration.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse session env: %w", err)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return cfg, nil
}

// Manager signs and verifies HMAC session tokens whose subject is the user
// identity.
type Manager struct {
	secret []byte
	ttl    time.Duration
	clock  func() time.Time
}

// NewManager creates a session manager from configuration.
func NewManager(cfg Config) (*Manager, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, fmt.Errorf("LATCHKEY_SESSION_SECRET is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		clock:  time.Now,
	}, nil
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a session token for the user identity.
func (m *Manager) Issue(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("user identity is required")
	}
	tokenID, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}
	now := m.clock().UTC()
	claims := jwt.RegisteredClaims{
		ID:        tokenID,
		Issuer:    issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify validates a session token and returns its user identity.
func (m *Manager) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "session token is required")
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(func() time.Time { return m.clock().UTC() }),
	)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUnauthenticated, "invalid session token", err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "session token missing subject")
	}
	return claims.Subject, nil
}
