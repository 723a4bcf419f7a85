package session

import (
	"testing"
	"time"

	"github.com/latchkey-auth/latchkey/internal/platform/errors"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(Config{Secret: "test-secret", TTL: time.Hour})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return manager
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	manager := newTestManager(t)

	token, err := manager.Issue("morgan@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	userID, err := manager.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != "morgan@example.com" {
		t.Fatalf("user = %q, want morgan@example.com", userID)
	}
}

func TestIssueRequiresUser(t *testing.T) {
	manager := newTestManager(t)
	if _, err := manager.Issue("  "); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	manager := newTestManager(t)
	token, err := manager.Issue("morgan@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other, err := NewManager(Config{Secret: "different-secret", TTL: time.Hour})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	_, err = other.Verify(token)
	if errors.CodeOf(err) != errors.CodeUnauthenticated {
		t.Fatalf("code = %v, want %v", errors.CodeOf(err), errors.CodeUnauthenticated)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	manager := newTestManager(t)
	issued := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	manager.clock = func() time.Time { return issued }

	token, err := manager.Issue("morgan@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	manager.clock = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = manager.Verify(token)
	if errors.CodeOf(err) != errors.CodeUnauthenticated {
		t.Fatalf("code = %v, want %v", errors.CodeOf(err), errors.CodeUnauthenticated)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	manager := newTestManager(t)
	for _, token := range []string{"", "  ", "not-a-token", "a.b.c"} {
		if _, err := manager.Verify(token); errors.CodeOf(err) != errors.CodeUnauthenticated {
			t.Fatalf("token %q: code = %v, want %v", token, errors.CodeOf(err), errors.CodeUnauthenticated)
		}
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager(Config{Secret: "   "}); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestNewManagerDefaultsTTL(t *testing.T) {
	manager, err := NewManager(Config{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if manager.TTL() != 24*time.Hour {
		t.Fatalf("ttl = %v, want 24h", manager.TTL())
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LATCHKEY_SESSION_SECRET", "from-env")
	t.Setenv("LATCHKEY_SESSION_TTL", "30m")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Secret != "from-env" {
		t.Fatalf("secret = %q, want from-env", cfg.Secret)
	}
	if cfg.TTL != 30*time.Minute {
		t.Fatalf("ttl = %v, want 30m", cfg.TTL)
	}
}
