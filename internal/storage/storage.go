// Package storage defines the persistence contracts for challenges and
// WebAuthn credentials.
package storage

import (
	"context"
	"time"

	"github.com/latchkey-auth/latchkey/internal/platform/errors"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// ErrDuplicateCredential indicates the credential ID is already registered.
var ErrDuplicateCredential = errors.New(errors.CodeDuplicateCredential, "credential is already registered")

// Challenge is the single outstanding ceremony challenge for a user.
//
// At most one live challenge exists per user: saving a new one replaces any
// prior value, and taking it removes it.
type Challenge struct {
	UserID    string
	Value     []byte
	CreatedAt time.Time
}

// Credential is a registered WebAuthn public-key credential.
//
// CredentialID is globally unique across users. PublicKey holds the
// COSE-encoded key exactly as reported by the authenticator at registration.
type Credential struct {
	CredentialID []byte
	UserID       string
	PublicKey    []byte
	Counter      uint32
	Transports   []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ChallengeStore persists per-user ceremony challenges.
type ChallengeStore interface {
	// SaveChallenge upserts the challenge for a user, replacing any prior one.
	SaveChallenge(ctx context.Context, userID string, value []byte) error
	// TakeChallenge atomically returns the stored challenge and removes it.
	// A second call before a new SaveChallenge returns ErrNotFound.
	TakeChallenge(ctx context.Context, userID string) (Challenge, error)
}

// CredentialStore persists registered credentials.
type CredentialStore interface {
	// InsertCredential stores a new credential. It fails with
	// ErrDuplicateCredential when the credential ID already exists.
	InsertCredential(ctx context.Context, credential Credential) error
	// GetCredential fetches a credential by its raw ID.
	GetCredential(ctx context.Context, credentialID []byte) (Credential, error)
	// ListCredentialsByUser returns all credentials owned by a user, in no
	// particular order.
	ListCredentialsByUser(ctx context.Context, userID string) ([]Credential, error)
	// UpdateCredentialCounter unconditionally overwrites the signature
	// counter. Callers validate counter ordering before calling.
	UpdateCredentialCounter(ctx context.Context, credentialID []byte, counter uint32) error
}
