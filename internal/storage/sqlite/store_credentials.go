package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/latchkey-auth/latchkey/internal/platform/storage/sqlitemigrate"
	"github.com/latchkey-auth/latchkey/internal/storage"
)

// InsertCredential stores a new WebAuthn credential.
func (s *Store) InsertCredential(ctx context.Context, credential storage.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if len(credential.CredentialID) == 0 {
		return fmt.Errorf("credential id is required")
	}
	if strings.TrimSpace(credential.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if len(credential.PublicKey) == 0 {
		return fmt.Errorf("public key is required")
	}

	now := toMillis(time.Now())
	createdAt := now
	if !credential.CreatedAt.IsZero() {
		createdAt = toMillis(credential.CreatedAt)
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO credentials (credential_id, user_id, public_key, counter, transports, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		encodeCredentialID(credential.CredentialID),
		credential.UserID,
		credential.PublicKey,
		int64(credential.Counter),
		joinTransports(credential.Transports),
		createdAt,
		now,
	)
	if err != nil {
		if sqlitemigrate.IsConstraintError(err) {
			return storage.ErrDuplicateCredential
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// GetCredential fetches a stored credential by its raw ID.
func (s *Store) GetCredential(ctx context.Context, credentialID []byte) (storage.Credential, error) {
	if err := ctx.Err(); err != nil {
		return storage.Credential{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Credential{}, fmt.Errorf("storage is not configured")
	}
	if len(credentialID) == 0 {
		return storage.Credential{}, fmt.Errorf("credential id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT credential_id, user_id, public_key, counter, transports, created_at, updated_at
FROM credentials WHERE credential_id = ?
`, encodeCredentialID(credentialID))

	credential, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Credential{}, storage.ErrNotFound
		}
		return storage.Credential{}, fmt.Errorf("get credential: %w", err)
	}
	return credential, nil
}

// ListCredentialsByUser returns all credentials owned by a user.
func (s *Store) ListCredentialsByUser(ctx context.Context, userID string) ([]storage.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT credential_id, user_id, public_key, counter, transports, created_at, updated_at
FROM credentials WHERE user_id = ?
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	credentials := make([]storage.Credential, 0)
	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return credentials, nil
}

// UpdateCredentialCounter unconditionally overwrites the signature counter.
func (s *Store) UpdateCredentialCounter(ctx context.Context, credentialID []byte, counter uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if len(credentialID) == 0 {
		return fmt.Errorf("credential id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE credentials SET counter = ?, updated_at = ? WHERE credential_id = ?
`, int64(counter), toMillis(time.Now()), encodeCredentialID(credentialID))
	if err != nil {
		return fmt.Errorf("update credential counter: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential counter: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (storage.Credential, error) {
	var encodedID string
	var userID string
	var publicKey []byte
	var counter int64
	var transports string
	var createdAt int64
	var updatedAt int64

	if err := row.Scan(&encodedID, &userID, &publicKey, &counter, &transports, &createdAt, &updatedAt); err != nil {
		return storage.Credential{}, err
	}
	rawID, err := decodeCredentialID(encodedID)
	if err != nil {
		return storage.Credential{}, fmt.Errorf("decode credential id: %w", err)
	}

	return storage.Credential{
		CredentialID: rawID,
		UserID:       userID,
		PublicKey:    publicKey,
		Counter:      uint32(counter),
		Transports:   splitTransports(transports),
		CreatedAt:    fromMillis(createdAt),
		UpdatedAt:    fromMillis(updatedAt),
	}, nil
}
