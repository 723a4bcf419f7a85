package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/latchkey-auth/latchkey/internal/storage"
)

// SaveChallenge upserts the single outstanding challenge for a user.
func (s *Store) SaveChallenge(ctx context.Context, userID string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	if len(value) == 0 {
		return fmt.Errorf("challenge value is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO challenges (user_id, value, created_at)
VALUES (?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET value = excluded.value, created_at = excluded.created_at
`, userID, value, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("save challenge: %w", err)
	}
	return nil
}

// TakeChallenge atomically fetches and removes the challenge for a user.
//
// DELETE ... RETURNING makes the consume a single statement, so two
// concurrent completions for the same user cannot both observe a live
// challenge.
func (s *Store) TakeChallenge(ctx context.Context, userID string) (storage.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return storage.Challenge{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Challenge{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return storage.Challenge{}, fmt.Errorf("user id is required")
	}

	var value []byte
	var createdAt int64
	err := s.sqlDB.QueryRowContext(ctx, `
DELETE FROM challenges WHERE user_id = ? RETURNING value, created_at
`, userID).Scan(&value, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Challenge{}, storage.ErrNotFound
		}
		return storage.Challenge{}, fmt.Errorf("take challenge: %w", err)
	}

	return storage.Challenge{
		UserID:    userID,
		Value:     value,
		CreatedAt: fromMillis(createdAt),
	}, nil
}
