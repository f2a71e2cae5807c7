package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Store persists tokens in the access_token table.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load returns the stored token for key. The bool is false when none is stored.
func (s *Store) Load(ctx context.Context, key Key) (Token, bool, error) {
	var value, expiresAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT token, expires_at FROM access_token WHERE corp_id = ? AND agent_id = ?;",
		key.CorpID, key.AgentID,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, fmt.Errorf("read access token: %w", err)
	}

	exp, err := time.Parse(time.RFC3339Nano, expiresAt)
	if err != nil {
		return Token{}, false, fmt.Errorf("stored expires_at is invalid for %s: %w", key, err)
	}
	return Token{Value: value, ExpiresAt: exp}, true, nil
}

// Save upserts the token for key.
func (s *Store) Save(ctx context.Context, key Key, tok Token) error {
	if key.CorpID == "" {
		return fmt.Errorf("corp id is empty")
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO access_token (corp_id, agent_id, token, expires_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(corp_id, agent_id) DO UPDATE SET
  token = excluded.token,
  expires_at = excluded.expires_at,
  updated_at = excluded.updated_at;`,
		key.CorpID, key.AgentID, tok.Value, tok.ExpiresAt.UTC().Format(time.RFC3339Nano), now,
	)
	if err != nil {
		return fmt.Errorf("write access token: %w", err)
	}
	return nil
}
