package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TokenRecord is the metadata of a stored OAuth token
type TokenRecord struct {
	ID        string
	Provider  string
	Sealed    bool
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TokenStore persists serialized OAuth tokens per provider
type TokenStore struct {
	db     *DB
	sealer *Sealer
}

// NewTokenStore creates a token store. A nil sealer stores tokens unencrypted.
func NewTokenStore(db *DB, sealer *Sealer) *TokenStore {
	return &TokenStore{db: db, sealer: sealer}
}

// Save inserts or replaces the token for provider
func (s *TokenStore) Save(provider string, data []byte, expiresAt *time.Time) error {
	sealed := false
	if s.sealer != nil {
		var err error
		if data, err = s.sealer.Seal(data); err != nil {
			return fmt.Errorf("seal token: %w", err)
		}
		sealed = true
	}

	now := time.Now().UTC()
	_, err := s.db.conn.Exec(`
		INSERT INTO oauth_tokens (id, provider, token_data, sealed, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			token_data = excluded.token_data,
			sealed = excluded.sealed,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, uuid.New().String(), provider, data, sealed, expiresAt, now, now)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// Get returns the token for provider, or ErrNotFound
func (s *TokenStore) Get(provider string) ([]byte, error) {
	var data []byte
	var sealed bool
	err := s.db.conn.QueryRow(`
		SELECT token_data, sealed FROM oauth_tokens WHERE provider = ?
	`, provider).Scan(&data, &sealed)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query token: %w", err)
	}

	if !sealed {
		return data, nil
	}
	if s.sealer == nil {
		return nil, ErrSealed
	}
	return s.sealer.Open(data)
}

// GetRecord returns token metadata without opening it
func (s *TokenStore) GetRecord(provider string) (*TokenRecord, error) {
	var record TokenRecord
	var expiresAt sql.NullTime

	err := s.db.conn.QueryRow(`
		SELECT id, provider, sealed, expires_at, created_at, updated_at
		FROM oauth_tokens WHERE provider = ?
	`, provider).Scan(
		&record.ID,
		&record.Provider,
		&record.Sealed,
		&expiresAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query token: %w", err)
	}

	if expiresAt.Valid {
		record.ExpiresAt = &expiresAt.Time
	}
	return &record, nil
}

// Delete removes the token for provider. Deleting a missing token is not an error.
func (s *TokenStore) Delete(provider string) error {
	if _, err := s.db.conn.Exec(`DELETE FROM oauth_tokens WHERE provider = ?`, provider); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
