package store

import (
	"context"
	"database/sql"
)

// SetMetadata upserts a key-value pair in the app_metadata table.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO app_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM app_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// EnsureMetadata returns the stored value for key, storing the result of gen first
// when the key is missing. Concurrent callers all observe the first stored value.
func (s *Store) EnsureMetadata(ctx context.Context, key string, gen func() (string, error)) (string, error) {
	value, err := s.GetMetadata(ctx, key)
	if err != nil || value != "" {
		return value, err
	}
	value, err = gen()
	if err != nil {
		return "", err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO app_metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
		key, value,
	); err != nil {
		return "", err
	}
	return s.GetMetadata(ctx, key)
}
