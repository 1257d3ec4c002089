package store

import (
	"context"
	"time"
)

// RevokeToken records a token id as revoked until it expires.
func (s *Store) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, expires_at) VALUES (?, ?)
		 ON CONFLICT(jti) DO NOTHING`,
		jti, expiresAt.UTC(),
	)
	return err
}

// IsTokenRevoked reports whether the token id was revoked and has not expired yet.
func (s *Store) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revoked_tokens WHERE jti = ? AND expires_at > ?`, jti, now(),
	).Scan(&count)
	return count > 0, err
}

// CleanupRevokedTokens removes revocations whose tokens have expired anyway.
func (s *Store) CleanupRevokedTokens(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= ?`, now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
