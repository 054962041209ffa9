package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/askbar/internal/backend/domain"
)

type refreshTokensRepo struct {
	q querier
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	now := nowMillis()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, session_id, expires_at, revoked, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.TokenHash, t.SessionID, toMillis(t.ExpiresAt), t.Revoked, now, now,
	)
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	var (
		t                               domain.RefreshToken
		expiresAt, createdAt, updatedAt int64
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, session_id, expires_at, revoked, created_at, updated_at
		FROM refresh_tokens WHERE token_hash = ?`, hash,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.SessionID, &expiresAt, &t.Revoked, &createdAt, &updatedAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.ExpiresAt = fromMillis(expiresAt)
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updatedAt)
	return t, nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE token_hash = ?`,
		nowMillis(), hash,
	)
	return err
}

func (r *refreshTokensRepo) RevokeSession(ctx context.Context, sessionID string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE session_id = ? AND revoked = 0`,
		nowMillis(), sessionID,
	)
	return err
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < ? OR revoked = 1`,
		toMillis(now),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
