package sqlite

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aussiebroadwan/askbar/internal/backend/domain"
)

type usersRepo struct {
	q querier
}

const userColumns = `id, email, password_hash, metadata, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var (
		u                    domain.User
		metadata             string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &metadata, &createdAt, &updatedAt); err != nil {
		return domain.User{}, mapNotFound(err)
	}
	if err := json.Unmarshal([]byte(metadata), &u.Metadata); err != nil {
		return domain.User{}, err
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.TrimSpace(email)))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	metadata, err := encodeJSON(nonNilMap(u.Metadata))
	if err != nil {
		return err
	}
	now := nowMillis()
	_, err = r.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, strings.TrimSpace(u.Email), u.PasswordHash, metadata, now, now,
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdateEmail(ctx context.Context, userID, email string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET email = ?, updated_at = ? WHERE id = ?`,
		strings.TrimSpace(email), nowMillis(), userID,
	)
	return mapConstraint(requireAffected(res, err))
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return requireAffected(r.q.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, nowMillis(), userID,
	))
}

func (r *usersRepo) UpdateMetadata(ctx context.Context, userID string, metadata map[string]string) error {
	encoded, err := encodeJSON(nonNilMap(metadata))
	if err != nil {
		return err
	}
	return requireAffected(r.q.ExecContext(ctx,
		`UPDATE users SET metadata = ?, updated_at = ? WHERE id = ?`,
		encoded, nowMillis(), userID,
	))
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
