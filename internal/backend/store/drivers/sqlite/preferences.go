package sqlite

import (
	"context"

	"github.com/aussiebroadwan/askbar/internal/backend/domain"
)

type preferencesRepo struct {
	q querier
}

func (r *preferencesRepo) CreateDefaultPreferences(ctx context.Context, userID string) error {
	now := nowMillis()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO notification_preferences (user_id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, now, now,
	)
	return err
}

func (r *preferencesRepo) GetPreferences(ctx context.Context, userID string) (domain.NotificationPreferences, error) {
	var (
		p                    domain.NotificationPreferences
		createdAt, updatedAt int64
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT user_id, email_on_answer, email_on_mention, weekly_digest, created_at, updated_at
		FROM notification_preferences WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.EmailOnAnswer, &p.EmailOnMention, &p.WeeklyDigest, &createdAt, &updatedAt)
	if err != nil {
		return domain.NotificationPreferences{}, mapNotFound(err)
	}
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}
