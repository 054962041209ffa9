package sqlite

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aussiebroadwan/askbar/internal/backend/domain"
)

type profilesRepo struct {
	q querier
}

const profileColumns = `id, username, email, avatar_url, bio, level, points, role,
	questions_asked, answers_given, best_answers, reputation, interests, created_at, updated_at`

func (r *profilesRepo) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	var (
		p                    domain.Profile
		role, interests      string
		createdAt, updatedAt int64
	)
	err := r.q.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id).Scan(
		&p.ID, &p.Username, &p.Email, &p.AvatarURL, &p.Bio, &p.Level, &p.Points, &role,
		&p.QuestionsAsked, &p.AnswersGiven, &p.BestAnswers, &p.Reputation, &interests,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Profile{}, mapNotFound(err)
	}
	if err := json.Unmarshal([]byte(interests), &p.Interests); err != nil {
		return domain.Profile{}, err
	}
	p.Role = domain.Role(role)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

func (r *profilesRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM profiles WHERE username = ? COLLATE NOCASE)`,
		strings.TrimSpace(username),
	).Scan(&exists)
	return exists, err
}

func (r *profilesRepo) CreateProfile(ctx context.Context, p domain.Profile) error {
	interests, err := encodeJSON(nonNilSlice(p.Interests))
	if err != nil {
		return err
	}
	now := nowMillis()
	_, err = r.q.ExecContext(ctx, `INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Username, p.Email, p.AvatarURL, p.Bio, p.Level, p.Points, string(p.Role),
		p.QuestionsAsked, p.AnswersGiven, p.BestAnswers, p.Reputation, interests, now, now,
	)
	return mapConstraint(err)
}

func (r *profilesRepo) UpdateProfile(ctx context.Context, id string, u domain.ProfileUpdate) error {
	var (
		sets []string
		args []any
	)
	if u.Username != nil {
		sets, args = append(sets, "username = ?"), append(args, *u.Username)
	}
	if u.AvatarURL != nil {
		sets, args = append(sets, "avatar_url = ?"), append(args, *u.AvatarURL)
	}
	if u.Bio != nil {
		sets, args = append(sets, "bio = ?"), append(args, *u.Bio)
	}
	if u.Interests != nil {
		encoded, err := encodeJSON(nonNilSlice(*u.Interests))
		if err != nil {
			return err
		}
		sets, args = append(sets, "interests = ?"), append(args, encoded)
	}
	sets, args = append(sets, "updated_at = ?"), append(args, nowMillis())
	args = append(args, id)

	return requireAffected(r.q.ExecContext(ctx,
		`UPDATE profiles SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...))
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
