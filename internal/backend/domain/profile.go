package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Profile is the extended user record, keyed by user id.
type Profile struct {
	ID             string
	Username       string
	Email          string
	AvatarURL      string
	Bio            string
	Level          int
	Points         int
	Role           Role
	QuestionsAsked int
	AnswersGiven   int
	BestAnswers    int
	Reputation     int
	Interests      []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProfileUpdate holds the user-editable columns. Nil leaves a column alone.
type ProfileUpdate struct {
	Username  *string
	AvatarURL *string
	Bio       *string
	Interests *[]string
}

func (u ProfileUpdate) IsEmpty() bool {
	return u.Username == nil && u.AvatarURL == nil && u.Bio == nil && u.Interests == nil
}

// NotificationPreferences are created with defaults right after sign-up.
type NotificationPreferences struct {
	UserID         string
	EmailOnAnswer  bool
	EmailOnMention bool
	WeeklyDigest   bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
