package identitysdk

import (
	"slices"
	"time"
)

// EventKind names an auth state change.
type EventKind string

const (
	EventSignedIn         EventKind = "SIGNED_IN"
	EventSignedOut        EventKind = "SIGNED_OUT"
	EventTokenRefreshed   EventKind = "TOKEN_REFRESHED"
	EventUserUpdated      EventKind = "USER_UPDATED"
	EventPasswordRecovery EventKind = "PASSWORD_RECOVERY"
)

// AuthEvent is published on every auth state change. Session is nil after
// sign-out.
type AuthEvent struct {
	Kind    EventKind
	Session *Session
}

// User is the minimal identity record: id and email.
type User struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Session is the token bundle issued by the backend.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// ExpiresWithin reports whether the access token expires within d of now.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !now.Add(d).Before(s.ExpiresAt)
}

// Clone returns a deep copy so callers can't alias the client's cached session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.User.Metadata != nil {
		cp.User.Metadata = make(map[string]string, len(s.User.Metadata))
		for k, v := range s.User.Metadata {
			cp.User.Metadata[k] = v
		}
	}
	return &cp
}

// Role is a profile's moderation role.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Profile is the extended user record keyed by identity id.
type Profile struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	Bio            string    `json:"bio,omitempty"`
	Level          int       `json:"level"`
	Points         int       `json:"points"`
	Role           Role      `json:"role"`
	QuestionsAsked int       `json:"questions_asked"`
	AnswersGiven   int       `json:"answers_given"`
	BestAnswers    int       `json:"best_answers"`
	Reputation     int       `json:"reputation"`
	Interests      []string  `json:"interests"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Clone returns a copy that shares no slices with p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Interests = slices.Clone(p.Interests)
	return &cp
}

// NewProfile is the row inserted right after sign-up.
type NewProfile struct {
	ID       string `json:"id" validate:"required"`
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email"`
}

// ProfilePatch carries the user-editable fields; nil means unchanged.
type ProfilePatch struct {
	Username  *string   `json:"username,omitempty" validate:"omitempty,username"`
	AvatarURL *string   `json:"avatar_url,omitempty" validate:"omitempty,http_url"`
	Bio       *string   `json:"bio,omitempty" validate:"omitempty,max=500"`
	Interests *[]string `json:"interests,omitempty" validate:"omitempty,max=5,dive,min=1,max=32"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ProfilePatch) IsEmpty() bool {
	return p.Username == nil && p.AvatarURL == nil && p.Bio == nil && p.Interests == nil
}

// ApplyTo returns a copy of dst with the patch merged in.
func (p ProfilePatch) ApplyTo(dst *Profile) *Profile {
	out := dst.Clone()
	if out == nil {
		return nil
	}
	if p.Username != nil {
		out.Username = *p.Username
	}
	if p.AvatarURL != nil {
		out.AvatarURL = *p.AvatarURL
	}
	if p.Bio != nil {
		out.Bio = *p.Bio
	}
	if p.Interests != nil {
		out.Interests = slices.Clone(*p.Interests)
	}
	return out
}

// UserUpdate changes identity-level fields; nil means unchanged.
type UserUpdate struct {
	Email    *string           `json:"email,omitempty"`
	Password *string           `json:"password,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// TokenResponse is the body of the token and signup endpoints.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// SignUpRequest is the body of POST /v1/signup.
type SignUpRequest struct {
	Email    string            `json:"email"`
	Password string            `json:"password"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// UsernameAvailability is the body of GET /v1/usernames/{username}.
type UsernameAvailability struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

// HealthResponse is the body of /livez and /readyz. Checks is only set by
// /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the backend's critical dependencies.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

// NotificationPreferences are the per-user mail settings created after
// sign-up.
type NotificationPreferences struct {
	UserID         string    `json:"user_id"`
	EmailOnAnswer  bool      `json:"email_on_answer"`
	EmailOnMention bool      `json:"email_on_mention"`
	WeeklyDigest   bool      `json:"weekly_digest"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
