package domain

import "time"

// TokenPair is what the signup and token endpoints hand back: a short-lived
// access token (JWT) and an opaque refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// RefreshToken models the stored refresh token record.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string // base64url SHA-256 of the opaque token
	SessionID string // stays the same across rotations
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
