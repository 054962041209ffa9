package domain

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string // argon2id PHC string
	Metadata     map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserUpdate changes identity-level fields. Nil leaves a field alone; a nil
// Metadata map keeps the stored one.
type UserUpdate struct {
	Email    *string
	Password *string
	Metadata map[string]string
}
