package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/askbar/internal/backend/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Drivers implement it and hand out
// per-table repositories; a Tx hands out the same repositories bound to the
// transaction.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens
	Profiles() Profiles
	Preferences() Preferences

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches case-insensitively; used by the password grant.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	UpdateEmail(ctx context.Context, userID, email string) error
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	UpdateMetadata(ctx context.Context, userID string, metadata map[string]string) error
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by fingerprint, revoked or not.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	RevokeRefreshToken(ctx context.Context, hash string) error

	// RevokeSession revokes every token issued under sessionID.
	RevokeSession(ctx context.Context, sessionID string) error

	// DeleteExpiredRefreshTokens removes expired and revoked rows and reports
	// how many went.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type Profiles interface {
	GetProfile(ctx context.Context, id string) (domain.Profile, error)

	// UsernameExists matches case-insensitively. There is no unique index
	// behind it.
	UsernameExists(ctx context.Context, username string) (bool, error)

	// CreateProfile returns ErrAlreadyExists when a row with the id exists.
	CreateProfile(ctx context.Context, p domain.Profile) error

	// UpdateProfile applies the non-nil fields and bumps updated_at.
	UpdateProfile(ctx context.Context, id string, u domain.ProfileUpdate) error
}

type Preferences interface {
	// CreateDefaultPreferences is a no-op when the row already exists.
	CreateDefaultPreferences(ctx context.Context, userID string) error
	GetPreferences(ctx context.Context, userID string) (domain.NotificationPreferences, error)
}
