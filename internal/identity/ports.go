package identity

import (
	"context"

	"github.com/aussiebroadwan/askbar/pkg/identitysdk"
)

type (
	Session      = identitysdk.Session
	Identity     = identitysdk.User
	Profile      = identitysdk.Profile
	ProfilePatch = identitysdk.ProfilePatch
	NewProfile   = identitysdk.NewProfile
	AuthEvent    = identitysdk.AuthEvent
	EventKind    = identitysdk.EventKind
	Subscription = identitysdk.Subscription
)

// ErrProfileNotFound is what ProfileStore.GetProfile returns for a missing row.
var ErrProfileNotFound = identitysdk.ErrProfileNotFound

// Provider is the external identity provider.
type Provider interface {
	// GetSession restores the persisted session; nil, nil when signed out.
	GetSession(ctx context.Context) (*Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*Session, error)
	SignOut(ctx context.Context) error
	// SignInWithOAuth returns the URL to send the user agent to.
	SignInWithOAuth(ctx context.Context, provider, redirectTo string) (string, error)
	Subscribe() Subscription
}

// ProfileStore holds profile rows keyed by identity id.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*Profile, error)
	UsernameAvailable(ctx context.Context, username string) (bool, error)
	InsertProfile(ctx context.Context, p NewProfile) (*Profile, error)
	UpdateProfile(ctx context.Context, id string, patch ProfilePatch) error
	CreateDefaultPreferences(ctx context.Context, id string) error
}

// Storage is the local key-value cache the provider persists tokens in.
type Storage interface {
	Keys() ([]string, error)
	Remove(key string) error
}

// Notifier shows fire-and-forget messages to the user.
type Notifier interface {
	Success(msg string)
	Info(msg string)
	Warning(msg string)
	Error(msg string)
	// Loading shows a persistent message until Dismiss is called with its id.
	Loading(msg string) string
	Dismiss(id string)
}

// Navigator moves the user agent to a route or external URL.
type Navigator interface {
	Navigate(target string)
}

var (
	_ Provider     = (*identitysdk.Client)(nil)
	_ ProfileStore = (*identitysdk.Client)(nil)
)
