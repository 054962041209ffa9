package identity

import (
	"context"
	"strings"
)

// SignInInput carries password credentials.
type SignInInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignIn exchanges credentials for a session. The store is updated by the
// SIGNED_IN event the provider publishes, not here.
func (m *Manager) SignIn(ctx context.Context, in SignInInput) error {
	const op = "sign-in"

	in.Email = strings.TrimSpace(in.Email)
	if err := m.validate.Struct(in); err != nil {
		return m.fail(op, err)
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()
	defer m.loading()()

	if _, err := m.provider.SignInWithPassword(ctx, in.Email, in.Password); err != nil {
		m.log.Info("sign-in rejected", "err", err)
		return m.fail(op, err)
	}
	return nil
}

// SignInWithOAuth starts a redirect flow with an external provider such as
// "google" or "github". redirectTo is where the provider returns the user.
func (m *Manager) SignInWithOAuth(ctx context.Context, provider, redirectTo string) error {
	const op = "oauth"

	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return m.fail(op, &Error{Kind: KindValidation, Op: op, Msg: "Choose a sign-in provider."})
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	target, err := m.provider.SignInWithOAuth(ctx, provider, redirectTo)
	if err != nil {
		m.log.Warn("oauth start failed", "provider", provider, "err", err)
		return m.fail(op, err)
	}
	m.nav.Navigate(target)
	return nil
}
