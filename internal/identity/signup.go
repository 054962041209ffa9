package identity

import (
	"context"
	"strings"
	"time"
)

// SignUpInput is what the registration form collects.
type SignUpInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Username string `json:"username" validate:"required,username"`
}

// SignUp checks the username, creates the identity and then its profile row.
// If the profile can't be created the identity is signed out again so no
// half-created account stays signed in, and the profile error is returned.
func (m *Manager) SignUp(ctx context.Context, in SignUpInput) error {
	const op = "sign-up"

	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := m.validate.Struct(in); err != nil {
		return m.fail(op, err)
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()
	defer m.loading()()

	available, err := m.profiles.UsernameAvailable(ctx, in.Username)
	if err != nil {
		return m.fail(op, err)
	}
	if !available {
		return m.fail(op, ErrUsernameTaken)
	}

	// The sign-up greets the user itself; its SIGNED_IN stays quiet.
	key := welcomeKey(in.Email)
	m.signUpWelcomes.Store(key, struct{}{})
	sess, err := m.provider.SignUp(ctx, in.Email, in.Password, map[string]string{"username": in.Username})
	if err != nil {
		m.signUpWelcomes.Delete(key)
		return m.fail(op, err)
	}
	if sess == nil {
		m.signUpWelcomes.Delete(key)
		// Provider wants the address confirmed before issuing a session.
		m.notify.Info("Check your email to confirm your account.")
		return nil
	}
	userID := sess.User.ID

	profile, err := m.profiles.InsertProfile(ctx, NewProfile{
		ID:       userID,
		Username: in.Username,
		Email:    in.Email,
	})
	if err != nil {
		m.log.Error("create profile failed, rolling back sign-up", "user_id", userID, "err", err)
		m.rollbackSignUp(ctx)
		return m.fail(op, err)
	}

	// SIGNED_IN may already have landed; if it hasn't, its own load will
	// pick the row up.
	m.write(func(s *Store) { s.commitProfile(userID, profile) })

	m.goBackground(func(ctx context.Context) {
		if err := m.profiles.CreateDefaultPreferences(ctx, userID); err != nil {
			m.log.Warn("create default preferences failed", "user_id", userID, "err", err)
		}
	})

	m.notify.Success("Welcome to askbar, " + in.Username + "!")
	return nil
}

// rollbackSignUp signs the just-created identity out. It holds the
// signing-out latch until its own SIGNED_OUT event has been handled so that
// event doesn't raise a "session ended" notice on top of the sign-up error.
func (m *Manager) rollbackSignUp(ctx context.Context) {
	m.metrics.rollback()

	held := m.signingOut.TryAcquire()
	if held {
		defer m.signingOut.Release()
	}

	m.drainSignedOut()
	m.write((*Store).ClearAll)
	if err := m.provider.SignOut(ctx); err != nil {
		m.log.Warn("rollback sign-out failed", "err", err)
	}
	if held {
		m.awaitSignedOut(ctx)
	}
}

// awaitSignedOut waits, up to SignOutEventWait, for the event loop to handle
// a SIGNED_OUT. Callers drain m.signedOut before triggering it.
func (m *Manager) awaitSignedOut(ctx context.Context) {
	t := time.NewTimer(m.cfg.SignOutEventWait)
	defer t.Stop()
	select {
	case <-m.signedOut:
	case <-t.C:
	case <-ctx.Done():
	case <-m.scope.Context().Done():
	}
}

func (m *Manager) drainSignedOut() {
	select {
	case <-m.signedOut:
	default:
	}
}

// fail notifies once and returns the classified error.
func (m *Manager) fail(op string, err error) error {
	e := wrap(op, err)
	m.notify.Error(e.Msg)
	return e
}
