package identity

import (
	"context"
	"strings"
	"time"
)

// SignOut signs the user out locally and remotely, clears cached tokens and
// returns to the landing route. Concurrent calls collapse into one; the
// callers that lose return nil immediately. Local state is cleared even when
// the provider call fails.
func (m *Manager) SignOut(ctx context.Context) error {
	if !m.signingOut.TryAcquire() {
		return nil
	}
	defer m.signingOut.Release()
	defer m.loading()()

	toast := m.notify.Loading("Signing out...")

	wasSignedIn := m.store.Snapshot().SignedIn()
	m.drainSignedOut()
	m.write((*Store).ClearAll)

	var failed bool
	if err := m.provider.SignOut(ctx); err != nil {
		failed = true
		m.log.Warn("remote sign-out failed", "err", err)
	}
	if wasSignedIn {
		// Keep the latch until our own SIGNED_OUT has gone through.
		m.awaitSignedOut(ctx)
	}
	if err := m.clearStorage(); err != nil {
		failed = true
		m.log.Warn("clear token storage failed", "err", err)
	}

	m.notify.Dismiss(toast)
	delay := m.cfg.SignOutRedirectDelay
	if failed {
		m.metrics.signOut("partial")
		m.notify.Warning("You've been signed out on this device, but we couldn't reach the server.")
		delay = m.cfg.SignOutFailureDelay
	} else {
		m.metrics.signOut("ok")
		m.notify.Success("You've been signed out.")
	}

	// The redirect happens even if ctx goes away first.
	t := time.NewTimer(delay)
	select {
	case <-t.C:
	case <-ctx.Done():
		t.Stop()
	}

	m.nav.Navigate(m.cfg.LandingRoute)
	return nil
}

func (m *Manager) clearStorage() error {
	if m.storage == nil {
		return nil
	}
	keys, err := m.storage.Keys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if !strings.HasPrefix(k, m.cfg.StorageKeyPrefix) {
			continue
		}
		if err := m.storage.Remove(k); err != nil {
			return err
		}
	}
	return nil
}
