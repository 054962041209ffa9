package identity

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/askbar/pkg/retryx"
)

// LoadProfile fetches the profile for identityID into the store. While a load
// is in flight further non-initial calls return false at once; the running
// load produces the result they would have.
func (m *Manager) LoadProfile(ctx context.Context, identityID string, initial bool) bool {
	ctx, cancel := m.opContext(ctx)
	defer cancel()
	return m.loadProfile(ctx, identityID, initial)
}

// loadProfile keeps loading until the profile it fetched belongs to the
// store's current identity, so a call coalesced into a load for an older
// identity still gets its profile.
func (m *Manager) loadProfile(ctx context.Context, identityID string, initial bool) bool {
	if initial {
		m.profileLoading.held.Store(true)
	} else if !m.profileLoading.TryAcquire() {
		m.metrics.coalesced()
		return false
	}

	for {
		m.fetchProfile(ctx, identityID)

		next, stale := m.store.profileTarget(identityID)
		if stale && ctx.Err() == nil {
			identityID = next
			continue
		}

		m.profileLoading.Release()

		// A load for a newer identity may have been turned away just before
		// the release.
		next, stale = m.store.profileTarget(identityID)
		if !stale || ctx.Err() != nil || !m.profileLoading.TryAcquire() {
			return true
		}
		identityID = next
	}
}

// fetchProfile reads one profile row and commits it unless the identity
// changed or a newer profile was stored while the read was in flight.
func (m *Manager) fetchProfile(ctx context.Context, identityID string) {
	gen := m.store.profileGeneration()

	profile, err := retryx.Do(ctx, m.cfg.Retry, func(ctx context.Context) (*Profile, error) {
		p, err := m.profiles.GetProfile(ctx, identityID)
		if errors.Is(err, ErrProfileNotFound) {
			return nil, retryx.Permanent(err)
		}
		return p, err
	})

	switch {
	case errors.Is(err, ErrProfileNotFound):
		err = nil
		m.metrics.profileFetch("not_found")
		m.log.Info("no profile row yet", "user_id", identityID)
	case err != nil:
		m.metrics.profileFetch("error")
		if !errors.Is(err, context.Canceled) {
			m.log.Error("load profile failed", "user_id", identityID, "err", err)
			m.notify.Error(wrap("load-profile", err).Msg)
		}
	default:
		m.metrics.profileFetch("ok")
	}

	m.write(func(s *Store) {
		if !s.commitFetchedProfile(identityID, profile, gen) {
			m.metrics.discarded()
			m.log.Debug("profile result discarded", "user_id", identityID)
		}
	})
}

// goLoadProfile loads in the background so event dispatch doesn't wait on it.
func (m *Manager) goLoadProfile(identityID string) {
	m.goBackground(func(ctx context.Context) {
		m.loadProfile(ctx, identityID, false)
	})
}
