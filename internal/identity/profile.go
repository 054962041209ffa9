package identity

import (
	"context"
)

// UpdateProfile persists patch for the signed-in user and merges it into the
// cached profile.
func (m *Manager) UpdateProfile(ctx context.Context, patch ProfilePatch) error {
	const op = "update-profile"

	id := m.store.Snapshot().Identity
	if id == nil {
		e := wrap(op, ErrNotSignedIn)
		m.notify.Warning(e.Msg)
		return e
	}
	if patch.IsEmpty() {
		return nil
	}
	if err := m.validate.Struct(patch); err != nil {
		return m.fail(op, err)
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()
	defer m.loading()()

	if err := m.profiles.UpdateProfile(ctx, id.ID, patch); err != nil {
		m.log.Warn("update profile failed", "user_id", id.ID, "err", err)
		return m.fail(op, err)
	}

	m.write(func(s *Store) {
		cur := s.Snapshot()
		if cur.Identity == nil || cur.Identity.ID != id.ID || cur.Profile == nil {
			m.metrics.discarded()
			return
		}
		s.commitProfile(id.ID, patch.ApplyTo(cur.Profile))
	})

	m.notify.Success("Profile updated.")
	return nil
}
