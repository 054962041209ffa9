package identity

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/askbar/pkg/retryx"
)

// bootstrap restores the persisted session, loads its profile and marks the
// store initialized whatever happened.
func (m *Manager) bootstrap(ctx context.Context) {
	if !m.bootstrapping.TryAcquire() {
		return
	}
	defer m.bootstrapping.Release()

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	defer m.write((*Store).finishBootstrap)

	sess, err := retryx.Do(ctx, m.cfg.Retry, m.provider.GetSession)
	switch {
	case err != nil:
		if !errors.Is(err, context.Canceled) {
			m.log.Error("restore session failed", "err", err)
			m.notify.Error(wrap("bootstrap", err).Msg)
		}
		return
	case sess == nil:
		m.log.Debug("no persisted session")
		return
	}

	if !m.write(func(s *Store) { s.SetSession(sess) }) {
		return
	}
	m.loadProfile(ctx, sess.User.ID, true)
}
