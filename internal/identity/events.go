package identity

import (
	"strings"

	"github.com/aussiebroadwan/askbar/pkg/identitysdk"
)

func (m *Manager) eventLoop(sub Subscription) {
	defer close(m.loopDone)

	ctx := m.scope.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			m.handleEvent(ev)
		}
	}
}

// handleEvent applies one provider event to the store.
func (m *Manager) handleEvent(ev AuthEvent) {
	m.metrics.event(ev.Kind)
	log := m.log.With("event", string(ev.Kind))

	switch ev.Kind {
	case identitysdk.EventSignedIn:
		if !m.write(func(s *Store) { s.SetSession(ev.Session) }) {
			return
		}
		if ev.Session != nil {
			m.goLoadProfile(ev.Session.User.ID)
			if _, fresh := m.signUpWelcomes.LoadAndDelete(welcomeKey(ev.Session.User.Email)); !fresh {
				m.notify.Success("Welcome back!")
			}
		}

	case identitysdk.EventSignedOut:
		m.write((*Store).ClearAll)
		if !m.signingOut.Held() {
			m.notify.Info("Your session has ended. Please sign in again.")
		}
		select {
		case m.signedOut <- struct{}{}:
		default:
		}

	case identitysdk.EventTokenRefreshed:
		m.write(func(s *Store) { s.SetSession(ev.Session) })

	case identitysdk.EventUserUpdated:
		if !m.write(func(s *Store) { s.SetSession(ev.Session) }) {
			return
		}
		if ev.Session != nil {
			m.goLoadProfile(ev.Session.User.ID)
		}

	case identitysdk.EventPasswordRecovery:
		log.Debug("password recovery event ignored")

	default:
		log.Info("unknown auth event, treating as update")
		if !m.write(func(s *Store) { s.SetSession(ev.Session) }) {
			return
		}
		if ev.Session != nil {
			m.goLoadProfile(ev.Session.User.ID)
		} else {
			m.write(func(s *Store) { s.SetProfile(nil) })
		}
	}
}

func welcomeKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
