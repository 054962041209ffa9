package identity

import (
	"maps"
	"sync"
)

// State is a point-in-time copy of the store.
type State struct {
	Identity    *Identity
	Profile     *Profile
	Session     *Session
	Loading     bool
	Initialized bool
	Version     uint64
}

// SignedIn reports whether an identity is present.
func (s State) SignedIn() bool { return s.Identity != nil }

// Store is the only holder of the session state. Every write replaces whole
// values; readers get copies. It never holds a profile without an identity
// or a profile whose id differs from the identity's.
type Store struct {
	mu          sync.RWMutex
	identity    *Identity
	profile     *Profile
	session     *Session
	loading     int
	initialized bool
	version     uint64
	changed     chan struct{}

	// profileGen moves every time the profile value is replaced.
	profileGen uint64
}

// NewStore returns a store in the pre-bootstrap state: loading, not
// initialized.
func NewStore() *Store {
	return &Store{loading: 1, changed: make(chan struct{})}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Identity:    cloneIdentity(s.identity),
		Profile:     s.profile.Clone(),
		Session:     s.session.Clone(),
		Loading:     s.loading > 0,
		Initialized: s.initialized,
		Version:     s.version,
	}
}

// Changes returns a channel closed on the next state change.
func (s *Store) Changes() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

// SetIdentity replaces the identity. A nil or different identity drops the
// profile.
func (s *Store) SetIdentity(id *Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setIdentityLocked(id)
	s.bumpLocked()
}

// SetSession replaces the session and the identity it carries.
func (s *Store) SetSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = sess.Clone()
	if sess == nil {
		s.setIdentityLocked(nil)
	} else {
		s.setIdentityLocked(&sess.User)
	}
	s.bumpLocked()
}

// SetProfile replaces the profile. It refuses (returns false) a non-nil
// profile that does not belong to the current identity.
func (s *Store) SetProfile(p *Profile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p != nil && (s.identity == nil || s.identity.ID != p.ID) {
		return false
	}
	s.setProfileLocked(p)
	s.bumpLocked()
	return true
}

// commitProfile sets the profile only while identityID is still the current
// identity.
func (s *Store) commitProfile(identityID string, p *Profile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity == nil || s.identity.ID != identityID {
		return false
	}
	if p != nil && p.ID != identityID {
		return false
	}
	s.setProfileLocked(p)
	s.bumpLocked()
	return true
}

// commitFetchedProfile is commitProfile for a read that began at profile
// generation gen. It refuses when the profile was replaced since, so a late
// read can't undo a newer write.
func (s *Store) commitFetchedProfile(identityID string, p *Profile, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profileGen != gen || s.identity == nil || s.identity.ID != identityID {
		return false
	}
	if p != nil && p.ID != identityID {
		return false
	}
	s.setProfileLocked(p)
	s.bumpLocked()
	return true
}

func (s *Store) profileGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profileGen
}

// profileTarget returns the current identity id when it differs from loaded.
func (s *Store) profileTarget(loaded string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil || s.identity.ID == loaded {
		return "", false
	}
	return s.identity.ID, true
}

// ClearAll drops identity, profile and session. Clearing an empty store
// changes nothing.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity == nil && s.profile == nil && s.session == nil {
		return
	}
	s.identity, s.session = nil, nil
	s.setProfileLocked(nil)
	s.bumpLocked()
}

func (s *Store) beginLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading++
	s.bumpLocked()
}

func (s *Store) endLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading > 0 {
		s.loading--
	}
	s.bumpLocked()
}

// finishBootstrap releases the initial loading count and marks the store
// authoritative.
func (s *Store) finishBootstrap() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized && s.loading > 0 {
		s.loading--
	}
	s.initialized = true
	s.bumpLocked()
}

func (s *Store) setIdentityLocked(id *Identity) {
	if id == nil || s.identity == nil || s.identity.ID != id.ID {
		s.setProfileLocked(nil)
	}
	s.identity = cloneIdentity(id)
}

func (s *Store) setProfileLocked(p *Profile) {
	s.profile = p.Clone()
	s.profileGen++
}

func (s *Store) bumpLocked() {
	s.version++
	close(s.changed)
	s.changed = make(chan struct{})
}

func cloneIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	cp := *id
	cp.Metadata = maps.Clone(id.Metadata)
	return &cp
}
