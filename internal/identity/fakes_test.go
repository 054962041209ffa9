package identity

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/askbar/pkg/identitysdk"
	"github.com/aussiebroadwan/askbar/pkg/retryx"
)

var errBoom = errors.New("boom")

type fakeSub struct {
	mu     sync.Mutex
	closed bool
	ch     chan AuthEvent
}

func (s *fakeSub) Events() <-chan AuthEvent { return s.ch }

func (s *fakeSub) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (s *fakeSub) send(ev AuthEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.ch <- ev
	}
}

// fakeProvider is an identity provider that keeps its session in memory and
// publishes the same events the SDK does.
type fakeProvider struct {
	mu      sync.Mutex
	session *Session
	subs    []*fakeSub

	getSessionErr error
	signInErr     error
	signUpErr     error
	signOutErr    error
	oauthErr      error

	// confirmFirst makes SignUp succeed without a session, as when the
	// address must be confirmed first.
	confirmFirst bool

	// signOutGate, when set, blocks SignOut until closed.
	signOutGate chan struct{}

	getSessionCalls atomic.Int32
	signUpCalls     atomic.Int32
	signOutCalls    atomic.Int32
}

func (p *fakeProvider) GetSession(context.Context) (*Session, error) {
	p.getSessionCalls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getSessionErr != nil {
		return nil, p.getSessionErr
	}
	return p.session.Clone(), nil
}

func (p *fakeProvider) SignInWithPassword(_ context.Context, email, _ string) (*Session, error) {
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	sess := testSession("u-"+email, email)
	p.setSession(sess, identitysdk.EventSignedIn)
	return sess, nil
}

func (p *fakeProvider) SignUp(_ context.Context, email, _ string, _ map[string]string) (*Session, error) {
	p.signUpCalls.Add(1)
	if p.signUpErr != nil {
		return nil, p.signUpErr
	}
	if p.confirmFirst {
		return nil, nil
	}
	sess := testSession("u-"+email, email)
	p.setSession(sess, identitysdk.EventSignedIn)
	return sess, nil
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.signOutCalls.Add(1)
	if p.signOutGate != nil {
		<-p.signOutGate
	}
	p.mu.Lock()
	had := p.session != nil
	p.mu.Unlock()
	if had {
		p.setSession(nil, identitysdk.EventSignedOut)
	}
	return p.signOutErr
}

func (p *fakeProvider) SignInWithOAuth(_ context.Context, provider, redirectTo string) (string, error) {
	if p.oauthErr != nil {
		return "", p.oauthErr
	}
	return "https://id.example/authorize?provider=" + provider + "&redirect_to=" + redirectTo, nil
}

func (p *fakeProvider) Subscribe() Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := &fakeSub{ch: make(chan AuthEvent, 32)}
	p.subs = append(p.subs, s)
	return s
}

func (p *fakeProvider) setSession(sess *Session, kind EventKind) {
	p.mu.Lock()
	p.session = sess.Clone()
	p.mu.Unlock()
	p.emit(AuthEvent{Kind: kind, Session: sess.Clone()})
}

// emit publishes ev to every subscriber that hasn't closed.
func (p *fakeProvider) emit(ev AuthEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.subs {
		s.send(ev)
	}
}

type fakeProfiles struct {
	mu       sync.Mutex
	rows     map[string]*Profile
	taken    map[string]bool
	patches  []ProfilePatch
	prefsFor []string

	getErr    error
	insertErr error
	updateErr error

	// getGate, when set, blocks GetProfile until closed. getStarted receives
	// once per call before blocking.
	getGate    chan struct{}
	getStarted chan struct{}

	// insertGate, when set, blocks InsertProfile until closed.
	insertGate chan struct{}

	getCalls    atomic.Int32
	updateCalls atomic.Int32
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{rows: map[string]*Profile{}, taken: map[string]bool{}}
}

// GetProfile reads the row when called; the gate only delays the answer.
func (f *fakeProfiles) GetProfile(_ context.Context, id string) (*Profile, error) {
	f.getCalls.Add(1)

	f.mu.Lock()
	err := f.getErr
	p, ok := f.rows[id]
	p = p.Clone()
	f.mu.Unlock()

	if f.getStarted != nil {
		f.getStarted <- struct{}{}
	}
	if f.getGate != nil {
		<-f.getGate
	}
	switch {
	case err != nil:
		return nil, err
	case !ok:
		return nil, ErrProfileNotFound
	}
	return p, nil
}

func (f *fakeProfiles) UsernameAvailable(_ context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.taken[strings.ToLower(username)], nil
}

func (f *fakeProfiles) InsertProfile(_ context.Context, np NewProfile) (*Profile, error) {
	if f.insertGate != nil {
		<-f.insertGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	p := &Profile{ID: np.ID, Username: np.Username, Email: np.Email, Level: 1, Role: identitysdk.RoleUser}
	f.rows[np.ID] = p
	f.taken[strings.ToLower(np.Username)] = true
	return p.Clone(), nil
}

func (f *fakeProfiles) UpdateProfile(_ context.Context, id string, patch ProfilePatch) error {
	f.updateCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.patches = append(f.patches, patch)
	if p, ok := f.rows[id]; ok {
		f.rows[id] = patch.ApplyTo(p)
	}
	return nil
}

func (f *fakeProfiles) CreateDefaultPreferences(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefsFor = append(f.prefsFor, id)
	return nil
}

func (f *fakeProfiles) put(p *Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[p.ID] = p.Clone()
	f.taken[strings.ToLower(p.Username)] = true
}

type note struct {
	level string
	msg   string
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []note
}

func (n *fakeNotifier) add(level, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note{level, msg})
}

func (n *fakeNotifier) Success(msg string) { n.add("success", msg) }
func (n *fakeNotifier) Info(msg string)    { n.add("info", msg) }
func (n *fakeNotifier) Warning(msg string) { n.add("warning", msg) }
func (n *fakeNotifier) Error(msg string)   { n.add("error", msg) }
func (n *fakeNotifier) Loading(msg string) string {
	n.add("loading", msg)
	return "toast-1"
}
func (n *fakeNotifier) Dismiss(id string) { n.add("dismiss", id) }

func (n *fakeNotifier) count(level string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, x := range n.notes {
		if x.level == level {
			c++
		}
	}
	return c
}

type fakeNavigator struct {
	mu      sync.Mutex
	targets []string
}

func (n *fakeNavigator) Navigate(target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, target)
}

func (n *fakeNavigator) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.targets)
}

type memStorage struct {
	mu   sync.Mutex
	data map[string]string
}

func (s *memStorage) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *memStorage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

type harness struct {
	m        *Manager
	provider *fakeProvider
	profiles *fakeProfiles
	notifier *fakeNotifier
	nav      *fakeNavigator
	storage  *memStorage
}

func testConfig() Config {
	return Config{
		Retry:                retryx.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
		SignOutRedirectDelay: time.Millisecond,
		SignOutFailureDelay:  2 * time.Millisecond,
		SignOutEventWait:     time.Second,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		provider: &fakeProvider{},
		profiles: newFakeProfiles(),
		notifier: &fakeNotifier{},
		nav:      &fakeNavigator{},
		storage:  &memStorage{data: map[string]string{}},
	}
	h.m = New(testConfig(), Deps{
		Provider:  h.provider,
		Profiles:  h.profiles,
		Storage:   h.storage,
		Notifier:  h.notifier,
		Navigator: h.nav,
	})
	t.Cleanup(h.m.Close)
	return h
}

func testSession(id, email string) *Session {
	return &Session{
		AccessToken:  "at-" + id,
		RefreshToken: "rt-" + id,
		TokenType:    "Bearer",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         identitysdk.User{ID: id, Email: email},
	}
}

func testProfile(id, username string) *Profile {
	return &Profile{ID: id, Username: username, Email: username + "@example.com", Level: 1, Role: identitysdk.RoleUser}
}
