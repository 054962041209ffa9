// Package identity keeps the local view of who is signed in consistent with
// the identity provider while bootstrap, provider events and user actions
// race against each other.
package identity

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/askbar/pkg/identitysdk"
	"github.com/aussiebroadwan/askbar/pkg/retryx"
	"github.com/aussiebroadwan/askbar/pkg/validx"
	"github.com/go-playground/validator/v10"
)

// Config tunes the manager. Zero fields take the DefaultConfig value.
type Config struct {
	// Retry applies to provider session reads and profile fetches only.
	Retry retryx.Policy

	// SignOutRedirectDelay is how long the confirmation stays visible before
	// navigating to LandingRoute; SignOutFailureDelay replaces it when part
	// of the sign-out failed.
	SignOutRedirectDelay time.Duration
	SignOutFailureDelay  time.Duration

	// SignOutEventWait bounds how long a sign-up rollback waits for its own
	// SIGNED_OUT event before letting go of the signing-out latch.
	SignOutEventWait time.Duration

	LandingRoute     string
	StorageKeyPrefix string
}

func DefaultConfig() Config {
	return Config{
		Retry:                retryx.DefaultPolicy,
		SignOutRedirectDelay: time.Second,
		SignOutFailureDelay:  2 * time.Second,
		SignOutEventWait:     500 * time.Millisecond,
		LandingRoute:         "/",
		StorageKeyPrefix:     identitysdk.DefaultStorageKeyPrefix,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = d.Retry.MaxAttempts
	}
	if c.Retry.BaseDelay < 0 {
		c.Retry.BaseDelay = d.Retry.BaseDelay
	}
	if c.SignOutRedirectDelay <= 0 {
		c.SignOutRedirectDelay = d.SignOutRedirectDelay
	}
	if c.SignOutFailureDelay <= 0 {
		c.SignOutFailureDelay = d.SignOutFailureDelay
	}
	if c.SignOutEventWait <= 0 {
		c.SignOutEventWait = d.SignOutEventWait
	}
	if c.LandingRoute == "" {
		c.LandingRoute = d.LandingRoute
	}
	if c.StorageKeyPrefix == "" {
		c.StorageKeyPrefix = d.StorageKeyPrefix
	}
	return c
}

// Deps are the collaborators. Provider and Profiles are required.
type Deps struct {
	Provider  Provider
	Profiles  ProfileStore
	Storage   Storage
	Notifier  Notifier
	Navigator Navigator
	Logger    *slog.Logger
	Metrics   *Metrics
}

// Manager owns the Store and every operation allowed to change it. Build one
// per application lifetime and share it with consumers.
type Manager struct {
	cfg      Config
	provider Provider
	profiles ProfileStore
	storage  Storage
	notify   Notifier
	nav      Navigator
	log      *slog.Logger
	metrics  *Metrics
	validate *validator.Validate

	store *Store
	scope *Scope

	started        atomic.Bool
	bootstrapping  Latch
	profileLoading Latch
	signingOut     Latch

	// signedOut receives a token each time a SIGNED_OUT event is handled.
	signedOut chan struct{}

	// signUpWelcomes holds lower-cased emails of sign-ups whose SIGNED_IN
	// must not raise the returning-user welcome.
	signUpWelcomes sync.Map

	mu  sync.Mutex
	sub Subscription

	loopDone chan struct{}
	bg       sync.WaitGroup
}

// New builds a manager. Nothing runs until Start.
func New(cfg Config, deps Deps) *Manager {
	cfg = cfg.withDefaults()

	m := &Manager{
		cfg:       cfg,
		provider:  deps.Provider,
		profiles:  deps.Profiles,
		storage:   deps.Storage,
		notify:    deps.Notifier,
		nav:       deps.Navigator,
		log:       deps.Logger,
		metrics:   deps.Metrics,
		validate:  validx.New(),
		store:     NewStore(),
		scope:     NewScope(context.Background()),
		signedOut: make(chan struct{}, 1),
		loopDone:  make(chan struct{}),
	}
	if m.notify == nil {
		m.notify = nopNotifier{}
	}
	if m.nav == nil {
		m.nav = nopNavigator{}
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	m.log = m.log.With(slog.String("component", "identity"))

	onRetry := cfg.Retry.OnRetry
	m.cfg.Retry.OnRetry = func(attempt int, err error) {
		m.metrics.retry()
		m.log.Warn("read failed, retrying", "attempt", attempt, "err", err)
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}
	return m
}

// Start runs bootstrap to completion and then subscribes to provider events.
// Only the first call does anything.
func (m *Manager) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return nil
	}
	if !m.scope.Alive() {
		return ErrClosed
	}

	m.bootstrap(ctx)

	sub := m.provider.Subscribe()

	m.mu.Lock()
	if !m.scope.Alive() {
		m.mu.Unlock()
		sub.Close()
		return ErrClosed
	}
	m.sub = sub
	m.mu.Unlock()

	go m.eventLoop(sub)
	return nil
}

// Close tears the consumer scope down: pending results are discarded, the
// subscription is dropped and background work is waited for.
func (m *Manager) Close() {
	m.scope.Close()

	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()

	if sub != nil {
		sub.Close()
		<-m.loopDone
	}
	m.bg.Wait()
}

// Snapshot returns the current state.
func (m *Manager) Snapshot() State { return m.store.Snapshot() }

// Changes returns a channel closed on the next state change.
func (m *Manager) Changes() <-chan struct{} { return m.store.Changes() }

// write applies fn to the store unless the scope has closed.
func (m *Manager) write(fn func(s *Store)) bool {
	if m.scope.Do(func() { fn(m.store) }) {
		return true
	}
	m.metrics.discarded()
	return false
}

// opContext joins the caller's context with the scope lifetime.
func (m *Manager) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.scope.Context(), cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (m *Manager) loading() func() {
	m.write((*Store).beginLoading)
	return func() { m.write((*Store).endLoading) }
}

// goBackground runs fn on a tracked goroutine bound to the scope.
func (m *Manager) goBackground(fn func(ctx context.Context)) {
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		fn(m.scope.Context())
	}()
}

type nopNotifier struct{}

func (nopNotifier) Success(string)        {}
func (nopNotifier) Info(string)           {}
func (nopNotifier) Warning(string)        {}
func (nopNotifier) Error(string)          {}
func (nopNotifier) Loading(string) string { return "" }
func (nopNotifier) Dismiss(string)        {}

type nopNavigator struct{}

func (nopNavigator) Navigate(string) {}
