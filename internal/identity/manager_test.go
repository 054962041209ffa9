package identity

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/askbar/pkg/identitysdk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func TestBootstrapWithoutSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	require.NoError(t, h.m.Start(context.Background()))

	st := h.m.Snapshot()
	require.True(t, st.Initialized)
	require.False(t, st.Loading)
	require.Nil(t, st.Identity)
	require.Nil(t, st.Profile)
	require.Zero(t, h.profiles.getCalls.Load())
	require.Zero(t, h.notifier.count("error"))
}

func TestBootstrapWithPersistedSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.provider.session = testSession("u1", "alice@example.com")
	h.profiles.put(testProfile("u1", "alice"))

	require.NoError(t, h.m.Start(context.Background()))

	st := h.m.Snapshot()
	require.True(t, st.Initialized)
	require.Equal(t, "u1", st.Identity.ID)
	require.Equal(t, "u1", st.Profile.ID)
	require.Equal(t, "alice", st.Profile.Username)
	require.EqualValues(t, 1, h.profiles.getCalls.Load())
}

func TestBootstrapSessionWithoutProfileRow(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.provider.session = testSession("u1", "alice@example.com")

	require.NoError(t, h.m.Start(context.Background()))

	st := h.m.Snapshot()
	require.True(t, st.Initialized)
	require.NotNil(t, st.Identity)
	require.Nil(t, st.Profile)
	// Not-found is a valid state, not a failure to retry or report.
	require.EqualValues(t, 1, h.profiles.getCalls.Load())
	require.Zero(t, h.notifier.count("error"))
}

func TestBootstrapSessionErrorStillInitializes(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.provider.getSessionErr = errBoom

	require.NoError(t, h.m.Start(context.Background()))

	st := h.m.Snapshot()
	require.True(t, st.Initialized)
	require.False(t, st.Loading)
	require.Nil(t, st.Identity)
	require.EqualValues(t, 3, h.provider.getSessionCalls.Load())
	require.Equal(t, 1, h.notifier.count("error"))
}

func TestBootstrapProfileErrorDegradesToNilProfile(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.provider.session = testSession("u1", "alice@example.com")
	h.profiles.getErr = errBoom

	require.NoError(t, h.m.Start(context.Background()))

	st := h.m.Snapshot()
	require.True(t, st.Initialized)
	require.NotNil(t, st.Identity)
	require.Nil(t, st.Profile)
	require.EqualValues(t, 3, h.profiles.getCalls.Load())
	require.Equal(t, 1, h.notifier.count("error"))
}

func TestStartRunsOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	require.NoError(t, h.m.Start(context.Background()))
	require.NoError(t, h.m.Start(context.Background()))
	require.EqualValues(t, 1, h.provider.getSessionCalls.Load())
}

func TestTokenRefreshedDoesNotRefetchProfile(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.provider.session = testSession("u1", "alice@example.com")
	h.profiles.put(testProfile("u1", "alice"))
	require.NoError(t, h.m.Start(context.Background()))

	refreshed := testSession("u1", "alice@example.com")
	refreshed.AccessToken = "at-refreshed"
	h.provider.emit(AuthEvent{Kind: identitysdk.EventTokenRefreshed, Session: refreshed})

	require.Eventually(t, func() bool {
		s := h.m.Snapshot().Session
		return s != nil && s.AccessToken == "at-refreshed"
	}, waitFor, tick)
	require.EqualValues(t, 1, h.profiles.getCalls.Load())
	require.NotNil(t, h.m.Snapshot().Profile)
}

func TestUserUpdatedReloadsProfile(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.provider.session = testSession("u1", "alice@example.com")
	h.profiles.put(testProfile("u1", "alice"))
	require.NoError(t, h.m.Start(context.Background()))

	h.profiles.put(testProfile("u1", "alice_renamed"))
	h.provider.emit(AuthEvent{Kind: identitysdk.EventUserUpdated, Session: testSession("u1", "new@example.com")})

	require.Eventually(t, func() bool {
		p := h.m.Snapshot().Profile
		return p != nil && p.Username == "alice_renamed"
	}, waitFor, tick)
	require.Equal(t, "new@example.com", h.m.Snapshot().Identity.Email)
	require.EqualValues(t, 2, h.profiles.getCalls.Load())
}

func TestSignedInEventLoadsProfileAndWelcomes(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.profiles.put(testProfile("u1", "alice"))
	require.NoError(t, h.m.Start(context.Background()))

	h.provider.emit(AuthEvent{Kind: identitysdk.EventSignedIn, Session: testSession("u1", "alice@example.com")})

	require.Eventually(t, func() bool {
		return h.m.Snapshot().Profile != nil
	}, waitFor, tick)
	require.Equal(t, 1, h.notifier.count("success"))
}

func TestExternalSignedOutClearsAndNotifies(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.provider.session = testSession("u1", "alice@example.com")
	h.profiles.put(testProfile("u1", "alice"))
	require.NoError(t, h.m.Start(context.Background()))

	h.provider.emit(AuthEvent{Kind: identitysdk.EventSignedOut})

	require.Eventually(t, func() bool {
		return !h.m.Snapshot().SignedIn()
	}, waitFor, tick)
	require.Nil(t, h.m.Snapshot().Profile)
	require.Eventually(t, func() bool { return h.notifier.count("info") == 1 }, waitFor, tick)
}

func TestPasswordRecoveryChangesNothing(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.provider.session = testSession("u1", "alice@example.com")
	require.NoError(t, h.m.Start(context.Background()))

	v := h.m.Snapshot().Version
	h.provider.emit(AuthEvent{Kind: identitysdk.EventPasswordRecovery})
	// Follow with an event that does change state; once it lands the
	// recovery event has been handled too.
	h.provider.emit(AuthEvent{Kind: identitysdk.EventTokenRefreshed, Session: testSession("u1", "alice@example.com")})

	require.Eventually(t, func() bool { return h.m.Snapshot().Version == v+1 }, waitFor, tick)
}

func TestUnknownEventWithoutSessionClearsProfile(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.provider.session = testSession("u1", "alice@example.com")
	h.profiles.put(testProfile("u1", "alice"))
	require.NoError(t, h.m.Start(context.Background()))

	h.provider.emit(AuthEvent{Kind: "MFA_CHALLENGE_VERIFIED"})

	require.Eventually(t, func() bool {
		st := h.m.Snapshot()
		return st.Identity == nil && st.Profile == nil
	}, waitFor, tick)
}

func TestLoadProfileCoalescesWhileInFlight(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.m.store.SetSession(testSession("u1", "alice@example.com"))
	h.profiles.put(testProfile("u1", "alice"))
	h.profiles.getGate = make(chan struct{})
	h.profiles.getStarted = make(chan struct{}, 8)

	done := make(chan bool, 1)
	go func() { done <- h.m.LoadProfile(context.Background(), "u1", false) }()
	<-h.profiles.getStarted

	for range 5 {
		require.False(t, h.m.LoadProfile(context.Background(), "u1", false))
	}

	close(h.profiles.getGate)
	require.True(t, <-done)
	require.EqualValues(t, 1, h.profiles.getCalls.Load())
	require.Equal(t, "alice", h.m.Snapshot().Profile.Username)
}

func TestLoadProfileFollowsIdentityChange(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.m.store.SetSession(testSession("u1", "alice@example.com"))
	h.profiles.put(testProfile("u1", "alice"))
	h.profiles.put(testProfile("u2", "bob"))
	h.profiles.getGate = make(chan struct{})
	h.profiles.getStarted = make(chan struct{}, 1)

	done := make(chan bool, 1)
	go func() { done <- h.m.LoadProfile(context.Background(), "u1", false) }()
	<-h.profiles.getStarted

	h.m.store.SetSession(testSession("u2", "bob@example.com"))
	close(h.profiles.getGate)
	<-done

	// alice's row is dropped and bob's fetched in the same load.
	st := h.m.Snapshot()
	require.Equal(t, "u2", st.Identity.ID)
	require.NotNil(t, st.Profile)
	require.Equal(t, "bob", st.Profile.Username)
	require.EqualValues(t, 2, h.profiles.getCalls.Load())
}

func TestUserSwitchDuringLoadStillLoadsNewProfile(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.m.store.SetSession(testSession("u1", "alice@example.com"))
	h.profiles.put(testProfile("u1", "alice"))
	h.profiles.put(testProfile("u2", "bob"))
	h.profiles.getGate = make(chan struct{})
	h.profiles.getStarted = make(chan struct{}, 8)

	done := make(chan bool, 1)
	go func() { done <- h.m.LoadProfile(context.Background(), "u1", false) }()
	<-h.profiles.getStarted

	h.m.handleEvent(AuthEvent{Kind: identitysdk.EventSignedOut})
	h.m.handleEvent(AuthEvent{Kind: identitysdk.EventSignedIn, Session: testSession("u2", "bob@example.com")})
	require.False(t, h.m.LoadProfile(context.Background(), "u2", false), "u1 load still holds the latch")

	close(h.profiles.getGate)
	require.True(t, <-done)

	require.Eventually(t, func() bool {
		st := h.m.Snapshot()
		return st.Identity != nil && st.Identity.ID == "u2" &&
			st.Profile != nil && st.Profile.Username == "bob"
	}, waitFor, tick)
}

func TestResultsAfterCloseAreDiscarded(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.provider.session = testSession("u1", "alice@example.com")
	h.profiles.put(testProfile("u1", "alice"))
	h.profiles.getGate = make(chan struct{})
	h.profiles.getStarted = make(chan struct{}, 1)

	errc := make(chan error, 1)
	go func() { errc <- h.m.Start(context.Background()) }()
	<-h.profiles.getStarted

	h.m.Close()
	before := h.m.Snapshot()

	close(h.profiles.getGate)
	require.ErrorIs(t, <-errc, ErrClosed)

	after := h.m.Snapshot()
	require.Equal(t, before.Version, after.Version)
	require.Nil(t, after.Profile)
	require.False(t, after.Initialized)
}

func TestMetricsCountEventsAndLoads(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	provider := &fakeProvider{session: testSession("u1", "alice@example.com")}
	profiles := newFakeProfiles()
	profiles.put(testProfile("u1", "alice"))
	m := New(testConfig(), Deps{Provider: provider, Profiles: profiles, Metrics: metrics})
	t.Cleanup(m.Close)

	require.NoError(t, m.Start(context.Background()))
	provider.emit(AuthEvent{Kind: identitysdk.EventTokenRefreshed, Session: testSession("u1", "alice@example.com")})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.authEvents.WithLabelValues(string(identitysdk.EventTokenRefreshed))) == 1
	}, waitFor, tick)
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.profileFetches.WithLabelValues("ok")))
}
