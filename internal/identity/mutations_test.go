package identity

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aussiebroadwan/askbar/pkg/identitysdk"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestSignUpCreatesIdentityAndProfile(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.NoError(t, h.m.Start(context.Background()))

	err := h.m.SignUp(context.Background(), SignUpInput{
		Email:    "alice@example.com",
		Password: "correct horse",
		Username: "alice",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st := h.m.Snapshot()
		return st.Identity != nil && st.Profile != nil && st.Profile.Username == "alice"
	}, waitFor, tick)

	h.m.Close()
	h.profiles.mu.Lock()
	require.Equal(t, []string{"u-alice@example.com"}, h.profiles.prefsFor)
	h.profiles.mu.Unlock()
	require.Zero(t, h.notifier.count("error"))
}

func TestSignUpWelcomesOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.NoError(t, h.m.Start(context.Background()))

	require.NoError(t, h.m.SignUp(context.Background(), SignUpInput{
		Email:    "Alice@Example.com",
		Password: "correct horse",
		Username: "alice",
	}))

	// The SIGNED_IN from the sign-up has been handled once its marker is gone.
	require.Eventually(t, func() bool {
		_, pending := h.m.signUpWelcomes.Load("alice@example.com")
		return !pending
	}, waitFor, tick)

	h.notifier.mu.Lock()
	defer h.notifier.mu.Unlock()
	var successes []string
	for _, n := range h.notifier.notes {
		if n.level == "success" {
			successes = append(successes, n.msg)
		}
	}
	require.Equal(t, []string{"Welcome to askbar, alice!"}, successes)
}

func TestSignUpProfileSurvivesEarlierMiss(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.NoError(t, h.m.Start(context.Background()))

	// The SIGNED_IN load reads before the insert and answers after sign-up
	// has committed the new row.
	h.profiles.getStarted = make(chan struct{}, 1)
	h.profiles.getGate = make(chan struct{})
	h.profiles.insertGate = make(chan struct{})

	errc := make(chan error, 1)
	go func() {
		errc <- h.m.SignUp(context.Background(), SignUpInput{
			Email:    "alice@example.com",
			Password: "correct horse",
			Username: "alice",
		})
	}()

	<-h.profiles.getStarted
	close(h.profiles.insertGate)
	require.NoError(t, <-errc)
	require.NotNil(t, h.m.Snapshot().Profile)

	close(h.profiles.getGate)
	h.m.bg.Wait()

	st := h.m.Snapshot()
	require.NotNil(t, st.Identity)
	require.NotNil(t, st.Profile, "a miss read before the insert must not erase the row")
	require.Equal(t, "alice", st.Profile.Username)
	require.EqualValues(t, 1, h.profiles.getCalls.Load())
}

func TestSignUpRejectsTakenUsernameBeforeCreatingIdentity(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.profiles.put(testProfile("someone", "alice"))
	require.NoError(t, h.m.Start(context.Background()))

	err := h.m.SignUp(context.Background(), SignUpInput{
		Email:    "alice2@example.com",
		Password: "correct horse",
		Username: "alice",
	})
	require.ErrorIs(t, err, ErrUsernameTaken)

	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, KindValidation, e.Kind)
	require.Equal(t, "That username is already taken.", e.Msg)

	require.Zero(t, h.provider.signUpCalls.Load())
	require.False(t, h.m.Snapshot().SignedIn())
	require.Equal(t, 1, h.notifier.count("error"))
}

func TestSignUpValidatesInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   SignUpInput
	}{
		{"bad email", SignUpInput{Email: "nope", Password: "correct horse", Username: "alice"}},
		{"short password", SignUpInput{Email: "a@example.com", Password: "short", Username: "alice"}},
		{"short username", SignUpInput{Email: "a@example.com", Password: "correct horse", Username: "al"}},
		{"bad username chars", SignUpInput{Email: "a@example.com", Password: "correct horse", Username: "al ice!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			require.NoError(t, h.m.Start(context.Background()))

			err := h.m.SignUp(context.Background(), tt.in)
			require.Error(t, err)
			require.Equal(t, KindValidation, Classify(err))
			require.Zero(t, h.provider.signUpCalls.Load())
		})
	}
}

func TestSignUpRollsBackWhenProfileInsertFails(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.profiles.insertErr = errBoom
	require.NoError(t, h.m.Start(context.Background()))

	err := h.m.SignUp(context.Background(), SignUpInput{
		Email:    "alice@example.com",
		Password: "correct horse",
		Username: "alice",
	})
	require.ErrorIs(t, err, errBoom)

	st := h.m.Snapshot()
	require.Nil(t, st.Identity)
	require.Nil(t, st.Session)
	require.Nil(t, st.Profile)
	require.EqualValues(t, 1, h.provider.signOutCalls.Load())

	// One error for the failed sign-up and no "session ended" notice for
	// the rollback's own SIGNED_OUT.
	require.Equal(t, 1, h.notifier.count("error"))
	require.Zero(t, h.notifier.count("info"))
}

func TestSignUpWithoutImmediateSessionAsksForConfirmation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.provider.confirmFirst = true
	require.NoError(t, h.m.Start(context.Background()))

	err := h.m.SignUp(context.Background(), SignUpInput{
		Email:    "alice@example.com",
		Password: "correct horse",
		Username: "alice",
	})
	require.NoError(t, err)
	require.Equal(t, 1, h.notifier.count("info"))
	require.False(t, h.m.Snapshot().SignedIn())
}

func TestSignInUpdatesStoreThroughEvent(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.profiles.put(testProfile("u-alice@example.com", "alice"))
	require.NoError(t, h.m.Start(context.Background()))

	require.NoError(t, h.m.SignIn(context.Background(), SignInInput{Email: "alice@example.com", Password: "pw"}))

	require.Eventually(t, func() bool {
		st := h.m.Snapshot()
		return st.Profile != nil && st.Profile.Username == "alice"
	}, waitFor, tick)
}

func TestSignInFailureIsClassifiedAndNotifiedOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.provider.signInErr = &identitysdk.APIError{StatusCode: 400, Code: identitysdk.ErrorCodeInvalidGrant, Description: "invalid credentials"}
	require.NoError(t, h.m.Start(context.Background()))

	err := h.m.SignIn(context.Background(), SignInInput{Email: "alice@example.com", Password: "wrong"})
	require.Error(t, err)
	require.Equal(t, KindProviderAuth, Classify(err))
	require.Equal(t, 1, h.notifier.count("error"))
	require.False(t, h.m.Snapshot().SignedIn())
	require.False(t, h.m.Snapshot().Loading)
}

func TestSignInWithOAuthNavigates(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.NoError(t, h.m.Start(context.Background()))

	require.NoError(t, h.m.SignInWithOAuth(context.Background(), "GitHub", "https://askbar.example/callback"))
	require.Equal(t, []string{"https://id.example/authorize?provider=github&redirect_to=https://askbar.example/callback"}, h.nav.visited())

	err := h.m.SignInWithOAuth(context.Background(), " ", "")
	require.Equal(t, KindValidation, Classify(err))
	require.Len(t, h.nav.visited(), 1)
}

func TestConcurrentSignOutsCollapse(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.provider.session = testSession("u1", "alice@example.com")
	h.profiles.put(testProfile("u1", "alice"))
	h.storage.data["askbar.auth.token"] = "{}"
	h.storage.data["askbar.auth.code-verifier"] = "v"
	h.storage.data["theme"] = "dark"
	require.NoError(t, h.m.Start(context.Background()))

	h.provider.signOutGate = make(chan struct{})

	const n = 8
	var (
		wg       sync.WaitGroup
		returned atomic.Int32
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.m.SignOut(context.Background()); err != nil {
				t.Errorf("sign out: %v", err)
			}
			returned.Add(1)
		}()
	}

	require.Eventually(t, func() bool {
		return h.provider.signOutCalls.Load() == 1 && returned.Load() == n-1
	}, waitFor, tick)
	close(h.provider.signOutGate)
	wg.Wait()

	require.EqualValues(t, 1, h.provider.signOutCalls.Load())
	require.Equal(t, []string{"/"}, h.nav.visited())
	require.Equal(t, 1, h.notifier.count("success"))
	require.Equal(t, 1, h.notifier.count("loading"))
	require.Zero(t, h.notifier.count("info"))

	st := h.m.Snapshot()
	require.False(t, st.SignedIn())
	require.False(t, st.Loading)
	require.Equal(t, map[string]string{"theme": "dark"}, h.storage.data)
}

func TestSignOutFailureStillClearsAndNavigates(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.provider.session = testSession("u1", "alice@example.com")
	h.provider.signOutErr = errBoom
	require.NoError(t, h.m.Start(context.Background()))

	require.NoError(t, h.m.SignOut(context.Background()))

	require.False(t, h.m.Snapshot().SignedIn())
	require.Equal(t, []string{"/"}, h.nav.visited())
	require.Equal(t, 1, h.notifier.count("warning"))
	require.Zero(t, h.notifier.count("success"))
}

func TestSignOutNavigatesEvenWhenContextCancelled(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.NoError(t, h.m.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.m.SignOut(ctx))
	require.Equal(t, []string{"/"}, h.nav.visited())
}

func TestUpdateProfileRequiresIdentity(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.NoError(t, h.m.Start(context.Background()))

	err := h.m.UpdateProfile(context.Background(), ProfilePatch{Bio: strPtr("hi")})
	require.ErrorIs(t, err, ErrNotSignedIn)
	require.Equal(t, 1, h.notifier.count("warning"))
	require.Zero(t, h.profiles.updateCalls.Load())
}

func TestUpdateProfileMergesWithoutRefetch(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.provider.session = testSession("u1", "alice@example.com")
	h.profiles.put(testProfile("u1", "alice"))
	require.NoError(t, h.m.Start(context.Background()))

	interests := []string{"go", "sqlite"}
	err := h.m.UpdateProfile(context.Background(), ProfilePatch{
		Bio:       strPtr("I answer questions."),
		Interests: &interests,
	})
	require.NoError(t, err)

	p := h.m.Snapshot().Profile
	require.Equal(t, "I answer questions.", p.Bio)
	require.Equal(t, interests, p.Interests)
	require.Equal(t, "alice", p.Username)
	require.EqualValues(t, 1, h.profiles.getCalls.Load())
	require.EqualValues(t, 1, h.profiles.updateCalls.Load())
	require.Equal(t, 1, h.notifier.count("success"))
}

func TestUpdateProfileValidatesPatch(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.provider.session = testSession("u1", "alice@example.com")
	h.profiles.put(testProfile("u1", "alice"))
	require.NoError(t, h.m.Start(context.Background()))

	tooMany := []string{"a", "b", "c", "d", "e", "f"}
	for _, patch := range []ProfilePatch{
		{Interests: &tooMany},
		{AvatarURL: strPtr("not a url")},
		{Username: strPtr("x")},
	} {
		err := h.m.UpdateProfile(context.Background(), patch)
		require.Equal(t, KindValidation, Classify(err))
	}
	require.Zero(t, h.profiles.updateCalls.Load())
}

func TestUpdateProfileFailureLeavesProfileUntouched(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.provider.session = testSession("u1", "alice@example.com")
	h.profiles.put(testProfile("u1", "alice"))
	h.profiles.updateErr = &identitysdk.APIError{StatusCode: 403, Code: identitysdk.ErrorCodePermissionDenied}
	require.NoError(t, h.m.Start(context.Background()))

	err := h.m.UpdateProfile(context.Background(), ProfilePatch{Bio: strPtr("new")})
	require.Equal(t, KindPermission, Classify(err))
	require.Empty(t, h.m.Snapshot().Profile.Bio)
}
