package identitysdk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProfilePatchApplyTo(t *testing.T) {
	base := &Profile{ID: "u1", Username: "ada", Bio: "old", Interests: []string{"go"}, Level: 3, Points: 10}

	require.True(t, ProfilePatch{}.IsEmpty())
	require.Equal(t, base, ProfilePatch{}.ApplyTo(base))

	bio := "new"
	interests := []string{"go", "sql"}
	got := ProfilePatch{Bio: &bio, Interests: &interests}.ApplyTo(base)

	require.Equal(t, "new", got.Bio)
	require.Equal(t, []string{"go", "sql"}, got.Interests)
	require.Equal(t, "ada", got.Username)
	require.Equal(t, 3, got.Level)
	require.Equal(t, "old", base.Bio, "ApplyTo must not mutate its input")

	interests[0] = "rust"
	require.Equal(t, "go", got.Interests[0], "ApplyTo must not alias the patch slice")

	require.Nil(t, ProfilePatch{Bio: &bio}.ApplyTo(nil))
}

func TestSessionExpiresWithin(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &Session{ExpiresAt: now.Add(time.Minute)}

	require.False(t, s.ExpiresWithin(now, 30*time.Second))
	require.True(t, s.ExpiresWithin(now, time.Minute))
	require.True(t, s.ExpiresWithin(now.Add(2*time.Minute), 0))
}
