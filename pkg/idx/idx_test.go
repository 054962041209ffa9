package idx

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewIsSortableAndUnique(t *testing.T) {
	t.Parallel()

	const n = 500
	seen := make(map[ID]struct{}, n)
	prev := Zero
	for range n {
		id := New()
		require.False(t, id.IsZero())
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
		require.Greater(t, id.String(), prev.String())
		prev = id
	}
}

func TestNewConcurrent(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		seen = make(map[ID]struct{})
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				id := New()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, 16*50)
}

func TestParse(t *testing.T) {
	t.Parallel()

	id := New()
	parsed, err := Parse("  " + id.String() + " ")
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	for _, bad := range []string{"", "   ", "not-a-ulid", "01ARZ3NDEKTSV4RRFFQ69G5FA"} {
		_, err := Parse(bad)
		require.ErrorIs(t, err, ErrInvalid, "input %q", bad)
		require.False(t, Valid(bad))
	}
}

func TestTime(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	id := NewAt(at)
	require.True(t, id.Time().Equal(at))
	require.True(t, ID("garbage").Time().IsZero())
}
