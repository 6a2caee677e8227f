package idx_test

import (
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/userspace/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNew_Monotonic(t *testing.T) {
	prev := idx.New()
	for range 1000 {
		next := idx.New()
		require.Greater(t, next.String(), prev.String())
		prev = next
	}
}

func TestNew_Concurrent(t *testing.T) {
	const n = 500
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[idx.ID]struct{}, n)
	)

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := idx.New()
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, seen, n)
}

func TestParse(t *testing.T) {
	id := idx.New()
	parsed, err := idx.Parse(" " + id.String() + " ")
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	for _, bad := range []string{"", "not-a-ulid", "01ARZ3NDEKTSV4RRFFQ69G5FA"} {
		_, err := idx.Parse(bad)
		require.ErrorIs(t, err, idx.ErrInvalid, bad)
	}
}

func TestTime(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.True(t, idx.NewAt(at).Time().Equal(at))
	require.True(t, idx.Zero.Time().IsZero())
}
