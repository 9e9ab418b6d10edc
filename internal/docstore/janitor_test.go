// ABOUTME: Tests for the expired-document janitor
// ABOUTME: Covers single sweeps, TTL table filtering and the run loop shutdown

package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitor_Sweep(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.EnsureTables(ctx, thingsTable(), pairsTable()))

	now := time.Unix(1_000, 0)
	_, err := s.Create(ctx, thingsTable(), Item{"id": "old", "expires": int64(999)})
	require.NoError(t, err)
	_, err = s.Create(ctx, thingsTable(), Item{"id": "new", "expires": int64(2_000)})
	require.NoError(t, err)

	j := NewJanitor(s, time.Minute, thingsTable(), pairsTable()).WithClock(func() time.Time { return now })
	assert.Len(t, j.tables, 1, "tables without a TTL attribute are skipped")

	n, err := j.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.GetByHashKey(ctx, thingsTable(), "new")
	assert.NoError(t, err)
}

func TestJanitor_SweepNonExpirer(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	defer s.Close()

	n, err := NewJanitor(s, 0, thingsTable()).Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestJanitor_DefaultInterval(t *testing.T) {
	j := NewJanitor(NewMemoryStore(), 0)
	assert.Equal(t, DefaultJanitorInterval, j.interval)
}

func TestJanitor_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewMemoryStore()
	require.NoError(t, s.EnsureTables(ctx, thingsTable()))

	_, err := s.Create(ctx, thingsTable(), Item{"id": "old", "expires": int64(1)})
	require.NoError(t, err)

	j := NewJanitor(s, 10*time.Millisecond, thingsTable())
	done := make(chan error, 1)
	go func() {
		done <- j.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		_, err := s.GetByHashKey(context.Background(), thingsTable(), "old")
		return err != nil
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
