package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *InMemoryIdempotencyStore {
	t.Helper()
	store := NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestInMemoryStore_FirstDeliveryWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	claimed, err := store.MarkProcessed(ctx, "TRENDYOL:ord-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = store.MarkProcessed(ctx, "TRENDYOL:ord-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, claimed, "retry of the same delivery must not claim the key")
}

func TestInMemoryStore_KeysAreIndependent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"TRENDYOL:ord-1", "GETIR:ord-1", "TRENDYOL:ord-2"} {
		claimed, err := store.MarkProcessed(ctx, key, time.Hour)
		require.NoError(t, err)
		assert.True(t, claimed, "key %s", key)
	}
}

func TestInMemoryStore_ExpiredKeyIsReclaimable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	claimed, err := store.MarkProcessed(ctx, "GETIR:ord-3", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, claimed)

	time.Sleep(20 * time.Millisecond)

	claimed, err = store.MarkProcessed(ctx, "GETIR:ord-3", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed, "expired key should be claimable again")
}

func TestInMemoryStore_IsProcessed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	processed, err := store.IsProcessed(ctx, "never-seen")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = store.MarkProcessed(ctx, "MIGROS:ord-9", time.Hour)
	require.NoError(t, err)

	processed, err = store.IsProcessed(ctx, "MIGROS:ord-9")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInMemoryStore_ExpiredKeyReportsUnprocessed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "FUUDY:ord-5", 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	// The janitor has not run yet; expiry alone must flip the answer.
	processed, err := store.IsProcessed(ctx, "FUUDY:ord-5")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestInMemoryStore_EvictExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _ = store.MarkProcessed(ctx, "stale-1", 10*time.Millisecond)
	_, _ = store.MarkProcessed(ctx, "stale-2", 10*time.Millisecond)
	_, _ = store.MarkProcessed(ctx, "live", time.Hour)
	require.Equal(t, 3, store.Size())

	time.Sleep(20 * time.Millisecond)
	store.evictExpired()

	assert.Equal(t, 1, store.Size())

	processed, err := store.IsProcessed(ctx, "live")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInMemoryStore_Size(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	assert.Zero(t, store.Size())

	_, _ = store.MarkProcessed(ctx, "a", time.Hour)
	_, _ = store.MarkProcessed(ctx, "b", time.Hour)
	_, _ = store.MarkProcessed(ctx, "a", time.Hour)

	assert.Equal(t, 2, store.Size(), "re-marking a key must not grow the store")
}

func TestInMemoryStore_ConcurrentClaims(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const workers = 100
	var claims atomic.Int64
	var wg sync.WaitGroup

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			claimed, err := store.MarkProcessed(ctx, "contested", time.Hour)
			if err == nil && claimed {
				claims.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), claims.Load(), "exactly one delivery may claim the key")
}

func TestInMemoryStore_CloseIsIdempotent(t *testing.T) {
	store := NewInMemoryIdempotencyStore()

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
