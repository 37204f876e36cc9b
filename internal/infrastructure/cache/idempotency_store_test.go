package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStores(t *testing.T) (map[string]shared.IdempotencyStore, *miniredis.Miniredis, *MemoryIdempotencyStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	memory := NewMemoryIdempotencyStore(time.Hour)
	t.Cleanup(func() { _ = memory.Close() })

	return map[string]shared.IdempotencyStore{
		"memory": memory,
		"redis":  NewRedisIdempotencyStore(client, ""),
	}, mr, memory
}

func TestIdempotencyStore_MarkProcessedOnce(t *testing.T) {
	ctx := context.Background()
	stores, _, _ := newStores(t)

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			seen, err := store.IsProcessed(ctx, "evt-1")
			require.NoError(t, err)
			assert.False(t, seen)

			first, err := store.MarkProcessed(ctx, "evt-1", time.Hour)
			require.NoError(t, err)
			assert.True(t, first)

			again, err := store.MarkProcessed(ctx, "evt-1", time.Hour)
			require.NoError(t, err)
			assert.False(t, again)

			seen, err = store.IsProcessed(ctx, "evt-1")
			require.NoError(t, err)
			assert.True(t, seen)

			other, err := store.MarkProcessed(ctx, "evt-2", time.Hour)
			require.NoError(t, err)
			assert.True(t, other)
		})
	}
}

func TestIdempotencyStore_Expiry(t *testing.T) {
	ctx := context.Background()
	_, mr, memory := newStores(t)

	t.Run("memory", func(t *testing.T) {
		now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		memory.now = func() time.Time { return now }

		_, err := memory.MarkProcessed(ctx, "evt", time.Minute)
		require.NoError(t, err)

		now = now.Add(2 * time.Minute)
		seen, err := memory.IsProcessed(ctx, "evt")
		require.NoError(t, err)
		assert.False(t, seen)

		memory.sweep()
		assert.Equal(t, 0, memory.Len())

		again, err := memory.MarkProcessed(ctx, "evt", time.Minute)
		require.NoError(t, err)
		assert.True(t, again)
	})

	t.Run("redis", func(t *testing.T) {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()
		store := NewRedisIdempotencyStore(client, "test:")

		_, err := store.MarkProcessed(ctx, "evt", time.Minute)
		require.NoError(t, err)
		assert.True(t, mr.Exists("test:evt"))

		mr.FastForward(2 * time.Minute)
		again, err := store.MarkProcessed(ctx, "evt", time.Minute)
		require.NoError(t, err)
		assert.True(t, again)
	})
}

func TestRedisIdempotencyStore_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	store := NewRedisIdempotencyStore(client, "")
	mr.Close()

	_, err := store.MarkProcessed(context.Background(), "evt", time.Minute)
	assert.Error(t, err)
}

func TestMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	s := NewMemoryIdempotencyStore(0)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
