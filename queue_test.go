package workq

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestQueue builds a Queue backed by an in-process miniredis instance,
// registering cleanup so the server is closed when the test ends.
func newTestQueue(t *testing.T, configure func(*Options)) *Queue {
	t.Helper()

	mini := miniredis.RunT(t)

	opts := DefaultOptions()
	opts.QueueName = t.Name()
	opts.RedisOptions = &RedisOptions{Addr: mini.Addr()}
	if configure != nil {
		configure(opts)
	}

	q, err := NewQueueWithOptions(context.Background(), opts)
	require.NoError(t, err)
	return q
}

func TestNewQueue(t *testing.T) {
	t.Run("creates a new queue", func(tt *testing.T) {
		mini := miniredis.RunT(tt)

		q, err := NewQueue(context.Background(), tt.Name(), &RedisOptions{Addr: mini.Addr()})
		require.NoError(tt, err)
		assert.NotNil(tt, q)
		assert.Equal(tt, tt.Name()+"_unprocessed", q.keys.Unprocessed)
	})
}

func TestNewQueueWithOptions(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a queue name", func(tt *testing.T) {
		mini := miniredis.RunT(tt)
		opts := DefaultOptions()
		opts.RedisOptions = &RedisOptions{Addr: mini.Addr()}

		_, err := NewQueueWithOptions(ctx, opts)
		require.Error(tt, err)
	})

	t.Run("requires a redis client or options", func(tt *testing.T) {
		opts := DefaultOptions()
		opts.QueueName = "q"

		_, err := NewQueueWithOptions(ctx, opts)
		require.Error(tt, err)
		assert.ErrorIs(tt, err, ErrNoRedisClient)
	})

	t.Run("bubbles up connection errors", func(tt *testing.T) {
		opts := DefaultOptions()
		opts.QueueName = "q"
		opts.ReconnectMaxElapsedTime = 1
		opts.RedisOptions = &RedisOptions{Addr: "localhost:0"}

		_, err := NewQueueWithOptions(ctx, opts)
		require.Error(tt, err)
	})

	t.Run("allows an injected RedisClient", func(tt *testing.T) {
		mini := miniredis.RunT(tt)
		opts := DefaultOptions()
		opts.QueueName = "q"
		opts.RedisClient = redis.NewClient(&RedisOptions{Addr: mini.Addr()})

		q, err := NewQueueWithOptions(ctx, opts)
		require.NoError(tt, err)
		assert.Same(tt, opts.RedisClient, q.gw.client)
	})
}
