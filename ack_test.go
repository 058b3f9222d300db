package workq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkItemsAsProcessed(t *testing.T) {
	ctx := context.Background()

	t.Run("removes items from working and purges their records", func(tt *testing.T) {
		q := newTestQueue(tt, nil)
		_, err := q.EnqueueItems(ctx, [][]byte{[]byte("a"), []byte("b")})
		require.NoError(tt, err)

		claimed, err := q.ClaimItemsNonBlocking(ctx, 2)
		require.NoError(tt, err)
		require.Len(tt, claimed, 2)

		result, err := q.MarkItemsAsProcessed(ctx, claimed)
		require.NoError(tt, err)
		assert.Len(tt, result.Flushed, 2)
		assert.Empty(tt, result.Failed)

		workingLen, err := q.QueueLength(ctx, TagWorking)
		require.NoError(tt, err)
		assert.Zero(tt, workingLen)

		exists, err := q.gw.client.Exists(ctx, metaKey(claimed[0].Key), payloadKey(claimed[0].Key)).Result()
		require.NoError(tt, err)
		assert.Zero(tt, exists)
	})

	t.Run("reports an already-absent item in Failed instead of erroring", func(tt *testing.T) {
		q := newTestQueue(tt, nil)
		_, err := q.EnqueueItems(ctx, [][]byte{[]byte("a")})
		require.NoError(tt, err)

		claimed, err := q.ClaimItemsNonBlocking(ctx, 1)
		require.NoError(tt, err)
		require.Len(tt, claimed, 1)

		first, err := q.MarkItemsAsProcessed(ctx, claimed)
		require.NoError(tt, err)
		require.Len(tt, first.Flushed, 1)

		second, err := q.MarkItemsAsProcessed(ctx, claimed)
		require.NoError(tt, err)
		assert.Empty(tt, second.Flushed)
		assert.Len(tt, second.Failed, 1)
	})

	t.Run("handles an empty batch", func(tt *testing.T) {
		q := newTestQueue(tt, nil)

		result, err := q.MarkItemsAsProcessed(ctx, nil)
		require.NoError(tt, err)
		assert.Empty(tt, result.Flushed)
		assert.Empty(tt, result.Failed)
	})
}
