package workq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedFailed enqueues a payload, claims it, and forces it straight into the
// failed sublist via RequeueBusy with RequeueLimit=0, returning the
// resulting failed item.
func seedFailed(t *testing.T, ctx context.Context, q *Queue, payload string) *Item {
	t.Helper()

	_, err := q.EnqueueItems(ctx, [][]byte{[]byte(payload)})
	require.NoError(t, err)

	claimed, err := q.ClaimItemsNonBlocking(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	n, err := q.RequeueBusy(ctx, claimed...)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	item, err := q.PeekItem(ctx, TagFailed, PeekBack)
	require.NoError(t, err)
	require.NotNil(t, item)
	return item
}

func TestProcessFailedItems(t *testing.T) {
	ctx := context.Background()

	t.Run("iterates every failed item through the callback", func(tt *testing.T) {
		q := newTestQueue(tt, func(o *Options) { o.RequeueLimit = 0 })
		seedFailed(tt, ctx, q, "a")
		seedFailed(tt, ctx, q, "b")

		var seen []string
		itemCount, errorCount, err := q.ProcessFailedItems(ctx, 0, func(item *Item) error {
			seen = append(seen, string(item.Payload))
			return nil
		})
		require.NoError(tt, err)
		assert.Equal(tt, 2, itemCount)
		assert.Zero(tt, errorCount)
		assert.ElementsMatch(tt, []string{"a", "b"}, seen)

		// ProcessFailedItems with maxCount<=0 drains the staged list
		// entirely rather than restoring anything, so failed is now empty.
		length, err := q.QueueLength(ctx, TagFailed)
		require.NoError(tt, err)
		assert.Zero(tt, length)
	})

	t.Run("isolates a callback error without aborting iteration", func(tt *testing.T) {
		q := newTestQueue(tt, func(o *Options) { o.RequeueLimit = 0 })
		seedFailed(tt, ctx, q, "a")
		seedFailed(tt, ctx, q, "b")

		itemCount, errorCount, err := q.ProcessFailedItems(ctx, 0, func(item *Item) error {
			if string(item.Payload) == "a" {
				return assert.AnError
			}
			return nil
		})
		require.NoError(tt, err)
		assert.Equal(tt, 1, itemCount)
		assert.Equal(tt, 1, errorCount)
	})

	t.Run("isolates a callback panic the same way as an error", func(tt *testing.T) {
		q := newTestQueue(tt, func(o *Options) { o.RequeueLimit = 0 })
		seedFailed(tt, ctx, q, "a")

		itemCount, errorCount, err := q.ProcessFailedItems(ctx, 0, func(item *Item) error {
			panic("boom")
		})
		require.NoError(tt, err)
		assert.Zero(tt, itemCount)
		assert.Equal(tt, 1, errorCount)
	})

	t.Run("restores overflow beyond maxCount", func(tt *testing.T) {
		q := newTestQueue(tt, func(o *Options) { o.RequeueLimit = 0 })
		seedFailed(tt, ctx, q, "a")
		seedFailed(tt, ctx, q, "b")
		seedFailed(tt, ctx, q, "c")

		itemCount, _, err := q.ProcessFailedItems(ctx, 1, func(item *Item) error {
			return nil
		})
		require.NoError(tt, err)
		assert.Equal(tt, 1, itemCount)

		length, err := q.QueueLength(ctx, TagFailed)
		require.NoError(tt, err)
		assert.EqualValues(tt, 2, length)
	})

	t.Run("is a no-op when failed is empty", func(tt *testing.T) {
		q := newTestQueue(tt, nil)

		itemCount, errorCount, err := q.ProcessFailedItems(ctx, 0, func(item *Item) error {
			t.Fatal("callback should not be invoked")
			return nil
		})
		require.NoError(tt, err)
		assert.Zero(tt, itemCount)
		assert.Zero(tt, errorCount)
	})
}

func TestHandleFailedItems(t *testing.T) {
	ctx := context.Background()

	t.Run("ActionReturn removes items from failed without retrying", func(tt *testing.T) {
		q := newTestQueue(tt, func(o *Options) { o.RequeueLimit = 0 })
		seedFailed(tt, ctx, q, "a")

		items, err := q.HandleFailedItems(ctx, ActionReturn)
		require.NoError(tt, err)
		require.Len(tt, items, 1)

		failedLen, err := q.QueueLength(ctx, TagFailed)
		require.NoError(tt, err)
		assert.Zero(tt, failedLen)

		unprocessedLen, err := q.QueueLength(ctx, TagUnprocessed)
		require.NoError(tt, err)
		assert.Zero(tt, unprocessedLen)
	})

	t.Run("ActionRequeue retries items without double-incrementing process_count", func(tt *testing.T) {
		// seedFailed needs RequeueLimit=0 to park the item; the limit is then
		// widened so the requeue script sends it back to unprocessed.
		q := newTestQueue(tt, func(o *Options) { o.RequeueLimit = 0 })
		seeded := seedFailed(tt, ctx, q, "a")
		q.opts.RequeueLimit = 10

		items, err := q.HandleFailedItems(ctx, ActionRequeue)
		require.NoError(tt, err)
		require.Len(tt, items, 1)

		unprocessedLen, err := q.QueueLength(ctx, TagUnprocessed)
		require.NoError(tt, err)
		assert.EqualValues(tt, 1, unprocessedLen)

		requeued, err := q.PeekItem(ctx, TagUnprocessed, PeekFront)
		require.NoError(tt, err)
		require.NotNil(tt, requeued)
		assert.Equal(tt, seeded.Metadata.ProcessCount, requeued.Metadata.ProcessCount)
	})
}

func TestRemoveFailedItems(t *testing.T) {
	ctx := context.Background()

	t.Run("drops items at or past MinFailCount and retains the rest", func(tt *testing.T) {
		q := newTestQueue(tt, func(o *Options) { o.RequeueLimit = 0 })
		heavy := seedFailed(tt, ctx, q, "heavy")
		require.GreaterOrEqual(tt, heavy.Metadata.ProcessCount, 1)

		light := seedFailed(tt, ctx, q, "light")
		require.NoError(tt, q.gw.client.HSet(ctx, metaKey(light.Key), fieldProcessCount, 0).Err())

		dropped, retained, err := q.RemoveFailedItems(ctx, RemoveFailedOptions{MinFailCount: 1})
		require.NoError(tt, err)
		assert.Equal(tt, 1, dropped)
		assert.Equal(tt, 1, retained)

		length, err := q.QueueLength(ctx, TagFailed)
		require.NoError(tt, err)
		assert.EqualValues(tt, 1, length)
	})
}
