package workq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueItem(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, nil)

	item, err := q.EnqueueItem(ctx, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), item.Payload)

	length, err := q.QueueLength(ctx, TagUnprocessed)
	require.NoError(t, err)
	assert.EqualValues(t, 1, length)
}

func TestMarkItemAsDone(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, nil)

	_, err := q.EnqueueItems(ctx, [][]byte{[]byte("a")})
	require.NoError(t, err)
	claimed, err := q.ClaimItemsNonBlocking(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, q.MarkItemAsDone(ctx, claimed[0]))

	length, err := q.QueueLength(ctx, TagWorking)
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestRequeueBusyItem(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, nil)

	_, err := q.EnqueueItems(ctx, [][]byte{[]byte("a")})
	require.NoError(t, err)
	claimed, err := q.ClaimItemsNonBlocking(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	ok, err := q.RequeueBusyItem(ctx, claimed[0])
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRequeueBusyItemWithError(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, nil)

	_, err := q.EnqueueItems(ctx, [][]byte{[]byte("a")})
	require.NoError(t, err)
	claimed, err := q.ClaimItemsNonBlocking(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	ok, err := q.RequeueBusyItemWithError(ctx, claimed[0], "boom")
	require.NoError(t, err)
	assert.True(t, ok)

	item, err := q.PeekItem(ctx, TagUnprocessed, PeekBack)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "boom", item.Metadata.LastError)
}
