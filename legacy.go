package workq

import "context"

// EnqueueItem enqueues a single payload. It is a thin convenience wrapper
// around EnqueueItems for callers that only ever enqueue one item at a
// time.
func (q *Queue) EnqueueItem(ctx context.Context, payload []byte) (*Item, error) {
	items, err := q.EnqueueItems(ctx, [][]byte{payload})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

// MarkItemAsDone acks a single item. See MarkItemsAsProcessed for the
// batch form and its partial-failure accounting.
func (q *Queue) MarkItemAsDone(ctx context.Context, item *Item) error {
	_, err := q.MarkItemsAsProcessed(ctx, []*Item{item})
	return err
}

// RequeueBusyItem requeues a single item after a failed attempt. See
// RequeueBusy for the variadic, count-returning form.
func (q *Queue) RequeueBusyItem(ctx context.Context, item *Item) (bool, error) {
	n, err := q.RequeueBusy(ctx, item)
	return n == 1, err
}

// RequeueBusyItemWithError requeues a single item, attaching errMsg to its
// metadata. See RequeueBusyError for the variadic, count-returning form.
func (q *Queue) RequeueBusyItemWithError(ctx context.Context, item *Item, errMsg string) (bool, error) {
	n, err := q.RequeueBusyError(ctx, errMsg, item)
	return n == 1, err
}
