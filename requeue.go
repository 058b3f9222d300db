package workq

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Unclaim returns items that were claimed but never started back to the
// unprocessed sublist at the tail, so each is the very next item a
// consumer claims, as if it had never left. process_count is not
// incremented. Returns the count of items actually requeued (an item
// already moved by a concurrent caller doesn't count).
func (q *Queue) Unclaim(ctx context.Context, items ...*Item) (int, error) {
	return q.runRequeueBatch(ctx, q.keys.Working, items, placeTail, "", false)
}

// RequeueBusy retries items after a failed processing attempt, sending each
// to the back of the unprocessed line (or to the failed sublist if this
// attempt pushed its process_count past RequeueLimit).
func (q *Queue) RequeueBusy(ctx context.Context, items ...*Item) (int, error) {
	return q.runRequeueBatch(ctx, q.keys.Working, items, placeHead, "", true)
}

// RequeueBusyError is RequeueBusy with an error string attached to each
// item's metadata for operator inspection.
func (q *Queue) RequeueBusyError(ctx context.Context, errMsg string, items ...*Item) (int, error) {
	return q.runRequeueBatch(ctx, q.keys.Working, items, placeHead, errMsg, true)
}

// RequeueFailedItems retries items out of the failed sublist, placing each
// at the tail of unprocessed. Per the package's preserved open-question
// behavior, process_count is unconditionally incremented again here, so a
// retried failed item begins life with process_count = old+1, not 0.
func (q *Queue) RequeueFailedItems(ctx context.Context, items ...*Item) (int, error) {
	return q.runRequeueBatch(ctx, q.keys.Failed, items, placeTail, "", true)
}

// runRequeueBatch invokes the requeue script once per item. Script
// exceptions are caught and logged, not raised: a batch with a few bad
// items still reports the count that did succeed.
func (q *Queue) runRequeueBatch(ctx context.Context, source string, items []*Item, place, errMsg string, increment bool) (int, error) {
	count := 0
	for _, item := range items {
		ok, err := q.runRequeueOne(ctx, source, item.Key, place, errMsg, increment)
		if err != nil {
			continue
		}
		if ok {
			count++
		}
	}
	return count, nil
}

func (q *Queue) runRequeueOne(ctx context.Context, source, itemKey, place, errMsg string, increment bool) (bool, error) {
	incArg := "0"
	if increment {
		incArg = "1"
	}

	res, err := requeueScript.Run(ctx, q.gw.client,
		[]string{source, q.keys.Unprocessed, q.keys.Failed},
		itemKey, q.opts.RequeueLimit, place, errMsg, incArg, nowArg(),
	).Result()
	if err != nil {
		q.log.Warn("requeue script failed", zap.String("item_key", itemKey), zap.Error(err))
		return false, err
	}

	moved, ok := res.(int64)
	if !ok || moved == 0 {
		return false, nil
	}

	if q.opts.WarnOnRequeue {
		q.log.Warn("requeued item", zap.String("item_key", itemKey), zap.String("source", source))
	}
	return true, nil
}

func nowArg() string {
	return strconv.FormatFloat(float64(time.Now().UnixNano())/1e9, 'f', 6, 64)
}
