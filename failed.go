package workq

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Action selects the recovery behavior of HandleFailedItems and
// HandleExpiredItems.
type Action int

const (
	// ActionRequeue retries the item through the requeue script.
	ActionRequeue Action = iota
	// ActionReturn simply removes the item from the failed sublist,
	// leaving its records in place for the caller to deal with. Only
	// meaningful for HandleFailedItems.
	ActionReturn
	// ActionDrop removes the item from the working sublist without
	// requeuing it, leaking its item-*/meta-* records for operator
	// cleanup. Only meaningful for HandleExpiredItems.
	ActionDrop
)

// ProcessFailedItems snapshots the failed sublist by atomically renaming it
// aside, iterates up to maxCount items (or all of them if maxCount <= 0)
// through callback, and restores any overflow beyond maxCount back onto
// the live failed sublist. callback errors or panics are isolated: they
// increment errorCount but never abort the iteration.
func (q *Queue) ProcessFailedItems(ctx context.Context, maxCount int, callback func(*Item) error) (itemCount, errorCount int, err error) {
	exists, err := q.gw.client.Exists(ctx, q.keys.Failed).Result()
	if err != nil {
		return 0, 0, errors.Wrap(err, "checking failed sublist")
	}
	if exists == 0 {
		return 0, 0, nil
	}

	temp := tempFailedKey()

	renamed, err := q.gw.client.RenameNX(ctx, q.keys.Failed, temp).Result()
	if err != nil && err != redis.Nil {
		return 0, 0, errors.Wrap(err, "staging failed sublist")
	}
	if !renamed {
		// RENAMENX found the target key already occupied. (A source that
		// vanished between our existence check and the rename makes
		// RENAMENX return an error instead, handled above.)
		return 0, 0, errors.Wrapf(ErrTempKeyCollision, "staging key %q", temp)
	}

	// maxCount <= 0 means "drain everything": read the whole staged list
	// without removing anything from it, then delete the staging key
	// outright; there's no overflow to restore.
	if maxCount <= 0 {
		itemKeys, err := q.gw.client.LRange(ctx, temp, 0, -1).Result()
		if err != nil {
			return 0, 0, errors.Wrap(err, "reading staged failed items")
		}
		itemCount, errorCount = q.runCallbacks(ctx, itemKeys, callback)
		if err := q.gw.client.Del(ctx, temp).Err(); err != nil {
			q.log.Warn("process failed items: failed to delete staging key", zap.Error(err))
		}
		return itemCount, errorCount, nil
	}

	// maxCount > 0: destructively pop up to maxCount items off the staged
	// list so whatever's left in temp, if anything, is exactly the
	// overflow to restore.
	itemKeys, err := q.gw.client.LPopCount(ctx, temp, maxCount).Result()
	if err != nil && err != redis.Nil {
		return 0, 0, errors.Wrap(err, "reading staged failed items")
	}
	itemCount, errorCount = q.runCallbacks(ctx, itemKeys, callback)

	for {
		_, err := q.gw.client.RPopLPush(ctx, temp, q.keys.Failed).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			q.log.Warn("process failed items: failed to restore overflow item", zap.Error(err))
			break
		}
	}

	if err := q.gw.client.Del(ctx, temp).Err(); err != nil {
		q.log.Warn("process failed items: failed to delete staging key", zap.Error(err))
	}

	return itemCount, errorCount, nil
}

// runCallbacks hydrates and invokes callback for each item key in order,
// counting successes and isolated failures.
func (q *Queue) runCallbacks(ctx context.Context, itemKeys []string, callback func(*Item) error) (itemCount, errorCount int) {
	for _, itemKey := range itemKeys {
		item, hydrateErr := q.hydrateAny(ctx, itemKey)
		if hydrateErr != nil {
			q.log.Warn("process failed items: could not hydrate item, skipping", zap.String("item_key", itemKey), zap.Error(hydrateErr))
			errorCount++
			continue
		}
		if invokeErr := q.invokeCallback(callback, item); invokeErr != nil {
			errorCount++
			continue
		}
		itemCount++
	}
	return itemCount, errorCount
}

// invokeCallback calls callback, recovering from and reporting a panic the
// same way a returned error is reported, mirroring the teacher's
// panic-isolated callback invocation in Consumer.process.
func (q *Queue) invokeCallback(callback func(*Item) error, item *Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Warn("process failed items: callback panicked", zap.Any("panic", r), zap.String("item_key", item.Key))
			err = errors.Errorf("callback panicked: %v", r)
		}
	}()
	return callback(item)
}

// hydrateAny fetches payload and metadata for an item key without
// touching process_count, used by read paths that aren't claiming.
func (q *Queue) hydrateAny(ctx context.Context, itemKey string) (*Item, error) {
	payload, err := q.gw.client.Get(ctx, payloadKey(itemKey)).Bytes()
	if err == redis.Nil {
		return nil, errors.Wrapf(ErrItemNotFound, "payload for %q", itemKey)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "fetching payload for %q", itemKey)
	}
	raw, err := q.gw.client.HGetAll(ctx, metaKey(itemKey)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "fetching metadata for %q", itemKey)
	}
	return &Item{Key: itemKey, Payload: payload, Metadata: parseMeta(raw)}, nil
}

// HandleFailedItems snapshots the entire failed sublist and, per item,
// either retries it through the requeue script (ActionRequeue, already
// counted while in failed so process_count is not incremented again here)
// or simply removes it from failed (ActionReturn), leaving its records
// intact for the caller.
func (q *Queue) HandleFailedItems(ctx context.Context, action Action) ([]*Item, error) {
	itemKeys, err := q.gw.client.LRange(ctx, q.keys.Failed, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "reading failed sublist")
	}

	items := make([]*Item, 0, len(itemKeys))
	for _, itemKey := range itemKeys {
		item, err := q.hydrateAny(ctx, itemKey)
		if err != nil {
			q.log.Warn("handle failed items: could not hydrate item, skipping", zap.String("item_key", itemKey), zap.Error(err))
			continue
		}

		switch action {
		case ActionRequeue:
			if _, err := q.runRequeueOne(ctx, q.keys.Failed, itemKey, placeHead, item.Metadata.LastError, false); err != nil {
				continue
			}
		case ActionReturn:
			if err := q.gw.client.LRem(ctx, q.keys.Failed, -1, itemKey).Err(); err != nil {
				q.log.Warn("handle failed items: could not remove item from failed", zap.String("item_key", itemKey), zap.Error(err))
				continue
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// RemoveFailedOptions configures RemoveFailedItems.
type RemoveFailedOptions struct {
	// MinAge: items created before now-MinAge are dropped.
	MinAge time.Duration
	// MinFailCount: items whose process_count is at least this are
	// dropped regardless of age.
	MinFailCount int
	// Chunk is the batch size passed to the underlying ProcessFailedItems
	// call. Defaults to 100.
	Chunk int
	// LogLimit caps how many individual drop/retain decisions are logged
	// at debug level, to avoid flooding logs on a large failure backlog.
	// Defaults to 100.
	LogLimit int
}

// RemoveFailedItems makes one ProcessFailedItems pass over up to Chunk
// items of the failed sublist, permanently deleting items old enough or
// retried enough and re-parking the rest of that chunk. Items beyond the
// first Chunk are restored to failed without being examined.
func (q *Queue) RemoveFailedItems(ctx context.Context, opts RemoveFailedOptions) (dropped, retained int, err error) {
	chunk := opts.Chunk
	if chunk <= 0 {
		chunk = 100
	}
	logLimit := opts.LogLimit
	if logLimit <= 0 {
		logLimit = 100
	}

	logged := 0
	_, _, err = q.ProcessFailedItems(ctx, chunk, func(item *Item) error {
		old := opts.MinAge > 0 && time.Since(item.Metadata.TimeCreated) > opts.MinAge
		failedEnough := opts.MinFailCount > 0 && item.Metadata.ProcessCount >= opts.MinFailCount

		if failedEnough || old {
			dropped++
			if logged < logLimit {
				q.log.Debug("remove failed items: dropping", zap.String("item_key", item.Key))
				logged++
			}
			if err := q.gw.client.Del(ctx, metaKey(item.Key), payloadKey(item.Key)).Err(); err != nil {
				q.log.Warn("remove failed items: failed to delete item records", zap.String("item_key", item.Key), zap.Error(err))
			}
			return nil
		}

		retained++
		if logged < logLimit {
			q.log.Debug("remove failed items: retaining", zap.String("item_key", item.Key))
			logged++
		}
		if err := q.gw.client.LPush(ctx, q.keys.Failed, item.Key).Err(); err != nil {
			q.log.Warn("remove failed items: failed to re-park item", zap.String("item_key", item.Key), zap.Error(err))
		}
		return nil
	})
	return dropped, retained, err
}
