package workq

import (
	"context"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// AckResult partitions the items passed to MarkItemsAsProcessed into those
// whose working-sublist entry was actually removed (Flushed) and those that
// were already absent (Failed); most likely because the expiry reclaimer
// already moved them back to unprocessed.
type AckResult struct {
	Flushed []*Item
	Failed  []*Item
}

// MarkItemsAsProcessed removes each item from the working sublist and
// purges its payload and metadata records. Re-acking an item that's no
// longer in working is not an error: it's reported in AckResult.Failed so
// callers can distinguish "someone else already handled this" from an
// actual Redis failure.
func (q *Queue) MarkItemsAsProcessed(ctx context.Context, items []*Item) (*AckResult, error) {
	if len(items) == 0 {
		return &AckResult{}, nil
	}

	byKey := make(map[string]*Item, len(items))
	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = item.Key
		byKey[item.Key] = item
	}

	results, err := q.gw.runPipelined(ctx, keys, func(pipe redis.Pipeliner, key string) redis.Cmder {
		return pipe.LRem(ctx, q.keys.Working, 1, key)
	})
	if err != nil {
		q.log.Warn("ack: pipeline error removing items from working", zap.Error(err))
	}

	result := &AckResult{}
	var toDelete []*Item
	for _, r := range results {
		item := byKey[r.key]
		removed, err := r.cmd.(*redis.IntCmd).Result()
		if err != nil || removed == 0 {
			result.Failed = append(result.Failed, item)
			continue
		}
		result.Flushed = append(result.Flushed, item)
		toDelete = append(toDelete, item)
	}

	q.purgeRecords(ctx, toDelete)

	return result, nil
}

// purgeRecords deletes payload and metadata keys for flushed items in
// chunks of up to 100, logging (not erroring) if the delete count disagrees
// with expectation; another client may have already cleaned the same
// keys.
func (q *Queue) purgeRecords(ctx context.Context, items []*Item) {
	const chunkSize = 100
	for start := 0; start < len(items); start += chunkSize {
		end := start + chunkSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		keys := make([]string, 0, len(chunk)*2)
		for _, item := range chunk {
			keys = append(keys, metaKey(item.Key), payloadKey(item.Key))
		}

		deleted, err := q.gw.client.Del(ctx, keys...).Result()
		if err != nil {
			q.log.Warn("ack: failed to delete item records", zap.Error(err))
			continue
		}
		if int(deleted) != len(keys) {
			q.log.Warn("ack: record deletion count mismatch, another client may have already cleaned up",
				zap.Int("expected", len(keys)), zap.Int("deleted", int(deleted)))
		}
	}
}
