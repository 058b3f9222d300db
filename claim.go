package workq

import (
	"context"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ClaimItemsNonBlocking claims up to k items from the unprocessed sublist
// without waiting if none are available. It may return fewer than k items
// (including zero) and never blocks.
func (q *Queue) ClaimItemsNonBlocking(ctx context.Context, k int) ([]*Item, error) {
	if k <= 1 {
		item, err := q.claimOne(ctx, false)
		if err != nil || item == nil {
			return nil, err
		}
		return []*Item{item}, nil
	}
	return q.claimBulk(ctx, k, false)
}

// ClaimItems claims up to k items from the unprocessed sublist, blocking up
// to ClaimWaitTimeout for the first item if none are immediately available.
func (q *Queue) ClaimItems(ctx context.Context, k int) ([]*Item, error) {
	if k <= 1 {
		item, err := q.claimOne(ctx, true)
		if err != nil || item == nil {
			return nil, err
		}
		return []*Item{item}, nil
	}
	return q.claimBulk(ctx, k, true)
}

// claimOne performs the atomic tail-of-unprocessed -> head-of-working
// transfer for a single item. If blocking is true and the fast-path
// RPOPLPUSH finds nothing, it falls back to a BRPOPLPUSH bounded by
// ClaimWaitTimeout.
func (q *Queue) claimOne(ctx context.Context, blocking bool) (*Item, error) {
	itemKey, err := q.gw.client.RPopLPush(ctx, q.keys.Unprocessed, q.keys.Working).Result()
	if err == redis.Nil {
		if !blocking {
			return nil, nil
		}
		itemKey, err = q.gw.client.BRPopLPush(ctx, q.keys.Unprocessed, q.keys.Working, q.opts.ClaimWaitTimeout).Result()
		if err == redis.Nil {
			return nil, nil
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "claiming item")
	}

	return q.hydrateClaimed(ctx, itemKey)
}

// claimBulk claims up to k items. The non-blocking variant clamps k to the
// current length of unprocessed and pipelines k RPOPLPUSH calls. The
// blocking variant issues a single BRPOPLPUSH first when the pipeline would
// otherwise come back empty, then pipelines k-1 further RPOPLPUSH calls.
func (q *Queue) claimBulk(ctx context.Context, k int, blocking bool) ([]*Item, error) {
	n := k
	if !blocking {
		length, err := q.gw.client.LLen(ctx, q.keys.Unprocessed).Result()
		if err != nil {
			return nil, errors.Wrap(err, "reading unprocessed length")
		}
		if length < int64(n) {
			n = int(length)
		}
		if n == 0 {
			return nil, nil
		}
		return q.pipelineClaim(ctx, n)
	}

	items, err := q.pipelineClaim(ctx, n)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		return items, nil
	}

	first, err := q.claimOne(ctx, true)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, nil
	}
	items = append(items, first)

	if n > 1 {
		rest, err := q.pipelineClaim(ctx, n-1)
		if err != nil {
			q.log.Warn("bulk claim: trailing pipeline failed, returning partial batch", zap.Error(err))
			return items, nil
		}
		items = append(items, rest...)
	}
	return items, nil
}

// pipelineClaim pipelines n RPOPLPUSH commands and hydrates every item key
// that actually came back. A redis.Nil reply (the unprocessed sublist ran
// dry mid-batch) is skipped silently; other per-command errors are logged
// and skipped rather than aborting the whole batch; partial success is
// expected here, not exceptional.
func (q *Queue) pipelineClaim(ctx context.Context, n int) ([]*Item, error) {
	if n <= 0 {
		return nil, nil
	}

	slots := make([]string, n)
	for i := range slots {
		slots[i] = strconv.Itoa(i)
	}

	results, err := q.gw.runPipelined(ctx, slots, func(pipe redis.Pipeliner, _ string) redis.Cmder {
		return pipe.RPopLPush(ctx, q.keys.Unprocessed, q.keys.Working)
	})
	if err != nil {
		q.log.Warn("bulk claim pipeline error", zap.Error(err))
	}

	items := make([]*Item, 0, n)
	for _, r := range results {
		itemKey, err := r.cmd.(*redis.StringCmd).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			q.log.Warn("bulk claim: skipping item after pipeline error", zap.Error(err))
			continue
		}
		item, err := q.hydrateClaimed(ctx, itemKey)
		if err != nil {
			q.log.Warn("bulk claim: failed to hydrate claimed item", zap.String("item_key", itemKey), zap.Error(err))
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// hydrateClaimed increments process_count, fetches metadata and payload for
// a just-claimed item key, and assembles the returned Item. The
// process_count increment is fire-and-forget: the item is already safely
// in the working sublist, so a lost increment under-counts retries but
// never causes double processing.
func (q *Queue) hydrateClaimed(ctx context.Context, itemKey string) (*Item, error) {
	q.gw.client.HIncrBy(ctx, metaKey(itemKey), fieldProcessCount, 1)

	payload, err := q.gw.client.Get(ctx, payloadKey(itemKey)).Bytes()
	if err != nil {
		return nil, errors.Wrapf(err, "fetching payload for %q", itemKey)
	}

	raw, err := q.gw.client.HGetAll(ctx, metaKey(itemKey)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "fetching metadata for %q", itemKey)
	}

	return &Item{Key: itemKey, Payload: payload, Metadata: parseMeta(raw)}, nil
}
