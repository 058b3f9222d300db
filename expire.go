package workq

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ExpireOptions configures HandleExpiredItems.
type ExpireOptions struct {
	// Timeout overrides BusyExpiryTime for this call. Zero means "use
	// BusyExpiryTime".
	Timeout time.Duration
	// Action selects what happens to an expired item: ActionRequeue (the
	// default, zero value) retries it through the requeue script;
	// ActionDrop removes it from working and leaks its records for
	// operator cleanup.
	Action Action
}

// HandleExpiredItems scans the working sublist for items whose
// time_enqueued is older than opts.Timeout (or BusyExpiryTime, if unset)
// and recovers each one per opts.Action. A consumer is expected to run
// this on an interval, mirroring the teacher's ExpirationWorker shape.
func (q *Queue) HandleExpiredItems(ctx context.Context, opts ExpireOptions) ([]*Item, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = q.opts.BusyExpiryTime
	}

	itemKeys, err := q.gw.client.LRange(ctx, q.keys.Working, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "reading working sublist")
	}
	if len(itemKeys) == 0 {
		return nil, nil
	}

	metas := q.pipelineMeta(ctx, itemKeys)

	var recovered []*Item
	for _, itemKey := range itemKeys {
		meta, ok := metas[itemKey]
		if !ok {
			continue
		}
		since := meta.TimeEnqueued
		if since.IsZero() {
			since = meta.TimeCreated
		}
		if since.IsZero() || time.Since(since) < timeout {
			continue
		}

		item, err := q.recoverExpired(ctx, itemKey, opts.Action, meta)
		if err != nil {
			q.log.Warn("expire: failed to recover item", zap.String("item_key", itemKey), zap.Error(err))
			continue
		}
		if item != nil {
			recovered = append(recovered, item)
		}
	}
	return recovered, nil
}

// pipelineMeta fetches metadata for every item key in one pipelined round
// trip, skipping any key whose metadata has already vanished (the item was
// acked concurrently).
func (q *Queue) pipelineMeta(ctx context.Context, itemKeys []string) map[string]Metadata {
	results, err := q.gw.runPipelined(ctx, itemKeys, func(pipe redis.Pipeliner, itemKey string) redis.Cmder {
		return pipe.HGetAll(ctx, metaKey(itemKey))
	})
	if err != nil {
		q.log.Warn("expire: pipeline error fetching metadata", zap.Error(err))
	}

	metas := make(map[string]Metadata, len(itemKeys))
	for _, r := range results {
		raw, err := r.cmd.(*redis.StringStringMapCmd).Result()
		if err != nil || len(raw) == 0 {
			continue
		}
		metas[r.key] = parseMeta(raw)
	}
	return metas
}

func (q *Queue) recoverExpired(ctx context.Context, itemKey string, action Action, meta Metadata) (*Item, error) {
	if action == ActionDrop {
		if err := q.gw.client.LRem(ctx, q.keys.Working, -1, itemKey).Err(); err != nil {
			return nil, err
		}
		q.log.Warn("dropped expired item", zap.String("item_key", itemKey))
		return &Item{Key: itemKey, Metadata: meta}, nil
	}

	ok, err := q.runRequeueOne(ctx, q.keys.Working, itemKey, placeHead, "", true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	q.log.Warn("reclaimed expired item", zap.String("item_key", itemKey))

	payload, err := q.gw.client.Get(ctx, payloadKey(itemKey)).Bytes()
	if err != nil {
		return &Item{Key: itemKey, Metadata: meta}, nil
	}
	return &Item{Key: itemKey, Payload: payload, Metadata: meta}, nil
}
