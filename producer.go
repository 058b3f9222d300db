package workq

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// EnqueueItems mints a fresh item key for each payload, persists its
// payload and metadata, and pushes it onto the head of the unprocessed
// sublist. Payloads are enqueued in the given order; the three Redis
// commands issued per item are not atomic as a group, so a crash between
// them leaves an orphaned item-*/meta-* pair with no sublist reference
// (harmless garbage, not corruption).
func (q *Queue) EnqueueItems(ctx context.Context, payloads [][]byte) ([]*Item, error) {
	if len(payloads) == 0 {
		return nil, ErrEmptyBatch
	}

	items := make([]*Item, 0, len(payloads))
	for _, payload := range payloads {
		item, err := q.enqueueOne(ctx, payload)
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (q *Queue) enqueueOne(ctx context.Context, payload []byte) (*Item, error) {
	itemKey := q.keys.newItemKey()

	ok, err := q.gw.client.SetNX(ctx, payloadKey(itemKey), payload, 0).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "setting payload for %q", itemKey)
	}
	if !ok {
		return nil, errors.Wrapf(ErrKeyCollision, "item key %q", itemKey)
	}

	now := time.Now()
	meta := Metadata{TimeCreated: now, TimeEnqueued: now}
	if err := q.gw.client.HSet(ctx, metaKey(itemKey), metaHashFields(meta)).Err(); err != nil {
		return nil, errors.Wrapf(err, "setting metadata for %q", itemKey)
	}

	if err := q.gw.client.LPush(ctx, q.keys.Unprocessed, itemKey).Err(); err != nil {
		return nil, errors.Wrapf(err, "pushing %q onto unprocessed", itemKey)
	}

	q.log.Debug("enqueued item", zap.String("item_key", itemKey))

	return &Item{Key: itemKey, Payload: payload, Metadata: meta}, nil
}
