package workq

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// QueueLength returns the number of items currently sitting in the given
// sublist.
func (q *Queue) QueueLength(ctx context.Context, tag SublistTag) (int64, error) {
	n, err := q.gw.client.LLen(ctx, q.keys.sublist(tag)).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "reading length of %s", tag)
	}
	return n, nil
}

// PeekDirection selects which end of a sublist PeekItem reads from.
type PeekDirection int

const (
	// PeekFront peeks the tail, the oldest item (the next one a consumer
	// would claim).
	PeekFront PeekDirection = iota
	// PeekBack peeks the head, the newest item (the one most recently
	// pushed).
	PeekBack
)

// PeekItem returns the item at the given end of a sublist without removing
// it. It returns nil, nil if the sublist is empty.
func (q *Queue) PeekItem(ctx context.Context, tag SublistTag, dir PeekDirection) (*Item, error) {
	index := int64(-1)
	if dir == PeekBack {
		index = 0
	}

	keys, err := q.gw.client.LRange(ctx, q.keys.sublist(tag), index, index).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "peeking %s", tag)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return q.hydrateAny(ctx, keys[0])
}

// GetItemAge returns the time elapsed since the oldest item in the given
// sublist was last (re)enqueued into unprocessed, i.e. since its
// time_enqueued (or time_created, if time_enqueued is unset). For the
// working and failed sublists this is not the time the item entered them.
// It returns 0, nil if the sublist is empty.
func (q *Queue) GetItemAge(ctx context.Context, tag SublistTag) (time.Duration, error) {
	keys, err := q.gw.client.LRange(ctx, q.keys.sublist(tag), -1, -1).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "reading oldest item of %s", tag)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	raw, err := q.gw.client.HGetAll(ctx, metaKey(keys[0])).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "fetching metadata for %q", keys[0])
	}
	if len(raw) == 0 {
		return 0, nil
	}

	meta := parseMeta(raw)
	since := meta.TimeEnqueued
	if since.IsZero() {
		since = meta.TimeCreated
	}
	if since.IsZero() {
		return 0, nil
	}
	return time.Since(since), nil
}

// FlushQueue deletes every sublist this queue owns. It does not delete
// outstanding item-*/meta-* records; the operator is expected to know
// this is a coarse, destructive operation, not a full GC.
func (q *Queue) FlushQueue(ctx context.Context) error {
	keys := []string{q.keys.Unprocessed, q.keys.Working, q.keys.Processed, q.keys.Failed}
	if err := q.gw.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "flushing queue")
	}
	return nil
}

// PercentMemoryUsed returns the Redis instance's used_memory as a
// percentage of maxmemory, as reported by INFO memory. It returns 0 with
// no error if maxmemory is unset (0), since Redis interprets that as "no
// limit".
func (q *Queue) PercentMemoryUsed(ctx context.Context) (float64, error) {
	info, err := q.gw.client.Info(ctx, "memory").Result()
	if err != nil {
		return 0, errors.Wrap(err, "fetching memory info")
	}

	used, ok := parseInfoInt(info, "used_memory:")
	if !ok {
		return 0, errors.New("used_memory not present in INFO memory")
	}
	max, ok := parseInfoInt(info, "maxmemory:")
	if !ok || max == 0 {
		return 0, nil
	}
	return float64(used) / float64(max) * 100, nil
}

func parseInfoInt(info, prefix string) (int64, bool) {
	for _, line := range strings.Split(info, "\r\n") {
		if strings.HasPrefix(line, prefix) {
			v, err := strconv.ParseInt(strings.TrimPrefix(line, prefix), 10, 64)
			if err != nil {
				return 0, false
			}
			return v, true
		}
	}
	return 0, false
}

// RawItemsUnprocessed returns up to n fully hydrated items from the tail
// (oldest end) of the unprocessed sublist, without claiming them. Intended
// for diagnostics and admin tooling, not the hot path.
func (q *Queue) RawItemsUnprocessed(ctx context.Context, n int) ([]*Item, error) {
	return q.rawItems(ctx, TagUnprocessed, n)
}

// RawItemsWorking returns up to n fully hydrated items from the tail of the
// working sublist.
func (q *Queue) RawItemsWorking(ctx context.Context, n int) ([]*Item, error) {
	return q.rawItems(ctx, TagWorking, n)
}

// RawItemsFailed returns up to n fully hydrated items from the tail of the
// failed sublist.
func (q *Queue) RawItemsFailed(ctx context.Context, n int) ([]*Item, error) {
	return q.rawItems(ctx, TagFailed, n)
}

func (q *Queue) rawItems(ctx context.Context, tag SublistTag, n int) ([]*Item, error) {
	if n <= 0 {
		return nil, nil
	}

	itemKeys, err := q.gw.client.LRange(ctx, q.keys.sublist(tag), -int64(n), -1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", tag)
	}

	// LRANGE returns the requested slice in stored (head-to-tail) order, so
	// the last n elements come back newest-of-the-slice-first. Reverse so
	// the result is oldest-first, matching the order a consumer would
	// actually claim these items in.
	for i, j := 0, len(itemKeys)-1; i < j; i, j = i+1, j-1 {
		itemKeys[i], itemKeys[j] = itemKeys[j], itemKeys[i]
	}

	items := make([]*Item, 0, len(itemKeys))
	for _, itemKey := range itemKeys {
		item, err := q.hydrateAny(ctx, itemKey)
		if err != nil {
			if errors.Cause(err) == ErrItemNotFound {
				continue
			}
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
