package workq

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// gateway is the thin wrapper around a go-redis client that every component
// in this package issues commands through. It owns connection construction,
// the preflight health check, and pipelined bulk helpers; it does not hold
// any queue-specific state.
type gateway struct {
	client redis.UniversalClient
	log    *zap.Logger
}

// newGateway builds a gateway from Options, preferring an injected client
// over RedisOptions, and runs a bounded-backoff preflight ping so that a
// transient dial failure at startup is retried rather than surfaced
// immediately.
func newGateway(ctx context.Context, opts *Options) (*gateway, error) {
	var client redis.UniversalClient
	if opts.RedisClient != nil {
		client = opts.RedisClient
	} else {
		client = redis.NewClient(opts.RedisOptions)
	}

	g := &gateway{client: client, log: opts.Logger}
	if err := g.preflight(ctx, opts.ReconnectMaxElapsedTime); err != nil {
		return nil, errors.Wrap(err, "redis preflight check failed")
	}
	return g, nil
}

// preflight pings the Redis instance, retrying with bounded exponential
// backoff so that the gateway transparently rides out a dial failure for up
// to maxElapsed before giving up.
func (g *gateway) preflight(ctx context.Context, maxElapsed time.Duration) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed

	var lastErr error
	op := func() error {
		lastErr = g.client.Ping(ctx).Err()
		return lastErr
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		g.log.Warn("redis connection did not become healthy in time", zap.Error(lastErr))
		return lastErr
	}
	return nil
}

// pipelineResult pairs a pipelined command with the key it was issued for,
// so a completion callback can report which item succeeded or failed
// without re-deriving it from the command itself.
type pipelineResult struct {
	key string
	cmd redis.Cmder
}

// runPipelined issues one command per key via fn on a single pipeline and
// returns the per-key results in dispatch order, which for a single Redis
// connection matches reply order. Errors are not raised here; callers
// inspect each Cmder's error individually so that a handful of bad keys
// doesn't blow up an otherwise-successful batch.
func (g *gateway) runPipelined(ctx context.Context, keys []string, fn func(pipe redis.Pipeliner, key string) redis.Cmder) ([]pipelineResult, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	pipe := g.client.Pipeline()
	results := make([]pipelineResult, len(keys))
	for i, key := range keys {
		results[i] = pipelineResult{key: key, cmd: fn(pipe, key)}
	}

	// Exec returns the first failed command's error (or a round-trip
	// failure); individual command errors are still available on each
	// Cmder and are handled by the caller.
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return results, err
	}
	return results, nil
}
