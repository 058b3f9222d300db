package workq

import (
	"context"

	"go.uber.org/zap"
)

// Queue is a reliable FIFO work queue layered on a single Redis instance. A
// single Queue value must not be driven from more than one goroutine
// concurrently; it holds no internal lock. Coordination across many
// independent Queue handles (one per goroutine, process, or machine)
// driving the same queue name happens entirely through Redis.
type Queue struct {
	keys Keys
	gw   *gateway
	opts *Options
	log  *zap.Logger
}

// NewQueue constructs a Queue for queueName using sensible defaults (see
// DefaultOptions), connecting to Redis with redisOptions.
func NewQueue(ctx context.Context, queueName string, redisOptions *RedisOptions) (*Queue, error) {
	opts := DefaultOptions()
	opts.QueueName = queueName
	opts.RedisOptions = redisOptions
	return NewQueueWithOptions(ctx, opts)
}

// NewQueueWithOptions constructs a Queue from a fully specified Options
// value. Options are validated and defaulted in place; invalid options
// (missing QueueName, missing Redis connection info) are a fatal,
// pre-flight error.
func NewQueueWithOptions(ctx context.Context, opts *Options) (*Queue, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	gw, err := newGateway(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &Queue{
		keys: KeysForQueue(opts.QueueName),
		gw:   gw,
		opts: opts,
		log:  opts.Logger,
	}, nil
}
