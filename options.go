package workq

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RedisOptions is an alias to redis.Options so that callers don't need to
// import go-redis directly just to configure a Queue.
type RedisOptions = redis.Options

// Options configures a Queue. Either RedisClient or RedisOptions must be
// set; RedisClient takes precedence when both are given.
type Options struct {
	// QueueName is the logical queue name that drives all sublist and
	// record key names.
	QueueName string `validate:"required"`

	// RedisClient supersedes RedisOptions, letting callers inject an
	// already-constructed client (standard or cluster).
	RedisClient redis.UniversalClient

	// RedisOptions configures the underlying Redis connection. Used only
	// if RedisClient is nil.
	RedisOptions *RedisOptions

	// BusyExpiryTime is how long an item may sit in the working sublist
	// before HandleExpiredItems considers it reclaimable.
	BusyExpiryTime time.Duration `validate:"gt=0"`

	// ClaimWaitTimeout is how long a blocking claim waits for a new item.
	ClaimWaitTimeout time.Duration `validate:"gt=0"`

	// RequeueLimit is the retry threshold: once a requeued item's
	// ProcessCount exceeds this, it is parked in the failed sublist.
	RequeueLimit int `validate:"gte=0"`

	// WarnOnRequeue, if set, logs a diagnostic line on every successful
	// requeue.
	WarnOnRequeue bool

	// ReconnectMaxElapsedTime bounds the exponential backoff applied to
	// the initial connection health check.
	ReconnectMaxElapsedTime time.Duration `validate:"gt=0"`

	// Logger receives structured diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultOptions returns an Options value with every field but QueueName set
// to its documented default. Callers must still set QueueName and one of
// RedisClient/RedisOptions.
func DefaultOptions() *Options {
	return &Options{
		BusyExpiryTime:          30 * time.Second,
		ClaimWaitTimeout:        1 * time.Second,
		RequeueLimit:            5,
		ReconnectMaxElapsedTime: 60 * time.Second,
	}
}

var optionsValidator = validator.New()

// validate fills in zero-valued defaults and checks required fields. It
// mutates receiver fields that have no zero-value-is-valid meaning (timeouts,
// ReconnectMaxElapsedTime), mirroring the teacher's
// NewConsumerWithOptions defaulting behavior.
func (o *Options) validate() error {
	if o.BusyExpiryTime == 0 {
		o.BusyExpiryTime = 30 * time.Second
	}
	if o.ClaimWaitTimeout == 0 {
		o.ClaimWaitTimeout = 1 * time.Second
	}
	if o.ReconnectMaxElapsedTime == 0 {
		o.ReconnectMaxElapsedTime = 60 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	if o.RedisClient == nil && o.RedisOptions == nil {
		return ErrNoRedisClient
	}

	if err := optionsValidator.Struct(o); err != nil {
		return errors.Wrap(err, "invalid options")
	}
	return nil
}
