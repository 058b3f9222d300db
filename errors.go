package workq

import "github.com/pkg/errors"

// Sentinel errors returned by this package. Callers may compare with
// errors.Is; wrapping (via github.com/pkg/errors) preserves call-site
// context while keeping the underlying sentinel intact.
var (
	// ErrEmptyBatch is returned by EnqueueItems when given no payloads.
	ErrEmptyBatch = errors.New("workq: no payloads given")

	// ErrKeyCollision is returned when a freshly minted item key already
	// exists in Redis. This indicates either a 128-bit hex collision or a
	// reused clock/uuid source, and is treated as fatal.
	ErrKeyCollision = errors.New("workq: item key collision")

	// ErrTempKeyCollision is returned by ProcessFailedItems when the
	// temp-failed staging key it tries to rename the failed sublist to
	// already exists.
	ErrTempKeyCollision = errors.New("workq: temp failed key collision")

	// ErrNoRedisClient is returned by NewQueueWithOptions when neither
	// RedisClient nor RedisOptions is set.
	ErrNoRedisClient = errors.New("workq: no Redis client or options given")

	// ErrItemNotFound is returned when an item's payload record has
	// already been purged, most likely because it was acked or
	// garbage-collected concurrently.
	ErrItemNotFound = errors.New("workq: item not found")
)
