package workq

import "github.com/google/uuid"

// SublistTag is a closed enumeration of the four sublists this package
// coordinates. Redis key derivation is a total function over this set; no
// runtime reflection or name-to-accessor maps are used.
type SublistTag int

const (
	TagUnprocessed SublistTag = iota
	TagWorking
	// TagProcessed is reserved for API symmetry with the other three tags.
	// No core path reads or writes it.
	TagProcessed
	TagFailed
)

func (t SublistTag) String() string {
	switch t {
	case TagUnprocessed:
		return "unprocessed"
	case TagWorking:
		return "working"
	case TagProcessed:
		return "processed"
	case TagFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Keys holds the deterministic Redis key names for one queue. For queue
// name Q, the four sublist keys are literally Q_unprocessed, Q_working,
// Q_processed and Q_failed (single underscore).
type Keys struct {
	QueueName   string
	Unprocessed string
	Working     string
	Processed   string
	Failed      string
}

// KeysForQueue derives a Keys value from a queue name.
func KeysForQueue(queueName string) Keys {
	return Keys{
		QueueName:   queueName,
		Unprocessed: queueName + "_unprocessed",
		Working:     queueName + "_working",
		Processed:   queueName + "_processed",
		Failed:      queueName + "_failed",
	}
}

// sublist returns the Redis key for the given tag. It is a total function
// over the closed SublistTag enumeration; an unrecognized tag is a caller
// bug and panics rather than silently degrading.
func (k Keys) sublist(tag SublistTag) string {
	switch tag {
	case TagUnprocessed:
		return k.Unprocessed
	case TagWorking:
		return k.Working
	case TagProcessed:
		return k.Processed
	case TagFailed:
		return k.Failed
	default:
		panic("workq: unrecognized sublist tag")
	}
}

// itemKey returns the opaque identifier stored in sublists.
func (k Keys) itemKey(hex string) string {
	return k.QueueName + "-" + hex
}

// newItemKey mints a fresh item key using a random 128-bit identifier.
func (k Keys) newItemKey() string {
	return k.itemKey(uuid.New().String())
}

// payloadKey returns the Redis string key holding an item's payload.
func payloadKey(itemKey string) string {
	return "item-" + itemKey
}

// metaKey returns the Redis hash key holding an item's metadata.
func metaKey(itemKey string) string {
	return "meta-" + itemKey
}

// tempFailedKey returns a fresh, collision-resistant staging key used by
// ProcessFailedItems to atomically rename the failed sublist aside.
func tempFailedKey() string {
	return "temp-failed-" + uuid.New().String()
}
