package workq

import "time"

// Metadata tracks timing and attempt counters for a single item across its
// lifetime. It is stored as a Redis hash at meta-<item_key> and mirrors the
// fields the requeue script (see scripts.go) reads and writes.
type Metadata struct {
	// ProcessCount is the number of times a consumer has claimed this item.
	// Monotonically increases; never decreases.
	ProcessCount int
	// BailCount is the number of times ProcessCount exceeded RequeueLimit,
	// i.e. how many times this item has been parked in the failed sublist.
	BailCount int
	// TimeCreated is when the producer created the item. Never changes
	// after creation.
	TimeCreated time.Time
	// TimeEnqueued is updated every time the item (re)enters the
	// unprocessed sublist.
	TimeEnqueued time.Time
	// LastError is the most recent error annotation attached by a requeue
	// path, if any.
	LastError string
}

// Item is the immutable triple passed between producers and consumers: an
// opaque item key, the opaque payload bytes, and the metadata accompanying
// it. Item values returned by this package are snapshots; mutating one has
// no effect on the underlying Redis state.
type Item struct {
	Key      string
	Payload  []byte
	Metadata Metadata
}
