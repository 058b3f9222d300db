/*
Package workq provides a reliable FIFO work queue built on top of Redis
lists.

Items move through four sublists as they're produced, claimed, and
resolved: unprocessed, working, processed, and failed. A consumer claims
an item with an atomic list move, so the item is never lost even if the
consumer crashes mid-processing; an expiry sweep reclaims items that sat
in working too long, and a requeue limit diverts items that fail too many
times into the failed sublist instead of retrying forever.

Features

The features of this package include:

    - A `Queue` struct that wraps enqueue, claim, ack, requeue, and
      inspection operations over a single named queue.
    - Atomic claim via RPOPLPUSH/BRPOPLPUSH, so a claimed item always
      lands in the working sublist before it leaves unprocessed.
    - A Lua script for requeue operations, so the list move, process-count
      bookkeeping, and requeue-limit bail-out happen as one atomic step.
    - Expiry-based reclamation of items that have sat in working past
      BusyExpiryTime.
    - Bulk claim and ack, tolerant of partial failure.
    - A validated Options struct with sane defaults for everything but the
      queue name.

Example

Here's an example of a producer that enqueues 1000 items:

    package main

    import (
    	"context"
    	"fmt"

    	"github.com/brightframe/workq"
    )

    func main() {
    	ctx := context.Background()

    	q, err := workq.NewQueue(ctx, "example", &workq.RedisOptions{
    		Addr: "localhost:6379",
    	})
    	if err != nil {
    		panic(err)
    	}

    	for i := 0; i < 1000; i++ {
    		payload := []byte(fmt.Sprintf(`{"index":%d}`, i))
    		if _, err := q.EnqueueItems(ctx, [][]byte{payload}); err != nil {
    			panic(err)
    		}
    	}
    }

And here's a consumer that claims and acknowledges items off of that
queue:

    package main

    import (
    	"context"
    	"fmt"

    	"github.com/brightframe/workq"
    )

    func main() {
    	ctx := context.Background()

    	q, err := workq.NewQueue(ctx, "example", &workq.RedisOptions{
    		Addr: "localhost:6379",
    	})
    	if err != nil {
    		panic(err)
    	}

    	for {
    		items, err := q.ClaimItems(ctx, 10)
    		if err != nil {
    			panic(err)
    		}

    		var done []*workq.Item
    		for _, item := range items {
    			if err := process(item); err != nil {
    				q.RequeueBusyError(ctx, err.Error(), item)
    				continue
    			}
    			done = append(done, item)
    		}
    		q.MarkItemsAsProcessed(ctx, done)
    	}
    }

    func process(item *workq.Item) error {
    	fmt.Printf("processing item: %s\n", item.Key)
    	return nil
    }
*/
package workq
