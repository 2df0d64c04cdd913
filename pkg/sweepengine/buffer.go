package sweepengine

import (
	"github.com/sudorandom/sweep-scope/pkg/feed"
)

// Buffer queues detection messages between throttle ticks. It is owned by a
// single session goroutine and does no locking.
type Buffer struct {
	queue   []*feed.Message
	pending bool
}

// Add queues msg when it has features. It returns true when the caller must
// arm the throttle timer, which happens once per drain cycle.
func (b *Buffer) Add(msg *feed.Message) bool {
	if msg == nil || len(msg.Features) == 0 {
		return false
	}
	b.queue = append(b.queue, msg)
	if b.pending {
		return false
	}
	b.pending = true
	return true
}

// Pending reports whether a throttle timer is outstanding.
func (b *Buffer) Pending() bool { return b.pending }

// Len returns the number of queued messages.
func (b *Buffer) Len() int { return len(b.queue) }

// Drain merges everything queued into one composite message and empties the
// queue. The second return value is how many messages were coalesced.
func (b *Buffer) Drain() (*feed.Message, int, error) {
	queued := b.queue
	b.queue = nil
	b.pending = false
	if len(queued) == 0 {
		return nil, 0, nil
	}
	merged, err := feed.Merge(queued)
	if err != nil {
		return nil, len(queued), err
	}
	return merged, len(queued), nil
}

// Reset drops queued messages without merging them and returns how many were
// discarded.
func (b *Buffer) Reset() int {
	n := len(b.queue)
	b.queue = nil
	b.pending = false
	return n
}
