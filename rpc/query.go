package rpc

import (
	"context"
	"time"
)

// Query is the read side of one outstanding RPC call: whatever is
// waiting for the call's outcome holds a Query and never touches the
// Pending it was created from. Wait/Get/Done unblock once the
// destination map has been installed via Pending.FulfillMap, not once
// every peer has replied (§4.4) — a caller that needs a specific peer's
// reply blocks on ReplyMap.Get instead.
type Query[T any] struct {
	pending *Pending[T]
}

// Done returns a channel that closes once the destination map has been
// installed.
func (q *Query[T]) Done() <-chan struct{} { return q.pending.mapReady }

// Wait blocks until the destination map is installed or d elapses,
// reporting whether the map became available within d.
func (q *Query[T]) Wait(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-q.pending.mapReady:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-q.pending.mapReady:
		return true
	case <-timer.C:
		return false
	}
}

// Get blocks until the destination map is installed or ctx is done,
// returning the ReplyMap either way: the map itself may still have
// unfulfilled slots, since Get only waits for the map's existence, not
// for every peer's reply. Use ReplyMap.Get to wait on one peer's slot.
func (q *Query[T]) Get(ctx context.Context) (*ReplyMap[T], error) {
	select {
	case <-q.pending.mapReady:
		return q.pending.replies, nil
	case <-ctx.Done():
		return q.pending.replies, ctx.Err()
	}
}

// Replies returns the reply map backing this call, safe to read at any
// point in the call's lifetime, including before the map is installed.
func (q *Query[T]) Replies() *ReplyMap[T] { return q.pending.replies }

// Valid reports whether the destination map has been installed and
// peer's slot within it has been fulfilled without error — the
// conjunction spec.md §4.4 defines for valid(peer). Before FulfillMap is
// called this is always false, regardless of what replies have already
// arrived.
func (q *Query[T]) Valid(peer uint32) bool {
	select {
	case <-q.pending.mapReady:
	default:
		return false
	}
	return q.pending.replies.Valid(peer)
}
