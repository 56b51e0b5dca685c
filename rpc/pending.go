package rpc

import "sync"

// Pending is the write side of one outstanding RPC call's reply
// tracking: the layer above (the code issuing the call across a set of
// peers) holds a Pending and calls FulfillMap once the call has been
// sent, then Set/Fail as replies (or removals) arrive. Query, the read
// side, is handed to whatever is waiting on the outcome and never sees
// Set, Fail, or FulfillMap.
//
// Besides the reply map itself, Pending carries the destination set and
// the responded set (§3): SetExceptionForRemovedNode needs both to
// implement its guard, since a node-removal notification arrives with no
// idea which calls it is actually relevant to.
type Pending[T any] struct {
	replies *ReplyMap[T]

	mapReady    chan struct{}
	fulfillOnce sync.Once

	mu           sync.Mutex
	destinations map[uint32]bool
	responded    map[uint32]bool
	mapFulfilled bool
}

// NewPending constructs a Pending with no destination map installed yet.
// Wait/Get on its Query block until FulfillMap is called.
func NewPending[T any]() *Pending[T] {
	return &Pending[T]{
		replies:      newReplyMap[T](),
		mapReady:     make(chan struct{}),
		destinations: make(map[uint32]bool),
		responded:    make(map[uint32]bool),
	}
}

// FulfillMap installs the set of peers this call expects replies from,
// unblocking any Query already waiting on Wait/Get. It is
// single-assignment (§4.4): calls after the first have no effect. This is
// typically called once the wire send has gone out, not at construction
// time, since the destination set may only be known after dispatch (e.g.
// after node-removal filtering).
func (p *Pending[T]) FulfillMap(destinations []uint32) {
	p.fulfillOnce.Do(func() {
		p.mu.Lock()
		for _, id := range destinations {
			p.destinations[id] = true
		}
		p.mapFulfilled = true
		p.mu.Unlock()
		close(p.mapReady)
	})
}

// Set records peer's reply. It returns ErrDuplicateReply if peer has
// already replied to this call: every peer's slot may be assigned at
// most once.
func (p *Pending[T]) Set(peer uint32, reply T, err error) error {
	if !p.replies.set(NodeResponse[T]{NodeID: peer, Reply: reply, Err: err}) {
		return ErrDuplicateReply
	}
	p.mu.Lock()
	p.responded[peer] = true
	p.mu.Unlock()
	return nil
}

// Fail records peer as failed with cause, e.g. because a peer's own
// reply carried an application-level exception (§7).
func (p *Pending[T]) Fail(peer uint32, cause error) error {
	var zero T
	return p.Set(peer, zero, cause)
}

// SetExceptionForRemovedNode installs a NodeRemovedFromGroup(peer) error
// on peer's slot, but only if the destination map has been installed,
// peer was actually a destination of this call, and peer has not already
// responded (§3, §4.4) — the three-way guard that keeps a removal
// notification for an unrelated peer, or one that raced a real reply,
// from corrupting this call's slot count. PendingRegistry.NotifyRemoved
// calls it on every registered Pending for each peer reported removed.
func (p *Pending[T]) SetExceptionForRemovedNode(peer uint32) {
	p.mu.Lock()
	fire := p.mapFulfilled && p.destinations[peer] && !p.responded[peer]
	p.mu.Unlock()
	if !fire {
		return
	}
	_ = p.Fail(peer, NodeRemovedFromGroup(peer))
}

// Query returns the read-side handle for this call.
func (p *Pending[T]) Query() *Query[T] {
	return &Query[T]{pending: p}
}
