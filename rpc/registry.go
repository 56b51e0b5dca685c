package rpc

import "sync"

// removable is satisfied by every *Pending[T] instantiation: a
// PendingRegistry stores calls of differing reply types side by side, so
// it can only see this one shared method.
type removable interface {
	SetExceptionForRemovedNode(peer uint32)
}

// PendingRegistry is the connecting piece between peer failure and
// outstanding RPC calls that spec.md §2 and §4.3 step 2 describe: "the
// SST invokes a failure upcall... consumers (notably the RPC Reply
// Tracker) propagate per-peer exceptions for outstanding calls." A
// caller registers every Pending it creates and deregisters it once the
// call is discarded (§4.4 "Ownership": all destinations have either
// responded or been removed); wiring NotifyRemoved to a failure source
// such as HeartbeatMonitor.OnFailure fans a single peer-removal event
// out to every call that peer might still be blocking.
type PendingRegistry struct {
	mu    sync.Mutex
	next  uint64
	calls map[uint64]removable
}

// NewPendingRegistry constructs an empty registry.
func NewPendingRegistry() *PendingRegistry {
	return &PendingRegistry{calls: make(map[uint64]removable)}
}

// Register adds p to the registry and returns a token to Deregister it
// with. p is typically registered right after FulfillMap, once its
// destination set is known.
func (r *PendingRegistry) Register(p removable) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	token := r.next
	r.calls[token] = p
	return token
}

// Deregister removes the call token identifies. Pending calls left
// registered after completion are harmless — SetExceptionForRemovedNode
// is a no-op once every destination has responded — but deregistering
// keeps the registry from growing without bound in a long-lived process.
func (r *PendingRegistry) Deregister(token uint64) {
	r.mu.Lock()
	delete(r.calls, token)
	r.mu.Unlock()
}

// NotifyRemoved calls SetExceptionForRemovedNode(peer) on every
// registered call. Each call's own destination/responded guard decides
// whether peer is actually relevant to it, so it is safe to call this
// for a peer that most outstanding calls never sent to.
func (r *PendingRegistry) NotifyRemoved(peer uint32) {
	r.mu.Lock()
	calls := make([]removable, 0, len(r.calls))
	for _, c := range r.calls {
		calls = append(calls, c)
	}
	r.mu.Unlock()
	for _, c := range calls {
		c.SetExceptionForRemovedNode(peer)
	}
}
