package rpc

import (
	"context"
	"iter"
	"sync"
)

// NodeResponse is one peer's outcome for an RPC call: either a reply
// value or an error, never both meaningfully populated.
type NodeResponse[T any] struct {
	NodeID uint32
	Reply  T
	Err    error
}

// ReplyMap collects one NodeResponse per peer, in arrival order, and is
// safe for concurrent reads while a call is still outstanding (§4.4).
// Grounded on the teacher's responses.go, which iterates replies via an
// iter.Seq rather than exposing the backing slice or map directly.
type ReplyMap[T any] struct {
	mu      sync.Mutex
	byPeer  map[uint32]NodeResponse[T]
	arrival []uint32
	waiters map[uint32]chan struct{}
}

func newReplyMap[T any]() *ReplyMap[T] {
	return &ReplyMap[T]{
		byPeer:  make(map[uint32]NodeResponse[T]),
		waiters: make(map[uint32]chan struct{}),
	}
}

func (m *ReplyMap[T]) set(resp NodeResponse[T]) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byPeer[resp.NodeID]; exists {
		return false
	}
	m.byPeer[resp.NodeID] = resp
	m.arrival = append(m.arrival, resp.NodeID)
	if ch, ok := m.waiters[resp.NodeID]; ok {
		close(ch)
		delete(m.waiters, resp.NodeID)
	}
	return true
}

// Contains reports whether peer has replied at all, successfully or not.
// It never blocks.
func (m *ReplyMap[T]) Contains(peer uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byPeer[peer]
	return ok
}

// Valid reports whether peer has replied without error. It never blocks.
func (m *ReplyMap[T]) Valid(peer uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, ok := m.byPeer[peer]
	return ok && resp.Err == nil
}

// Peek returns peer's response without blocking, if it has arrived yet.
func (m *ReplyMap[T]) Peek(peer uint32) (NodeResponse[T], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, ok := m.byPeer[peer]
	return resp, ok
}

// Get blocks until peer's slot is fulfilled or ctx is done. This is the
// per-peer counterpart to Query.Get, which only waits for the map itself
// to exist, not for any individual peer's reply (§4.4).
func (m *ReplyMap[T]) Get(ctx context.Context, peer uint32) (NodeResponse[T], error) {
	m.mu.Lock()
	if resp, ok := m.byPeer[peer]; ok {
		m.mu.Unlock()
		return resp, nil
	}
	ch, ok := m.waiters[peer]
	if !ok {
		ch = make(chan struct{})
		m.waiters[peer] = ch
	}
	m.mu.Unlock()

	select {
	case <-ch:
		m.mu.Lock()
		resp := m.byPeer[peer]
		m.mu.Unlock()
		return resp, nil
	case <-ctx.Done():
		var zero NodeResponse[T]
		return zero, ctx.Err()
	}
}

// Len returns the number of peers that have replied so far.
func (m *ReplyMap[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.arrival)
}

// All iterates every response in arrival order. Ranging over the
// returned sequence after the call completes is safe; ranging over it
// concurrently with a peer's first reply may or may not observe that
// reply, per normal Go map/slice snapshot semantics under this map's lock.
func (m *ReplyMap[T]) All() iter.Seq[NodeResponse[T]] {
	return func(yield func(NodeResponse[T]) bool) {
		m.mu.Lock()
		order := append([]uint32(nil), m.arrival...)
		m.mu.Unlock()
		for _, peer := range order {
			m.mu.Lock()
			resp := m.byPeer[peer]
			m.mu.Unlock()
			if !yield(resp) {
				return
			}
		}
	}
}
