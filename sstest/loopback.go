// Package sstest provides an in-process loopback Provider, standing in
// for the physical one-sided remote-memory transport in tests and
// demos. Several Provider instances share a Registry to behave like
// peers actually reaching into each other's registered memory, without
// any real RDMA/libfabric hardware or even a real network for the
// write path. The descriptor-exchange side-channel used during Memory
// Region construction is not part of the Provider: it is real TCP under
// the default sst.DialTCPRendezvous, or in memory with BufconnRendezvous.
//
// Grounded on markrussinovich-grpc-go-shmem's shared-memory segment
// model (a byte arena addressable by an opaque handle, reachable from
// either side of a connection) and on the teacher's testing doubles
// (testing_bufconn.go/testing_gorums.go), which stand a real transport
// implementation up over an in-process substrate for tests.
package sstest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/relab/sst"
)

// Registry is the shared substrate every loopback Provider in a test
// writes into and reads from. One Registry represents one "fabric";
// providers registered against different Registries cannot see each
// other's memory.
type Registry struct {
	mu      sync.Mutex
	regions map[uint64][]byte
	nextKey atomic.Uint64

	barrierMu sync.Mutex
	barriers  map[[2]uint32]*syncBarrier
}

// NewRegistry constructs an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{
		regions:  make(map[uint64][]byte),
		barriers: make(map[[2]uint32]*syncBarrier),
	}
}

// pairKey normalizes an unordered pair of peer ids so both sides of a
// rendezvous land on the same barrier.
func pairKey(a, b uint32) [2]uint32 {
	if a > b {
		a, b = b, a
	}
	return [2]uint32{a, b}
}

// syncBarrier is a reusable two-party rendezvous point: the first arrival
// blocks until the second arrives (or ctx is done), and the second
// arrival releases the first and resets the barrier for reuse.
type syncBarrier struct {
	mu      sync.Mutex
	waiting bool
	release chan struct{}
}

func (b *syncBarrier) arrive(ctx context.Context) error {
	b.mu.Lock()
	if b.waiting {
		close(b.release)
		b.waiting = false
		b.release = nil
		b.mu.Unlock()
		return nil
	}
	release := make(chan struct{})
	b.release = release
	b.waiting = true
	b.mu.Unlock()

	select {
	case <-release:
		return nil
	case <-ctx.Done():
		b.mu.Lock()
		if b.release == release {
			b.waiting = false
			b.release = nil
		}
		b.mu.Unlock()
		return ctx.Err()
	}
}

func (r *Registry) sync(ctx context.Context, a, b uint32) error {
	key := pairKey(a, b)
	r.barrierMu.Lock()
	br, ok := r.barriers[key]
	if !ok {
		br = &syncBarrier{}
		r.barriers[key] = br
	}
	r.barrierMu.Unlock()
	return br.arrive(ctx)
}

func (r *Registry) register(buf []byte) uint64 {
	key := r.nextKey.Add(1)
	r.mu.Lock()
	r.regions[key] = buf
	r.mu.Unlock()
	return key
}

func (r *Registry) deregister(key uint64) {
	r.mu.Lock()
	delete(r.regions, key)
	r.mu.Unlock()
}

func (r *Registry) write(key, offset uint64, data []byte) error {
	r.mu.Lock()
	dst, ok := r.regions[key]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("sstest: unknown remote region %d", key)
	}
	if offset+uint64(len(data)) > uint64(len(dst)) {
		return fmt.Errorf("sstest: write past end of region %d", key)
	}
	copy(dst[offset:], data)
	return nil
}

// endpoint is the loopback Provider's Endpoint: it carries no state
// beyond the peer id, since the registry (not the endpoint) is where the
// actual bytes live.
type endpoint struct{ peer uint32 }

func (endpoint) Close() error { return nil }

// Provider is a loopback sst.Provider bound to one simulated peer id and
// a shared Registry. Construct one per simulated peer, all sharing the
// same Registry, to exercise multi-peer scenarios in a single process.
type Provider struct {
	id       uint32
	registry *Registry

	mu         sync.Mutex
	nextHandle uint64
	byHandle   map[sst.RegionHandle][]byte
	keyOf      map[sst.RegionHandle]uint64

	// failRegistrations, when non-zero, makes the next N calls to
	// RegisterRegion fail with ErrTransientResourceUnavailable, for
	// exercising the retry-with-backoff path in tests.
	failRegistrations atomic.Int32
}

// NewProvider constructs a loopback Provider for peer id, sharing reg
// with every other peer in the simulated group.
func NewProvider(reg *Registry, id uint32) *Provider {
	return &Provider{
		id:       id,
		registry: reg,
		byHandle: make(map[sst.RegionHandle][]byte),
		keyOf:    make(map[sst.RegionHandle]uint64),
	}
}

// FailNextRegistrations arms the provider to fail the next n
// RegisterRegion calls with ErrTransientResourceUnavailable.
func (p *Provider) FailNextRegistrations(n int) {
	p.failRegistrations.Store(int32(n))
}

func (p *Provider) Dial(ctx context.Context, id uint32, addr string) (sst.Endpoint, error) {
	return endpoint{peer: id}, nil
}

func (p *Provider) RegisterRegion(buf []byte, perm sst.Permission) (sst.RegionHandle, uint64, uint64, error) {
	if p.failRegistrations.Load() > 0 {
		p.failRegistrations.Add(-1)
		return 0, 0, 0, fmt.Errorf("sstest: registration backpressure: %w", sst.ErrTransientResourceUnavailable)
	}
	p.mu.Lock()
	p.nextHandle++
	h := sst.RegionHandle(p.nextHandle)
	p.mu.Unlock()

	key := p.registry.register(buf)

	p.mu.Lock()
	p.byHandle[h] = buf
	p.keyOf[h] = key
	p.mu.Unlock()

	// The loopback fabric has no separate notion of virtual address: the
	// registry key already identifies the buffer uniquely, so it doubles
	// as the address a peer writes to.
	return h, key, key, nil
}

func (p *Provider) DeregisterRegion(h sst.RegionHandle) error {
	p.mu.Lock()
	key, ok := p.keyOf[h]
	delete(p.byHandle, h)
	delete(p.keyOf, h)
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("sstest: unknown region handle %d", h)
	}
	p.registry.deregister(key)
	return nil
}

func (p *Provider) WriteRemote(ctx context.Context, ep sst.Endpoint, local sst.RegionHandle, offset, size, remoteKey, remoteAddr uint64, withCompletion bool) error {
	p.mu.Lock()
	src, ok := p.byHandle[local]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("sstest: unknown local region handle %d", local)
	}
	if offset+size > uint64(len(src)) {
		return fmt.Errorf("sstest: read past end of local region %d", local)
	}
	return p.registry.write(remoteAddr, offset, src[offset:offset+size])
}

// Sync rendezvous with the peer identified by ep: it blocks until that
// peer's own Provider has entered its matching Sync call, simulating the
// two-way handshake a real transport's sync primitive performs (S6).
func (p *Provider) Sync(ctx context.Context, ep sst.Endpoint) error {
	e, ok := ep.(endpoint)
	if !ok {
		return fmt.Errorf("sstest: Sync called with a foreign Endpoint type %T", ep)
	}
	return p.registry.sync(ctx, p.id, e.peer)
}
