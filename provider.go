package sst

import "context"

// Permission describes the access rights requested when registering a
// memory region with the Provider.
type Permission uint8

// Permission bits. A region used for one-sided remote writes needs both:
// the local process reads/writes its own send buffer, and the remote peer
// writes into what it sees as its own receive buffer.
const (
	PermLocalReadWrite Permission = 1 << iota
	PermRemoteReadWrite
)

// RegionHandle identifies a buffer previously registered with a Provider.
// It is opaque to callers outside this package; the provider is free to
// give it whatever meaning suits the underlying transport (an RDMA memory
// region, a libfabric fi_mr, or a plain index into a loopback registry).
type RegionHandle uint64

// Endpoint is an opaque, provider-owned handle to a connection to a
// specific remote peer. Connection carries an Endpoint but never
// interprets it.
type Endpoint interface {
	Close() error
}

// Provider is the seam between this package and the physical one-sided
// remote-memory transport (RDMA verbs, libfabric-style, or a test
// double). It is an external collaborator per the specification's scope:
// this package coordinates registration, exchange, and failure handling
// around it, but never implements the wire-level RDMA/libfabric verbs
// itself.
//
// RegisterRegion always returns a provider-assigned local key. The
// interface offers no way for a caller to choose the key or otherwise
// override registration.
type Provider interface {
	// Dial establishes whatever the provider considers a connection to
	// the peer at addr, identified by id. The returned Endpoint is
	// opaque and is later passed back to WriteRemote and Sync.
	Dial(ctx context.Context, id uint32, addr string) (Endpoint, error)

	// RegisterRegion registers buf for one-sided remote access with the
	// requested permissions, returning an opaque handle, the
	// provider-assigned local key, and the address the provider wants its
	// peers to write to (an RDMA virtual address, a libfabric offset, or a
	// loopback slice index — whatever the transport calls an address). A
	// transient registration failure (e.g. resource temporarily
	// unavailable) must be reported via ErrTransientResourceUnavailable so
	// the caller can retry with backoff; any other failure is treated as
	// fatal by callers in this package.
	RegisterRegion(buf []byte, perm Permission) (RegionHandle, uint64, uint64, error)

	// DeregisterRegion releases a previously registered region.
	DeregisterRegion(h RegionHandle) error

	// WriteRemote issues a one-sided write of size bytes starting at
	// offset within the local region identified by local, into the
	// remote region described by (remoteKey, remoteAddr) at the same
	// offset. If withCompletion is true, WriteRemote blocks until the
	// transport has signalled completion of the write.
	WriteRemote(ctx context.Context, ep Endpoint, local RegionHandle, offset, size, remoteKey, remoteAddr uint64, withCompletion bool) error

	// Sync rendezvous with the peer at the other end of ep, returning
	// once both sides have confirmed liveness and flushed prior writes.
	Sync(ctx context.Context, ep Endpoint) error
}

// ErrTransientResourceUnavailable is the sentinel a Provider must wrap
// (via fmt.Errorf("...: %w", ErrTransientResourceUnavailable) or
// errors.Join) to signal a retryable registration failure. Any
// registration error not matching this sentinel is treated as fatal.
var ErrTransientResourceUnavailable = transientErr{}

type transientErr struct{}

func (transientErr) Error() string { return "resource temporarily unavailable" }
