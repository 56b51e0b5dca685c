package sstest

import (
	"context"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc/test/bufconn"

	"github.com/relab/sst"
)

// BufconnRendezvous stands in for sst.DialTCPRendezvous in tests: it
// hands out one in-memory bufconn.Listener per unordered peer pair,
// avoiding real TCP ports entirely. Grounded on the teacher's
// testing_bufconn.go, which does the same for gRPC's own dialing.
type BufconnRendezvous struct {
	mu   sync.Mutex
	pipe map[[2]uint32]*bufconn.Listener
}

// NewBufconnRendezvous constructs an empty registry of in-memory pairs.
func NewBufconnRendezvous() *BufconnRendezvous {
	return &BufconnRendezvous{pipe: make(map[[2]uint32]*bufconn.Listener)}
}

func (r *BufconnRendezvous) channel(a, b uint32) *bufconn.Listener {
	key := pairKey(a, b)
	r.mu.Lock()
	defer r.mu.Unlock()
	ln, ok := r.pipe[key]
	if !ok {
		ln = bufconn.Listen(64 * 1024)
		r.pipe[key] = ln
	}
	return ln
}

// Rendezvous implements sst.RendezvousFunc. The lower-numbered peer in a
// pair accepts on the shared bufconn.Listener; the higher-numbered peer
// dials it, matching the role assignment sst.DialTCPRendezvous uses for
// real TCP.
func (r *BufconnRendezvous) Rendezvous(ctx context.Context, cfg sst.Config, remoteID uint32) (net.Conn, error) {
	ln := r.channel(cfg.LocalID, remoteID)
	if cfg.LocalID < remoteID {
		return ln.Accept()
	}
	conn, err := ln.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("sstest: dialing bufconn pair (%d,%d): %w", cfg.LocalID, remoteID, err)
	}
	return conn, nil
}
