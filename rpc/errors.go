package rpc

import (
	"errors"
	"fmt"
)

// ErrRemoteException is the sentinel wrapped whenever a peer's reply
// carries an application-level exception rather than a value (§7).
var ErrRemoteException = errors.New("remote exception occurred")

// ErrNodeRemoved is the sentinel wrapped when a peer is removed from the
// group before it replies to an outstanding call (§7).
var ErrNodeRemoved = errors.New("node removed from group")

type peerError struct {
	peer  uint32
	cause error
}

func (e peerError) Error() string { return fmt.Sprintf("peer %d: %v", e.peer, e.cause) }
func (e peerError) Unwrap() error { return e.cause }

// RemoteExceptionOccurred wraps ErrRemoteException with the offending
// peer id and the underlying application error.
func RemoteExceptionOccurred(peer uint32, cause error) error {
	return peerError{peer: peer, cause: fmt.Errorf("%w: %v", ErrRemoteException, cause)}
}

// NodeRemovedFromGroup wraps ErrNodeRemoved with the offending peer id.
func NodeRemovedFromGroup(peer uint32) error {
	return peerError{peer: peer, cause: ErrNodeRemoved}
}

// ErrDuplicateReply is returned by Pending.Set when a peer's slot has
// already been assigned; every peer may reply at most once per call
// (§8 invariant, single-assignment).
var ErrDuplicateReply = errors.New("rpc: peer already replied")
