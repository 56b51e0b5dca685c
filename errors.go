package sst

import (
	"errors"
	"fmt"
)

// ErrConnectionRemoved is returned when the Connection Manager no longer
// holds a strong reference to the named peer's connection.
var ErrConnectionRemoved = errors.New("connection removed")

// ErrConnectionBroken is returned when a connection exists but has been
// flagged unusable.
var ErrConnectionBroken = errors.New("connection broken")

// ErrOutOfBounds is returned by MemoryRegion.WriteRemote when offset+size
// exceeds the region's registered size. This is a precondition violation
// (S3): the write is rejected rather than silently issued out of bounds.
var ErrOutOfBounds = errors.New("write_remote: offset+size exceeds region size")

// ErrForeignRowWrite reports a write to a row other than the local rank
// (§8 invariant 4). Nothing in this package returns it at present: the
// Table's Put* methods can only address the local row.
var ErrForeignRowWrite = errors.New("write to non-local row")

// ErrUnknownField is returned when a field name is not present in a
// table's row layout.
var ErrUnknownField = errors.New("unknown field")

// connError reports a connection-scoped failure for a specific peer.
type connError struct {
	peer  uint32
	cause error
}

func (e connError) Error() string {
	return fmt.Sprintf("peer %d: %v", e.peer, e.cause)
}

func (e connError) Unwrap() error {
	return e.cause
}

// ConnectionRemovedError wraps ErrConnectionRemoved with the offending peer id.
func ConnectionRemovedError(peer uint32) error {
	return connError{peer: peer, cause: ErrConnectionRemoved}
}

// ConnectionBrokenError wraps ErrConnectionBroken with the offending peer id.
func ConnectionBrokenError(peer uint32) error {
	return connError{peer: peer, cause: ErrConnectionBroken}
}
