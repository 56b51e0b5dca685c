// Package sst implements a Shared State Table (SST): a row-per-peer table
// of typed fields kept in sync across a group of processes via one-sided
// remote writes over registered memory regions, together with the
// connection management and failure-detection machinery that keeps the
// table's remote-write paths alive.
//
// The physical one-sided-write transport (RDMA verbs, libfabric, or a
// test double) is an external collaborator reached through the Provider
// interface; this package owns connection lifecycle, memory-region
// bookkeeping, the table's field layout and put/sync operations, and
// heartbeat-based failure detection.
//
// The RPC reply-tracking core that layers request/response semantics on
// top of a group of peers lives in the sibling rpc package. Wire framing
// (RPC headers and the memory-region exchange record) lives in wire.
package sst
