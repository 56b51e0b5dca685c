package sst

import (
	"fmt"
	"sync"
	"time"
)

// Connection carries a transport endpoint to a specific peer and a broken
// flag. The Connection Manager holds the sole strong reference to each
// Connection; every other consumer (Memory Region, RPC layer) holds a
// weak.Pointer obtained from ConnectionManager.Get, so a Connection can be
// torn down under those consumers without them holding it alive (§9,
// "Cyclic-looking ownership").
type Connection struct {
	id   uint32
	addr string

	mu       sync.Mutex
	endpoint Endpoint
	lastErr  error
	latency  time.Duration

	broken atomicFlag
}

func newConnection(id uint32, addr string, ep Endpoint) *Connection {
	return &Connection{id: id, addr: addr, endpoint: ep, latency: -1 * time.Second}
}

// ID returns the peer identifier this connection is bound to.
func (c *Connection) ID() uint32 { return c.id }

// Address returns the peer's configured network address.
func (c *Connection) Address() string { return c.addr }

// Broken reports whether the connection has been flagged unusable.
func (c *Connection) Broken() bool { return c.broken.get() }

func (c *Connection) markBroken() { c.broken.set() }

// Endpoint returns the provider-owned endpoint for this connection, or an
// error if the connection is broken.
func (c *Connection) Endpoint() (Endpoint, error) {
	if c.broken.get() {
		return nil, ConnectionBrokenError(c.id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint, nil
}

func (c *Connection) setLastErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// LastErr returns the last error encountered (if any) on this connection.
func (c *Connection) LastErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Connection) setLatency(d time.Duration) {
	c.mu.Lock()
	c.latency = d
	c.mu.Unlock()
}

// Latency returns the last measured round-trip latency to this peer, or a
// negative duration if it has never been measured.
func (c *Connection) Latency() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latency
}

func (c *Connection) close() error {
	c.markBroken()
	c.mu.Lock()
	ep := c.endpoint
	c.mu.Unlock()
	if ep == nil {
		return nil
	}
	if err := ep.Close(); err != nil {
		return connError{peer: c.id, cause: err}
	}
	return nil
}

func (c *Connection) String() string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("peer %d @ %s", c.id, c.addr)
}
