package sst

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"weak"

	"golang.org/x/sync/singleflight"

	"github.com/relab/sst/logging"
)

// ConnectionManager is a process-wide registry mapping a peer identifier
// to its shared Connection. It creates connections lazily, hands out weak
// references, and marks connections broken on transport errors (§4.1).
type ConnectionManager struct {
	provider Provider
	cfg      Config
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[uint32]*Connection

	dialGroup singleflight.Group
}

func newConnectionManager(cfg Config, provider Provider) *ConnectionManager {
	return &ConnectionManager{
		provider: provider,
		cfg:      cfg,
		logger:   cfg.Logger,
		conns:    make(map[uint32]*Connection),
	}
}

// Get returns a weak handle to the connection for remoteID. If no
// connection exists yet and the peer's address is known, one is
// constructed lazily (dialing through the Provider); otherwise the
// returned handle upgrades to nil.
//
// Concurrent Get calls for the same remoteID are collapsed onto a single
// dial via a singleflight.Group, so two racing callers (e.g. two Memory
// Regions being constructed for the same peer) never dial twice.
func (m *ConnectionManager) Get(remoteID uint32) weak.Pointer[Connection] {
	m.mu.Lock()
	if c, ok := m.conns[remoteID]; ok {
		m.mu.Unlock()
		return weak.Make(c)
	}
	addr, known := m.cfg.Peers[remoteID]
	m.mu.Unlock()
	if !known {
		return weak.Pointer[Connection]{}
	}

	v, err, _ := m.dialGroup.Do(fmt.Sprintf("%d", remoteID), func() (any, error) {
		// Re-check under the lock: another caller may have won the race
		// between our first check and acquiring the singleflight key.
		m.mu.Lock()
		if c, ok := m.conns[remoteID]; ok {
			m.mu.Unlock()
			return c, nil
		}
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DialTimeout)
		defer cancel()
		ep, dialErr := m.provider.Dial(ctx, remoteID, addr)
		if dialErr != nil {
			if m.logger != nil {
				m.logger.LogAttrs(ctx, slog.LevelWarn, "connmgr: dial failed", logging.Peer(remoteID), logging.Err(dialErr))
			}
			return nil, dialErr
		}
		c := newConnection(remoteID, addr, ep)
		m.mu.Lock()
		m.conns[remoteID] = c
		m.mu.Unlock()
		if m.logger != nil {
			m.logger.LogAttrs(ctx, slog.LevelInfo, "connmgr: connected", logging.Peer(remoteID))
		}
		return c, nil
	})
	if err != nil {
		return weak.Pointer[Connection]{}
	}
	return weak.Make(v.(*Connection))
}

// MarkBroken sets broken=true on the connection to remoteID, if one
// exists. Subsequent upgrades of weak handles still succeed
// (observability) until Shutdown drops the strong reference, at which
// point upgrades fail with ErrConnectionRemoved.
func (m *ConnectionManager) MarkBroken(remoteID uint32) {
	m.mu.Lock()
	c, ok := m.conns[remoteID]
	m.mu.Unlock()
	if !ok {
		return
	}
	c.markBroken()
	if m.logger != nil {
		m.logger.LogAttrs(context.Background(), slog.LevelWarn, "connmgr: marked broken", logging.Peer(remoteID))
	}
}

// Shutdown flags every connection broken and then drops the manager's
// strong references, so any outstanding weak.Pointer fails to upgrade
// from that point on.
func (m *ConnectionManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.conns {
		c.markBroken()
		if err := c.close(); err != nil && m.logger != nil {
			m.logger.LogAttrs(context.Background(), slog.LevelWarn, "connmgr: error closing", logging.Peer(id), logging.Err(err))
		}
	}
	m.conns = make(map[uint32]*Connection)
}

// upgrade resolves a weak handle, translating its absence into
// ErrConnectionRemoved so callers get the taxonomy named in §7.
func upgrade(peer uint32, wp weak.Pointer[Connection]) (*Connection, error) {
	c := wp.Value()
	if c == nil {
		return nil, ConnectionRemovedError(peer)
	}
	return c, nil
}
