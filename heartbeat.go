package sst

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/relab/sst/logging"
)

// FailureCallback is invoked once when a peer's heartbeat is judged
// stale, i.e. it has not advanced for longer than the configured
// liveness timeout (§5, §8 S2).
type FailureCallback func(peer uint32)

// HeartbeatMonitor bumps the local heartbeat counter on a fixed interval
// and, independently, watches every remote peer's mirrored heartbeat
// field for staleness. It needs the row layout to have reserved
// HeartbeatField (see WithHeartbeat).
type HeartbeatMonitor struct {
	table  *Table
	logger *slog.Logger

	onFailure []FailureCallback

	mu       sync.Mutex
	lastSeen map[uint32]uint64
	lastTick map[uint32]time.Time
	failed   map[uint32]bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewHeartbeatMonitor constructs a monitor bound to table. table's layout
// must include HeartbeatField.
func NewHeartbeatMonitor(table *Table, logger *slog.Logger) (*HeartbeatMonitor, error) {
	if _, err := table.Layout().Field(HeartbeatField); err != nil {
		return nil, err
	}
	now := time.Now()
	m := &HeartbeatMonitor{
		table:    table,
		logger:   logger,
		lastSeen: make(map[uint32]uint64),
		lastTick: make(map[uint32]time.Time),
		failed:   make(map[uint32]bool),
	}
	for _, id := range table.Ranks() {
		m.lastTick[id] = now
	}
	return m, nil
}

// OnFailure registers a callback invoked the first time a peer is
// declared failed. Callbacks registered after a peer has already been
// declared failed are not retroactively invoked.
func (m *HeartbeatMonitor) OnFailure(cb FailureCallback) {
	m.mu.Lock()
	m.onFailure = append(m.onFailure, cb)
	m.mu.Unlock()
}

// Start launches the heartbeat writer and the liveness scanner as two
// goroutines ticking at cfg.HeartbeatInterval and cfg.PollInterval
// respectively, until ctx is cancelled or Stop is called.
func (m *HeartbeatMonitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.runWriter(ctx)
	}()
	go func() {
		defer wg.Done()
		m.runDetector(ctx)
	}()
	go func() {
		wg.Wait()
		close(m.done)
	}()
}

// Stop halts both goroutines and waits for them to exit.
func (m *HeartbeatMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	<-m.done
}

func (m *HeartbeatMonitor) runWriter(ctx context.Context) {
	cfg := m.table.tc.Config()
	ticker := time.NewTicker(cfg.HeartbeatInterval)
	defer ticker.Stop()
	var counter uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			counter++
			if err := m.table.PutUint64(HeartbeatField, counter); err != nil {
				if m.logger != nil {
					m.logger.LogAttrs(ctx, slog.LevelWarn, "heartbeat: put failed", logging.Err(err))
				}
				continue
			}
			if err := m.table.PutWithCompletion(ctx, HeartbeatField); err != nil && m.logger != nil {
				m.logger.LogAttrs(ctx, slog.LevelDebug, "heartbeat: put incomplete", logging.Err(err))
			}
		}
	}
}

func (m *HeartbeatMonitor) runDetector(ctx context.Context) {
	cfg := m.table.tc.Config()
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.scanOnce(cfg.LivenessTimeout)
		}
	}
}

func (m *HeartbeatMonitor) scanOnce(timeout time.Duration) {
	now := time.Now()
	for _, id := range m.table.Ranks() {
		if id == m.table.local {
			continue
		}
		v, err := m.table.GetUint64(id, HeartbeatField)
		if err != nil {
			continue
		}
		m.mu.Lock()
		if v != m.lastSeen[id] {
			m.lastSeen[id] = v
			m.lastTick[id] = now
			m.mu.Unlock()
			continue
		}
		stale := now.Sub(m.lastTick[id]) > timeout
		already := m.failed[id]
		if stale && !already {
			m.failed[id] = true
		}
		m.mu.Unlock()
		if stale && !already {
			m.failPeer(id)
		}
	}
}

func (m *HeartbeatMonitor) failPeer(peer uint32) {
	m.table.setAlive(peer, false)
	m.table.tc.ConnectionManager().MarkBroken(peer)
	if m.logger != nil {
		m.logger.LogAttrs(context.Background(), slog.LevelWarn, "heartbeat: peer failed", logging.Peer(peer))
	}
	m.mu.Lock()
	callbacks := append([]FailureCallback(nil), m.onFailure...)
	m.mu.Unlock()
	for _, cb := range callbacks {
		cb(peer)
	}
}
