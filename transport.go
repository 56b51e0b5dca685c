package sst

import (
	"log/slog"
	"sync"
)

// TransportContext is the process-wide state holding the registered
// provider and its Connection Manager. It is constructed once with the
// full peer address map and torn down at process exit (§2.1).
type TransportContext struct {
	cfg      Config
	provider Provider
	connMgr  *ConnectionManager
	logger   *slog.Logger

	closeOnce sync.Once
}

// NewTransportContext initializes process-wide transport state for the
// given configuration and provider. provider is the external one-sided
// remote-memory transport (or a test double from sstest); this package
// never constructs one on its own since the physical transport is out of
// scope (§1).
func NewTransportContext(cfg Config, provider Provider) *TransportContext {
	return &TransportContext{
		cfg:      cfg,
		provider: provider,
		connMgr:  newConnectionManager(cfg, provider),
		logger:   cfg.Logger,
	}
}

// Config returns the configuration this context was built with.
func (t *TransportContext) Config() Config { return t.cfg }

// Provider returns the underlying transport provider.
func (t *TransportContext) Provider() Provider { return t.provider }

// ConnectionManager returns the process-wide connection registry.
func (t *TransportContext) ConnectionManager() *ConnectionManager { return t.connMgr }

// Close tears down every connection managed by this context. It is safe
// to call multiple times; only the first call has effect.
func (t *TransportContext) Close() {
	t.closeOnce.Do(func() {
		t.connMgr.Shutdown()
	})
}
