package sst

import (
	"context"
	"log/slog"
	"maps"
	"net"
	"slices"
	"time"

	"google.golang.org/grpc/backoff"
)

// RendezvousFunc establishes the side-channel connection used once per
// Memory Region to exchange descriptors with remoteID (§4.2 step 4). The
// default, DialTCPRendezvous, opens a real TCP connection between the two
// peers' configured addresses; tests substitute an in-memory rendezvous
// (see sstest.BufconnRendezvous) to avoid binding real ports.
type RendezvousFunc func(ctx context.Context, cfg Config, remoteID uint32) (net.Conn, error)

// TransportKind selects which physical one-sided remote-memory transport
// a TransportContext's Provider should be built for.
type TransportKind int

const (
	// TransportVerbs selects an RDMA verbs provider.
	TransportVerbs TransportKind = iota
	// TransportLibFabric selects a libfabric-style provider.
	TransportLibFabric
)

func (k TransportKind) String() string {
	switch k {
	case TransportVerbs:
		return "verbs"
	case TransportLibFabric:
		return "lf"
	default:
		return "unknown"
	}
}

// Config collects the configuration recognized by the core (§6).
type Config struct {
	LocalID uint32
	Peers   map[uint32]string // peer id -> "host:port"

	Transport TransportKind

	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	LivenessTimeout   time.Duration

	DialTimeout time.Duration
	Backoff     backoff.Config
	Logger      *slog.Logger

	Rendezvous RendezvousFunc
}

// ConfigOption configures a Config. Following the teacher's
// managerOptions/ManagerOption pattern, options are resolved once by
// NewConfig; NewTransportContext takes the resulting Config as is.
type ConfigOption func(*Config)

func newConfig() Config {
	return Config{
		Peers:             make(map[uint32]string),
		Transport:         TransportVerbs,
		PollInterval:      10 * time.Millisecond,
		HeartbeatInterval: 100 * time.Millisecond,
		LivenessTimeout:   1 * time.Second,
		DialTimeout:       5 * time.Second,
		Backoff:           backoff.DefaultConfig,
		Rendezvous:        DialTCPRendezvous,
	}
}

// WithRendezvous overrides how Memory Region construction establishes its
// descriptor-exchange side-channel. Test doubles use this to substitute
// an in-memory transport for real TCP.
func WithRendezvous(fn RendezvousFunc) ConfigOption {
	return func(c *Config) { c.Rendezvous = fn }
}

// WithLocalID sets this process's peer identifier.
func WithLocalID(id uint32) ConfigOption {
	return func(c *Config) { c.LocalID = id }
}

// WithPeers sets the full peer address map (peer id -> "host:port").
// Insertion order is irrelevant; Config.Ranks derives a deterministic,
// ascending-id row-rank order from this map.
func WithPeers(peers map[uint32]string) ConfigOption {
	return func(c *Config) { c.Peers = maps.Clone(peers) }
}

// WithTransport selects the physical transport kind.
func WithTransport(kind TransportKind) ConfigOption {
	return func(c *Config) { c.Transport = kind }
}

// WithPollInterval sets the predicate scanner's polling interval.
func WithPollInterval(d time.Duration) ConfigOption {
	return func(c *Config) { c.PollInterval = d }
}

// WithHeartbeatInterval sets how often the heartbeat field is bumped.
func WithHeartbeatInterval(d time.Duration) ConfigOption {
	return func(c *Config) { c.HeartbeatInterval = d }
}

// WithLivenessTimeout sets how long a peer's heartbeat may go stale
// before it is declared failed.
func WithLivenessTimeout(d time.Duration) ConfigOption {
	return func(c *Config) { c.LivenessTimeout = d }
}

// WithDialTimeout bounds how long Provider.Dial may take when the
// Connection Manager lazily creates a connection.
func WithDialTimeout(d time.Duration) ConfigOption {
	return func(c *Config) { c.DialTimeout = d }
}

// WithBackoff overrides the backoff delay math used when retrying
// transient memory-region registration failures.
func WithBackoff(b backoff.Config) ConfigOption {
	return func(c *Config) { c.Backoff = b }
}

// WithLogger sets an optional structured logger.
func WithLogger(logger *slog.Logger) ConfigOption {
	return func(c *Config) { c.Logger = logger }
}

// NewConfig builds a Config from the given options.
func NewConfig(opts ...ConfigOption) Config {
	c := newConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Ranks returns every peer id present in Peers plus LocalID, sorted in
// ascending order. The position of a peer id in this slice is its row
// rank (§3).
func (c Config) Ranks() []uint32 {
	ids := make(map[uint32]struct{}, len(c.Peers)+1)
	ids[c.LocalID] = struct{}{}
	for id := range c.Peers {
		ids[id] = struct{}{}
	}
	return slices.Sorted(maps.Keys(ids))
}

// LocalRank returns this process's row rank within Ranks().
func (c Config) LocalRank() int {
	for i, id := range c.Ranks() {
		if id == c.LocalID {
			return i
		}
	}
	return -1
}
