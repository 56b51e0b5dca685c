package sst

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestConfigRanksSortedAndDeduped(t *testing.T) {
	cfg := NewConfig(
		WithLocalID(2),
		WithPeers(map[uint32]string{0: "a", 1: "b", 2: "c"}),
	)
	got := cfg.Ranks()
	want := []uint32{0, 1, 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Ranks() mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigLocalRank(t *testing.T) {
	cfg := NewConfig(
		WithLocalID(5),
		WithPeers(map[uint32]string{1: "a", 5: "b", 9: "c"}),
	)
	if got, want := cfg.LocalRank(), 1; got != want {
		t.Errorf("LocalRank() = %d, want %d", got, want)
	}
}

func TestConfigLocalRankWithoutPeers(t *testing.T) {
	// LocalRank is always found: Ranks() unions LocalID in even when Peers
	// omits it.
	cfg := NewConfig(WithLocalID(42))
	if got, want := cfg.LocalRank(), 0; got != want {
		t.Errorf("LocalRank() = %d, want %d", got, want)
	}
}

func TestWithPeersClonesMap(t *testing.T) {
	src := map[uint32]string{0: "a"}
	cfg := NewConfig(WithPeers(src))
	src[1] = "b"
	if _, ok := cfg.Peers[1]; ok {
		t.Error("WithPeers() did not clone the map: mutation of caller's map leaked in")
	}
}

func TestTransportKindString(t *testing.T) {
	tests := []struct {
		kind TransportKind
		want string
	}{
		{TransportVerbs, "verbs"},
		{TransportLibFabric, "lf"},
		{TransportKind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("TransportKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
