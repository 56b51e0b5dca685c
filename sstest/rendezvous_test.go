package sstest

import (
	"context"
	"testing"
	"time"

	"github.com/relab/sst"
	"github.com/relab/sst/wire"
)

func TestBufconnRendezvousSymmetricExchange(t *testing.T) {
	r := NewBufconnRendezvous()
	cfgA := sst.Config{LocalID: 0}
	cfgB := sst.Config{LocalID: 1}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	type result struct {
		desc wire.MRDescriptor
		err  error
	}
	chA := make(chan result, 1)
	chB := make(chan result, 1)

	go func() {
		conn, err := r.Rendezvous(ctx, cfgA, 1)
		if err != nil {
			chA <- result{err: err}
			return
		}
		defer conn.Close()
		d, err := wire.ExchangeMemoryRegion(conn, wire.MRDescriptor{Key: 1, VAddr: 100})
		chA <- result{d, err}
	}()
	go func() {
		conn, err := r.Rendezvous(ctx, cfgB, 0)
		if err != nil {
			chB <- result{err: err}
			return
		}
		defer conn.Close()
		d, err := wire.ExchangeMemoryRegion(conn, wire.MRDescriptor{Key: 2, VAddr: 200})
		chB <- result{d, err}
	}()

	gotA := <-chA
	gotB := <-chB
	if gotA.err != nil {
		t.Fatalf("peer 0 Rendezvous/Exchange error = %v", gotA.err)
	}
	if gotB.err != nil {
		t.Fatalf("peer 1 Rendezvous/Exchange error = %v", gotB.err)
	}
	if gotA.desc != (wire.MRDescriptor{Key: 2, VAddr: 200}) {
		t.Errorf("peer 0 received %+v, want Key=2 VAddr=200", gotA.desc)
	}
	if gotB.desc != (wire.MRDescriptor{Key: 1, VAddr: 100}) {
		t.Errorf("peer 1 received %+v, want Key=1 VAddr=100", gotB.desc)
	}
}
