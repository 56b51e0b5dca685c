package rpc

import (
	"context"
	"errors"
	"testing"
)

func TestPendingRegistryNotifyRemovedFansOutToRegisteredCalls(t *testing.T) {
	reg := NewPendingRegistry()

	p1 := NewPending[int]()
	p1.FulfillMap([]uint32{1, 2})
	reg.Register(p1)

	p2 := NewPending[string]()
	p2.FulfillMap([]uint32{3})
	reg.Register(p2)

	reg.NotifyRemoved(2)

	resp, err := p1.Query().Replies().Get(context.Background(), 2)
	if err != nil || !errors.Is(resp.Err, ErrNodeRemoved) {
		t.Errorf("p1.Get(2).Err = %v, want wrapping ErrNodeRemoved", resp.Err)
	}
	if p2.Query().Replies().Contains(3) {
		t.Error("NotifyRemoved(2) affected p2, whose destinations don't include peer 2")
	}
}

func TestPendingRegistryDeregisterStopsNotifications(t *testing.T) {
	reg := NewPendingRegistry()
	p := NewPending[int]()
	p.FulfillMap([]uint32{1})
	token := reg.Register(p)
	reg.Deregister(token)

	reg.NotifyRemoved(1)
	if p.Query().Replies().Contains(1) {
		t.Error("NotifyRemoved fired for a deregistered call")
	}
}
