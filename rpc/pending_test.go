package rpc

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPendingQueryBlocksUntilMapFulfilled(t *testing.T) {
	p := NewPending[string]()
	q := p.Query()

	if q.Wait(10 * time.Millisecond) {
		t.Fatal("Wait() reported the map ready before FulfillMap was called")
	}

	p.FulfillMap([]uint32{1, 2, 3})
	if !q.Wait(50 * time.Millisecond) {
		t.Fatal("Wait() did not report the map ready once FulfillMap was called")
	}
}

func TestPendingFulfillMapIsSingleAssignment(t *testing.T) {
	p := NewPending[int]()
	p.FulfillMap([]uint32{1})
	select {
	case <-p.Query().Done():
	default:
		t.Fatal("Done() not closed after first FulfillMap()")
	}
	// A second call must not panic or reopen the channel.
	p.FulfillMap([]uint32{2, 3})
	select {
	case <-p.Query().Done():
	default:
		t.Fatal("Done() closed by first FulfillMap() then somehow un-closed")
	}
}

func TestPendingSetDuplicateRejected(t *testing.T) {
	p := NewPending[int]()
	p.FulfillMap([]uint32{1})
	if err := p.Set(1, 1, nil); err != nil {
		t.Fatalf("first Set() error = %v", err)
	}
	if err := p.Set(1, 2, nil); !errors.Is(err, ErrDuplicateReply) {
		t.Errorf("second Set() error = %v, want ErrDuplicateReply", err)
	}
}

func TestPendingSetBeforeFulfillMapIsRecorded(t *testing.T) {
	p := NewPending[int]()
	if err := p.Set(1, 42, nil); err != nil {
		t.Fatalf("Set() before FulfillMap() error = %v", err)
	}
	p.FulfillMap([]uint32{1})
	resp, err := p.Query().Replies().Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.Reply != 42 {
		t.Errorf("Get(1) = %+v, want Reply=42", resp)
	}
}

func TestPendingFailRecordsError(t *testing.T) {
	p := NewPending[int]()
	p.FulfillMap([]uint32{1})
	cause := errors.New("node removed")
	if err := p.Fail(1, cause); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}
	resp, err := p.Query().Replies().Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get(1) after Fail(): error = %v", err)
	}
	if !errors.Is(resp.Err, cause) {
		t.Errorf("recorded error = %v, want %v", resp.Err, cause)
	}
}

func TestSetExceptionForRemovedNodeGuard(t *testing.T) {
	p := NewPending[int]()

	p.SetExceptionForRemovedNode(1)
	if p.Query().Replies().Contains(1) {
		t.Fatal("SetExceptionForRemovedNode fired before FulfillMap")
	}

	p.FulfillMap([]uint32{1, 2})

	p.SetExceptionForRemovedNode(99)
	if p.Query().Replies().Contains(99) {
		t.Fatal("SetExceptionForRemovedNode fired for a peer outside the destination set")
	}

	if err := p.Set(2, 7, nil); err != nil {
		t.Fatalf("Set(2) error = %v", err)
	}
	p.SetExceptionForRemovedNode(2)
	resp, err := p.Query().Replies().Get(context.Background(), 2)
	if err != nil || resp.Reply != 7 {
		t.Errorf("Get(2) = (%+v, %v), want (7, nil): removal must not clobber an already-recorded reply", resp, err)
	}

	p.SetExceptionForRemovedNode(1)
	resp, err = p.Query().Replies().Get(context.Background(), 1)
	if err != nil || !errors.Is(resp.Err, ErrNodeRemoved) {
		t.Errorf("Get(1).Err = %v, want wrapping ErrNodeRemoved", resp.Err)
	}
}

// TestPendingReplyMapAfterPartialResponse is scenario S4: a call sent to
// {1,2,3}, peer 1 replies with a value, peer 3 replies with a remote
// exception, and peer 2 is removed before responding.
func TestPendingReplyMapAfterPartialResponse(t *testing.T) {
	p := NewPending[string]()
	p.FulfillMap([]uint32{1, 2, 3})

	if err := p.Set(1, "v1", nil); err != nil {
		t.Fatalf("Set(1) error = %v", err)
	}
	if err := p.Fail(3, RemoteExceptionOccurred(3, errors.New("boom"))); err != nil {
		t.Fatalf("Fail(3) error = %v", err)
	}
	p.SetExceptionForRemovedNode(2)

	replies, err := p.Query().Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	r1, err := replies.Get(context.Background(), 1)
	if err != nil || r1.Reply != "v1" {
		t.Errorf("Get(1) = (%+v, %v), want (v1, nil)", r1, err)
	}

	r3, err := replies.Get(context.Background(), 3)
	if err != nil || !errors.Is(r3.Err, ErrRemoteException) {
		t.Errorf("Get(3).Err = %v, want wrapping ErrRemoteException", r3.Err)
	}

	r2, err := replies.Get(context.Background(), 2)
	if err != nil || !errors.Is(r2.Err, ErrNodeRemoved) {
		t.Errorf("Get(2).Err = %v, want wrapping ErrNodeRemoved", r2.Err)
	}
}

func TestQueryValidRequiresMapFulfilledAndSlotFulfilled(t *testing.T) {
	p := NewPending[int]()
	q := p.Query()

	p.Set(1, 10, nil)
	if q.Valid(1) {
		t.Error("Valid(1) = true before FulfillMap, want false (map not populated)")
	}

	p.FulfillMap([]uint32{1, 2})
	if !q.Valid(1) {
		t.Error("Valid(1) = false after FulfillMap and a successful reply, want true")
	}
	if q.Valid(2) {
		t.Error("Valid(2) = true for a peer that has not replied yet, want false")
	}
}
