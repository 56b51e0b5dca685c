package sst_test

import (
	"context"
	"testing"
	"time"

	"github.com/relab/sst"
	"github.com/relab/sst/sstest"
)

// twoMemberTables constructs a pair of tables for peers 0 and 1, wired
// together over an in-memory bufconn rendezvous and a shared loopback
// provider registry, so writes issued by one are visible to the other
// without any real network I/O.
func twoMemberTables(t *testing.T, layout *sst.RowLayout) (a, b *sst.Table, closeAll func()) {
	t.Helper()

	peers := map[uint32]string{0: "peer-0", 1: "peer-1"}
	registry := sstest.NewRegistry()
	rendezvous := sstest.NewBufconnRendezvous()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	type built struct {
		table *sst.Table
		tc    *sst.TransportContext
		err   error
	}
	results := make(chan built, 2)
	start := func(id uint32) {
		cfg := sst.NewConfig(
			sst.WithLocalID(id),
			sst.WithPeers(peers),
			sst.WithRendezvous(rendezvous.Rendezvous),
		)
		tc := sst.NewTransportContext(cfg, sstest.NewProvider(registry, id))
		table, err := sst.NewTable(ctx, tc, layout)
		results <- built{table, tc, err}
	}
	go start(0)
	go start(1)

	first := <-results
	second := <-results
	if first.err != nil {
		t.Fatalf("NewTable() error = %v", first.err)
	}
	if second.err != nil {
		t.Fatalf("NewTable() error = %v", second.err)
	}
	if first.table.GetLocalIndex() == 0 {
		a, b = first.table, second.table
	} else {
		a, b = second.table, first.table
	}
	closeAll = func() {
		a.Close()
		b.Close()
		first.tc.Close()
		second.tc.Close()
	}
	return a, b, closeAll
}

func newTestLayout(t *testing.T) *sst.RowLayout {
	t.Helper()
	rl, err := sst.NewRowLayout(sst.WithHeartbeat(
		sst.Field{Name: "value", Kind: sst.FieldUint64, Size: 8},
	)...)
	if err != nil {
		t.Fatalf("NewRowLayout() error = %v", err)
	}
	return rl
}

func TestTablePutWithCompletionReplicatesLocalRow(t *testing.T) {
	layout := newTestLayout(t)
	a, b, closeAll := twoMemberTables(t, layout)
	defer closeAll()

	if err := a.PutUint64("value", 111); err != nil {
		t.Fatalf("a.PutUint64() error = %v", err)
	}
	if err := b.PutUint64("value", 222); err != nil {
		t.Fatalf("b.PutUint64() error = %v", err)
	}

	ctx := context.Background()
	if err := a.PutWithCompletion(ctx, "value"); err != nil {
		t.Fatalf("a.PutWithCompletion() error = %v", err)
	}
	if err := b.PutWithCompletion(ctx, "value"); err != nil {
		t.Fatalf("b.PutWithCompletion() error = %v", err)
	}

	got, err := a.GetUint64(1, "value")
	if err != nil {
		t.Fatalf("a.GetUint64(1, ...) error = %v", err)
	}
	if got != 222 {
		t.Errorf("a sees peer 1's value = %d, want 222", got)
	}

	got, err = b.GetUint64(0, "value")
	if err != nil {
		t.Fatalf("b.GetUint64(0, ...) error = %v", err)
	}
	if got != 111 {
		t.Errorf("b sees peer 0's value = %d, want 111", got)
	}
}

func TestTablePutWithoutCompletionOnlySendsNamedField(t *testing.T) {
	layout := newTestLayout(t)
	a, b, closeAll := twoMemberTables(t, layout)
	defer closeAll()

	if err := a.PutUint64("value", 7); err != nil {
		t.Fatalf("PutUint64() error = %v", err)
	}
	if err := a.Put(context.Background(), "value"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// Put is fire-and-forget; give the write a moment to land before
	// checking rather than racing GetUint64 against WriteRemote.
	deadline := time.Now().Add(time.Second)
	var got uint64
	var err error
	for time.Now().Before(deadline) {
		got, err = b.GetUint64(0, "value")
		if err == nil && got == 7 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("b.GetUint64(0, ...) error = %v", err)
	}
	if got != 7 {
		t.Errorf("b sees peer 0's value = %d, want 7", got)
	}
}

func TestTableSyncWithMembersBlocksUntilBothPeersArrive(t *testing.T) {
	layout := newTestLayout(t)
	a, b, closeAll := twoMemberTables(t, layout)
	defer closeAll()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	aDone := make(chan error, 1)
	go func() { aDone <- a.SyncWithMembers(ctx) }()

	// a's call must not complete on its own: it is waiting for b to enter
	// its own SyncWithMembers call (S6).
	select {
	case err := <-aDone:
		t.Fatalf("a.SyncWithMembers() returned before b arrived (err=%v), want it to block", err)
	case <-time.After(50 * time.Millisecond):
	}

	bDone := make(chan error, 1)
	go func() { bDone <- b.SyncWithMembers(ctx) }()

	if err := <-aDone; err != nil {
		t.Fatalf("a.SyncWithMembers() error = %v", err)
	}
	if err := <-bDone; err != nil {
		t.Fatalf("b.SyncWithMembers() error = %v", err)
	}
}

func TestTableGetLocalRowReadsOwnWrites(t *testing.T) {
	layout := newTestLayout(t)
	a, b, closeAll := twoMemberTables(t, layout)
	defer closeAll()

	if err := a.PutUint64("value", 42); err != nil {
		t.Fatalf("PutUint64() error = %v", err)
	}
	got, err := a.GetUint64(0, "value")
	if err != nil {
		t.Fatalf("GetUint64(local) error = %v", err)
	}
	if got != 42 {
		t.Errorf("GetUint64(local) = %d, want 42", got)
	}
	_ = b
}

func TestTablePutBytesRejectsWrongSize(t *testing.T) {
	layout, err := sst.NewRowLayout(sst.Field{Name: "blob", Kind: sst.FieldBytes, Size: 4})
	if err != nil {
		t.Fatalf("NewRowLayout() error = %v", err)
	}
	a, b, closeAll := twoMemberTables(t, layout)
	defer closeAll()
	_ = b

	if err := a.PutBytes("blob", []byte{1, 2, 3}); err == nil {
		t.Error("PutBytes() with wrong-sized value: got nil error, want non-nil")
	}
}

func TestTableGetLocalIndexMatchesRank(t *testing.T) {
	layout := newTestLayout(t)
	a, b, closeAll := twoMemberTables(t, layout)
	defer closeAll()

	if a.GetLocalIndex() != 0 {
		t.Errorf("a.GetLocalIndex() = %d, want 0", a.GetLocalIndex())
	}
	if b.GetLocalIndex() != 1 {
		t.Errorf("b.GetLocalIndex() = %d, want 1", b.GetLocalIndex())
	}
}
