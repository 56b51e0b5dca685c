package sst

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Table is the Shared State Table proper: one row per group member, all
// rows the same fixed layout, replicated by one-sided writes rather than
// message passing (§2, §3). A Table owns exactly one Memory Region per
// remote peer, sized to hold a single row, plus its own local row buffer.
type Table struct {
	tc     *TransportContext
	layout *RowLayout
	ranks  []uint32
	local  uint32

	localMu  sync.Mutex
	localRow []byte

	regions map[uint32]*MemoryRegion

	liveMu sync.Mutex
	alive  map[uint32]bool
}

// NewTable constructs the table for the local process's rank, opening one
// Memory Region per configured peer (§4.2). Every peer must construct its
// table with the same RowLayout, or the byte offsets each side assumes
// diverge silently.
func NewTable(ctx context.Context, tc *TransportContext, layout *RowLayout) (*Table, error) {
	cfg := tc.Config()
	t := &Table{
		tc:       tc,
		layout:   layout,
		ranks:    cfg.Ranks(),
		local:    cfg.LocalID,
		localRow: make([]byte, layout.RowSize()),
		regions:  make(map[uint32]*MemoryRegion),
		alive:    make(map[uint32]bool),
	}
	for _, id := range t.ranks {
		if id == t.local {
			t.alive[id] = true
			continue
		}
		r, err := NewMemoryRegion(ctx, tc, id, int(layout.RowSize()))
		if err != nil {
			return nil, fmt.Errorf("sst: opening region for peer %d: %w", id, err)
		}
		t.regions[id] = r
		t.alive[id] = true
	}
	return t, nil
}

// GetLocalIndex returns this process's row rank, its index into Ranks().
func (t *Table) GetLocalIndex() int { return t.tc.cfg.LocalRank() }

// Ranks returns the row rank order shared by every peer.
func (t *Table) Ranks() []uint32 {
	out := make([]uint32, len(t.ranks))
	copy(out, t.ranks)
	return out
}

// byteRangeOf computes the minimal byte range covering the named fields,
// or the whole row if fields is empty (§4.3 put()).
func (t *Table) byteRangeOf(fields []string) (offset, size uint64, err error) {
	if len(fields) == 0 {
		return 0, t.layout.RowSize(), nil
	}
	lo := t.layout.RowSize()
	var hi uint64
	for _, name := range fields {
		f, err := t.layout.Field(name)
		if err != nil {
			return 0, 0, err
		}
		if f.Offset < lo {
			lo = f.Offset
		}
		if end := f.Offset + f.Size; end > hi {
			hi = end
		}
	}
	return lo, hi - lo, nil
}

// put copies the covered byte range of the local row into every peer's send
// buffer and issues one WriteRemote per peer concurrently, fanning out with
// errgroup exactly as the teacher's quorum calls fan out over nodes.
func (t *Table) put(ctx context.Context, fields []string, withCompletion bool) error {
	offset, size, err := t.byteRangeOf(fields)
	if err != nil {
		return err
	}

	t.localMu.Lock()
	row := make([]byte, size)
	copy(row, t.localRow[offset:offset+size])
	t.localMu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for id, region := range t.regions {
		id, region := id, region
		g.Go(func() error {
			copy(region.SendBuf()[offset:offset+size], row)
			_, err := region.WriteRemote(gctx, t.tc, offset, size, withCompletion)
			if err != nil {
				t.setAlive(id, false)
				return fmt.Errorf("sst: writing row to peer %d: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Put publishes the named fields (or the whole row, given none) to every
// peer without waiting for the writes to complete (§4.3 put()).
func (t *Table) Put(ctx context.Context, fields ...string) error {
	return t.put(ctx, fields, false)
}

// PutWithCompletion is Put but blocks until every peer's write has
// completed (§4.3 put_with_completion(), §5's blocking guarantee).
func (t *Table) PutWithCompletion(ctx context.Context, fields ...string) error {
	return t.put(ctx, fields, true)
}

// PutUint64 writes v into the named field of the local row. It never
// touches any other row: SST writers only ever own their own row (§8
// invariant 4).
func (t *Table) PutUint64(name string, v uint64) error {
	f, err := t.layout.Field(name)
	if err != nil {
		return err
	}
	if f.Kind != FieldUint64 {
		return fmt.Errorf("sst: field %q is not a uint64 field", name)
	}
	t.localMu.Lock()
	binary.NativeEndian.PutUint64(t.localRow[f.Offset:f.Offset+f.Size], v)
	t.localMu.Unlock()
	return nil
}

// PutBytes copies v into the named field of the local row. len(v) must
// equal the field's declared size.
func (t *Table) PutBytes(name string, v []byte) error {
	f, err := t.layout.Field(name)
	if err != nil {
		return err
	}
	if f.Kind != FieldBytes {
		return fmt.Errorf("sst: field %q is not a bytes field", name)
	}
	if uint64(len(v)) != f.Size {
		return fmt.Errorf("sst: field %q wants %d bytes, got %d", name, f.Size, len(v))
	}
	t.localMu.Lock()
	copy(t.localRow[f.Offset:f.Offset+f.Size], v)
	t.localMu.Unlock()
	return nil
}

// GetUint64 reads the named field from peer's row, whether that is the
// local row or a mirrored remote row.
func (t *Table) GetUint64(peer uint32, name string) (uint64, error) {
	f, err := t.layout.Field(name)
	if err != nil {
		return 0, err
	}
	if f.Kind != FieldUint64 {
		return 0, fmt.Errorf("sst: field %q is not a uint64 field", name)
	}
	row, err := t.rowBytes(peer)
	if err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint64(row[f.Offset : f.Offset+f.Size]), nil
}

// GetBytes reads the named field from peer's row, whether that is the
// local row or a mirrored remote row. The returned slice is a copy.
func (t *Table) GetBytes(peer uint32, name string) ([]byte, error) {
	f, err := t.layout.Field(name)
	if err != nil {
		return nil, err
	}
	if f.Kind != FieldBytes {
		return nil, fmt.Errorf("sst: field %q is not a bytes field", name)
	}
	row, err := t.rowBytes(peer)
	if err != nil {
		return nil, err
	}
	out := make([]byte, f.Size)
	copy(out, row[f.Offset:f.Offset+f.Size])
	return out, nil
}

func (t *Table) rowBytes(peer uint32) ([]byte, error) {
	if peer == t.local {
		t.localMu.Lock()
		defer t.localMu.Unlock()
		row := make([]byte, len(t.localRow))
		copy(row, t.localRow)
		return row, nil
	}
	r, ok := t.regions[peer]
	if !ok {
		return nil, fmt.Errorf("sst: unknown peer %d", peer)
	}
	return r.RecvBuf(), nil
}

// SyncWithMembers rendezvous with every peer concurrently via
// MemoryRegion.Sync — a two-way exchange, not a write — and returns only
// once every peer has entered its own SyncWithMembers call too (§4.3 S6).
// It publishes no row bytes: use Put/PutWithCompletion for that. A failure
// to reach one peer does not prevent reaching the others: the
// corresponding region's liveness bit is cleared independently, but
// SyncWithMembers itself returns the first error via errgroup only after
// every fan-out rendezvous has completed or failed.
func (t *Table) SyncWithMembers(ctx context.Context) error {
	var g errgroup.Group
	for id, region := range t.regions {
		id, region := id, region
		g.Go(func() error {
			_, err := region.Sync(ctx, t.tc)
			if err != nil {
				t.setAlive(id, false)
				return fmt.Errorf("sst: syncing with peer %d: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// setAlive updates the liveness bitmap for a single peer.
func (t *Table) setAlive(peer uint32, alive bool) {
	t.liveMu.Lock()
	t.alive[peer] = alive
	t.liveMu.Unlock()
}

// Alive reports whether peer is currently considered live.
func (t *Table) Alive(peer uint32) bool {
	t.liveMu.Lock()
	defer t.liveMu.Unlock()
	return t.alive[peer]
}

// LivenessBitmap returns a copy of the liveness bitmap keyed by peer id.
func (t *Table) LivenessBitmap() map[uint32]bool {
	t.liveMu.Lock()
	defer t.liveMu.Unlock()
	out := make(map[uint32]bool, len(t.alive))
	for k, v := range t.alive {
		out[k] = v
	}
	return out
}

// Layout returns the row layout this table was constructed with.
func (t *Table) Layout() *RowLayout { return t.layout }

// Close releases every Memory Region this table opened.
func (t *Table) Close() error {
	var firstErr error
	for _, r := range t.regions {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
