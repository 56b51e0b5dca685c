package sst

import "fmt"

// FieldKind identifies the wire representation of a table column (§3).
type FieldKind int

const (
	// FieldUint64 is a fixed 8-byte unsigned integer column, used for the
	// heartbeat counter and other scalar fields.
	FieldUint64 FieldKind = iota
	// FieldBytes is a fixed-width opaque byte column, sized independently
	// per field.
	FieldBytes
)

func (k FieldKind) String() string {
	switch k {
	case FieldUint64:
		return "uint64"
	case FieldBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Field describes one named column of a row: its kind, byte width, and
// offset within the row (§3). Offsets are assigned by RowLayout in
// declaration order; callers never choose them directly, so two fields
// never overlap.
type Field struct {
	Name   string
	Kind   FieldKind
	Size   uint64
	Offset uint64
}

// RowLayout is the ordered set of fields making up one row of the table,
// shared identically by every peer (§3: "every peer agrees on the row
// layout before the table is constructed"). Building a RowLayout assigns
// byte offsets; the resulting RowSize is the size every Memory Region
// registers per peer.
type RowLayout struct {
	fields  []Field
	byName  map[string]int
	rowSize uint64
}

// NewRowLayout builds a RowLayout from fields in the given order,
// assigning each a byte offset immediately after the previous field.
// Field names must be unique within a layout.
func NewRowLayout(fields ...Field) (*RowLayout, error) {
	rl := &RowLayout{
		fields: make([]Field, 0, len(fields)),
		byName: make(map[string]int, len(fields)),
	}
	var offset uint64
	for _, f := range fields {
		if _, dup := rl.byName[f.Name]; dup {
			return nil, fmt.Errorf("sst: duplicate field %q", f.Name)
		}
		if f.Size == 0 {
			return nil, fmt.Errorf("sst: field %q has zero size", f.Name)
		}
		f.Offset = offset
		rl.byName[f.Name] = len(rl.fields)
		rl.fields = append(rl.fields, f)
		offset += f.Size
	}
	rl.rowSize = offset
	return rl, nil
}

// RowSize returns the total byte width of one row under this layout.
func (rl *RowLayout) RowSize() uint64 { return rl.rowSize }

// Fields returns the fields in declaration order.
func (rl *RowLayout) Fields() []Field {
	out := make([]Field, len(rl.fields))
	copy(out, rl.fields)
	return out
}

// Field looks up a field by name.
func (rl *RowLayout) Field(name string) (Field, error) {
	i, ok := rl.byName[name]
	if !ok {
		return Field{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return rl.fields[i], nil
}

// HeartbeatField is the well-known name a layout must reserve for the
// liveness counter that the heartbeat writer bumps (§5). Only layouts used
// with a HeartbeatMonitor need it.
const HeartbeatField = "__heartbeat"

// WithHeartbeat returns fields with a HeartbeatField uint64 column
// appended, for callers building a layout that needs failure detection.
func WithHeartbeat(fields ...Field) []Field {
	return append(fields, Field{Name: HeartbeatField, Kind: FieldUint64, Size: 8})
}
