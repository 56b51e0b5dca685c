package sst

import "testing"

func TestRowLayoutOffsets(t *testing.T) {
	rl, err := NewRowLayout(
		Field{Name: "a", Kind: FieldUint64, Size: 8},
		Field{Name: "b", Kind: FieldBytes, Size: 4},
		Field{Name: "c", Kind: FieldUint64, Size: 8},
	)
	if err != nil {
		t.Fatalf("NewRowLayout() error = %v", err)
	}

	tests := []struct {
		name       string
		wantOffset uint64
	}{
		{"a", 0},
		{"b", 8},
		{"c", 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := rl.Field(tt.name)
			if err != nil {
				t.Fatalf("Field(%q) error = %v", tt.name, err)
			}
			if f.Offset != tt.wantOffset {
				t.Errorf("Field(%q).Offset = %d, want %d", tt.name, f.Offset, tt.wantOffset)
			}
		})
	}

	if got, want := rl.RowSize(), uint64(20); got != want {
		t.Errorf("RowSize() = %d, want %d", got, want)
	}
}

func TestRowLayoutDuplicateField(t *testing.T) {
	_, err := NewRowLayout(
		Field{Name: "a", Kind: FieldUint64, Size: 8},
		Field{Name: "a", Kind: FieldUint64, Size: 8},
	)
	if err == nil {
		t.Fatal("NewRowLayout() with duplicate field names: got nil error, want non-nil")
	}
}

func TestRowLayoutZeroSizeField(t *testing.T) {
	_, err := NewRowLayout(Field{Name: "a", Kind: FieldUint64, Size: 0})
	if err == nil {
		t.Fatal("NewRowLayout() with zero-size field: got nil error, want non-nil")
	}
}

func TestRowLayoutUnknownField(t *testing.T) {
	rl, err := NewRowLayout(Field{Name: "a", Kind: FieldUint64, Size: 8})
	if err != nil {
		t.Fatalf("NewRowLayout() error = %v", err)
	}
	if _, err := rl.Field("nope"); err == nil {
		t.Fatal("Field(\"nope\"): got nil error, want ErrUnknownField")
	}
}

func TestWithHeartbeatAppendsField(t *testing.T) {
	fields := WithHeartbeat(Field{Name: "value", Kind: FieldUint64, Size: 8})
	rl, err := NewRowLayout(fields...)
	if err != nil {
		t.Fatalf("NewRowLayout() error = %v", err)
	}
	if _, err := rl.Field(HeartbeatField); err != nil {
		t.Errorf("Field(%q) error = %v, want nil", HeartbeatField, err)
	}
}
