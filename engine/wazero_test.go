package engine

import (
	"context"
	"testing"

	"github.com/seamlik/riko"
)

func TestPackPtrLen(t *testing.T) {
	tests := []struct {
		ptr, length uint32
	}{
		{0, 0},
		{1, 1},
		{0xFFFFFFFF, 0xFFFFFFFF},
		{1 << 16, 4096},
	}

	for _, tt := range tests {
		ptr, length := unpackPtrLen(packPtrLen(tt.ptr, tt.length))
		if ptr != tt.ptr || length != tt.length {
			t.Errorf("round trip (%d, %d) = (%d, %d)", tt.ptr, tt.length, ptr, length)
		}
	}
}

func TestWazero_LowerScalars(t *testing.T) {
	w := &Wazero{}

	tests := []struct {
		name string
		arg  any
		want uint64
	}{
		{"handle", riko.Handle(7), 7},
		{"negative handle survives", riko.Handle(-1), 0xFFFFFFFFFFFFFFFF},
		{"bool true", true, 1},
		{"bool false", false, 0},
		{"int64", int64(-2), 0xFFFFFFFFFFFFFFFE},
		{"uint64", uint64(9), 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := w.lowerArg(context.Background(), tt.arg)
			if err != nil {
				t.Fatalf("lowerArg: %v", err)
			}
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("lowerArg = %v, want [%d]", got, tt.want)
			}
		})
	}

	if _, err := w.lowerArg(context.Background(), struct{}{}); err == nil {
		t.Error("unlowerable argument accepted")
	}
}

func TestNewWazero_RejectsGarbage(t *testing.T) {
	_, err := NewWazero(context.Background(), []byte("not a wasm module"))
	if err == nil {
		t.Fatal("NewWazero accepted garbage bytes")
	}
}
