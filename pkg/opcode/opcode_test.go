package opcode_test

import (
	"testing"

	"github.com/tsukikage/hcbvm/pkg/opcode"
)

func TestLookupKnownOpcodes(t *testing.T) {
	tests := []struct {
		op       opcode.Op
		wantName string
	}{
		{opcode.InitStack, "InitStack"},
		{opcode.Call, "Call"},
		{opcode.PushI32, "PushI32"},
		{opcode.SetGe, "SetGe"},
	}

	for _, tt := range tests {
		info, ok := opcode.Lookup(tt.op)
		if !ok {
			t.Errorf("Lookup(%#x): not found", tt.op)
			continue
		}
		if info.Name != tt.wantName {
			t.Errorf("Lookup(%#x).Name = %q, want %q", tt.op, info.Name, tt.wantName)
		}
	}
}

func TestLookupUnknownOpcode(t *testing.T) {
	if _, ok := opcode.Lookup(opcode.Op(0xFE)); ok {
		t.Fatal("expected 0xFE to be unknown")
	}
}
