package callstack_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/tsukikage/hcbvm/pkg/callstack"
	"github.com/tsukikage/hcbvm/pkg/value"
)

func TestPushPopOperands(t *testing.T) {
	cs := callstack.New()
	cs.PushCall(0, 0, 0)

	cs.Push(value.IntValue(1))
	cs.Push(value.IntValue(2))
	if cs.FrameSize() != 2 {
		t.Fatalf("FrameSize() = %d, want 2", cs.FrameSize())
	}

	top, err := cs.Pop()
	if err != nil || top.Int() != 2 {
		t.Fatalf("Pop() = %v, %v, want 2, nil", top, err)
	}
	if cs.FrameSize() != 1 {
		t.Fatalf("FrameSize() = %d, want 1", cs.FrameSize())
	}
}

func TestPopUnderflowIsStackBreak(t *testing.T) {
	cs := callstack.New()
	cs.PushCall(0, 0, 0)
	if _, err := cs.Pop(); err == nil {
		t.Fatal("expected StackBreak on empty pop")
	}
}

func TestSetLocalRejectsNegativeGetLocalAccepts(t *testing.T) {
	cs := callstack.New()
	cs.PushCall(0, 0, 2)

	if err := cs.SetLocal(-1, value.IntValue(5)); err == nil {
		t.Fatal("expected SetLocal(-1) to fail")
	}
	if err := cs.SetLocal(0, value.IntValue(9)); err != nil {
		t.Fatalf("SetLocal(0) error = %v", err)
	}
	got, err := cs.GetLocal(0)
	if err != nil || got.Int() != 9 {
		t.Fatalf("GetLocal(0) = %v, %v", got, err)
	}
}

// TestArgumentAddressing grounds spec.md §8 property 5: a callee's
// PushLocal(-1) retrieves the last argument pushed by the caller.
func TestArgumentAddressing(t *testing.T) {
	cs := callstack.New()
	cs.PushCall(0, 0, 0) // root frame, no args

	cs.Push(value.IntValue(10)) // arg 0 pushed first
	cs.Push(value.IntValue(20)) // arg 1 pushed last

	returnAddr := uint32(0x100)
	cs.PushCall(returnAddr, 2, 1)

	last, err := cs.GetLocal(-1)
	if err != nil || last.Int() != 20 {
		t.Fatalf("GetLocal(-1) = %v, %v, want 20, nil", last, err)
	}
	first, err := cs.GetLocal(-2)
	if err != nil || first.Int() != 10 {
		t.Fatalf("GetLocal(-2) = %v, %v, want 10, nil", first, err)
	}
	if _, err := cs.GetLocal(-3); err == nil {
		t.Fatal("expected GetLocal(-3) to fail, only 2 args")
	}
}

// TestStackBalanceOnVoidReturn grounds spec.md §8 property 3: after a Call
// followed by the callee's void Ret, the caller's operand-region size
// returns to its value before the call sequence began.
func TestStackBalanceOnVoidReturn(t *testing.T) {
	cs := callstack.New()
	cs.PushCall(0, 0, 0)

	cs.Push(value.IntValue(1))
	preCallSize := cs.FrameSize()

	cs.Push(value.IntValue(42)) // one argument for the callee
	cs.PushCall(0xAB, 1, 3)

	if cs.FrameSize() != 0 {
		t.Fatalf("callee FrameSize() = %d, want 0", cs.FrameSize())
	}
	retAddr, terminal, err := cs.PopCall()
	if err != nil {
		t.Fatalf("PopCall() error = %v", err)
	}
	if terminal {
		t.Fatal("expected non-terminal pop (root frame still below)")
	}
	if retAddr != 0xAB {
		t.Fatalf("retAddr = %#x, want 0xab", retAddr)
	}
	if cs.FrameSize() != preCallSize {
		t.Fatalf("FrameSize() after Ret = %d, want %d", cs.FrameSize(), preCallSize)
	}
}

// TestStackBalanceOnValueReturn grounds spec.md §8 property 4: after Call,
// RetV, and the caller's PushReturn, the operand-region size is one more
// than before the call sequence, with the returned value on top.
func TestStackBalanceOnValueReturn(t *testing.T) {
	cs := callstack.New()
	cs.PushCall(0, 0, 0)

	preCallSize := cs.FrameSize()

	cs.PushCall(0xCD, 0, 0)
	cs.Push(value.IntValue(99)) // the callee's RetV operand
	retVal, err := cs.Pop()
	if err != nil {
		t.Fatalf("Pop() error = %v", err)
	}
	retAddr, terminal, err := cs.PopCall()
	if err != nil {
		t.Fatalf("PopCall() error = %v", err)
	}
	if terminal || retAddr != 0xCD {
		t.Fatalf("retAddr=%#x terminal=%v", retAddr, terminal)
	}

	cs.Push(retVal) // the caller's PushReturn

	if cs.FrameSize() != preCallSize+1 {
		t.Fatalf("FrameSize() = %d, want %d", cs.FrameSize(), preCallSize+1)
	}
	top, err := cs.Peek()
	if err != nil || top.Int() != 99 {
		t.Fatalf("Peek() = %v, %v, want 99, nil", top, err)
	}
}

func TestPopCallRequiresEmptyOperandRegion(t *testing.T) {
	cs := callstack.New()
	cs.PushCall(0, 0, 0)
	cs.PushCall(0x10, 0, 0)
	cs.Push(value.IntValue(1))

	if _, _, err := cs.PopCall(); err == nil {
		t.Fatal("expected PopCall to fail with non-empty operand region")
	}
}

func TestPopRootFrameIsTerminal(t *testing.T) {
	cs := callstack.New()
	cs.PushCall(0, 0, 0)

	_, terminal, err := cs.PopCall()
	if err != nil {
		t.Fatalf("PopCall() error = %v", err)
	}
	if !terminal {
		t.Fatal("expected popping the root frame to report terminal")
	}
	if cs.Seated() {
		t.Fatal("expected no seated frame after popping root")
	}
}

// TestPropertyNestedCallsBalance is spec.md §8 property 3 generalized to
// arbitrary nesting depth and argument counts via gopter.
func TestPropertyNestedCallsBalance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("nested void calls leave FrameSize unchanged", prop.ForAll(
		func(depths []uint8) bool {
			cs := callstack.New()
			cs.PushCall(0, 0, 0)
			cs.Push(value.IntValue(1))
			before := cs.FrameSize()

			for _, argc := range depths {
				n := int(argc % 4)
				for i := 0; i < n; i++ {
					cs.Push(value.IntValue(int32(i)))
				}
				cs.PushCall(0, uint8(n), 2)
			}
			for range depths {
				if _, _, err := cs.PopCall(); err != nil {
					return false
				}
			}
			return cs.FrameSize() == before
		},
		gen.SliceOf(gen.UInt8Range(0, 3)),
	))

	properties.TestingRun(t)
}
