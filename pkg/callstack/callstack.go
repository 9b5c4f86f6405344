// Package callstack implements the CallStack described in spec.md §3/§4.5:
// a single contiguous sequence holding both operand values and saved frame
// records, with the frame_base / arg_count / local_count / FrameSize
// invariants that prevent cross-frame corruption.
//
// Go has no natural union of "stack slot holding either a value or a frame
// record", so each slot is a small sum type (isFrame bool, plus one of the
// two payloads) — the same second-sum-type escape hatch spec.md §9's design
// notes call out explicitly for strictly typed languages.
package callstack

import (
	"github.com/tsukikage/hcbvm/pkg/hcberr"
	"github.com/tsukikage/hcbvm/pkg/value"
)

// Frame is the StackFrame record of spec.md §3: the metadata saved and
// restored across a call.
type Frame struct {
	ReturnAddress uint32
	ArgCount      uint8
	LocalCount    uint8
	FrameBase     int32
}

type slot struct {
	isFrame bool
	frame   Frame
	val     value.Value
}

// CallStack is the VM's single operand+frame buffer. The zero value is an
// empty CallStack, matching "the CallStack is empty at construction" in
// spec.md §3.
type CallStack struct {
	slots     []slot
	cur       Frame
	seated    bool
	frameSize int
	depth     int
}

// New returns an empty CallStack.
func New() *CallStack {
	return &CallStack{}
}

// FrameSize returns the current operand region's size.
func (c *CallStack) FrameSize() int { return c.frameSize }

// Depth returns the number of currently active (seated) frames, 0 before
// the root InitStack has run.
func (c *CallStack) Depth() int { return c.depth }

// Seated reports whether a frame has ever been seated, i.e. whether the
// root InitStack has executed.
func (c *CallStack) Seated() bool { return c.seated }

// Push appends v to the current operand region.
func (c *CallStack) Push(v value.Value) {
	c.slots = append(c.slots, slot{val: v})
	c.frameSize++
}

// Pop removes and returns the top operand, failing StackBreak on
// underflow.
func (c *CallStack) Pop() (value.Value, error) {
	if c.frameSize == 0 {
		return value.Value{}, hcberr.NewStackBreak("pop from empty operand region")
	}
	top := c.slots[len(c.slots)-1]
	c.slots = c.slots[:len(c.slots)-1]
	c.frameSize--
	return top.val, nil
}

// Peek returns the top operand without removing it.
func (c *CallStack) Peek() (value.Value, error) {
	if c.frameSize == 0 {
		return value.Value{}, hcberr.NewStackBreak("peek on empty operand region")
	}
	return c.slots[len(c.slots)-1].val, nil
}

// GetLocal addresses local slot i relative to frame_base: 0 <= i <
// local_count reads a regular local; -arg_count <= i < 0 reads argument
// -i-1 (0-indexed from the last pushed, immediately below the saved-frame
// record). Any other index fails StackBreak.
func (c *CallStack) GetLocal(i int32) (value.Value, error) {
	if !c.seated {
		return value.Value{}, hcberr.NewStackBreak("no active frame")
	}
	if i >= 0 {
		if i >= int32(c.cur.LocalCount) {
			return value.Value{}, hcberr.NewStackBreak("local index %d out of range [0,%d)", i, c.cur.LocalCount)
		}
		return c.slots[c.cur.FrameBase+i].val, nil
	}
	if i < -int32(c.cur.ArgCount) {
		return value.Value{}, hcberr.NewStackBreak("argument index %d out of range [-%d,0)", i, c.cur.ArgCount)
	}
	argIdx := -i - 1
	sentinelIdx := c.cur.FrameBase - 1
	return c.slots[sentinelIdx-1-argIdx].val, nil
}

// SetLocal writes to regular local slot i. Arguments are read-only by
// convention — per spec.md §4.5 the asymmetric bound is enforced here:
// SetLocal rejects i < 0, while GetLocal accepts negative indices.
func (c *CallStack) SetLocal(i int32, v value.Value) error {
	if !c.seated {
		return hcberr.NewStackBreak("no active frame")
	}
	if i < 0 || i >= int32(c.cur.LocalCount) {
		return hcberr.NewStackBreak("local write index %d out of writable range [0,%d)", i, c.cur.LocalCount)
	}
	c.slots[c.cur.FrameBase+i].val = v
	return nil
}

// PushCall seats a new frame: spec.md §4.5 step 1-4. When no frame has ever
// been seated (the very first call, at the script's entry point) there is
// no caller frame to save, matching "the CallStack is empty at
// construction" — the root frame is seated directly with nothing beneath
// it.
func (c *CallStack) PushCall(returnAddress uint32, argCount, localCount uint8) {
	if c.seated {
		c.slots = append(c.slots, slot{isFrame: true, frame: c.cur})
	}
	newBase := int32(len(c.slots))
	c.cur = Frame{ReturnAddress: returnAddress, ArgCount: argCount, LocalCount: localCount, FrameBase: newBase}
	for n := 0; n < int(localCount); n++ {
		c.slots = append(c.slots, slot{val: value.NilValue()})
	}
	c.frameSize = 0
	c.seated = true
	c.depth++
}

// PopCall implements spec.md §4.5 pop_call: it fails StackBreak unless the
// operand region is empty, then shrinks the buffer and restores the prior
// frame, returning the return address the callee was seated with. terminal
// reports whether the popped frame was the root frame — the caller has no
// prior frame to resume into and execution should end.
func (c *CallStack) PopCall() (returnAddress uint32, terminal bool, err error) {
	if c.frameSize != 0 {
		return 0, false, hcberr.NewStackBreak("return with non-empty operand region (size=%d)", c.frameSize)
	}

	ret := c.cur.ReturnAddress
	localCount := int(c.cur.LocalCount)
	argCount := int(c.cur.ArgCount)

	if c.depth == 1 {
		c.slots = c.slots[:len(c.slots)-localCount]
		c.cur = Frame{}
		c.seated = false
		c.frameSize = 0
		c.depth = 0
		return ret, true, nil
	}

	sentinelIdx := int(c.cur.FrameBase) - 1
	prior := c.slots[sentinelIdx].frame

	total := localCount + 1 + argCount
	c.slots = c.slots[:len(c.slots)-total]
	c.cur = prior
	c.frameSize = len(c.slots) - int(prior.FrameBase) - int(prior.LocalCount)
	c.depth--
	return ret, false, nil
}
