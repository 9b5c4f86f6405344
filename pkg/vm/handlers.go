package vm

import (
	"github.com/tsukikage/hcbvm/pkg/hcberr"
	"github.com/tsukikage/hcbvm/pkg/opcode"
	"github.com/tsukikage/hcbvm/pkg/value"
)

func opNop(c *ScriptContext) (bool, error) {
	return false, nil
}

// opInitStack seats the root frame. Per spec.md §4.6 InitStack is only ever
// dispatched here for the very first instruction at entry_point — every
// other InitStack in the code region is consumed directly by opCall, which
// reads its operand bytes itself as part of performing push_call. Any other
// arrival here (depth != 0) means InitStack showed up somewhere execution
// did not expect it.
func opInitStack(c *ScriptContext) (bool, error) {
	argc, err := c.r.ReadU8()
	if err != nil {
		return false, err
	}
	localc, err := c.r.ReadU8()
	if err != nil {
		return false, err
	}
	if c.cs.Depth() != 0 {
		return false, notImplemented("InitStack outside of entry point or Call (depth=%d)", c.cs.Depth())
	}
	c.cs.PushCall(0, argc, localc)
	return false, nil
}

// opCall saves the return address, jumps to the target, and requires its
// first byte to be InitStack — whose operand bytes opCall itself consumes
// so it can seat the callee's frame via push_call before resuming normal
// dispatch at the callee's first real instruction.
func opCall(c *ScriptContext) (bool, error) {
	addr, err := c.r.ReadU32()
	if err != nil {
		return false, err
	}
	returnAddr := uint32(c.r.Pos())

	c.r.SeekTo(int(addr))
	opByte, err := c.r.ReadU8()
	if err != nil {
		return false, err
	}
	if opcode.Op(opByte) != opcode.InitStack {
		c.r.SeekTo(int(addr))
		return false, notImplemented("Call target %#x does not begin with InitStack", addr)
	}
	argc, err := c.r.ReadU8()
	if err != nil {
		return false, err
	}
	localc, err := c.r.ReadU8()
	if err != nil {
		return false, err
	}
	if c.maxCallDepth > 0 && c.cs.Depth() >= c.maxCallDepth {
		return false, notImplemented("exceeded max call depth (%d)", c.maxCallDepth)
	}
	c.cs.PushCall(returnAddr, argc, localc)
	return false, nil
}

func opSyscall(c *ScriptContext) (bool, error) {
	id, err := c.r.ReadU16()
	if err != nil {
		return false, err
	}
	if int(id) >= len(c.meta.Syscalls) {
		return false, notImplemented("syscall id %d out of range", id)
	}
	sc := c.meta.Syscalls[id]

	args := make([]value.Value, sc.ArgCount)
	for i := 0; i < int(sc.ArgCount); i++ {
		v, err := c.cs.Pop()
		if err != nil {
			return false, err
		}
		args[int(sc.ArgCount)-1-i] = v
	}

	result, err := c.resolver.Invoke(sc.Name, args)
	if err != nil {
		return false, err
	}
	c.returnValue = result
	c.hasReturn = true
	return false, nil
}

func opRet(c *ScriptContext) (bool, error) {
	c.returnValue = value.Value{}
	c.hasReturn = false
	retAddr, terminal, err := c.cs.PopCall()
	if err != nil {
		return false, err
	}
	if terminal {
		return true, nil
	}
	c.r.SeekTo(int(retAddr))
	return false, nil
}

func opRetV(c *ScriptContext) (bool, error) {
	v, err := c.cs.Pop()
	if err != nil {
		return false, err
	}
	retAddr, terminal, err := c.cs.PopCall()
	if err != nil {
		return false, err
	}
	c.returnValue = v
	c.hasReturn = true
	if terminal {
		return true, nil
	}
	c.r.SeekTo(int(retAddr))
	return false, nil
}

func opJmp(c *ScriptContext) (bool, error) {
	addr, err := c.r.ReadU32()
	if err != nil {
		return false, err
	}
	c.r.SeekTo(int(addr))
	return false, nil
}

func opJz(c *ScriptContext) (bool, error) {
	addr, err := c.r.ReadU32()
	if err != nil {
		return false, err
	}
	v, err := c.cs.Pop()
	if err != nil {
		return false, err
	}
	if !v.Truthy() {
		c.r.SeekTo(int(addr))
	}
	return false, nil
}

func opPushNil(c *ScriptContext) (bool, error) {
	c.cs.Push(value.NilValue())
	return false, nil
}

func opPushTrue(c *ScriptContext) (bool, error) {
	c.cs.Push(value.BoolValue(true))
	return false, nil
}

func opPushI8(c *ScriptContext) (bool, error) {
	v, err := c.r.ReadS8()
	if err != nil {
		return false, err
	}
	c.cs.Push(value.IntValue(int32(v)))
	return false, nil
}

func opPushI16(c *ScriptContext) (bool, error) {
	v, err := c.r.ReadS16()
	if err != nil {
		return false, err
	}
	c.cs.Push(value.IntValue(int32(v)))
	return false, nil
}

func opPushI32(c *ScriptContext) (bool, error) {
	v, err := c.r.ReadS32()
	if err != nil {
		return false, err
	}
	c.cs.Push(value.IntValue(v))
	return false, nil
}

func opPushF32(c *ScriptContext) (bool, error) {
	v, err := c.r.ReadF32()
	if err != nil {
		return false, err
	}
	c.cs.Push(value.FloatValue(v))
	return false, nil
}

func opPushString(c *ScriptContext) (bool, error) {
	v, err := c.r.ReadString()
	if err != nil {
		return false, err
	}
	c.cs.Push(value.StringValue(v))
	return false, nil
}

func (c *ScriptContext) checkGlobalID(id uint16) error {
	if int(id) >= len(c.globals) {
		return hcberr.NewStackBreak("global id %d out of range [0,%d)", id, len(c.globals))
	}
	return nil
}

func opPushGlobal(c *ScriptContext) (bool, error) {
	id, err := c.r.ReadU16()
	if err != nil {
		return false, err
	}
	if err := c.checkGlobalID(id); err != nil {
		return false, err
	}
	if !c.globalSet[id] {
		return false, uninitGlobal("global %d read before assignment", id)
	}
	c.cs.Push(c.globals[id])
	return false, nil
}

func opPushLocal(c *ScriptContext) (bool, error) {
	id, err := c.r.ReadS8()
	if err != nil {
		return false, err
	}
	v, err := c.cs.GetLocal(int32(id))
	if err != nil {
		return false, err
	}
	c.cs.Push(v)
	return false, nil
}

func opPopGlobal(c *ScriptContext) (bool, error) {
	id, err := c.r.ReadU16()
	if err != nil {
		return false, err
	}
	v, err := c.cs.Pop()
	if err != nil {
		return false, err
	}
	if err := c.checkGlobalID(id); err != nil {
		return false, err
	}
	c.globals[id] = v
	c.globalSet[id] = true
	return false, nil
}

func opPopLocal(c *ScriptContext) (bool, error) {
	id, err := c.r.ReadS8()
	if err != nil {
		return false, err
	}
	v, err := c.cs.Pop()
	if err != nil {
		return false, err
	}
	if err := c.cs.SetLocal(int32(id), v); err != nil {
		return false, err
	}
	return false, nil
}

func opPushGlobalTable(c *ScriptContext) (bool, error) {
	id, err := c.r.ReadU16()
	if err != nil {
		return false, err
	}
	key, err := c.cs.Pop()
	if err != nil {
		return false, err
	}
	if key.Kind() != value.Int {
		return false, typeErr("table key must be Int, got %s", key.Kind())
	}
	if err := c.checkGlobalID(id); err != nil {
		return false, err
	}
	v, err := tableGet(c.globalSet[id], c.globals[id], key)
	if err != nil {
		return false, err
	}
	c.cs.Push(v)
	return false, nil
}

func opPushLocalTable(c *ScriptContext) (bool, error) {
	id, err := c.r.ReadS8()
	if err != nil {
		return false, err
	}
	key, err := c.cs.Pop()
	if err != nil {
		return false, err
	}
	if key.Kind() != value.Int {
		return false, typeErr("table key must be Int, got %s", key.Kind())
	}
	local, err := c.cs.GetLocal(int32(id))
	if err != nil {
		return false, err
	}
	v, err := tableGet(true, local, key)
	if err != nil {
		return false, err
	}
	c.cs.Push(v)
	return false, nil
}

// tableGet reads the table mapped to key out of a variable slot that may
// be uninitialized, Nil, or hold a table — per spec.md §4.6, a missing key
// (or a variable that is not yet a table) reads as Nil.
func tableGet(set bool, slot value.Value, key value.Value) (value.Value, error) {
	if !set || slot.IsNil() {
		return value.NilValue(), nil
	}
	if slot.Kind() != value.Table {
		return value.Value{}, typeErr("variable is not a table, got %s", slot.Kind())
	}
	v, ok := slot.TableVal().Get(key.Int())
	if !ok {
		return value.NilValue(), nil
	}
	return v, nil
}

// tableUpsert writes value v at key into the table mapped to a variable
// slot, creating an empty table there first if the slot was not yet one.
func tableUpsert(set bool, slot value.Value, key, v value.Value) (value.Value, error) {
	var tbl *value.TableValue
	if set && slot.Kind() == value.Table {
		tbl = slot.TableVal()
	} else {
		tbl = value.NewTable()
	}
	tbl.Set(key.Int(), v)
	return value.TableValueOf(tbl), nil
}

func opPopGlobalTable(c *ScriptContext) (bool, error) {
	id, err := c.r.ReadU16()
	if err != nil {
		return false, err
	}
	v, err := c.cs.Pop()
	if err != nil {
		return false, err
	}
	key, err := c.cs.Pop()
	if err != nil {
		return false, err
	}
	if key.Kind() != value.Int {
		return false, typeErr("table key must be Int, got %s", key.Kind())
	}
	if err := c.checkGlobalID(id); err != nil {
		return false, err
	}
	updated, err := tableUpsert(c.globalSet[id], c.globals[id], key, v)
	if err != nil {
		return false, err
	}
	c.globals[id] = updated
	c.globalSet[id] = true
	return false, nil
}

func opPopLocalTable(c *ScriptContext) (bool, error) {
	id, err := c.r.ReadS8()
	if err != nil {
		return false, err
	}
	v, err := c.cs.Pop()
	if err != nil {
		return false, err
	}
	key, err := c.cs.Pop()
	if err != nil {
		return false, err
	}
	if key.Kind() != value.Int {
		return false, typeErr("table key must be Int, got %s", key.Kind())
	}
	local, err := c.cs.GetLocal(int32(id))
	if err != nil {
		return false, err
	}
	updated, err := tableUpsert(true, local, key, v)
	if err != nil {
		return false, err
	}
	if err := c.cs.SetLocal(int32(id), updated); err != nil {
		return false, err
	}
	return false, nil
}

func opPushTop(c *ScriptContext) (bool, error) {
	v, err := c.cs.Peek()
	if err != nil {
		return false, err
	}
	c.cs.Push(v)
	return false, nil
}

func opPushReturn(c *ScriptContext) (bool, error) {
	if !c.hasReturn {
		return false, hcberr.NewStackBreak("PushReturn with no return value present")
	}
	c.cs.Push(c.returnValue)
	c.returnValue = value.Value{}
	c.hasReturn = false
	return false, nil
}

// popTwo pops the top two operands. The caller names them per whatever
// convention spec.md §4.6 uses for that particular opcode — arithmetic
// calls the first pop "a" and computes "b OP a"; the ordered comparisons
// swap the naming, popping "b" first.
func popTwo(c *ScriptContext) (first, second value.Value, err error) {
	first, err = c.cs.Pop()
	if err != nil {
		return
	}
	second, err = c.cs.Pop()
	return
}

// arith promotes x, y per spec.md §4.4: both Int yields Int, both Float
// yields Float, and a mixed pair widens to Float. Any other tag
// combination is a TypeError.
func arith(x, y value.Value, opName string, ifn func(int32, int32) int32, ffn func(float32, float32) float32) (value.Value, error) {
	switch {
	case x.Kind() == value.Int && y.Kind() == value.Int:
		return value.IntValue(ifn(x.Int(), y.Int())), nil
	case x.Kind() == value.Float && y.Kind() == value.Float:
		return value.FloatValue(ffn(x.Float(), y.Float())), nil
	case x.Kind() == value.Int && y.Kind() == value.Float:
		return value.FloatValue(ffn(float32(x.Int()), y.Float())), nil
	case x.Kind() == value.Float && y.Kind() == value.Int:
		return value.FloatValue(ffn(x.Float(), float32(y.Int()))), nil
	default:
		return value.Value{}, typeErr("%s requires numeric operands, got %s and %s", opName, x.Kind(), y.Kind())
	}
}

func opNeg(c *ScriptContext) (bool, error) {
	v, err := c.cs.Pop()
	if err != nil {
		return false, err
	}
	switch v.Kind() {
	case value.Int:
		c.cs.Push(value.IntValue(-v.Int()))
	case value.Float:
		c.cs.Push(value.FloatValue(-v.Float()))
	default:
		return false, typeErr("Neg requires a numeric operand, got %s", v.Kind())
	}
	return false, nil
}

func opAdd(c *ScriptContext) (bool, error) {
	a, b, err := popTwo(c)
	if err != nil {
		return false, err
	}
	if a.Kind() == value.String && b.Kind() == value.String {
		c.cs.Push(value.StringValue(b.Str() + a.Str()))
		return false, nil
	}
	v, err := arith(b, a, "Add", func(x, y int32) int32 { return x + y }, func(x, y float32) float32 { return x + y })
	if err != nil {
		return false, err
	}
	c.cs.Push(v)
	return false, nil
}

func opSub(c *ScriptContext) (bool, error) {
	a, b, err := popTwo(c)
	if err != nil {
		return false, err
	}
	v, err := arith(b, a, "Sub", func(x, y int32) int32 { return x - y }, func(x, y float32) float32 { return x - y })
	if err != nil {
		return false, err
	}
	c.cs.Push(v)
	return false, nil
}

func opMul(c *ScriptContext) (bool, error) {
	a, b, err := popTwo(c)
	if err != nil {
		return false, err
	}
	v, err := arith(b, a, "Mul", func(x, y int32) int32 { return x * y }, func(x, y float32) float32 { return x * y })
	if err != nil {
		return false, err
	}
	c.cs.Push(v)
	return false, nil
}

func numericIsZero(v value.Value) bool {
	switch v.Kind() {
	case value.Int:
		return v.Int() == 0
	case value.Float:
		return v.Float() == 0
	default:
		return false
	}
}

func opDiv(c *ScriptContext) (bool, error) {
	a, b, err := popTwo(c)
	if err != nil {
		return false, err
	}
	if numericIsZero(a) {
		return false, divZero("Div by zero")
	}
	v, err := arith(b, a, "Div", func(x, y int32) int32 { return x / y }, func(x, y float32) float32 { return x / y })
	if err != nil {
		return false, err
	}
	c.cs.Push(v)
	return false, nil
}

func opMod(c *ScriptContext) (bool, error) {
	a, b, err := popTwo(c)
	if err != nil {
		return false, err
	}
	if a.Kind() != value.Int || b.Kind() != value.Int {
		return false, typeErr("Mod requires Int operands, got %s and %s", b.Kind(), a.Kind())
	}
	if a.Int() == 0 {
		return false, divZero("Mod by zero")
	}
	c.cs.Push(value.IntValue(b.Int() % a.Int()))
	return false, nil
}

func opBitTest(c *ScriptContext) (bool, error) {
	bit, err := c.cs.Pop()
	if err != nil {
		return false, err
	}
	val, err := c.cs.Pop()
	if err != nil {
		return false, err
	}
	if bit.Kind() != value.Int || val.Kind() != value.Int {
		return false, typeErr("BitTest requires Int operands, got %s and %s", val.Kind(), bit.Kind())
	}
	b := bit.Int()
	if b < 0 || b >= 32 {
		return false, typeErr("BitTest bit index %d out of range [0,32)", b)
	}
	c.cs.Push(value.BoolValue(val.Int()&(1<<uint(b)) != 0))
	return false, nil
}

func opAnd(c *ScriptContext) (bool, error) {
	a, b, err := popTwo(c)
	if err != nil {
		return false, err
	}
	c.cs.Push(value.BoolValue(value.Equal(a, b) && !a.IsNil()))
	return false, nil
}

func opOr(c *ScriptContext) (bool, error) {
	a, b, err := popTwo(c)
	if err != nil {
		return false, err
	}
	c.cs.Push(value.BoolValue(!a.IsNil() || !b.IsNil()))
	return false, nil
}

func opSetEq(c *ScriptContext) (bool, error) {
	a, b, err := popTwo(c)
	if err != nil {
		return false, err
	}
	c.cs.Push(value.BoolValue(value.Equal(a, b)))
	return false, nil
}

func opSetNe(c *ScriptContext) (bool, error) {
	a, b, err := popTwo(c)
	if err != nil {
		return false, err
	}
	c.cs.Push(value.BoolValue(!value.Equal(a, b)))
	return false, nil
}

// orderedCompare implements SetGt/SetLe/SetLt/SetGe: per spec.md §4.6 the
// pop order is named "b, then a" (swapped relative to arithmetic), and the
// pushed result compares a against b with cmp.
func orderedCompare(c *ScriptContext, opName string, accept func(cmp int) bool) (bool, error) {
	b, a, err := popTwo(c)
	if err != nil {
		return false, err
	}
	cmp, ok := value.Compare(a, b)
	if !ok {
		return false, typeErr("%s: incomparable tags %s and %s", opName, a.Kind(), b.Kind())
	}
	c.cs.Push(value.BoolValue(accept(cmp)))
	return false, nil
}

func opSetGt(c *ScriptContext) (bool, error) {
	return orderedCompare(c, "SetGt", func(cmp int) bool { return cmp > 0 })
}

func opSetLe(c *ScriptContext) (bool, error) {
	return orderedCompare(c, "SetLe", func(cmp int) bool { return cmp <= 0 })
}

func opSetLt(c *ScriptContext) (bool, error) {
	return orderedCompare(c, "SetLt", func(cmp int) bool { return cmp < 0 })
}

func opSetGe(c *ScriptContext) (bool, error) {
	return orderedCompare(c, "SetGe", func(cmp int) bool { return cmp >= 0 })
}
