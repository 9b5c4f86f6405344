// Package vm implements the HCB execution engine: ScriptContext drives the
// program counter through the decoded instruction stream, dispatching each
// opcode to a handler that mutates the CallStack, the global-variable
// array, or the single-slot return-value register (spec.md §3, §4.6).
package vm

import (
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/tsukikage/hcbvm/pkg/callstack"
	"github.com/tsukikage/hcbvm/pkg/hcberr"
	"github.com/tsukikage/hcbvm/pkg/metadata"
	"github.com/tsukikage/hcbvm/pkg/opcode"
	"github.com/tsukikage/hcbvm/pkg/reader"
	"github.com/tsukikage/hcbvm/pkg/value"
)

// Invoker is the boundary ScriptContext calls through for Syscall
// instructions — implemented by pkg/syscall.Resolver. Kept as an interface
// here so this package never imports pkg/syscall.
type Invoker interface {
	Invoke(name string, args []value.Value) (value.Value, error)
}

// ScriptContext owns everything needed to run one script to completion:
// the shared Reader/Metadata, the CallStack, the global-variable array, and
// the return-value register. Per spec.md §5 a context is single-threaded
// and synchronous; nothing here is safe for concurrent use from two
// goroutines at once.
type ScriptContext struct {
	id       uuid.UUID
	r        *reader.Reader
	meta     *metadata.Metadata
	resolver Invoker
	log      *log.Logger

	cs *callstack.CallStack

	globals   []value.Value
	globalSet []bool

	returnValue value.Value
	hasReturn   bool

	pc uint32

	maxSteps     int // 0 = unlimited
	steps        int
	maxCallDepth int // 0 = unlimited
}

// Option configures a ScriptContext at construction time, in the style of
// the teacher's own Interpreter Option pattern.
type Option func(*ScriptContext)

// WithMaxSteps bounds the number of dispatched instructions before Execute
// fails with a NotImplemented-classified RuntimeError, generalizing the
// teacher's Interpreter.WithMaxSteps guard against a runaway script hanging
// the embedding host. 0 (the default) means unlimited.
func WithMaxSteps(n int) Option {
	return func(c *ScriptContext) { c.maxSteps = n }
}

// WithMaxCallDepth bounds CallStack nesting depth, guarding against
// unbounded recursion in a hostile or buggy script. 0 means unlimited.
func WithMaxCallDepth(n int) Option {
	return func(c *ScriptContext) { c.maxCallDepth = n }
}

// New constructs a ScriptContext over an already-parsed Metadata and the
// same Reader it was parsed from. Globals start uninitialized (all
// absent), matching "global_vars start uninitialized" in spec.md §3.
func New(r *reader.Reader, meta *metadata.Metadata, resolver Invoker, logger *log.Logger, opts ...Option) *ScriptContext {
	if logger == nil {
		logger = log.Default()
	}
	id := uuid.New()
	c := &ScriptContext{
		id:        id,
		r:         r,
		meta:      meta,
		resolver:  resolver,
		log:       logger.With("ctx", id.String()[:8], "title", meta.GameTitle),
		cs:        callstack.New(),
		globals:   make([]value.Value, meta.GlobalCount),
		globalSet: make([]bool, meta.GlobalCount),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ReturnValue returns the context's current return-value register and
// whether it holds a value, for callers inspecting the final result of a
// completed script (e.g. a disassembler-adjacent test harness or the CLI).
func (c *ScriptContext) ReturnValue() (value.Value, bool) {
	return c.returnValue, c.hasReturn
}

// Execute seeks to the script's entry point and drives the
// fetch-decode-execute loop (spec.md §4.6) until the root frame returns or
// a RuntimeError surfaces.
func (c *ScriptContext) Execute() error {
	c.r.SeekTo(int(c.meta.EntryPoint))
	c.log.Debug("execute start", "entry_point", c.meta.EntryPoint)
	for {
		terminal, err := c.step()
		if err != nil {
			c.log.Error("runtime error", "err", err)
			return err
		}
		if terminal {
			c.log.Debug("execute done", "return_value", c.returnValue)
			return nil
		}
	}
}

type handlerFunc func(c *ScriptContext) (bool, error)

// handlers is the opcode dispatch table spec.md §9's design notes
// recommend: a function-pointer table keyed by opcode, since the opcode
// set is closed and stable.
var handlers = map[opcode.Op]handlerFunc{
	opcode.Nop:       opNop,
	opcode.InitStack: opInitStack,
	opcode.Call:      opCall,
	opcode.Syscall:   opSyscall,
	opcode.Ret:       opRet,
	opcode.RetV:      opRetV,
	opcode.Jmp:       opJmp,
	opcode.Jz:        opJz,

	opcode.PushNil:    opPushNil,
	opcode.PushTrue:   opPushTrue,
	opcode.PushI8:     opPushI8,
	opcode.PushI16:    opPushI16,
	opcode.PushI32:    opPushI32,
	opcode.PushF32:    opPushF32,
	opcode.PushString: opPushString,

	opcode.PushGlobal: opPushGlobal,
	opcode.PushLocal:  opPushLocal,
	opcode.PopGlobal:  opPopGlobal,
	opcode.PopLocal:   opPopLocal,

	opcode.PushGlobalTable: opPushGlobalTable,
	opcode.PushLocalTable:  opPushLocalTable,
	opcode.PopGlobalTable:  opPopGlobalTable,
	opcode.PopLocalTable:   opPopLocalTable,

	opcode.PushTop:    opPushTop,
	opcode.PushReturn: opPushReturn,

	opcode.Neg: opNeg,
	opcode.Add: opAdd,
	opcode.Sub: opSub,
	opcode.Mul: opMul,
	opcode.Div: opDiv,
	opcode.Mod: opMod,

	opcode.BitTest: opBitTest,
	opcode.And:     opAnd,
	opcode.Or:      opOr,
	opcode.SetEq:   opSetEq,
	opcode.SetNe:   opSetNe,
	opcode.SetGt:   opSetGt,
	opcode.SetLe:   opSetLe,
	opcode.SetLt:   opSetLt,
	opcode.SetGe:   opSetGe,
}

// step fetches one opcode at the current PC and dispatches it. Any error —
// whether a short read, a StackBreak from the CallStack, or a type/kind
// failure raised by a handler — is wrapped into a RuntimeError carrying the
// address of the opcode being executed, per spec.md §4.8.
func (c *ScriptContext) step() (terminal bool, err error) {
	c.pc = uint32(c.r.Pos())

	if c.maxSteps > 0 && c.steps >= c.maxSteps {
		return false, hcberr.Wrap(c.pc, hcberr.NotImplemented, notImplemented("exceeded max steps (%d)", c.maxSteps))
	}
	c.steps++

	opByte, err := c.r.ReadU8()
	if err != nil {
		return false, hcberr.Wrap(c.pc, classify(err), err)
	}
	op := opcode.Op(opByte)

	handler, ok := handlers[op]
	if !ok {
		return false, hcberr.Wrap(c.pc, hcberr.NotImplemented, notImplemented("unimplemented opcode %#02x", opByte))
	}

	// handlers and opcode.table are kept in lockstep, so a successful
	// handlers lookup above guarantees Lookup also succeeds here.
	info, _ := opcode.Lookup(op)
	c.log.Debug("dispatch", "op", info.Name, "pc", c.pc)

	terminal, err = handler(c)
	if err != nil {
		return false, hcberr.Wrap(c.pc, classify(err), err)
	}
	return terminal, nil
}

// classify recovers the Kind a lower-level error should be reported under,
// so step() can wrap anything a handler returns into a RuntimeError without
// every handler constructing one by hand.
func classify(err error) hcberr.Kind {
	switch e := err.(type) {
	case *hcberr.DecodeError:
		return e.Kind
	case *hcberr.StackBreakError:
		return hcberr.StackBreak
	case *hcberr.KindError:
		return e.Kind
	default:
		return hcberr.NotImplemented
	}
}

func typeErr(format string, args ...any) error {
	return hcberr.NewKindError(hcberr.TypeError, format, args...)
}

func divZero(format string, args ...any) error {
	return hcberr.NewKindError(hcberr.DivideByZero, format, args...)
}

func uninitGlobal(format string, args ...any) error {
	return hcberr.NewKindError(hcberr.UninitializedGlobal, format, args...)
}

func notImplemented(format string, args ...any) error {
	return hcberr.NewKindError(hcberr.NotImplemented, format, args...)
}
