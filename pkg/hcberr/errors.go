// Package hcberr defines the error kinds raised while decoding or executing
// an HCB script.
//
// Decoder-level failures (EndOfStream, InvalidData) propagate unchanged from
// the reader/metadata packages. Execution-level failures are surfaced to the
// host as a RuntimeError carrying the failing program counter; Wrap attaches
// an inner cause with github.com/pkg/errors so the original StackBreak,
// TypeError, etc. is still recoverable with errors.As after a few layers of
// wrapping.
package hcberr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies the category of a decode or execution failure.
type Kind int

const (
	// EndOfStream is returned by the reader on a short read.
	EndOfStream Kind = iota
	// InvalidData is returned by the reader for malformed framing (e.g. a
	// zero-length string prefix).
	InvalidData
	// StackBreak covers operand underflow, invalid local index, and
	// non-empty operand region on return.
	StackBreak
	// TypeError covers an operator applied to incompatible value tags.
	TypeError
	// DivideByZero covers Div/Mod with a zero right-hand operand.
	DivideByZero
	// UninitializedGlobal covers PushGlobal of a global never populated.
	UninitializedGlobal
	// NotImplemented covers an unknown syscall name or unknown opcode.
	NotImplemented
	// DuplicateName covers registering a syscall name already present.
	DuplicateName
)

func (k Kind) String() string {
	switch k {
	case EndOfStream:
		return "EndOfStream"
	case InvalidData:
		return "InvalidData"
	case StackBreak:
		return "StackBreak"
	case TypeError:
		return "TypeError"
	case DivideByZero:
		return "DivideByZero"
	case UninitializedGlobal:
		return "UninitializedGlobal"
	case NotImplemented:
		return "NotImplemented"
	case DuplicateName:
		return "DuplicateName"
	default:
		return "Unknown"
	}
}

// DecodeError is raised by the reader and metadata parser. It has no PC —
// decoding happens before a program counter exists.
type DecodeError struct {
	Kind Kind
	Msg  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// NewDecodeError builds a DecodeError of the given kind.
func NewDecodeError(kind Kind, format string, args ...any) error {
	return &DecodeError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// StackBreakError is the specific family raised by the CallStack for
// underflow and invalid-index conditions. Per spec §4.8 it must be caught by
// the dispatcher and re-raised as a RuntimeError with PC context — it is
// never meant to reach the host directly.
type StackBreakError struct {
	Msg string
}

func (e *StackBreakError) Error() string { return "stack break: " + e.Msg }

// NewStackBreak constructs a StackBreakError.
func NewStackBreak(format string, args ...any) error {
	return &StackBreakError{Msg: fmt.Sprintf(format, args...)}
}

// KindError is a generic execution-time failure not otherwise covered by
// DecodeError or StackBreakError: TypeError, DivideByZero,
// UninitializedGlobal, NotImplemented, or DuplicateName raised directly by
// an opcode handler or the SyscallResolver.
type KindError struct {
	Kind Kind
	Msg  string
}

func (e *KindError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Msg) }

// NewKindError builds a KindError of the given kind.
func NewKindError(kind Kind, format string, args ...any) error {
	return &KindError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// RuntimeError is the only error kind the VM surfaces to its caller from
// Execute. It annotates the failing opcode's address and, when it
// wraps a lower-level cause (StackBreakError, a TypeError, ...), keeps that
// cause reachable via Cause/errors.As.
type RuntimeError struct {
	PC    uint32
	Kind  Kind
	Msg   string
	cause error
}

func (e *RuntimeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("hcb: %s at pc=%d: %s: %v", e.Kind, e.PC, e.Msg, e.cause)
	}
	return fmt.Sprintf("hcb: %s at pc=%d: %s", e.Kind, e.PC, e.Msg)
}

// Unwrap exposes the inner cause to errors.Is/errors.As.
func (e *RuntimeError) Unwrap() error { return e.cause }

// Cause exposes the inner cause via github.com/pkg/errors' convention.
func (e *RuntimeError) Cause() error { return e.cause }

// NewRuntimeError builds a RuntimeError with no wrapped cause.
func NewRuntimeError(pc uint32, kind Kind, format string, args ...any) *RuntimeError {
	return &RuntimeError{PC: pc, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap annotates an arbitrary error (a StackBreakError, a plain Go error
// from a syscall, or anything else raised inside an opcode handler) with
// the PC at which it surfaced, producing the RuntimeError the VM's public
// API promises.
func Wrap(pc uint32, kind Kind, cause error) *RuntimeError {
	return &RuntimeError{PC: pc, Kind: kind, Msg: cause.Error(), cause: errors.WithStack(cause)}
}
