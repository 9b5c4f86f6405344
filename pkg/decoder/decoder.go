// Package decoder implements the HCB instruction decoder (spec.md §4.3): a
// streaming decode over the code region that pairs each opcode with its
// typed operand. DecodeOne decodes a single instruction and DecodeAll walks
// the whole code region for the disassembler's listing. The VM's
// fetch-decode-execute loop (pkg/vm) does not use this package: it reads the
// opcode byte itself and each handler reads its own inline operands.
package decoder

import (
	"fmt"

	"github.com/tsukikage/hcbvm/pkg/hcberr"
	"github.com/tsukikage/hcbvm/pkg/opcode"
	"github.com/tsukikage/hcbvm/pkg/reader"
)

// Instruction is one decoded opcode plus its typed operand, tagged with the
// address its opcode byte was read from.
type Instruction struct {
	Address uint32
	Op      opcode.Op
	Known   bool
	Operand any
}

// InitStackOperand is the operand of InitStack: the callee's declared
// argument and local counts.
type InitStackOperand struct {
	ArgCount   uint8
	LocalCount uint8
}

// String renders an instruction as a single disassembly line's worth of
// mnemonic + operand, without the address prefix (callers that want the
// address prepend it themselves, since the CLI listing colorizes it
// separately).
func (in Instruction) String() string {
	if !in.Known {
		return fmt.Sprintf("??? (%#02x)", byte(in.Op))
	}
	info, _ := opcode.Lookup(in.Op)
	if in.Operand == nil {
		return info.Name
	}
	switch operand := in.Operand.(type) {
	case InitStackOperand:
		return fmt.Sprintf("%s %d, %d", info.Name, operand.ArgCount, operand.LocalCount)
	case string:
		return fmt.Sprintf("%s %q", info.Name, operand)
	default:
		return fmt.Sprintf("%s %v", info.Name, operand)
	}
}

// DecodeOne decodes the single instruction at r's current position and
// advances r past it. An opcode byte outside the known table yields
// Instruction{Known: false, Operand: nil} per spec.md §4.3 — the
// disassembler must tolerate unknown opcodes; it is the VM dispatcher's
// job (pkg/vm) to reject them once decoded.
func DecodeOne(r *reader.Reader) (Instruction, error) {
	address := uint32(r.Pos())

	b, err := r.ReadU8()
	if err != nil {
		return Instruction{}, err
	}
	op := opcode.Op(b)

	info, known := opcode.Lookup(op)
	if !known {
		return Instruction{Address: address, Op: op, Known: false}, nil
	}

	operand, err := readOperand(r, info.Operand)
	if err != nil {
		return Instruction{}, err
	}

	return Instruction{Address: address, Op: op, Known: true, Operand: operand}, nil
}

func readOperand(r *reader.Reader, shape opcode.OperandShape) (any, error) {
	switch shape {
	case opcode.OperandNone:
		return nil, nil
	case opcode.OperandInitStack:
		argc, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		localc, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		return InitStackOperand{ArgCount: argc, LocalCount: localc}, nil
	case opcode.OperandAddr:
		return r.ReadU32()
	case opcode.OperandSyscallID, opcode.OperandGlobalID:
		return r.ReadU16()
	case opcode.OperandS8, opcode.OperandLocalID:
		return r.ReadS8()
	case opcode.OperandS16:
		return r.ReadS16()
	case opcode.OperandS32:
		return r.ReadS32()
	case opcode.OperandF32:
		return r.ReadF32()
	case opcode.OperandString:
		return r.ReadString()
	default:
		return nil, hcberr.NewDecodeError(hcberr.InvalidData, "unhandled operand shape %v", shape)
	}
}

// DecodeAll walks the entire code region [4, codeEnd), returning the full
// instruction listing used for ahead-of-time disassembly. r is repositioned
// to offset 4 before decoding begins.
func DecodeAll(r *reader.Reader, codeEnd uint32) ([]Instruction, error) {
	r.SeekTo(4)
	var out []Instruction
	for uint32(r.Pos()) < codeEnd {
		in, err := DecodeOne(r)
		if err != nil {
			return out, err
		}
		out = append(out, in)
	}
	return out, nil
}
