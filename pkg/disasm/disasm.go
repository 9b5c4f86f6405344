// Package disasm renders a full instruction listing for the CLI's -d flag
// (SPEC_FULL.md §C), built on top of pkg/decoder.DecodeAll, which walks the
// code region ahead of time rather than following the program counter. The
// VM dispatcher decodes operands inline and does not share this path.
package disasm

import (
	"fmt"
	"io"

	"github.com/tsukikage/hcbvm/pkg/color"
	"github.com/tsukikage/hcbvm/pkg/decoder"
	"github.com/tsukikage/hcbvm/pkg/metadata"
	"github.com/tsukikage/hcbvm/pkg/opcode"
	"github.com/tsukikage/hcbvm/pkg/reader"
)

// Listing decodes the entire code region and writes one colorized line per
// instruction to w: address, mnemonic, operand. An opcode outside the known
// table is listed as "???" rather than aborting the whole listing, per
// spec.md §4.3's "disassembler must tolerate unknown opcodes."
func Listing(w io.Writer, r *reader.Reader, meta *metadata.Metadata) error {
	instrs, err := decoder.DecodeAll(r, meta.CodeRegionEnd())
	if err != nil {
		return err
	}
	for _, in := range instrs {
		fmt.Fprintln(w, formatLine(in))
	}
	return nil
}

func formatLine(in decoder.Instruction) string {
	addr := color.Address(fmt.Sprintf("%08x:", in.Address))
	if !in.Known {
		return fmt.Sprintf("%s  %s", addr, color.Warning(fmt.Sprintf("??? (%#02x)", byte(in.Op))))
	}

	info, _ := opcode.Lookup(in.Op)
	mnemonic := color.Mnemonic(info.Name)
	operand := formatOperand(in.Operand)
	if operand == "" {
		return fmt.Sprintf("%s  %s", addr, mnemonic)
	}
	return fmt.Sprintf("%s  %s %s", addr, mnemonic, operand)
}

func formatOperand(operand any) string {
	switch v := operand.(type) {
	case nil:
		return ""
	case decoder.InitStackOperand:
		return color.Operand(fmt.Sprintf("%d, %d", v.ArgCount, v.LocalCount))
	case string:
		return color.StringLiteral(fmt.Sprintf("%q", v))
	default:
		return color.Operand(fmt.Sprintf("%v", v))
	}
}
