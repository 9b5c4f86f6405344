package metadata_test

import (
	"encoding/binary"
	"testing"

	"golang.org/x/text/encoding/unicode"

	"github.com/tsukikage/hcbvm/pkg/metadata"
	"github.com/tsukikage/hcbvm/pkg/reader"
)

func u32le(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func u16le(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func strField(s string) []byte {
	out := []byte{byte(len(s) + 1)}
	out = append(out, s...)
	return append(out, 0x00)
}

func buildScript(t *testing.T) []byte {
	t.Helper()

	code := []byte{0xAA, 0xBB, 0xCC} // arbitrary code region bytes
	metadataOffset := uint32(4 + len(code))

	header := []byte{}
	header = append(header, u32le(42)...)  // entry_point
	header = append(header, u16le(2)...)   // global_count
	header = append(header, u16le(1)...)   // volatile_global_count
	header = append(header, u16le(0)...)   // resolution_mode
	header = append(header, strField("My Script")...)
	header = append(header, 0x02) // syscall_count

	header = append(header, 0x01) // arg_count
	header = append(header, strField("print")...)
	header = append(header, 0x02) // arg_count
	header = append(header, strField("wait")...)

	buf := append([]byte{}, u32le(metadataOffset)...)
	buf = append(buf, code...)
	buf = append(buf, header...)
	return buf
}

func TestParse(t *testing.T) {
	buf := buildScript(t)
	r := reader.New(buf, unicode.UTF8)

	m, err := metadata.Parse(r)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if m.EntryPoint != 42 {
		t.Errorf("EntryPoint = %d, want 42", m.EntryPoint)
	}
	if m.GlobalCount != 2 {
		t.Errorf("GlobalCount = %d, want 2", m.GlobalCount)
	}
	if m.VolatileGlobalCount != 1 {
		t.Errorf("VolatileGlobalCount = %d, want 1", m.VolatileGlobalCount)
	}
	if m.GameTitle != "My Script" {
		t.Errorf("GameTitle = %q, want %q", m.GameTitle, "My Script")
	}
	if len(m.Syscalls) != 2 {
		t.Fatalf("len(Syscalls) = %d, want 2", len(m.Syscalls))
	}
	if m.Syscalls[0].Name != "print" || m.Syscalls[0].ArgCount != 1 {
		t.Errorf("Syscalls[0] = %+v, want {print 1}", m.Syscalls[0])
	}
	if m.Syscalls[1].Name != "wait" || m.Syscalls[1].ArgCount != 2 {
		t.Errorf("Syscalls[1] = %+v, want {wait 2}", m.Syscalls[1])
	}
	if m.CodeRegionEnd() != 7 {
		t.Errorf("CodeRegionEnd() = %d, want 7", m.CodeRegionEnd())
	}
}

func TestParseShortHeaderIsEndOfStream(t *testing.T) {
	buf := u32le(4) // metadata offset points past EOF with nothing after it
	r := reader.New(buf, unicode.UTF8)

	if _, err := metadata.Parse(r); err == nil {
		t.Fatal("expected EndOfStream error from truncated header")
	}
}
