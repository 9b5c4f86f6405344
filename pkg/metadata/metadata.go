// Package metadata parses the HCB header block into an immutable
// descriptor, per spec.md §4.2.
package metadata

import (
	"github.com/tsukikage/hcbvm/pkg/reader"
)

// Syscall is one entry of the script's declared syscall table: a name and
// the argument count the compiler baked in at the call site.
type Syscall struct {
	Name     string
	ArgCount uint8
}

// Metadata is the script's immutable header, parsed once per ScriptContext.
type Metadata struct {
	MetadataOffset      uint32
	EntryPoint           uint32
	GlobalCount          uint16
	VolatileGlobalCount  uint16
	ResolutionMode       uint16
	GameTitle            string
	Syscalls             []Syscall
}

// CodeRegionEnd returns the exclusive end of the code region, i.e.
// MetadataOffset — the code region is defined as [4, MetadataOffset).
func (m *Metadata) CodeRegionEnd() uint32 { return m.MetadataOffset }

// Parse reads the metadata block from r. r must not have been positioned
// yet; Parse reads the u32 metadata-offset field at offset 0, then seeks to
// it and reads the rest of the header in the order given by spec.md §4.2/§6.
func Parse(r *reader.Reader) (*Metadata, error) {
	r.SeekTo(0)
	metadataOffset, err := r.ReadU32()
	if err != nil {
		return nil, err
	}

	r.SeekTo(int(metadataOffset))

	entryPoint, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	globalCount, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	volatileGlobalCount, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	resolutionMode, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	gameTitle, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	syscallCount, err := r.ReadU8()
	if err != nil {
		return nil, err
	}

	syscalls := make([]Syscall, 0, syscallCount)
	for i := 0; i < int(syscallCount); i++ {
		argCount, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		syscalls = append(syscalls, Syscall{Name: name, ArgCount: argCount})
	}

	return &Metadata{
		MetadataOffset:      metadataOffset,
		EntryPoint:          entryPoint,
		GlobalCount:         globalCount,
		VolatileGlobalCount: volatileGlobalCount,
		ResolutionMode:      resolutionMode,
		GameTitle:           gameTitle,
		Syscalls:            syscalls,
	}, nil
}
