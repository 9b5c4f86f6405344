// Package reader implements the positioned binary cursor HCB decoding is
// built on: little-endian fixed-width reads plus a length-prefixed string
// reader, sharing one cursor across both the header parse and the
// instruction stream decode (spec.md §4.1).
package reader

import (
	"encoding/binary"
	"math"

	"golang.org/x/text/encoding"

	"github.com/tsukikage/hcbvm/pkg/hcberr"
)

// Reader is a binary cursor over an in-memory byte buffer, positioned
// relative to an anchor — the buffer's own start. All Reader offsets
// (Pos, SeekTo, Advance) are anchor-relative so nested structures (the
// header block and the code region) can share one cursor without either
// one needing to know the other's absolute file offset.
type Reader struct {
	buf    []byte
	pos    int
	strDec *encoding.Decoder
}

// New wraps buf for reading, decoding length-prefixed strings with enc.
func New(buf []byte, enc encoding.Encoding) *Reader {
	return &Reader{buf: buf, pos: 0, strDec: enc.NewDecoder()}
}

// Pos returns the current anchor-relative position.
func (r *Reader) Pos() int { return r.pos }

// Len returns the total number of bytes in the underlying buffer.
func (r *Reader) Len() int { return len(r.buf) }

// Advance moves the cursor forward by n bytes without reading them.
func (r *Reader) Advance(n int) { r.pos += n }

// SeekTo repositions the cursor to an absolute anchor-relative offset.
func (r *Reader) SeekTo(pos int) { r.pos = pos }

func (r *Reader) take(n int) ([]byte, error) {
	if r.pos < 0 || r.pos+n > len(r.buf) {
		return nil, hcberr.NewDecodeError(hcberr.EndOfStream, "need %d bytes at offset %d, have %d", n, r.pos, len(r.buf)-r.pos)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadU8 reads an unsigned 8-bit integer.
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadS8 reads a signed 8-bit integer.
func (r *Reader) ReadS8() (int8, error) {
	v, err := r.ReadU8()
	return int8(v), err
}

// ReadU16 reads a little-endian unsigned 16-bit integer.
func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadS16 reads a little-endian signed 16-bit integer.
func (r *Reader) ReadS16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

// ReadU32 reads a little-endian unsigned 32-bit integer.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadS32 reads a little-endian signed 32-bit integer.
func (r *Reader) ReadS32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadF32 reads a little-endian IEEE-754 32-bit float.
func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadString reads a one-byte length-prefixed string per spec.md §4.1:
// L==0 is invalid, L==1 is the empty string (one trailing byte consumed
// and discarded), L>1 reads L-1 payload bytes followed by one trailing
// byte, and the payload is decoded with the Reader's configured text
// encoding.
func (r *Reader) ReadString() (string, error) {
	l, err := r.ReadU8()
	if err != nil {
		return "", err
	}

	switch {
	case l == 0:
		return "", hcberr.NewDecodeError(hcberr.InvalidData, "string length prefix is 0")
	case l == 1:
		if _, err := r.take(1); err != nil {
			return "", err
		}
		return "", nil
	default:
		payload, err := r.take(int(l) - 1)
		if err != nil {
			return "", err
		}
		if _, err := r.take(1); err != nil {
			return "", err
		}
		decoded, err := r.strDec.Bytes(payload)
		if err != nil {
			return "", hcberr.NewDecodeError(hcberr.InvalidData, "string payload decode: %v", err)
		}
		return string(decoded), nil
	}
}
