// Package textenc resolves the text encoding named on the HCB driver's
// command line to a golang.org/x/text/encoding.Encoding, so the Reader never
// hardcodes a codec. Compiled visual-novel bytecode overwhelmingly ships
// Shift-JIS string tables, hence the default, but the format itself is
// encoding-agnostic — the encoding choice is an external concern of the
// driver, per spec.md §6.
package textenc

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

// Default is the encoding name used when the driver is given none.
const Default = "shift_jis"

var byName = map[string]encoding.Encoding{
	"shift_jis": japanese.ShiftJIS,
	"sjis":      japanese.ShiftJIS,
	"euc-jp":    japanese.EUCJP,
	"eucjp":     japanese.EUCJP,
	"utf-8":     unicode.UTF8,
	"utf8":      unicode.UTF8,
}

// Lookup resolves a case-sensitive encoding name to its decoder/encoder
// pair. An unrecognized name is an error the driver surfaces to the user;
// it is not an HCB decode error.
func Lookup(name string) (encoding.Encoding, error) {
	enc, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("textenc: unknown encoding %q", name)
	}
	return enc, nil
}

// Names returns the supported encoding names, for help text.
func Names() []string {
	return []string{"shift_jis", "euc-jp", "utf-8"}
}
