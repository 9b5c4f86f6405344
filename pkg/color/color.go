// Package color provides the styling used by the disassembler listing
// (pkg/disasm) and the CLI's own diagnostics. Where the teacher's original
// pkg/color hand-rolled ANSI escape sequences, this version detects the
// terminal's actual color profile via github.com/muesli/termenv — the same
// library internal/logger already hands to charmbracelet/log — and renders
// through github.com/charmbracelet/lipgloss so disassembly output degrades
// gracefully on a dumb terminal or when NO_COLOR is set, instead of always
// emitting raw escapes.
package color

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	profile      = termenv.EnvColorProfile()
	colorEnabled = profile != termenv.Ascii
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		colorEnabled = false
	}
}

// EnableColor overrides profile detection, letting the CLI's -n flag force
// color off regardless of what the terminal advertises.
func EnableColor(enable bool) {
	colorEnabled = enable
}

// IsColorEnabled reports whether styling is currently applied.
func IsColorEnabled() bool {
	return colorEnabled
}

func style(s lipgloss.Style) lipgloss.Style {
	if !colorEnabled {
		return lipgloss.NewStyle()
	}
	return s
}

var (
	addressStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	mnemonicStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	operandStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	stringStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// Address renders a disassembly line's byte offset.
func Address(text string) string {
	return style(addressStyle).Render(text)
}

// Mnemonic renders an opcode's mnemonic name.
func Mnemonic(text string) string {
	return style(mnemonicStyle).Render(text)
}

// Operand renders a decoded operand (an address, an index, a literal).
func Operand(text string) string {
	return style(operandStyle).Render(text)
}

// StringLiteral renders a decoded string operand, quotes included.
func StringLiteral(text string) string {
	return style(stringStyle).Render(text)
}

// Error prefixes message with a bold red "Error:".
func Error(message string) string {
	return style(errorStyle).Render("Error: ") + message
}

// Warning prefixes message with a yellow "Warning:", used when the
// disassembler tolerates an unknown opcode rather than failing the listing.
func Warning(message string) string {
	return style(warnStyle).Render("Warning: ") + message
}
