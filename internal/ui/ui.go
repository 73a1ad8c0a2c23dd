// Package ui renders user-facing messages for the earshot commands:
// colored status tags and stderr notices, separate from the structured
// logging in internal/log.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

var writer io.Writer = os.Stderr

// SetWriter overrides the output writer (for testing).
func SetWriter(w io.Writer) {
	writer = w
}

var colorEnabled = detectColor(os.Stderr)

func detectColor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetColorEnabled overrides color detection (for testing).
func SetColorEnabled(enabled bool) {
	colorEnabled = enabled
}

func ansi(code, s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// Green returns s wrapped in green ANSI codes.
func Green(s string) string { return ansi("32", s) }

// Red returns s wrapped in red ANSI codes.
func Red(s string) string { return ansi("31", s) }

// Yellow returns s wrapped in yellow ANSI codes.
func Yellow(s string) string { return ansi("33", s) }

// Dim returns s wrapped in dim ANSI codes.
func Dim(s string) string { return ansi("2", s) }

// OKTag returns a green "✓" for success indicators.
func OKTag() string { return Green("✓") }

// FailTag returns a red "✗" for failure indicators.
func FailTag() string { return Red("✗") }

// Info prints a user-facing message with no prefix.
func Info(msg string) {
	fmt.Fprintf(writer, "%s\n", msg)
}

// Infof prints a formatted user-facing message with no prefix.
func Infof(format string, args ...any) {
	fmt.Fprintf(writer, format+"\n", args...)
}

// Warnf prints a formatted user-facing warning.
func Warnf(format string, args ...any) {
	fmt.Fprintf(writer, "%s %s\n", ansi("33", "Warning:"), fmt.Sprintf(format, args...))
}

// Errorf prints a formatted user-facing error.
func Errorf(format string, args ...any) {
	fmt.Fprintf(writer, "%s %s\n", ansi("31", "Error:"), fmt.Sprintf(format, args...))
}
