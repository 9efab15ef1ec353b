// Package log prints the installer's operator-facing progress lines.
// Output goes through color.Output so tests can capture it.
package log

import (
	"strings"

	"github.com/fatih/color"
)

var (
	titleColor  = color.New(color.FgCyan, color.Bold)
	stepColor   = color.New(color.FgCyan, color.Bold)
	infoColor   = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	errorColor  = color.New(color.FgRed, color.Bold)
	cmdColor    = color.New(color.FgWhite)
	detailColor = color.New(color.Faint)
)

// Verbose enables Command output.
var Verbose bool

// Title prints a title message.
func Title(format string, a ...any) {
	titleColor.Printf("==> "+format+"\n", a...)
}

// Step prints a major step in the installation process.
func Step(format string, a ...any) {
	stepColor.Printf("\n==> "+format+"\n", a...)
}

// Info prints an informational message.
func Info(format string, a ...any) {
	infoColor.Printf("  -> "+format+"\n", a...)
}

// Warn prints a warning message.
func Warn(format string, a ...any) {
	warnColor.Printf("  -> WARNING: "+format+"\n", a...)
}

// Error prints an error message.
func Error(format string, a ...any) {
	errorColor.Printf("ERROR: "+format+"\n", a...)
}

// Detail prints a secondary line, usually the cause under an Error.
func Detail(format string, a ...any) {
	detailColor.Printf("       "+format+"\n", a...)
}

// Command prints the command being executed.
func Command(name string, args ...string) {
	if !Verbose {
		return
	}
	cmdColor.Printf("  -> Running: %s %s\n", name, strings.Join(args, " "))
}
