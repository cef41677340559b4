package ui

import (
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Color definitions for consistent styling across the UI.
var (
	colorHeader = color.New(color.Bold)

	// Times and ids
	colorTime  = color.New(color.FgCyan)
	colorMuted = color.New(color.FgWhite, color.Faint)

	// Appointment that is running now
	colorOngoing = color.New(color.FgYellow, color.Bold)

	colorSuccess = color.New(color.FgGreen)
	colorError   = color.New(color.FgRed, color.Bold)
)

// termWidth returns the terminal width, or a default if detection fails.
func termWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// DisableColor disables all color output.
func DisableColor() {
	color.NoColor = true
}

// EnableColor enables color output (if terminal supports it).
func EnableColor() {
	color.NoColor = false
}

func formatHeader(s string) string {
	return colorHeader.Sprint(s)
}

func formatTime(s string) string {
	return colorTime.Sprint(s)
}

func formatMuted(s string) string {
	return colorMuted.Sprint(s)
}

func formatOngoing(s string) string {
	return colorOngoing.Sprint(s)
}

func formatSuccess(s string) string {
	return colorSuccess.Sprint(s)
}

func formatError(s string) string {
	return colorError.Sprint(s)
}
