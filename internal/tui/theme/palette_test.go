package theme

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestNewPalette_BusyShade(t *testing.T) {
	base := &Theme{
		Bg:          "#101010",
		BgHighlight: "#202020",
		BgSelection: "#303030",
		Fg:          "#ffffff",
		FgMuted:     "#aaaaaa",
		Accent:      "#ff0000",
		Today:       "#112233",
		Busy:        "#445566",
		Ongoing:     "#777777",
		Warning:     "#888888",
	}

	palette := NewPalette(base)

	if palette.BusyBg != lipgloss.Color(darkenColor(base.Busy)) {
		t.Fatalf("BusyBg = %q, want %q", palette.BusyBg, darkenColor(base.Busy))
	}
	if palette.TextOnBusy != lipgloss.Color(base.Fg) {
		t.Fatalf("TextOnBusy = %q, want %q", palette.TextOnBusy, base.Fg)
	}
}

func TestNewPalette_LightThemeLightensBusy(t *testing.T) {
	base := &Theme{
		Bg:          "#f5f5f5",
		BgHighlight: "#eeeeee",
		BgSelection: "#e0e0e0",
		Fg:          "#222222",
		FgMuted:     "#555555",
		Accent:      "#2f6feb",
		Today:       "#1d8a8a",
		Busy:        "#2f8f2f",
		Ongoing:     "#c97b00",
		Warning:     "#c2410c",
	}

	palette := NewPalette(base)
	if relativeLuminance(string(palette.BusyBg)) <= relativeLuminance(base.Busy) {
		t.Fatalf("BusyBg luminance = %f, want greater than Busy", relativeLuminance(string(palette.BusyBg)))
	}
	if palette.TextOnBusy != lipgloss.Color(base.Fg) {
		t.Fatalf("TextOnBusy = %q, want dark text %q", palette.TextOnBusy, base.Fg)
	}
}

func TestNewPalette_NilUsesMocha(t *testing.T) {
	palette := NewPalette(nil)
	if palette.Bg != lipgloss.Color("#1e1e2e") {
		t.Fatalf("Bg = %q, want mocha base", palette.Bg)
	}
}

func TestChooseTextColorPrefersContrast(t *testing.T) {
	bg := "#f0f0f0"
	lightText := "#ffffff"
	darkText := "#111111"

	if got := chooseTextColor(bg, lightText, darkText); got != darkText {
		t.Fatalf("chooseTextColor(%q, %q, %q) = %q, want %q", bg, lightText, darkText, got, darkText)
	}
}
