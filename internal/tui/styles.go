package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/javiermolinar/rendezvous/internal/tui/theme"
)

// Styles holds every lipgloss style the views use.
type Styles struct {
	Title     lipgloss.Style
	User      lipgloss.Style
	DayHeader lipgloss.Style

	Day         lipgloss.Style
	DayOut      lipgloss.Style
	DayBusy     lipgloss.Style
	DaySelected lipgloss.Style
	DayNumber   lipgloss.Style
	Today       lipgloss.Style

	Entry         lipgloss.Style
	EntrySelected lipgloss.Style
	EntryTime     lipgloss.Style
	Muted         lipgloss.Style

	Footer   lipgloss.Style
	Ongoing  lipgloss.Style
	Upcoming lipgloss.Style
	Status   lipgloss.Style
	Error    lipgloss.Style
}

// NewStyles builds styles from a palette.
func NewStyles(p *theme.Palette) *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.TextOnAccent).
			Background(p.Accent).
			Padding(0, 1),
		User:      lipgloss.NewStyle().Foreground(p.FgMuted),
		DayHeader: lipgloss.NewStyle().Bold(true).Foreground(p.Accent).Align(lipgloss.Center),

		Day:     lipgloss.NewStyle().Foreground(p.Fg),
		DayOut:  lipgloss.NewStyle().Foreground(p.FgMuted),
		DayBusy: lipgloss.NewStyle().Foreground(p.TextOnBusy).Background(p.BusyBg),
		DaySelected: lipgloss.NewStyle().
			Foreground(p.TextOnSelection).
			Background(p.BgSelection).
			Bold(true),
		DayNumber: lipgloss.NewStyle().Bold(true),
		Today:     lipgloss.NewStyle().Bold(true).Foreground(p.Today).Underline(true),

		Entry:         lipgloss.NewStyle().Foreground(p.Fg),
		EntrySelected: lipgloss.NewStyle().Foreground(p.TextOnAccent).Background(p.Accent),
		EntryTime:     lipgloss.NewStyle().Foreground(p.Busy),
		Muted:         lipgloss.NewStyle().Foreground(p.FgMuted),

		Footer:   lipgloss.NewStyle().Background(p.BgHighlight).Foreground(p.Fg).Padding(0, 1),
		Ongoing:  lipgloss.NewStyle().Bold(true).Foreground(p.Ongoing),
		Upcoming: lipgloss.NewStyle().Bold(true).Foreground(p.Warning),
		Status:   lipgloss.NewStyle().Foreground(p.Busy),
		Error:    lipgloss.NewStyle().Bold(true).Foreground(p.Warning),
	}
}
