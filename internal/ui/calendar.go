package ui

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/javiermolinar/rendezvous/internal/tui"
)

func (a *App) calendarCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "calendar",
		Aliases: []string{"cal"},
		Short:   "Open the interactive month calendar",
		Long: `Open the month calendar in the terminal.

Move between days with the arrow keys or hjkl, cancel or duplicate the
selected appointment, and keep an eye on the countdown to your next one
in the footer. Running "rendezvous" without a command opens it too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runCalendar(cmd.Context())
		},
	}
}

func (a *App) runCalendar(ctx context.Context) error {
	sess, err := a.prepare(ctx)
	if err != nil {
		return err
	}
	return tui.Run(ctx, tui.Options{
		Service:   a.svc,
		Session:   sess,
		Directory: a.dir,
		Theme:     a.config.UI.Theme,
		Interval:  a.config.WatchInterval(),
		Horizon:   a.config.WatchHorizon(),
		Rescan:    rescanInterval,
		Logger:    a.log.With().Str("component", "watcher").Logger(),
	})
}
