package ui

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *App) cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [appointment-id]",
		Short: "Cancel an appointment",
		Long: `Cancel an appointment by its ID.

Example:
  rendezvous cancel 42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			sess, err := a.prepare(ctx)
			if err != nil {
				return err
			}

			existing, err := a.svc.Get(ctx, id)
			if err != nil {
				return displayError{err}
			}
			if err := a.svc.Cancel(ctx, sess, existing); err != nil {
				return displayError{err}
			}

			fmt.Fprintf(a.out, "Cancelled appointment #%d: %s\n", id, existing.Title)
			return nil
		},
	}
}
