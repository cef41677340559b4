package ui

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/dateutil"
)

func (a *App) listCmd() *cobra.Command {
	var (
		from     string
		to       string
		days     int
		customer string
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments in a date range",
		Long: `List the appointments you can see within a date range.

Admins see every user's appointments unless they act as someone else.
Without flags, lists the next 7 days starting today.`,
		Example: `  rendezvous list
  rendezvous list --from=2025-01-15 --to=2025-01-20
  rendezvous list --customer=Acme --days=30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := a.prepare(ctx)
			if err != nil {
				return err
			}

			loc := a.svc.Location()
			start, err := dateutil.ParseDate(from, loc)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			end := start.AddDate(0, 0, days)
			if to != "" {
				last, err := dateutil.ParseDate(to, loc)
				if err != nil {
					return fmt.Errorf("--to: %w", err)
				}
				end = last.AddDate(0, 0, 1)
			}
			if !end.After(start) {
				return fmt.Errorf("--to must not be before --from")
			}

			f := appointment.Filter{StartAfter: start, EndBefore: end.Add(-time.Nanosecond)}
			if customer != "" {
				if f.CustomerID, err = a.customerID(ctx, customer); err != nil {
					return err
				}
			}

			appts, err := a.svc.List(ctx, sess, f)
			if err != nil {
				return displayError{err}
			}
			if len(appts) == 0 {
				fmt.Fprintln(a.out, "No appointments found in the specified date range.")
				return nil
			}

			n := names{ctx, a.dir}
			if verbose {
				for i, appt := range appts {
					if i > 0 {
						fmt.Fprintln(a.out)
					}
					printDetail(a.out, appt, n)
				}
				return nil
			}
			printAppointments(a.out, appts, n, time.Now())
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First date (YYYY-MM-DD, defaults to today)")
	cmd.Flags().StringVar(&to, "to", "", "Last date, inclusive (YYYY-MM-DD)")
	cmd.Flags().IntVar(&days, "days", 7, "Number of days when --to is not given")
	cmd.Flags().StringVar(&customer, "customer", "", "Only this customer (id or name)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show every field")
	return cmd
}

func (a *App) monthCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "month",
		Short: "Print the month grid with appointment counts",
		Long: `Print a Sunday-first month grid. Each day shows how many of your
appointments start on it.`,
		Example: `  rendezvous month
  rendezvous month --date=2025-02-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := a.prepare(ctx)
			if err != nil {
				return err
			}
			day, err := dateutil.ParseDate(date, a.svc.Location())
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}

			m, err := a.svc.Agenda(ctx, sess, day)
			if err != nil {
				return displayError{err}
			}
			printMonth(a.out, m, time.Now().In(a.svc.Location()))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Any date in the month (YYYY-MM-DD, defaults to today)")
	return cmd
}
