package ui

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/javiermolinar/rendezvous/internal/config"
	"github.com/javiermolinar/rendezvous/internal/watcher"
)

// rescanInterval is how often an idle watcher looks again for appointments
// booked by other processes.
const rescanInterval = time.Minute

func (a *App) watchCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Alert before your next appointment",
		Long: `Watch your appointments and alert once when one is about to start.

While an appointment is within the horizon (15 minutes by default) a
countdown to its start is shown, then a countdown to its end while it runs.
Changes to the config file are applied live, so testing mode and the
minimum duration can be toggled without a restart.

Under systemd (Type=notify) readiness is reported once watching starts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess, err := a.prepare(ctx)
			if err != nil {
				return err
			}

			live := !quiet && a.out == os.Stdout && term.IsTerminal(int(os.Stdout.Fd()))
			w := watcher.New(a.svc, sess,
				watcher.WithInterval(a.config.WatchInterval()),
				watcher.WithHorizon(a.config.WatchHorizon()),
				watcher.WithRescan(rescanInterval),
				watcher.WithLogger(a.log.With().Str("component", "watcher").Logger()),
				watcher.OnNotify(func(_ context.Context, u watcher.Upcoming) {
					a.printAlert(u)
				}),
				watcher.OnTick(func(u watcher.Upcoming, ok bool) {
					if live {
						a.printCountdown(u, ok)
					}
				}),
			)
			unsubscribe := a.bus.Subscribe(w.Handle)
			defer unsubscribe()

			go func() {
				err := config.Watch(ctx, a.cfgPath, a.applyReload,
					config.WithWatchLogger(a.log.With().Str("component", "config").Logger()))
				if err != nil {
					a.log.Warn().Err(err).Msg("config hot reload disabled")
				}
			}()

			w.Start()
			if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
				a.log.Debug().Err(err).Msg("sd_notify failed")
			}
			fmt.Fprintf(a.out, "Watching appointments for %s. Press Ctrl+C to stop.\n", sess.Actor())

			<-ctx.Done()
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
			w.Stop()
			fmt.Fprintln(a.out)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print alerts, no live countdown")
	return cmd
}

// applyReload pushes the live-tunable settings of a reloaded config into
// the running policy.
func (a *App) applyReload(cfg *config.Config) {
	pol := a.svc.Policy()
	pol.SetTestingMode(cfg.Schedule.TestingMode)
	if err := pol.SetMinDurationSlots(cfg.Schedule.MinDurationSlots); err != nil {
		a.log.Warn().Err(err).Msg("ignoring min duration from reloaded config")
	}
	a.log.Info().
		Bool("testing_mode", pol.TestingMode()).
		Int("min_duration_slots", pol.MinDurationSlots()).
		Msg("schedule settings reloaded")
}

func (a *App) printAlert(u watcher.Upcoming) {
	verb := "starts in"
	if u.Ongoing {
		verb = "is running, ends in"
	}
	fmt.Fprintf(a.out, "\r\033[K\a%s %s %s %s (%s)\n",
		formatOngoing("Upcoming:"),
		u.Appointment.Title,
		verb,
		u.Countdown(),
		FormatSpan(u.Appointment.Start, u.Appointment.End))
}

func (a *App) printCountdown(u watcher.Upcoming, ok bool) {
	if !ok {
		fmt.Fprint(a.out, "\r\033[K")
		return
	}
	label := "Next"
	if u.Ongoing {
		label = "Now"
	}
	fmt.Fprintf(a.out, "\r\033[K  %s %s  %s", formatMuted(label+":"), u.Appointment.Title, formatTime(u.Countdown()))
}

func (a *App) testAlarmCmd() *cobra.Command {
	var (
		customer string
		contact  string
		in       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "test-alarm",
		Short: "Book a short appointment to try the alert (testing mode only)",
		Long: `Book a minimum-length appointment starting shortly, to check that
"rendezvous watch" alerts as expected. Requires testing_mode = true.`,
		Example: `  rendezvous test-alarm --customer=1 --contact=1 --in=2m`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := a.prepare(ctx)
			if err != nil {
				return err
			}
			customerID, err := a.customerID(ctx, customer)
			if err != nil {
				return err
			}
			contactID, err := a.contactID(ctx, contact)
			if err != nil {
				return err
			}

			created, err := a.svc.CreateTestAppointment(ctx, sess, customerID, contactID, in)
			if err != nil {
				return displayError{err}
			}
			fmt.Fprintf(a.out, "%s ", formatSuccess("Booked"))
			printDetail(a.out, created, names{ctx, a.dir})
			return nil
		},
	}

	cmd.Flags().StringVar(&customer, "customer", "", "Customer id or name (required)")
	cmd.Flags().StringVar(&contact, "contact", "", "Contact id or name (required)")
	cmd.Flags().DurationVar(&in, "in", time.Minute, "How far from now the appointment starts")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("contact")
	return cmd
}
