package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/javiermolinar/rendezvous/internal/config"
	"github.com/javiermolinar/rendezvous/internal/tui/theme"
)

func (a *App) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "View or edit configuration",
		Long: `Interactive configuration management.

If no config file exists, creates one with default values.
Otherwise, displays current config and allows editing.

Example:
  rendezvous config`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.runConfigInteractive(os.Stdin)
		},
	}
}

func (a *App) runConfigInteractive(in io.Reader) error {
	configPath := a.cfgPath
	fmt.Fprintf(a.out, "Config file: %s\n\n", configPath)

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	_, fileErr := os.Stat(configPath)
	if os.IsNotExist(fileErr) {
		fmt.Fprintln(a.out, "No config file found. Creating with default values...")
		if err := cfg.SaveTo(configPath); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Fprintf(a.out, "Created %s\n\n", configPath)
	}

	printConfig(a.out, cfg)

	reader := bufio.NewReader(in)
	if !promptYesNo(a.out, reader, "\nWould you like to edit the configuration?") {
		return nil
	}

	s := &cfg.Schedule
	s.DisplayTimezone = promptValue(a.out, reader, "Display timezone (empty for host zone)", s.DisplayTimezone)
	s.BusinessTimezone = promptValue(a.out, reader, "Business timezone", s.BusinessTimezone)
	s.OpeningTime = promptValue(a.out, reader, "Opening time", s.OpeningTime)
	s.BusinessHours = promptInt(a.out, reader, "Business hours", s.BusinessHours)
	s.MinDurationSlots = promptInt(a.out, reader, "Minimum duration (5 minute slots)", s.MinDurationSlots)
	s.TestingMode = promptBool(a.out, reader, "Testing mode", s.TestingMode)
	cfg.Storage.Driver = promptValue(a.out, reader, "Storage driver (sqlite, postgres)", cfg.Storage.Driver)
	if cfg.Storage.Driver == "postgres" {
		cfg.Storage.PostgresURL = promptValue(a.out, reader, "PostgreSQL URL", cfg.Storage.PostgresURL)
	} else {
		cfg.Storage.DBPath = promptValue(a.out, reader, "Database path", cfg.Storage.DBPath)
	}
	cfg.UI.Theme = promptTheme(a.out, reader, cfg.UI.Theme)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.SaveTo(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Fprintln(a.out, "\nConfiguration saved!")
	return nil
}

func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Current configuration:")
	fmt.Fprintln(w, "──────────────────────")
	fmt.Fprintln(w, "[schedule]")
	display := cfg.Schedule.DisplayTimezone
	if display == "" {
		display = "(host zone)"
	}
	fmt.Fprintf(w, "  display_timezone   = %s\n", display)
	fmt.Fprintf(w, "  business_timezone  = %s\n", cfg.Schedule.BusinessTimezone)
	fmt.Fprintf(w, "  opening_time       = %s\n", cfg.Schedule.OpeningTime)
	fmt.Fprintf(w, "  business_hours     = %d\n", cfg.Schedule.BusinessHours)
	fmt.Fprintf(w, "  min_duration_slots = %d\n", cfg.Schedule.MinDurationSlots)
	fmt.Fprintf(w, "  testing_mode       = %t\n", cfg.Schedule.TestingMode)
	fmt.Fprintln(w, "\n[storage]")
	fmt.Fprintf(w, "  driver             = %s\n", cfg.Storage.Driver)
	if cfg.Storage.Driver == "postgres" {
		fmt.Fprintf(w, "  postgres_url       = %s\n", cfg.Storage.PostgresURL)
	} else {
		fmt.Fprintf(w, "  db_path            = %s\n", cfg.Storage.DBPath)
	}
	fmt.Fprintln(w, "\n[watcher]")
	fmt.Fprintf(w, "  interval           = %s\n", cfg.Watcher.Interval)
	fmt.Fprintf(w, "  horizon            = %s\n", cfg.Watcher.Horizon)
	if cfg.Events.KafkaBrokers != "" {
		fmt.Fprintln(w, "\n[events]")
		fmt.Fprintf(w, "  kafka_brokers      = %s\n", cfg.Events.KafkaBrokers)
		fmt.Fprintf(w, "  kafka_topic        = %s\n", cfg.Events.KafkaTopic)
	}
	if cfg.Guard.RedisAddr != "" {
		fmt.Fprintln(w, "\n[guard]")
		fmt.Fprintf(w, "  redis_addr         = %s\n", cfg.Guard.RedisAddr)
		fmt.Fprintf(w, "  ttl                = %s\n", cfg.Guard.TTL)
	}
	fmt.Fprintln(w, "\n[ui]")
	fmt.Fprintf(w, "  theme              = %s\n", cfg.UI.Theme)
}

func promptYesNo(w io.Writer, reader *bufio.Reader, question string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", question)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(strings.ToLower(input))
	return input == "y" || input == "yes"
}

func promptValue(w io.Writer, reader *bufio.Reader, label, current string) string {
	if current == "" {
		fmt.Fprintf(w, "  %s: ", label)
	} else {
		fmt.Fprintf(w, "  %s [%s]: ", label, current)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return current
	}
	return input
}

func promptInt(w io.Writer, reader *bufio.Reader, label string, current int) int {
	for {
		value := promptValue(w, reader, label, strconv.Itoa(current))
		n, err := strconv.Atoi(value)
		if err == nil {
			return n
		}
		fmt.Fprintf(w, "  Invalid number %q\n", value)
	}
}

func promptBool(w io.Writer, reader *bufio.Reader, label string, current bool) bool {
	for {
		value := promptValue(w, reader, label+" (true/false)", strconv.FormatBool(current))
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
		fmt.Fprintf(w, "  Invalid value %q\n", value)
	}
}

func promptTheme(w io.Writer, reader *bufio.Reader, current string) string {
	options := strings.Join(theme.Available(), ", ")
	label := fmt.Sprintf("UI theme (%s)", options)
	for {
		value := strings.ToLower(promptValue(w, reader, label, current))
		if theme.IsAvailable(value) {
			return value
		}
		fmt.Fprintf(w, "  Invalid theme %q. Available: %s\n", value, options)
	}
}
