package main

import (
	"fmt"
	"os"

	_ "time/tzdata"

	"github.com/javiermolinar/rendezvous/internal/config"
	"github.com/javiermolinar/rendezvous/internal/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	app := ui.NewApp(cfg, config.DefaultConfigPath())
	defer func() { _ = app.Close() }()
	return app.Execute()
}
