// Command billing is the operator front-end of the billing application. Each
// invocation opens the configured store, loads the application state, runs
// one command and exits.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/mmynk/meterbill/internal/app"
	"github.com/mmynk/meterbill/internal/backend"
	"github.com/mmynk/meterbill/internal/config"
	"github.com/mmynk/meterbill/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "billing",
		Usage:     "manage customers, meter readings and bills",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a config file (default: search billing.yaml in . and ./config)",
			},
		},
		Commands: []*cli.Command{
			customersCommand(),
			billsCommand(),
			balanceCommand(),
			settingsCommand(),
			exportCommand(),
			importCommand(),
		},
	}
}

// withState wraps a command action with the application lifecycle: load
// configuration, select the store, load state, run, close.
func withState(action func(c *cli.Context, state *app.State) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.LoadFile(c.String("config"))
		if err != nil {
			return err
		}
		logging.Setup(cfg.Log.Level)

		store, kind, err := backend.Open(c.Context, cfg, prometheus.NewRegistry())
		if err != nil {
			return err
		}

		state := app.New(store, cfg.Defaults.Settings())
		defer state.Close()

		if err := state.Load(c.Context); err != nil {
			slog.Warn("Working with possibly stale data", "backend", kind, "error", err)
		}

		return action(c, state)
	}
}
