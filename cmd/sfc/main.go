package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sfcompute/sfc/internal/adapters/outbound/marketplace"
	"github.com/sfcompute/sfc/internal/config"
	"github.com/sfcompute/sfc/internal/events"
	"github.com/sfcompute/sfc/internal/telemetry"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:           "sfc",
		Short:         "Buy and sell GPU compute reservations on the marketplace",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()
			level := telemetry.ParseLogLevel(cfg.LogLevel)
			if verbose {
				level = slog.LevelDebug
			}
			telemetry.Init(level)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging and a counter summary on exit")

	root.AddCommand(
		newBuyCmd(),
		newSellCmd(),
		newQuoteCmd(),
		newBalanceCmd(),
		newOrdersCmd(),
	)

	err := root.Execute()
	if verbose {
		telemetry.Infof("session: %s", telemetry.Summary())
	}
	if err != nil {
		telemetry.Errorf("%v", err)
		os.Exit(1)
	}
}

// app bundles the per-invocation collaborators.
type app struct {
	cfg    *config.Config
	client *marketplace.Client
	bus    *events.Bus
}

func newApp() (*app, error) {
	cfg := config.Load()
	if !cfg.HasToken() {
		// precondition failure, not an engine error
		return nil, fmt.Errorf("no auth token found: set SFC_TOKEN or put one in ~/.sfcompute/config.yaml")
	}

	bus := events.NewBus()
	bus.Subscribe(events.EventPlacementState, func(e events.Event) error {
		if tr, ok := e.Payload.(events.PlacementTransition); ok {
			telemetry.Plainf("… %s", tr.Message)
		}
		return nil
	})

	return &app{
		cfg:    cfg,
		client: marketplace.NewClient(cfg.APIURL, cfg.Token),
		bus:    bus,
	}, nil
}
