package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sfcompute/sfc/internal/adapters/outbound/marketplace"
	"github.com/sfcompute/sfc/internal/core/duration"
	"github.com/sfcompute/sfc/internal/core/money"
	"github.com/sfcompute/sfc/internal/core/pricing"
	"github.com/sfcompute/sfc/internal/core/window"
	"github.com/sfcompute/sfc/internal/telemetry"
)

func newQuoteCmd() *cobra.Command {
	var (
		instanceType string
		zone         string
		gpus         int64
		side         string
		start        string
		durationStr  string
	)

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a window without placing an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if side != marketplace.SideBuy && side != marketplace.SideSell {
				return fmt.Errorf("side must be buy or sell")
			}
			if gpus <= 0 || gpus%a.cfg.GPUsPerNode != 0 {
				return fmt.Errorf("gpus must be a positive multiple of %d", a.cfg.GPUsPerNode)
			}

			startAt, err := window.Parse(start)
			if err != nil {
				return err
			}
			secs, ok := duration.ParseSeconds(durationStr)
			if !ok || secs <= 0 {
				return fmt.Errorf("invalid duration %q", durationStr)
			}

			resolver := pricing.NewResolver(a.client)
			telemetry.Plainf("… fetching market quote (may take a while)")
			quote, err := resolver.Quote(cmd.Context(), pricing.Request{
				Side:            side,
				InstanceType:    instanceType,
				Zone:            zone,
				Quantity:        gpus / a.cfg.GPUsPerNode,
				StartAt:         startAt,
				DurationSeconds: secs,
			})
			if err != nil {
				return err
			}
			if quote == nil {
				telemetry.Plainf("no market data for this window — the book may be empty at this duration")
				return nil
			}

			rate, err := pricing.PerGPUHour(quote, a.cfg.GPUsPerNode, time.Now())
			if err != nil {
				return err
			}
			scale := a.cfg.CenticentsPerDollar
			telemetry.Plainf("%s %d × %s GPU, %s → %s",
				quote.Side, gpus, instanceType, quote.StartAt, quote.EndAt.Format(time.RFC3339))
			telemetry.Plainf("  total %s  (≈ $%s/GPU/hr)",
				money.FormatAmount(quote.Price, scale),
				rate.Div(decimalScale(scale)).StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVarP(&instanceType, "type", "t", "h100i", "instance type")
	cmd.Flags().StringVar(&zone, "zone", "", "restrict to a zone")
	cmd.Flags().Int64VarP(&gpus, "gpus", "n", 8, "number of GPUs")
	cmd.Flags().StringVar(&side, "side", marketplace.SideBuy, "buy or sell")
	cmd.Flags().StringVarP(&start, "start", "s", "NOW", "start time: NOW or RFC3339")
	cmd.Flags().StringVarP(&durationStr, "duration", "d", "1h", "reservation length")
	return cmd
}

func newBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show your account balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			bal, err := a.client.GetBalance(cmd.Context())
			if err != nil {
				return err
			}
			scale := a.cfg.CenticentsPerDollar
			telemetry.Plainf("available  %s", money.FormatAmount(bal.Available, scale))
			telemetry.Plainf("reserved   %s", money.FormatAmount(bal.Reserved, scale))
			return nil
		},
	}
}
