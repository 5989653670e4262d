package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/sfcompute/sfc/internal/adapters/outbound/marketplace"
	"github.com/sfcompute/sfc/internal/core/duration"
	"github.com/sfcompute/sfc/internal/core/money"
	"github.com/sfcompute/sfc/internal/core/placement"
	"github.com/sfcompute/sfc/internal/core/pricing"
	"github.com/sfcompute/sfc/internal/core/tracking"
	"github.com/sfcompute/sfc/internal/core/window"
	"github.com/sfcompute/sfc/internal/telemetry"
)

type orderFlags struct {
	instanceType string
	contractID   string
	zone         string
	colocate     string
	gpus         int64
	price        string
	start        string
	durationStr  string
	end          string
	standing     bool
	yes          bool
}

func addOrderFlags(cmd *cobra.Command, f *orderFlags) {
	cmd.Flags().StringVarP(&f.instanceType, "type", "t", "h100i", "instance type")
	cmd.Flags().StringVar(&f.contractID, "contract", "", "sell out of an existing contract")
	cmd.Flags().StringVar(&f.zone, "zone", "", "restrict to a zone")
	cmd.Flags().StringVar(&f.colocate, "colocate", "", "colocate with an existing contract")
	cmd.Flags().Int64VarP(&f.gpus, "gpus", "n", 8, "number of GPUs (must be a whole number of nodes)")
	cmd.Flags().StringVarP(&f.price, "price", "p", "", "limit price in $/GPU/hr (omit to quote the market)")
	cmd.Flags().StringVarP(&f.start, "start", "s", "NOW", "start time: NOW or RFC3339")
	// bare numbers here are seconds (duration.ParseSeconds)
	cmd.Flags().StringVarP(&f.durationStr, "duration", "d", "1h", "reservation length, e.g. 2h, 1d, 1w")
	cmd.Flags().StringVarP(&f.end, "end", "e", "", "explicit end time (RFC3339), overrides --duration")
	cmd.Flags().BoolVar(&f.standing, "standing", false, "leave the order standing on the book")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "skip the confirmation prompt")
}

func newBuyCmd() *cobra.Command {
	var f orderFlags
	cmd := &cobra.Command{
		Use:   "buy",
		Short: "Buy a fixed-duration compute reservation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrder(cmd.Context(), marketplace.SideBuy, f)
		},
	}
	addOrderFlags(cmd, &f)
	return cmd
}

func newSellCmd() *cobra.Command {
	var f orderFlags
	cmd := &cobra.Command{
		Use:   "sell",
		Short: "Sell compute out of a contract you hold",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrder(cmd.Context(), marketplace.SideSell, f)
		},
	}
	addOrderFlags(cmd, &f)
	return cmd
}

func runOrder(ctx context.Context, side string, f orderFlags) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	intent, err := buildIntent(a, side, f)
	if err != nil {
		return err
	}

	ctrl := placement.NewController(placement.Config{
		GPUsPerNode:  a.cfg.GPUsPerNode,
		Scale:        a.cfg.CenticentsPerDollar,
		PollInterval: a.cfg.PollInterval,
		PollAttempts: a.cfg.PollAttempts,
	}, a.client, pricing.NewResolver(a.client), promptConfirm(a), a.bus)

	outcome, err := ctrl.Run(ctx, intent)
	if err != nil {
		if errors.Is(err, placement.ErrNoQuote) {
			return fmt.Errorf("%w — try a wider window or pass --price", err)
		}
		return err
	}

	recordAttempt(a, intent, outcome)
	return renderOutcome(a, outcome)
}

func buildIntent(a *app, side string, f orderFlags) (placement.Intent, error) {
	intent := placement.Intent{
		Side:         side,
		InstanceType: f.instanceType,
		ContractID:   f.contractID,
		Zone:         f.zone,
		ColocateWith: f.colocate,
		GPUs:         f.gpus,
		Standing:     f.standing,
		AutoConfirm:  f.yes,
	}
	if f.contractID != "" {
		intent.InstanceType = ""
	}

	start, err := window.Parse(f.start)
	if err != nil {
		return intent, err
	}
	intent.Start = start

	if f.end != "" {
		end, err := time.Parse(time.RFC3339, f.end)
		if err != nil {
			return intent, fmt.Errorf("invalid end time %q: %w", f.end, err)
		}
		intent.EndAt = &end
	} else {
		secs, ok := duration.ParseSeconds(f.durationStr)
		if !ok {
			return intent, fmt.Errorf("invalid duration %q", f.durationStr)
		}
		intent.DurationSeconds = secs
	}

	if f.price != "" {
		cc, ok := money.ParsePrice(f.price, a.cfg.CenticentsPerDollar)
		if !ok {
			return intent, fmt.Errorf("invalid price %q", f.price)
		}
		intent.LimitPrice = &cc
	}

	return intent, nil
}

// promptConfirm renders the priced order and reads a y/N answer. A "no"
// is a local cancel; nothing has touched the network order endpoints yet.
func promptConfirm(a *app) placement.Confirmer {
	scale := a.cfg.CenticentsPerDollar
	return func(s placement.Summary) (bool, error) {
		source := "limit"
		if s.Quoted {
			source = "market quote"
		}
		telemetry.Plainf("")
		telemetry.Plainf("  %s %d × %s GPU (%d node(s))", strings.ToUpper(s.Side), s.GPUs, s.InstanceType, s.Nodes)
		telemetry.Plainf("  window  %s → %s (%s)",
			s.StartAt.Format(time.RFC3339), s.EndAt.Format(time.RFC3339),
			time.Duration(s.DurationSeconds)*time.Second)
		telemetry.Plainf("  rate    %s/GPU/hr (%s)", "$"+s.RatePerGPUHour.Div(decimalScale(scale)).StringFixed(2), source)
		telemetry.Plainf("  total   %s", money.FormatAmount(s.Total, scale))
		telemetry.Plainf("")
		fmt.Fprintf(os.Stderr, "Place order? [y/N]: ")

		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}

func decimalScale(scale int64) decimal.Decimal { return decimal.NewFromInt(scale) }

func recordAttempt(a *app, intent placement.Intent, outcome placement.Outcome) {
	store, err := tracking.Open(a.cfg.HistoryPath)
	if err != nil {
		telemetry.Warnf("order history disabled: %v", err)
		return
	}
	defer store.Close()

	attempt := tracking.Attempt{
		Side:         intent.Side,
		InstanceType: intent.InstanceType,
		GPUs:         intent.GPUs,
		Nodes:        intent.GPUs / a.cfg.GPUsPerNode,
		Outcome:      string(outcome.Kind),
		PlacedAt:     time.Now(),
	}
	if o := outcome.Order; o != nil {
		attempt.OrderID = o.ID
		attempt.StartAt = o.StartAt
		attempt.EndAt = o.EndAt
		attempt.LimitPrice = o.Price
		attempt.ExecutedPrice = o.ExecutionPrice
	}
	if _, err := store.Insert(attempt); err != nil {
		telemetry.Warnf("order history write failed: %v", err)
	}
}

func renderOutcome(a *app, outcome placement.Outcome) error {
	scale := a.cfg.CenticentsPerDollar
	switch outcome.Kind {
	case placement.OutcomeFilled:
		telemetry.Plainf("✓ %s", outcome.Message)
		if o := outcome.Order; o != nil && o.ExecutionPrice != nil && *o.ExecutionPrice < o.Price {
			saved := o.Price - *o.ExecutionPrice
			telemetry.Plainf("  executed below your limit — saved %s", money.FormatAmount(saved, scale))
		}
		return nil
	case placement.OutcomeOpen:
		telemetry.Plainf("✓ %s", outcome.Message)
		if o := outcome.Order; o != nil {
			telemetry.Plainf("  it will fill when matched — track it with `sfc orders status %s`", o.ID)
		}
		return nil
	case placement.OutcomeCancelled:
		telemetry.Plainf("%s", outcome.Message)
		return nil
	case placement.OutcomeAmbiguous:
		return errors.New(outcome.Message)
	default:
		return errors.New(outcome.Message)
	}
}
