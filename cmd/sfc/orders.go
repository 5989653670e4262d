package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sfcompute/sfc/internal/adapters/inbound/orderfeed"
	"github.com/sfcompute/sfc/internal/adapters/outbound/marketplace"
	"github.com/sfcompute/sfc/internal/core/money"
	"github.com/sfcompute/sfc/internal/core/tracking"
	"github.com/sfcompute/sfc/internal/events"
	"github.com/sfcompute/sfc/internal/telemetry"
)

func newOrdersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and manage your orders",
	}
	cmd.AddCommand(
		newOrdersListCmd(),
		newOrdersStatusCmd(),
		newOrdersCancelCmd(),
		newOrdersWatchCmd(),
		newOrdersHistoryCmd(),
	)
	return cmd
}

func newOrdersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			orders, err := a.client.ListOrders(cmd.Context())
			if err != nil {
				return err
			}
			if len(orders) == 0 {
				telemetry.Plainf("no orders")
				return nil
			}
			for _, o := range orders {
				printOrder(a, &o)
			}
			return nil
		},
	}
}

func newOrdersStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <order-id>",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			order, err := a.client.GetOrder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printOrder(a, order)
			return nil
		},
	}
}

func newOrdersCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel an open order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			err = a.client.CancelOrder(cmd.Context(), args[0])
			switch {
			case errors.Is(err, marketplace.ErrOrderNotFound):
				return fmt.Errorf("no order with id %s — check `sfc orders list`", args[0])
			case errors.Is(err, marketplace.ErrAlreadyCancelled):
				telemetry.Plainf("order %s is already cancelled", args[0])
				return nil
			case err != nil:
				return err
			}
			telemetry.Plainf("✓ cancellation accepted for %s (it completes once the engine releases the order)", args[0])
			return nil
		},
	}
}

func newOrdersWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <order-id>",
		Short: "Stream status changes for an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			return watchOrder(cmd.Context(), a, args[0])
		},
	}
}

// watchOrder prefers the websocket feed and falls back to slow polling
// when the socket is not configured or cannot be dialed.
func watchOrder(ctx context.Context, a *app, id string) error {
	if a.cfg.WSURL != "" {
		feed := orderfeed.NewClient(a.cfg.WSURL, a.cfg.Token, a.bus)
		if err := feed.Connect(ctx); err == nil {
			defer feed.Close()
			a.bus.Subscribe(events.EventOrderUpdate, func(e events.Event) error {
				if up, ok := e.Payload.(events.OrderUpdate); ok && up.OrderID == id {
					telemetry.Plainf("%s  %s", time.Now().Format("15:04:05"), up.Status)
				}
				return nil
			})
			if err := feed.Subscribe(id); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		}
		telemetry.Warnf("order feed unavailable, falling back to polling")
	}

	last := marketplace.OrderStatus("")
	for {
		order, err := a.client.GetOrder(ctx, id)
		if err != nil {
			if errors.Is(err, marketplace.ErrSessionExpired) {
				return err
			}
			telemetry.Debugf("watch: %v", err)
		} else if order.Status != last {
			last = order.Status
			telemetry.Plainf("%s  %s", time.Now().Format("15:04:05"), order.Status)
			switch order.Status {
			case marketplace.StatusFilled, marketplace.StatusCancelled,
				marketplace.StatusRejected, marketplace.StatusExpired:
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func newOrdersHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show locally recorded order attempts, including ambiguous ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			store, err := tracking.Open(a.cfg.HistoryPath)
			if err != nil {
				return err
			}
			defer store.Close()

			attempts, err := store.Recent(limit)
			if err != nil {
				return err
			}
			if len(attempts) == 0 {
				telemetry.Plainf("no recorded attempts")
				return nil
			}
			scale := a.cfg.CenticentsPerDollar
			for _, at := range attempts {
				id := at.OrderID
				if id == "" {
					id = "(no id)"
				}
				telemetry.Plainf("%s  %-4s %3d gpu  %-9s  %s  %s",
					at.PlacedAt.Format("2006-01-02 15:04"), at.Side, at.GPUs,
					at.Outcome, money.FormatAmount(at.LimitPrice, scale), id)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max rows")
	return cmd
}

func printOrder(a *app, o *marketplace.Order) {
	scale := a.cfg.CenticentsPerDollar
	line := fmt.Sprintf("%s  %-4s %-9s %2d node(s)  %s → %s  %s",
		o.ID, o.Side, o.Status, o.Quantity,
		o.StartAt.Format(time.RFC3339), o.EndAt.Format(time.RFC3339),
		money.FormatAmount(o.Price, scale))
	if o.ExecutionPrice != nil {
		line += "  (executed " + money.FormatAmount(*o.ExecutionPrice, scale) + ")"
	}
	telemetry.Plainf("%s", line)
}
