package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/order-agent/internal/anchor"
	"github.com/sells-group/order-agent/internal/config"
	"github.com/sells-group/order-agent/internal/resilience"
	"github.com/sells-group/order-agent/pkg/orders"
)

var orderCmd = &cobra.Command{
	Use:   "order <id>",
	Short: "Fetch a single raw order by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		orderID := args[0]

		client := orders.NewClient(
			orders.WithBaseURL(cfg.API.BaseURL),
			orders.WithTimeout(time.Duration(cfg.API.TimeoutSecs)*time.Second),
		)

		raw, _, err := fetchOrderWithRetry(cmd.Context(), client, orderID, cfg.Pipeline)
		if err != nil {
			writeErrorJSON(err)
			return err
		}
		if raw == "" {
			err := eris.New(fmt.Sprintf("order %s not found", orderID))
			writeErrorJSON(err)
			return err
		}

		out := struct {
			Raw     string `json:"raw"`
			Anchors any    `json:"anchors,omitempty"`
		}{Raw: raw}

		// Anchors are best-effort; an unparseable order still prints.
		if a, anchorErr := anchor.Extract(raw); anchorErr == nil {
			out.Anchors = struct {
				OrderID  string  `json:"orderId"`
				Total    float64 `json:"total"`
				State    string  `json:"state"`
				Returned bool    `json:"returned"`
			}{a.OrderID, a.Total, a.State, a.Returned}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

// fetchOrderWithRetry retries a single-order lookup on transient failures
// only. A 404 is an answer ("", nil) and a permanent error returns after
// one attempt.
func fetchOrderWithRetry(ctx context.Context, client orders.Client, orderID string, pcfg config.PipelineConfig) (string, int, error) {
	rcfg := resilience.RetryConfig{
		MaxAttempts: pcfg.MaxRetries,
		BaseDelay:   pcfg.RetryBaseDelay(),
		Multiplier:  2.0,
		ShouldRetry: resilience.IsTransient,
		OnRetry:     resilience.RetryLogger("fetch order"),
	}
	return resilience.DoCount(ctx, rcfg, func(ctx context.Context) (string, error) {
		return client.FetchOrder(ctx, orderID)
	})
}

func init() {
	rootCmd.AddCommand(orderCmd)
}
