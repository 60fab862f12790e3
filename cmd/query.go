package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/order-agent/internal/agent"
	"github.com/sells-group/order-agent/internal/analytics"
	"github.com/sells-group/order-agent/internal/model"
	"github.com/sells-group/order-agent/internal/store"
	"github.com/sells-group/order-agent/pkg/llm"
	"github.com/sells-group/order-agent/pkg/orders"
)

var (
	queryFull  bool
	queryStats bool
)

const defaultQuery = "Show me all orders"

var queryCmd = &cobra.Command{
	Use:   "query [natural language query]",
	Short: "Run a natural-language query against the order pipeline",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			query = defaultQuery
		}

		a, closeStore, err := initAgent(ctx)
		if err != nil {
			writeErrorJSON(err)
			return err
		}
		defer closeStore()

		result, err := a.Run(ctx, query)
		if err != nil {
			writeErrorJSON(err)
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if queryStats {
			return enc.Encode(struct {
				model.FullResponse
				Stats analytics.Summary `json:"stats"`
			}{
				FullResponse: result.ToFullResponse(),
				Stats:        analytics.Summarize(result.ValidOrders),
			})
		}
		if queryFull {
			return enc.Encode(result.ToFullResponse())
		}
		return enc.Encode(result.ToQueryResponse())
	},
}

// initAgent wires the fetch and model collaborators plus the optional
// store into an Agent. The returned func closes the store, if any.
func initAgent(ctx context.Context) (*agent.Agent, func(), error) {
	ordersClient := orders.NewClient(
		orders.WithBaseURL(cfg.API.BaseURL),
		orders.WithTimeout(time.Duration(cfg.API.TimeoutSecs)*time.Second),
	)

	llmOpts := []llm.Option{
		llm.WithTemperature(cfg.LLM.Temperature),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTimeout(time.Duration(cfg.LLM.TimeoutSecs) * time.Second),
		llm.WithRateLimit(cfg.LLM.RequestsPerSecond),
	}
	if cfg.LLM.BaseURL != "" {
		llmOpts = append(llmOpts, llm.WithBaseURL(cfg.LLM.BaseURL))
	}
	llmClient := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.Model, llmOpts...)

	var agentOpts []agent.Option
	closeStore := func() {}
	if cfg.Store.Path != "" {
		st, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, nil, eris.Wrap(err, "init store")
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, nil, eris.Wrap(err, "migrate store")
		}
		agentOpts = append(agentOpts, agent.WithStore(st))
		closeStore = func() {
			if err := st.Close(); err != nil {
				zap.L().Warn("close store", zap.Error(err))
			}
		}
	}

	return agent.New(cfg.Pipeline, ordersClient, llmClient, agentOpts...), closeStore, nil
}

// writeErrorJSON emits the structured error payload on stderr; the
// process exit code signals the failure.
func writeErrorJSON(err error) {
	writeErrorTo(os.Stderr, err)
}

func writeErrorTo(w io.Writer, err error) {
	_ = json.NewEncoder(w).Encode(model.ErrorResponse{Error: err.Error()})
}

func init() {
	queryCmd.Flags().BoolVar(&queryFull, "full", false, "include items and return flag in output")
	queryCmd.Flags().BoolVar(&queryStats, "stats", false, "append summary statistics to full output")
	rootCmd.AddCommand(queryCmd)
}
