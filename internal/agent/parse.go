package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/order-agent/internal/model"
	"github.com/sells-group/order-agent/internal/resilience"
)

// errUnparseableResponse is the batch-level failure for model output that
// is not JSON at all. It feeds the retry path; schema violations do not.
// The message text is recorded verbatim in dead-letter entries, so it is
// part of the output contract.
var errUnparseableResponse = errors.New("Failed to parse LLM response as JSON")

// parseBatch drives one model call for a chunk of raw orders. The gate is
// held only for the duration of the model invocation. Failures are
// returned as errors, never propagated as panics; schema violations on
// individual elements are logged and salvaged around.
func (a *Agent) parseBatch(ctx context.Context, chunk []string, query string, gate *semaphore.Weighted, batchIndex int) ([]model.Order, error) {
	user := "Query: " + query + "\n\nRaw orders:\n" + strings.Join(chunk, "\n")

	if err := gate.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	zap.L().Debug("parse: invoking model",
		zap.Int("batch", batchIndex),
		zap.Int("orders", len(chunk)),
	)
	resp, err := a.llm.Complete(ctx, parseSystemPrompt, user)
	gate.Release(1)
	if err != nil {
		return nil, err
	}

	cleaned := cleanJSON(resp)
	if !json.Valid([]byte(cleaned)) {
		return nil, errUnparseableResponse
	}

	orders, schemaErrs := ValidateSchema([]byte(cleaned))
	if len(schemaErrs) > 0 {
		sample := schemaErrs
		if len(sample) > 3 {
			sample = sample[:3]
		}
		zap.L().Warn("parse: batch had schema errors",
			zap.Int("batch", batchIndex),
			zap.Int("errors", len(schemaErrs)),
			zap.Strings("sample", sample),
		)
	}

	zap.L().Info("parse: batch parsed",
		zap.Int("batch", batchIndex),
		zap.Int("valid_orders", len(orders)),
	)
	return orders, nil
}

// parseBatchWithRetry wraps parseBatch in up to maxRetries attempts with
// exponential backoff (base * 2^(attempt-1), no sleep after the final
// attempt). The gate is re-acquired on each attempt rather than held
// across the backoff sleep. Returns the first successful order list, or
// an empty list plus the last error and the attempt count.
func (a *Agent) parseBatchWithRetry(ctx context.Context, chunk []string, query string, gate *semaphore.Weighted, batchIndex int) ([]model.Order, string, int) {
	cfg := resilience.RetryConfig{
		MaxAttempts: a.cfg.MaxRetries,
		BaseDelay:   a.cfg.RetryBaseDelay(),
		Multiplier:  2.0,
		OnRetry: func(attempt int, err error) {
			zap.L().Warn("parse: batch attempt failed, retrying",
				zap.Int("batch", batchIndex),
				zap.Int("attempt", attempt),
				zap.Duration("delay", resilience.Backoff(attempt, resilience.RetryConfig{
					BaseDelay:  a.cfg.RetryBaseDelay(),
					Multiplier: 2.0,
				})),
				zap.Error(err),
			)
		},
	}

	orders, attempts, err := resilience.DoCount(ctx, cfg, func(ctx context.Context) ([]model.Order, error) {
		return a.parseBatch(ctx, chunk, query, gate, batchIndex)
	})
	if err != nil {
		zap.L().Error("parse: batch failed after retries",
			zap.Int("batch", batchIndex),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return nil, err.Error(), attempts
	}

	return orders, "", attempts
}
