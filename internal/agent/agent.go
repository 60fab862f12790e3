// Package agent orchestrates the order query pipeline: fetch raw orders,
// parse them into structured records in parallel batches, then validate
// the parsed records against their sources. Failures at every stage feed
// an append-only dead-letter queue instead of aborting the run.
package agent

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/order-agent/internal/anchor"
	"github.com/sells-group/order-agent/internal/config"
	"github.com/sells-group/order-agent/internal/model"
	"github.com/sells-group/order-agent/internal/store"
	"github.com/sells-group/order-agent/pkg/llm"
	"github.com/sells-group/order-agent/pkg/orders"
)

// Agent runs the fetch → parse → validate pipeline. All collaborators are
// explicit so tests can substitute fakes.
type Agent struct {
	cfg     config.PipelineConfig
	fetcher orders.Client
	llm     llm.Client
	store   store.Store
}

// Option configures an Agent.
type Option func(*Agent)

// WithStore enables run persistence. A nil store leaves persistence off.
func WithStore(st store.Store) Option {
	return func(a *Agent) {
		a.store = st
	}
}

// New creates an Agent with the given collaborators.
func New(cfg config.PipelineConfig, fetcher orders.Client, llmClient llm.Client, opts ...Option) *Agent {
	a := &Agent{
		cfg:     cfg,
		fetcher: fetcher,
		llm:     llmClient,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes one query against the pipeline. Only a fetch failure is
// returned as an error; parse and validate failures are recorded in the
// result's dead-letter queue.
func (a *Agent) Run(ctx context.Context, query string) (*model.AgentResult, error) {
	log := zap.L().With(zap.String("query", query))
	log.Info("agent: starting run")

	// ===== Stage 1: fetch =====
	// Single attempt; a fetch failure aborts the whole run before any
	// model call is made.
	start := time.Now()
	rawOrders, err := a.fetcher.FetchOrders(ctx)
	if err != nil {
		log.Error("agent: fetch failed", zap.Error(err))
		return nil, eris.Wrap(err, "agent: fetch orders")
	}
	rawStore := model.RawOrderStore{Orders: rawOrders}
	log.Info("agent: fetch complete",
		zap.Int("orders", len(rawOrders)),
		zap.Duration("elapsed", time.Since(start)),
	)

	dlq := model.DeadLetterQueue{}

	// ===== Stage 2: parse =====
	start = time.Now()
	parsed := a.parseStage(ctx, &rawStore, query, &dlq)
	log.Info("agent: parse complete",
		zap.Int("parsed", len(parsed)),
		zap.Int("failed_batches", len(dlq.FailedBatches)),
		zap.Duration("elapsed", time.Since(start)),
	)

	// ===== Stage 3: validate =====
	start = time.Now()
	valid := a.validateStage(ctx, parsed, rawOrders, &dlq)
	log.Info("agent: validate complete",
		zap.Int("valid", len(valid)),
		zap.Int("failed_records", len(dlq.FailedRecords)),
		zap.Duration("elapsed", time.Since(start)),
	)

	meta := model.QueryMeta{
		TotalRaw:    len(rawOrders),
		TotalParsed: len(parsed),
		TotalValid:  len(valid),
		TotalFailed: dlq.TotalFailures(),
	}

	result := &model.AgentResult{
		RawStore:    rawStore,
		ValidOrders: valid,
		DLQ:         dlq,
		Meta:        meta,
	}

	log.Info("agent: run complete",
		zap.Int("total_valid", meta.TotalValid),
		zap.Int("total_raw", meta.TotalRaw),
		zap.Float64("success_rate", meta.SuccessRate()),
	)

	if a.store != nil {
		if runID, saveErr := a.store.SaveRun(ctx, query, result); saveErr != nil {
			log.Warn("agent: failed to persist run", zap.Error(saveErr))
		} else {
			log.Info("agent: run persisted", zap.String("run_id", runID))
		}
	}

	return result, nil
}

// parseStage fans raw-order chunks out to concurrent model calls under
// the parse gate and merges results in chunk-index order, routing failed
// batches into the dead-letter queue.
func (a *Agent) parseStage(ctx context.Context, rawStore *model.RawOrderStore, query string, dlq *model.DeadLetterQueue) []model.Order {
	totalBatches := rawStore.TotalBatches(a.cfg.ChunkSize)
	if totalBatches == 0 {
		return nil
	}

	zap.L().Info("parse: starting",
		zap.Int("orders", len(rawStore.Orders)),
		zap.Int("batches", totalBatches),
		zap.Int("chunk_size", a.cfg.ChunkSize),
	)

	type batchResult struct {
		orders   []model.Order
		errMsg   string
		attempts int
	}

	gate := semaphore.NewWeighted(int64(a.cfg.ParseConcurrency))
	results := make([]batchResult, totalBatches)

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < totalBatches; i++ {
		chunk := rawStore.Batch(i, a.cfg.ChunkSize)
		g.Go(func() error {
			orders, errMsg, attempts := a.parseBatchWithRetry(gCtx, chunk, query, gate, i)
			results[i] = batchResult{orders: orders, errMsg: errMsg, attempts: attempts}
			return nil
		})
	}
	_ = g.Wait()

	// Join-then-merge in chunk-index order keeps batch indices stable.
	var parsed []model.Order
	for i, r := range results {
		if r.errMsg != "" {
			dlq.AddBatchFailure(i, rawStore.Batch(i, a.cfg.ChunkSize), r.errMsg, r.attempts)
			continue
		}
		parsed = append(parsed, r.orders...)
	}
	return parsed
}

// validateStage re-chunks the parsed orders, fans judge calls out under
// the validate gate, and merges valid orders and failed records in
// chunk-index order.
func (a *Agent) validateStage(ctx context.Context, parsed []model.Order, rawOrders []string, dlq *model.DeadLetterQueue) []model.Order {
	if len(parsed) == 0 {
		zap.L().Warn("validate: no parsed orders to validate")
		return nil
	}

	chunkSize := a.cfg.ChunkSize
	totalBatches := (len(parsed) + chunkSize - 1) / chunkSize
	zap.L().Info("validate: starting",
		zap.Int("orders", len(parsed)),
		zap.Int("batches", totalBatches),
	)

	anchors := anchor.BuildIndex(rawOrders)

	type batchResult struct {
		valid  []model.Order
		failed []model.FailedRecord
	}

	gate := semaphore.NewWeighted(int64(a.cfg.ValidateConcurrency))
	results := make([]batchResult, totalBatches)

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < totalBatches; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(parsed) {
			end = len(parsed)
		}
		chunk := parsed[start:end]
		g.Go(func() error {
			valid, failed := a.validateBatch(gCtx, chunk, rawOrders, anchors, gate)
			results[i] = batchResult{valid: valid, failed: failed}
			return nil
		})
	}
	_ = g.Wait()

	var valid []model.Order
	for _, r := range results {
		valid = append(valid, r.valid...)
		for _, rec := range r.failed {
			dlq.AddRecordFailure(rec)
		}
	}
	return valid
}
