package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/order-agent/internal/config"
	"github.com/sells-group/order-agent/internal/model"
)

// fakeFetcher returns a canned order list or error.
type fakeFetcher struct {
	orders []string
	err    error
}

func (f *fakeFetcher) FetchOrders(_ context.Context) ([]string, error) {
	return f.orders, f.err
}

func (f *fakeFetcher) FetchOrder(_ context.Context, orderID string) (string, error) {
	marker := fmt.Sprintf("Order %s:", orderID)
	for _, o := range f.orders {
		if len(o) >= len(marker) && o[:len(marker)] == marker {
			return o, nil
		}
	}
	return "", nil
}

// fakeLLM answers parse and judge calls from the order IDs present in the
// user prompt, tracking per-stage concurrency.
type fakeLLM struct {
	parseCalls    atomic.Int64
	validateCalls atomic.Int64

	parseInFlight    atomic.Int64
	parsePeak        atomic.Int64
	validateInFlight atomic.Int64
	validatePeak     atomic.Int64

	delay time.Duration

	// parseErr fails parse calls whose prompt contains parseErrMarker.
	parseErr       error
	parseErrMarker string

	// judge overrides the default all-valid judge response.
	judge func(ids []string) string
}

var orderMarkerPattern = regexp.MustCompile(`Order (\d+):`)
var orderIDFieldPattern = regexp.MustCompile(`"orderId":"(\d+)"`)

func trackPeak(inFlight, peak *atomic.Int64) func() {
	n := inFlight.Add(1)
	for {
		p := peak.Load()
		if n <= p || peak.CompareAndSwap(p, n) {
			break
		}
	}
	return func() { inFlight.Add(-1) }
}

func (f *fakeLLM) Complete(_ context.Context, system, user string) (string, error) {
	if system == parseSystemPrompt {
		f.parseCalls.Add(1)
		// The gauge must span the whole call, including the simulated
		// latency, or a missing gate would only be caught by luck.
		done := trackPeak(&f.parseInFlight, &f.parsePeak)
		defer done()
		if f.delay > 0 {
			time.Sleep(f.delay)
		}

		if f.parseErr != nil && (f.parseErrMarker == "" || strings.Contains(user, f.parseErrMarker)) {
			return "", f.parseErr
		}

		var orders []string
		for _, m := range orderMarkerPattern.FindAllStringSubmatch(user, -1) {
			orders = append(orders, orderJSON(m[1]))
		}
		return `{"orders":[` + join(orders) + `]}`, nil
	}

	f.validateCalls.Add(1)
	done := trackPeak(&f.validateInFlight, &f.validatePeak)
	defer done()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	ids := make([]string, 0)
	for _, m := range orderIDFieldPattern.FindAllStringSubmatch(user, -1) {
		ids = append(ids, m[1])
	}
	if f.judge != nil {
		return f.judge(ids), nil
	}

	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		valid = append(valid, fmt.Sprintf(`{"orderId":%q}`, id))
	}
	return `{"valid":[` + join(valid) + `],"invalid":[]}`, nil
}

func orderJSON(id string) string {
	return fmt.Sprintf(`{"orderId":%q,"buyer":"John Smith","city":"Columbus","state":"OH","total":742.10,"items":[{"name":"Laptop","rating":4.2}],"returned":false}`, id)
}

func join(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

func rawOrder(id int) string {
	return fmt.Sprintf("Order %d: Buyer=John Smith, Location=Columbus, OH, Total=$742.10, Items: Laptop (4.2*), Returned=No", id)
}

func rawOrders(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = rawOrder(1001 + i)
	}
	return out
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		ChunkSize:           2,
		ParseConcurrency:    2,
		ValidateConcurrency: 2,
		MaxRetries:          1,
		RetryBaseDelaySecs:  0.001,
	}
}

func TestRun_FetchFailureAbortsBeforeModelCalls(t *testing.T) {
	llm := &fakeLLM{}
	a := New(testPipelineConfig(), &fakeFetcher{err: errors.New("connection refused")}, llm)

	result, err := a.Run(context.Background(), "Show me all orders")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Zero(t, llm.parseCalls.Load())
	assert.Zero(t, llm.validateCalls.Load())
}

func TestRun_EmptyFetch(t *testing.T) {
	llm := &fakeLLM{}
	a := New(testPipelineConfig(), &fakeFetcher{orders: nil}, llm)

	result, err := a.Run(context.Background(), "Show me all orders")
	require.NoError(t, err)
	assert.Empty(t, result.ValidOrders)
	assert.Equal(t, 1.0, result.Meta.SuccessRate())
	assert.Zero(t, llm.parseCalls.Load())
}

func TestRun_HappyPath(t *testing.T) {
	llm := &fakeLLM{}
	a := New(testPipelineConfig(), &fakeFetcher{orders: rawOrders(6)}, llm)

	result, err := a.Run(context.Background(), "Show me all orders")
	require.NoError(t, err)

	require.Len(t, result.ValidOrders, 6)
	assert.Equal(t, int64(3), llm.parseCalls.Load())
	assert.Equal(t, int64(3), llm.validateCalls.Load())

	assert.Equal(t, 6, result.Meta.TotalRaw)
	assert.Equal(t, 6, result.Meta.TotalParsed)
	assert.Equal(t, 6, result.Meta.TotalValid)
	assert.Zero(t, result.Meta.TotalFailed)
	assert.Empty(t, result.DLQ.FailedBatches)
	assert.Empty(t, result.DLQ.FailedRecords)
}

func TestRun_MergePreservesChunkOrder(t *testing.T) {
	llm := &fakeLLM{delay: 3 * time.Millisecond}
	a := New(testPipelineConfig(), &fakeFetcher{orders: rawOrders(10)}, llm)

	result, err := a.Run(context.Background(), "Show me all orders")
	require.NoError(t, err)
	require.Len(t, result.ValidOrders, 10)

	for i, o := range result.ValidOrders {
		assert.Equal(t, fmt.Sprintf("%d", 1001+i), o.OrderID)
	}
}

func TestRun_ConcurrencyBounded(t *testing.T) {
	llm := &fakeLLM{delay: 5 * time.Millisecond}
	cfg := testPipelineConfig()
	cfg.ParseConcurrency = 3
	cfg.ValidateConcurrency = 2
	a := New(cfg, &fakeFetcher{orders: rawOrders(20)}, llm)

	_, err := a.Run(context.Background(), "Show me all orders")
	require.NoError(t, err)

	assert.LessOrEqual(t, llm.parsePeak.Load(), int64(3))
	assert.LessOrEqual(t, llm.validatePeak.Load(), int64(2))
}

func TestRun_FailedBatchGoesToDLQ(t *testing.T) {
	llm := &fakeLLM{
		parseErr:       errors.New("model overloaded"),
		parseErrMarker: "Order 1003:",
	}
	a := New(testPipelineConfig(), &fakeFetcher{orders: rawOrders(6)}, llm)

	result, err := a.Run(context.Background(), "Show me all orders")
	require.NoError(t, err)

	// Chunk size 2: batch 1 holds orders 1003 and 1004.
	require.Len(t, result.DLQ.FailedBatches, 1)
	b := result.DLQ.FailedBatches[0]
	assert.Equal(t, 1, b.BatchIndex)
	assert.Equal(t, []string{rawOrder(1003), rawOrder(1004)}, b.RawOrders)
	assert.Equal(t, 1, b.Attempts)
	assert.Equal(t, "model overloaded", b.Error)

	assert.Len(t, result.ValidOrders, 4)
	assert.Equal(t, 6, result.Meta.TotalRaw)
	assert.Equal(t, 4, result.Meta.TotalParsed)
	assert.Equal(t, 4, result.Meta.TotalValid)
	assert.Equal(t, 2, result.Meta.TotalFailed)
}

func TestRun_EveryParsedRecordAccountedFor(t *testing.T) {
	llm := &fakeLLM{
		judge: func(ids []string) string {
			var valid, invalid []string
			for _, id := range ids {
				var n int
				fmt.Sscanf(id, "%d", &n)
				if n%2 == 0 {
					valid = append(valid, fmt.Sprintf(`{"orderId":%q}`, id))
				} else {
					invalid = append(invalid, fmt.Sprintf(`{"orderId":%q,"failureType":"mismatch","reason":"total differs"}`, id))
				}
			}
			return `{"valid":[` + join(valid) + `],"invalid":[` + join(invalid) + `]}`
		},
	}
	a := New(testPipelineConfig(), &fakeFetcher{orders: rawOrders(8)}, llm)

	result, err := a.Run(context.Background(), "Show me all orders")
	require.NoError(t, err)

	assert.Len(t, result.ValidOrders, 4)
	assert.Len(t, result.DLQ.FailedRecords, 4)
	assert.Equal(t, 8, result.Meta.TotalParsed)
	assert.Equal(t, 4, result.Meta.TotalValid)
	assert.Equal(t, 4, result.Meta.TotalFailed)

	seen := make(map[string]bool)
	for _, o := range result.ValidOrders {
		seen[o.OrderID] = true
	}
	for _, r := range result.DLQ.FailedRecords {
		seen[r.OrderID] = true
		assert.Equal(t, model.FailureMismatch, r.Kind)
	}
	assert.Len(t, seen, 8)
}

func TestRun_ResultRoundTripsThroughJSON(t *testing.T) {
	llm := &fakeLLM{}
	a := New(testPipelineConfig(), &fakeFetcher{orders: rawOrders(4)}, llm)

	result, err := a.Run(context.Background(), "Show me all orders")
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded model.AgentResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, result.Meta, decoded.Meta)
	assert.Len(t, decoded.ValidOrders, 4)
}
