package agent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/order-agent/internal/config"
)

// scriptedLLM returns canned responses in order, wrapping on exhaustion.
type scriptedLLM struct {
	responses []string
	errs      []error
	calls     atomic.Int64

	// gateCheck runs inside each call, letting tests observe gate state
	// while the model is in flight.
	gateCheck func()
}

func (s *scriptedLLM) Complete(_ context.Context, _, _ string) (string, error) {
	n := int(s.calls.Add(1)) - 1
	if s.gateCheck != nil {
		s.gateCheck()
	}
	if n < len(s.errs) && s.errs[n] != nil {
		return "", s.errs[n]
	}
	if n < len(s.responses) {
		return s.responses[n], nil
	}
	return s.responses[len(s.responses)-1], nil
}

func parseTestAgent(llm *scriptedLLM, maxRetries int) *Agent {
	return New(config.PipelineConfig{
		ChunkSize:           25,
		ParseConcurrency:    1,
		ValidateConcurrency: 1,
		MaxRetries:          maxRetries,
		RetryBaseDelaySecs:  0.001,
	}, &fakeFetcher{}, llm)
}

func TestParseBatch_Success(t *testing.T) {
	llm := &scriptedLLM{responses: []string{`{"orders":[` + orderJSON("1001") + `]}`}}
	a := parseTestAgent(llm, 1)
	gate := semaphore.NewWeighted(1)

	orders, err := a.parseBatch(context.Background(), []string{rawOrder(1001)}, "all", gate, 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "1001", orders[0].OrderID)
}

func TestParseBatch_StripsMarkdownFences(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"```json\n" + `{"orders":[` + orderJSON("1001") + `]}` + "\n```"}}
	a := parseTestAgent(llm, 1)

	orders, err := a.parseBatch(context.Background(), []string{rawOrder(1001)}, "all", semaphore.NewWeighted(1), 0)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestParseBatch_NotJSON(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"I'm sorry, I can't parse these orders."}}
	a := parseTestAgent(llm, 1)

	orders, err := a.parseBatch(context.Background(), []string{rawOrder(1001)}, "all", semaphore.NewWeighted(1), 0)
	require.Error(t, err)
	assert.Equal(t, errUnparseableResponse, err)
	assert.Nil(t, orders)
}

func TestParseBatch_SchemaErrorsSalvaged(t *testing.T) {
	resp := `{"orders":[` + orderJSON("1001") + `,{"orderId":"bad id","buyer":"","city":"","state":"","total":0,"items":[]}]}`
	llm := &scriptedLLM{responses: []string{resp}}
	a := parseTestAgent(llm, 1)

	orders, err := a.parseBatch(context.Background(), []string{rawOrder(1001)}, "all", semaphore.NewWeighted(1), 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "1001", orders[0].OrderID)
}

func TestParseBatchWithRetry_SucceedsAfterFailure(t *testing.T) {
	llm := &scriptedLLM{
		responses: []string{"", `{"orders":[` + orderJSON("1001") + `]}`},
		errs:      []error{errors.New("model overloaded"), nil},
	}
	a := parseTestAgent(llm, 3)

	orders, errMsg, attempts := a.parseBatchWithRetry(context.Background(), []string{rawOrder(1001)}, "all", semaphore.NewWeighted(1), 0)
	assert.Empty(t, errMsg)
	assert.Equal(t, 2, attempts)
	assert.Len(t, orders, 1)
}

func TestParseBatchWithRetry_Exhaustion(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"not json at all"}}
	a := parseTestAgent(llm, 3)

	orders, errMsg, attempts := a.parseBatchWithRetry(context.Background(), []string{rawOrder(1001)}, "all", semaphore.NewWeighted(1), 0)
	assert.Nil(t, orders)
	assert.Equal(t, "Failed to parse LLM response as JSON", errMsg)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, int64(3), llm.calls.Load())
}

func TestParseBatchWithRetry_GateHeldOnlyDuringCall(t *testing.T) {
	gate := semaphore.NewWeighted(1)

	llm := &scriptedLLM{responses: []string{"not json at all"}}
	llm.gateCheck = func() {
		// The gate is held for the duration of the call, so a second
		// acquisition must fail while the model is in flight.
		if gate.TryAcquire(1) {
			gate.Release(1)
			t.Error("gate was free during a model call")
		}
	}
	a := parseTestAgent(llm, 2)

	_, errMsg, attempts := a.parseBatchWithRetry(context.Background(), []string{rawOrder(1001)}, "all", gate, 0)
	require.NotEmpty(t, errMsg)
	require.Equal(t, 2, attempts)

	// Released after the final attempt.
	assert.True(t, gate.TryAcquire(1))
}

func TestParseBatchWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	llm := &scriptedLLM{responses: []string{`{"orders":[]}`}}
	a := parseTestAgent(llm, 3)

	_, errMsg, _ := a.parseBatchWithRetry(ctx, []string{rawOrder(1001)}, "all", semaphore.NewWeighted(1), 0)
	assert.NotEmpty(t, errMsg)
	assert.Zero(t, llm.calls.Load())
}
