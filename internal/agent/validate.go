package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/order-agent/internal/anchor"
	"github.com/sells-group/order-agent/internal/model"
)

// judgeResponse is the partition the validation prompt asks the model to
// produce.
type judgeResponse struct {
	Valid []struct {
		OrderID string `json:"orderId"`
	} `json:"valid"`
	Invalid []struct {
		OrderID     string `json:"orderId"`
		FailureType string `json:"failureType"`
		Reason      string `json:"reason"`
	} `json:"invalid"`
}

// relevantRawOrders filters allRaw down to the records carrying an
// "Order <id>:" marker for an id present in the parsed chunk, bounding
// the prompt to the sources this chunk could have come from.
func relevantRawOrders(parsed []model.Order, allRaw []string) []string {
	markers := make([]string, 0, len(parsed))
	for i := range parsed {
		markers = append(markers, fmt.Sprintf("Order %s:", parsed[i].OrderID))
	}

	var relevant []string
	for _, raw := range allRaw {
		for _, m := range markers {
			if strings.Contains(raw, m) {
				relevant = append(relevant, raw)
				break
			}
		}
	}
	return relevant
}

// validateBatch issues one judge call comparing a chunk of parsed orders
// against their raw sources and partitions the chunk into valid orders
// and failed records.
//
// Two failure modes are handled asymmetrically, on purpose: an
// unparseable judge response rejects the whole chunk (detectable failure
// beats silently passing unverified data), while a failed model call
// passes the chunk through unjudged (a transport fault is not evidence
// the data is wrong).
func (a *Agent) validateBatch(ctx context.Context, parsed []model.Order, allRaw []string, anchors map[string]*anchor.Anchors, gate *semaphore.Weighted) ([]model.Order, []model.FailedRecord) {
	raws := relevantRawOrders(parsed, allRaw)

	parsedJSON := make([]string, 0, len(parsed))
	for i := range parsed {
		b, err := json.Marshal(parsed[i])
		if err != nil {
			continue
		}
		parsedJSON = append(parsedJSON, string(b))
	}
	user := fmt.Sprintf(validateUserPrompt, strings.Join(raws, "\n"), strings.Join(parsedJSON, "\n"))

	if err := gate.Acquire(ctx, 1); err != nil {
		return parsed, nil
	}
	resp, err := a.llm.Complete(ctx, validateSystemPrompt, user)
	gate.Release(1)
	if err != nil {
		zap.L().Warn("validate: judge call failed, passing batch through",
			zap.Int("orders", len(parsed)),
			zap.Error(err),
		)
		return parsed, nil
	}

	var judged judgeResponse
	if err := json.Unmarshal([]byte(cleanJSON(resp)), &judged); err != nil {
		zap.L().Warn("validate: judge response unparseable, failing batch",
			zap.Int("orders", len(parsed)),
			zap.Error(err),
		)
		failed := make([]model.FailedRecord, 0, len(parsed))
		for i := range parsed {
			failed = append(failed, model.FailedRecord{
				OrderID:    parsed[i].OrderID,
				RawSnippet: snippetFor(parsed[i].OrderID, anchors),
				Kind:       model.FailureDropped,
				Reason:     "validation response unparseable",
			})
		}
		return nil, failed
	}

	validIDs := make(map[string]bool, len(judged.Valid))
	for _, v := range judged.Valid {
		validIDs[v.OrderID] = true
	}

	var valid []model.Order
	var failed []model.FailedRecord
	judgedIDs := make(map[string]bool, len(parsed))

	for _, inv := range judged.Invalid {
		judgedIDs[inv.OrderID] = true
		failed = append(failed, model.FailedRecord{
			OrderID:    inv.OrderID,
			RawSnippet: snippetFor(inv.OrderID, anchors),
			Kind:       failureKind(inv.FailureType),
			Reason:     inv.Reason,
		})
	}

	for i := range parsed {
		id := parsed[i].OrderID
		if validIDs[id] {
			judgedIDs[id] = true
			valid = append(valid, parsed[i])
		}
	}

	// A record in neither partition would vanish silently; surface it.
	for i := range parsed {
		if !judgedIDs[parsed[i].OrderID] {
			failed = append(failed, model.FailedRecord{
				OrderID:    parsed[i].OrderID,
				RawSnippet: snippetFor(parsed[i].OrderID, anchors),
				Kind:       model.FailureDropped,
				Reason:     "record missing from validation response",
			})
		}
	}

	return valid, failed
}

func failureKind(s string) model.FailureKind {
	switch model.FailureKind(s) {
	case model.FailureMismatch:
		return model.FailureMismatch
	case model.FailureHallucinated:
		return model.FailureHallucinated
	default:
		return model.FailureDropped
	}
}

// snippetFor returns the leading characters of the anchored raw source
// for an order id, or "" when the id has no anchor (hallucinations).
func snippetFor(orderID string, anchors map[string]*anchor.Anchors) string {
	a, ok := anchors[orderID]
	if !ok {
		return ""
	}
	const maxSnippet = 80
	if len(a.Raw) > maxSnippet {
		return a.Raw[:maxSnippet]
	}
	return a.Raw
}
