package agent

import (
	"encoding/json"
	"fmt"

	"github.com/sells-group/order-agent/internal/model"
)

// candidateResponse is the untyped shape the parse prompt asks the model
// to produce.
type candidateResponse struct {
	Orders []json.RawMessage `json:"orders"`
}

// ValidateSchema validates candidate JSON against the order contract.
// Every element of the "orders" array is checked independently: a
// malformed element is recorded as one error message and excluded, so a
// single bad element never discards the rest of the batch. If the
// top-level shape is wrong, zero orders and one descriptive error are
// returned.
func ValidateSchema(data []byte) ([]model.Order, []string) {
	var candidate candidateResponse
	if err := json.Unmarshal(data, &candidate); err != nil {
		return nil, []string{fmt.Sprintf("response is not an orders object: %v", err)}
	}
	if candidate.Orders == nil {
		return nil, []string{`response has no "orders" array`}
	}

	var valid []model.Order
	var errs []string
	for i, raw := range candidate.Orders {
		var order model.Order
		if err := json.Unmarshal(raw, &order); err != nil {
			errs = append(errs, fmt.Sprintf("order %d: not an object: %v", i, err))
			continue
		}
		if violations := order.Validate(); len(violations) > 0 {
			for _, v := range violations {
				errs = append(errs, fmt.Sprintf("order %d: %s", i, v))
			}
			continue
		}
		valid = append(valid, order)
	}

	return valid, errs
}
