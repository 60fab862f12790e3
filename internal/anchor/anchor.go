// Package anchor derives ground-truth field values from raw order strings
// via fixed patterns. It is deliberately independent of the model's parsing
// logic: it exists to catch hallucination and drift, so it must not share
// assumptions with the parser.
package anchor

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/order-agent/internal/model"
)

// Tolerance is the maximum allowed absolute difference between a parsed
// total and its anchor total.
const Tolerance = 0.01

var (
	orderIDPattern  = regexp.MustCompile(`Order (\d+):`)
	totalPattern    = regexp.MustCompile(`Total=\$([0-9.]+)`)
	statePattern    = regexp.MustCompile(`Location=[^,]+,\s*([A-Z]{2})`)
	returnedPattern = regexp.MustCompile(`Returned=(Yes|No)`)
)

// Anchors holds the ground truth extracted from one raw order string.
// Built once per fetch; immutable.
type Anchors struct {
	OrderID  string
	Total    float64
	State    string
	Returned bool
	Raw      string
}

// ExtractionError reports which required field a pattern failed to locate.
type ExtractionError struct {
	Field string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("anchor: could not extract %s", e.Field)
}

func extractGroup(p *regexp.Regexp, text, field string) (string, error) {
	m := p.FindStringSubmatch(text)
	if m == nil {
		return "", &ExtractionError{Field: field}
	}
	return m[1], nil
}

// Extract derives anchors from a raw order string. It fails when any of
// the four required fields cannot be located by its pattern.
func Extract(raw string) (*Anchors, error) {
	orderID, err := extractGroup(orderIDPattern, raw, "orderId")
	if err != nil {
		return nil, err
	}
	totalStr, err := extractGroup(totalPattern, raw, "total")
	if err != nil {
		return nil, err
	}
	total, convErr := strconv.ParseFloat(totalStr, 64)
	if convErr != nil {
		return nil, &ExtractionError{Field: "total"}
	}
	state, err := extractGroup(statePattern, raw, "state")
	if err != nil {
		return nil, err
	}
	returned, err := extractGroup(returnedPattern, raw, "returned")
	if err != nil {
		return nil, err
	}

	return &Anchors{
		OrderID:  orderID,
		Total:    total,
		State:    state,
		Returned: returned == "Yes",
		Raw:      raw,
	}, nil
}

// BuildIndex extracts anchors per record, keyed by orderId. Individual
// extraction failures are logged and skipped, so the index is a
// best-effort subset of the input.
func BuildIndex(rawOrders []string) map[string]*Anchors {
	index := make(map[string]*Anchors, len(rawOrders))
	for _, raw := range rawOrders {
		a, err := Extract(raw)
		if err != nil {
			zap.L().Warn("anchor: skipping order", zap.Error(err))
			continue
		}
		index[a.OrderID] = a
	}
	return index
}

// Compare checks a parsed order against its anchors and returns the list
// of mismatches, empty when the order agrees with the source. Total is
// compared within Tolerance and state case-insensitively.
func Compare(parsed *model.Order, a *Anchors) []string {
	var mismatches []string

	if parsed.OrderID != a.OrderID {
		mismatches = append(mismatches, fmt.Sprintf("orderId: %s != %s", parsed.OrderID, a.OrderID))
	}
	if math.Abs(parsed.Total-a.Total) > Tolerance {
		mismatches = append(mismatches, fmt.Sprintf("total: %.2f != %.2f", parsed.Total, a.Total))
	}
	if strings.ToUpper(parsed.State) != a.State {
		mismatches = append(mismatches, fmt.Sprintf("state: %s != %s", parsed.State, a.State))
	}
	if parsed.Returned != a.Returned {
		mismatches = append(mismatches, fmt.Sprintf("returned: %t != %t", parsed.Returned, a.Returned))
	}

	return mismatches
}
