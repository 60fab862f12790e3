// Package model defines the core order data types shared across the
// fetch, parse and validate stages.
package model

import (
	"fmt"
	"strings"
)

// OrderItem is a single line item within an order.
type OrderItem struct {
	Name   string  `json:"name"`
	Rating float64 `json:"rating"`
}

// Order is a structured order candidate produced by the model. Instances
// coming off the LLM boundary are untrusted until Validate has passed.
type Order struct {
	OrderID  string      `json:"orderId"`
	Buyer    string      `json:"buyer"`
	City     string      `json:"city"`
	State    string      `json:"state"`
	Total    float64     `json:"total"`
	Items    []OrderItem `json:"items"`
	Returned bool        `json:"returned"`
}

// Validate checks the schema invariants and returns every violation rather
// than stopping at the first. A valid order has its state normalized to
// upper case as a side effect.
func (o *Order) Validate() []string {
	var errs []string

	if o.OrderID == "" {
		errs = append(errs, "orderId: must not be empty")
	} else if !isDigits(o.OrderID) {
		errs = append(errs, fmt.Sprintf("orderId: %q must contain only digits", o.OrderID))
	}

	if strings.TrimSpace(o.Buyer) == "" {
		errs = append(errs, "buyer: must not be empty")
	}
	if strings.TrimSpace(o.City) == "" {
		errs = append(errs, "city: must not be empty")
	}

	if len(o.State) != 2 || !isLetters(o.State) {
		errs = append(errs, fmt.Sprintf("state: %q must be a 2-letter code", o.State))
	} else {
		o.State = strings.ToUpper(o.State)
	}

	if o.Total <= 0 {
		errs = append(errs, fmt.Sprintf("total: %.2f must be greater than zero", o.Total))
	}

	if len(o.Items) == 0 {
		errs = append(errs, "items: must contain at least one item")
	}
	for i, item := range o.Items {
		if item.Rating < 1.0 || item.Rating > 5.0 {
			errs = append(errs, fmt.Sprintf("items[%d].rating: %.1f outside [1.0, 5.0]", i, item.Rating))
		}
	}

	return errs
}

// AvgRating returns the mean item rating, or 0 for an empty item list.
func (o *Order) AvgRating() float64 {
	if len(o.Items) == 0 {
		return 0
	}
	var sum float64
	for _, item := range o.Items {
		sum += item.Rating
	}
	return sum / float64(len(o.Items))
}

// OrderSummary is the compact boundary shape returned for plain queries.
type OrderSummary struct {
	OrderID string  `json:"orderId"`
	Buyer   string  `json:"buyer"`
	State   string  `json:"state"`
	Total   float64 `json:"total"`
}

// Summary projects the order down to the compact boundary shape.
func (o *Order) Summary() OrderSummary {
	return OrderSummary{
		OrderID: o.OrderID,
		Buyer:   o.Buyer,
		State:   o.State,
		Total:   o.Total,
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func isLetters(s string) bool {
	for _, r := range s {
		isLower := r >= 'a' && r <= 'z'
		isUpper := r >= 'A' && r <= 'Z'
		if !isLower && !isUpper {
			return false
		}
	}
	return s != ""
}

// RawOrderStore holds the raw order strings fetched from the upstream API.
// The strings are opaque; structure is inferred downstream.
type RawOrderStore struct {
	Orders []string `json:"orders"`
}

// TotalBatches returns how many chunks of chunkSize the store splits into.
func (s *RawOrderStore) TotalBatches(chunkSize int) int {
	if chunkSize <= 0 || len(s.Orders) == 0 {
		return 0
	}
	return (len(s.Orders) + chunkSize - 1) / chunkSize
}

// Batch returns the i-th chunk of chunkSize raw orders. Out-of-range
// indices return nil.
func (s *RawOrderStore) Batch(i, chunkSize int) []string {
	if chunkSize <= 0 || i < 0 {
		return nil
	}
	start := i * chunkSize
	if start >= len(s.Orders) {
		return nil
	}
	end := start + chunkSize
	if end > len(s.Orders) {
		end = len(s.Orders)
	}
	return s.Orders[start:end]
}

// QueryMeta is the counter snapshot taken once at pipeline completion.
type QueryMeta struct {
	TotalRaw    int `json:"totalRaw"`
	TotalParsed int `json:"totalParsed"`
	TotalValid  int `json:"totalValid"`
	TotalFailed int `json:"totalFailed"`
}

// SuccessRate is totalValid/totalRaw. An empty fetch reports 1.0: nothing
// was processed, so nothing failed.
func (m QueryMeta) SuccessRate() float64 {
	if m.TotalRaw == 0 {
		return 1.0
	}
	return float64(m.TotalValid) / float64(m.TotalRaw)
}

// AgentResult is the terminal aggregate of one query execution. It is
// produced once by the orchestrator and never mutated after return.
type AgentResult struct {
	RawStore    RawOrderStore   `json:"rawStore"`
	ValidOrders []Order         `json:"validOrders"`
	DLQ         DeadLetterQueue `json:"dlq"`
	Meta        QueryMeta       `json:"meta"`
}

// QueryResponse is the summary boundary shape for query output.
type QueryResponse struct {
	Orders []OrderSummary `json:"orders"`
	Meta   QueryMeta      `json:"meta"`
}

// FullResponse carries the complete field set per order.
type FullResponse struct {
	Orders []Order   `json:"orders"`
	Meta   QueryMeta `json:"meta"`
}

// ErrorResponse is the boundary shape for unrecoverable failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ToQueryResponse projects the result into the summary boundary shape.
func (r *AgentResult) ToQueryResponse() QueryResponse {
	orders := make([]OrderSummary, 0, len(r.ValidOrders))
	for i := range r.ValidOrders {
		orders = append(orders, r.ValidOrders[i].Summary())
	}
	return QueryResponse{Orders: orders, Meta: r.Meta}
}

// ToFullResponse projects the result into the full boundary shape.
func (r *AgentResult) ToFullResponse() FullResponse {
	return FullResponse{Orders: r.ValidOrders, Meta: r.Meta}
}
