// Package analytics computes summary statistics over validated orders.
package analytics

import (
	"math"

	"github.com/sells-group/order-agent/internal/model"
)

// Summary holds aggregate statistics for a set of orders.
type Summary struct {
	TotalOrders      int     `json:"total_orders"`
	TotalRevenue     float64 `json:"total_revenue"`
	AvgOrderValue    float64 `json:"avg_order_value"`
	ReturnRatePct    float64 `json:"return_rate_pct"`
	AvgRating        float64 `json:"avg_rating"`
	AvgItemsPerOrder float64 `json:"avg_items_per_order"`
}

// Summarize computes summary statistics. An empty order set yields the
// zero Summary.
func Summarize(orders []model.Order) Summary {
	if len(orders) == 0 {
		return Summary{}
	}

	var revenue, ratingSum float64
	var items, returns int
	for i := range orders {
		o := &orders[i]
		revenue += o.Total
		ratingSum += o.AvgRating()
		items += len(o.Items)
		if o.Returned {
			returns++
		}
	}

	n := float64(len(orders))
	return Summary{
		TotalOrders:      len(orders),
		TotalRevenue:     round2(revenue),
		AvgOrderValue:    round2(revenue / n),
		ReturnRatePct:    round1(float64(returns) / n * 100),
		AvgRating:        round2(ratingSum / n),
		AvgItemsPerOrder: round2(float64(items) / n),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
