package domain

import (
	"math"
	"strings"
	"time"
)

// ScenarioParameters is a named bundle of adjustments applied to a simulated inventory.
type ScenarioParameters struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Multiplicative: 0.2 means +20%, -1 means no demand at all.
	DemandGrowth      float64 `json:"demand_growth"`
	SalePriceDelta    float64 `json:"sale_price_delta"`
	PurchaseCostDelta float64 `json:"purchase_cost_delta"`
	OrderCostDelta    float64 `json:"order_cost_delta"`

	// Additive, in days. Lead times never drop below one day.
	LeadTimeDelta int `json:"lead_time_delta"`

	// Articles forced to zero stock before the first simulated day.
	ForcedStockouts []string `json:"forced_stockouts,omitempty"`

	// Standard deviation of the daily demand noise as a fraction of demand. 0 disables noise.
	DemandVariability float64 `json:"demand_variability"`

	Policy SizingPolicy `json:"policy,omitempty"`
}

// Validate rejects parameters that cannot produce a meaningful run.
func (p ScenarioParameters) Validate() error {
	const op = "validate scenario"

	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError(op, "scenario name is required")
	}
	deltas := []struct {
		name  string
		value float64
	}{
		{"demand growth", p.DemandGrowth},
		{"sale price delta", p.SalePriceDelta},
		{"purchase cost delta", p.PurchaseCostDelta},
		{"order cost delta", p.OrderCostDelta},
	}
	for _, d := range deltas {
		if math.IsNaN(d.value) || math.IsInf(d.value, 0) {
			return NewValidationError(op, "%s must be finite", d.name)
		}
		if d.value < -1 {
			return NewValidationError(op, "%s must be at least -1, got %g", d.name, d.value)
		}
	}
	if p.DemandVariability < 0 || math.IsNaN(p.DemandVariability) {
		return NewValidationError(op, "demand variability must not be negative")
	}
	if p.Policy != "" && !p.Policy.Valid() {
		return NewValidationError(op, "unknown sizing policy %q", p.Policy)
	}
	return nil
}

// ScenarioEventKind classifies simulated occurrences.
type ScenarioEventKind string

const (
	EventStockout ScenarioEventKind = "stockout"
	EventReorder  ScenarioEventKind = "reorder"
)

// ScenarioEvent is one entry of the simulation log.
type ScenarioEvent struct {
	Day       int               `json:"day"`
	Date      time.Time         `json:"date"`
	Kind      ScenarioEventKind `json:"kind"`
	ArticleID string            `json:"article_id"`
	Quantity  int               `json:"quantity"`
	Message   string            `json:"message"`
}

// ScenarioMetrics aggregates a simulated horizon.
type ScenarioMetrics struct {
	Revenue             float64 `json:"revenue"`
	CostOfGoodsSold     float64 `json:"cost_of_goods_sold"`
	Margin              float64 `json:"margin"`
	MarginRate          float64 `json:"margin_rate"`
	StockoutDays        int     `json:"stockout_days"`
	StockoutOccurrences int     `json:"stockout_occurrences"`
	LostSales           float64 `json:"lost_sales"`
	ReorderCount        int     `json:"reorder_count"`
	ReplenishmentSpend  float64 `json:"replenishment_spend"`
	HoldingCost         float64 `json:"holding_cost"`
	EndingAverageStock  float64 `json:"ending_average_stock"`
}

// ScenarioResult is the outcome of one simulation run.
type ScenarioResult struct {
	Parameters  ScenarioParameters `json:"parameters"`
	HorizonDays int                `json:"horizon_days"`
	Seed        *int64             `json:"seed,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	Metrics     ScenarioMetrics    `json:"metrics"`
	Events      []ScenarioEvent    `json:"events"`
	Score       float64            `json:"score"`
}
