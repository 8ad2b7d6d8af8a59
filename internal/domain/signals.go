package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AnomalyKind identifies one of the stock-health checks.
type AnomalyKind string

const (
	AnomalyNegativeStock     AnomalyKind = "NEGATIVE_STOCK"
	AnomalyStockout          AnomalyKind = "STOCKOUT"
	AnomalyBelowThreshold    AnomalyKind = "BELOW_THRESHOLD"
	AnomalyOverstock         AnomalyKind = "OVERSTOCK"
	AnomalyDormant           AnomalyKind = "DORMANT"
	AnomalyAbnormalVariation AnomalyKind = "ABNORMAL_VARIATION"
)

var anomalyKindRanks = map[AnomalyKind]int{
	AnomalyNegativeStock:     0,
	AnomalyStockout:          1,
	AnomalyBelowThreshold:    2,
	AnomalyOverstock:         3,
	AnomalyDormant:           4,
	AnomalyAbnormalVariation: 5,
}

// Rank gives a stable order between kinds of equal severity.
func (k AnomalyKind) Rank() int {
	if rank, ok := anomalyKindRanks[k]; ok {
		return rank
	}
	return len(anomalyKindRanks)
}

// Anomaly is a stock-health finding for one article.
type Anomaly struct {
	Kind        AnomalyKind `json:"kind"`
	Severity    Severity    `json:"severity"`
	ArticleID   string      `json:"article_id"`
	ArticleName string      `json:"article_name"`
	Message     string      `json:"message"`
	DetectedAt  time.Time   `json:"detected_at"`
	Observed    float64     `json:"observed"`
	Expected    *float64    `json:"expected,omitempty"`
}

// SizingPolicy selects how reorder quantities are computed.
type SizingPolicy string

const (
	PolicyTargetFill SizingPolicy = "target_fill"
	PolicyEOQ        SizingPolicy = "eoq"
)

func (p SizingPolicy) Valid() bool {
	return p == PolicyTargetFill || p == PolicyEOQ
}

// ParseSizingPolicy accepts the policy names case-insensitively.
func ParseSizingPolicy(s string) (SizingPolicy, error) {
	p := SizingPolicy(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return PolicyTargetFill, nil
	}
	if !p.Valid() {
		return "", NewValidationError("parse sizing policy", "unknown policy %q", s)
	}
	return p, nil
}

// Recommendation is a sized, prioritized purchase suggestion for one article.
type Recommendation struct {
	ArticleID          string       `json:"article_id"`
	ArticleName        string       `json:"article_name"`
	ArticleReference   string       `json:"article_reference"`
	Urgency            Urgency      `json:"urgency"`
	Quantity           int          `json:"quantity"`
	EstimatedCost      float64      `json:"estimated_cost"`
	UnitCost           float64      `json:"unit_cost"`
	Supplier           string       `json:"supplier"`
	SuggestedOrderDate time.Time    `json:"suggested_order_date"`
	CurrentQuantity    int          `json:"current_quantity"`
	Threshold          int          `json:"threshold"`
	OptimalStock       int          `json:"optimal_stock"`
	LeadTimeDays       int          `json:"lead_time_days"`
	DaysUntilStockout  *int         `json:"days_until_stockout,omitempty"`
	Policy             SizingPolicy `json:"policy"`
	Reason             string       `json:"reason"`
}

// PurchaseOrderLine is one article of a purchase order.
type PurchaseOrderLine struct {
	ArticleID        string          `json:"article_id"`
	ArticleName      string          `json:"article_name"`
	ArticleReference string          `json:"article_reference"`
	Quantity         int             `json:"quantity"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	Total            decimal.Decimal `json:"total"`
	Urgency          Urgency         `json:"urgency"`
}

// PurchaseOrder groups recommendations of a single supplier.
type PurchaseOrder struct {
	Number        string              `json:"number"`
	Supplier      string              `json:"supplier"`
	CreatedAt     time.Time           `json:"created_at"`
	Lines         []PurchaseOrderLine `json:"lines"`
	TotalQuantity int                 `json:"total_quantity"`
	TotalCost     decimal.Decimal     `json:"total_cost"`
	MaxUrgency    Urgency             `json:"max_urgency"`
	Status        OrderStatus         `json:"status"`
}

// Advance moves the order to its next status: draft → sent → received.
func (po *PurchaseOrder) Advance() error {
	next, ok := orderStatusNext[po.Status]
	if !ok {
		return NewValidationError("advance purchase order", "order %s is already %s", po.Number, po.Status)
	}
	po.Status = next
	return nil
}
