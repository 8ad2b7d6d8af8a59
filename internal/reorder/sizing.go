package reorder

import (
	"math"

	"github.com/andresuchdata/stockpilot/internal/domain"
)

// DefaultOrderCost is the fixed cost of placing one order, used by the EOQ policy.
const DefaultOrderCost = 50.0

// Sizer computes order quantities under a sizing policy.
type Sizer struct {
	Policy    domain.SizingPolicy
	OrderCost float64
	// HoldingRate is the yearly holding cost as a fraction of the purchase price.
	// There is no default: the EOQ policy fails when it is nil.
	HoldingRate *float64
}

// Validate reports whether the sizer can size anything at all.
func (s Sizer) Validate() error {
	const op = "size order"

	policy := s.Policy
	if policy == "" {
		policy = domain.PolicyTargetFill
	}
	if !policy.Valid() {
		return domain.NewValidationError(op, "unknown sizing policy %q", s.Policy)
	}
	if policy == domain.PolicyEOQ {
		if s.HoldingRate == nil {
			return domain.NewConfigurationError(op, "holding rate is not configured")
		}
		if *s.HoldingRate < 0 || math.IsNaN(*s.HoldingRate) {
			return domain.NewValidationError(op, "holding rate must not be negative")
		}
		if s.OrderCost < 0 {
			return domain.NewValidationError(op, "order cost must not be negative")
		}
	}
	return nil
}

// Size returns the quantity to order for article selling averageDaily units a day.
func (s Sizer) Size(article domain.Article, averageDaily float64) (int, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}

	if s.Policy != domain.PolicyEOQ {
		return TargetFill(article.OptimalStock, article.Quantity), nil
	}
	holdingCost := article.PurchasePrice * *s.HoldingRate
	return EOQ(averageDaily*365, s.OrderCost, holdingCost, article.OptimalStock), nil
}

// TargetFill brings the stock back to its optimal level.
func TargetFill(optimal, current int) int {
	return max(0, optimal-current)
}

// EOQ is the Wilson economic order quantity round(sqrt(2DS/H)). Without demand or
// holding cost it falls back to fallback. The result is at least one unit.
func EOQ(annualDemand, orderCost, holdingCost float64, fallback int) int {
	if holdingCost <= 0 || annualDemand <= 0 {
		return max(fallback, 1)
	}
	q := int(math.Round(math.Sqrt(2 * annualDemand * orderCost / holdingCost)))
	return max(q, 1)
}

// UrgencyFor ranks a quantity against its threshold. ok is false when no order is needed.
func UrgencyFor(quantity, threshold int) (domain.Urgency, bool) {
	q, t := float64(quantity), float64(threshold)
	switch {
	case quantity <= 0:
		return domain.UrgencyCritical, true
	case q < 0.5*t:
		return domain.UrgencyHigh, true
	case q < t:
		return domain.UrgencyMedium, true
	case q < 1.5*t:
		return domain.UrgencyLow, true
	}
	return "", false
}
