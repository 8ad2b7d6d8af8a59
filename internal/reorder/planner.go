// Package reorder turns threshold breaches into sized, prioritized purchase suggestions.
package reorder

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/andresuchdata/stockpilot/internal/forecast"
	"github.com/andresuchdata/stockpilot/internal/sales"
	"github.com/rs/zerolog/log"
)

// Catalog lists the articles to evaluate.
type Catalog interface {
	ListArticles() []domain.Article
}

// Thresholds resolves the effective threshold of an article.
type Thresholds interface {
	Effective(article domain.Article) (int, error)
}

// Planner builds recommendations and purchase orders from the live catalog.
type Planner struct {
	catalog            Catalog
	thresholds         Thresholds
	sales              *sales.Aggregator
	orderCost          float64
	holdingRate        *float64
	defaultPolicy      domain.SizingPolicy
	preventiveInOrders bool
}

type Option func(*Planner)

func WithOrderCost(cost float64) Option {
	return func(p *Planner) {
		if cost >= 0 {
			p.orderCost = cost
		}
	}
}

// WithHoldingRate sets the yearly holding rate. Nil leaves it unconfigured.
func WithHoldingRate(rate *float64) Option {
	return func(p *Planner) {
		p.holdingRate = rate
	}
}

// WithDefaultPolicy sets the policy used when a caller passes none.
func WithDefaultPolicy(policy domain.SizingPolicy) Option {
	return func(p *Planner) {
		if policy.Valid() {
			p.defaultPolicy = policy
		}
	}
}

// WithPreventiveInOrders makes purchase orders include low-urgency recommendations.
func WithPreventiveInOrders(include bool) Option {
	return func(p *Planner) {
		p.preventiveInOrders = include
	}
}

func NewPlanner(catalog Catalog, thresholds Thresholds, agg *sales.Aggregator, opts ...Option) *Planner {
	p := &Planner{
		catalog:       catalog,
		thresholds:    thresholds,
		sales:         agg,
		orderCost:     DefaultOrderCost,
		defaultPolicy: domain.PolicyTargetFill,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Sizer returns the sizer of policy with the planner's costs.
func (p *Planner) Sizer(policy domain.SizingPolicy) Sizer {
	if policy == "" {
		policy = p.defaultPolicy
	}
	return Sizer{Policy: policy, OrderCost: p.orderCost, HoldingRate: p.holdingRate}
}

// HoldingRate returns the configured holding rate, nil when unset.
func (p *Planner) HoldingRate() *float64 {
	return p.holdingRate
}

func (p *Planner) OrderCost() float64 {
	return p.orderCost
}

// Recommend evaluates every active article. Low-urgency recommendations are kept
// only when includePreventive is set. An empty policy uses the planner default.
func (p *Planner) Recommend(includePreventive bool, policy domain.SizingPolicy) ([]domain.Recommendation, error) {
	sizer := p.Sizer(policy)
	if err := sizer.Validate(); err != nil {
		return nil, err
	}

	now := p.sales.Now()
	var out []domain.Recommendation

	for _, article := range p.catalog.ListArticles() {
		if !article.Active {
			continue
		}

		rec, ok, err := p.evaluate(article, sizer, includePreventive, now)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}

	SortRecommendations(out)
	log.Debug().
		Int("recommendations", len(out)).
		Str("policy", string(sizer.Policy)).
		Bool("preventive", includePreventive).
		Msg("reorder recommendations built")

	return out, nil
}

func (p *Planner) evaluate(article domain.Article, sizer Sizer, includePreventive bool, now time.Time) (domain.Recommendation, bool, error) {
	threshold, err := p.thresholds.Effective(article)
	if err != nil {
		if !errors.Is(err, domain.ErrConfiguration) {
			return domain.Recommendation{}, false, err
		}
		if article.Quantity > 0 {
			log.Warn().Str("article_id", article.ID).Err(err).Msg("no threshold, skipping article")
			return domain.Recommendation{}, false, nil
		}
		threshold = 0
	}

	urgency, ok := UrgencyFor(article.Quantity, threshold)
	if !ok || (urgency == domain.UrgencyLow && !includePreventive) {
		return domain.Recommendation{}, false, nil
	}

	stats, err := p.sales.Stats(article.ID)
	if err != nil {
		return domain.Recommendation{}, false, err
	}
	// nothing is consumed, so a preventive order can wait
	if urgency == domain.UrgencyLow && stats.AverageDaily <= 0 {
		return domain.Recommendation{}, false, nil
	}

	quantity, err := sizer.Size(article, stats.AverageDaily)
	if err != nil {
		return domain.Recommendation{}, false, err
	}
	if quantity <= 0 {
		return domain.Recommendation{}, false, nil
	}

	rec := domain.Recommendation{
		ArticleID:          article.ID,
		ArticleName:        article.Name,
		ArticleReference:   article.Reference,
		Urgency:            urgency,
		Quantity:           quantity,
		UnitCost:           article.PurchasePrice,
		EstimatedCost:      float64(quantity) * article.PurchasePrice,
		Supplier:           article.Supplier,
		SuggestedOrderDate: suggestedOrderDate(article.Quantity, threshold, stats.AverageDaily, urgency, now),
		CurrentQuantity:    article.Quantity,
		Threshold:          threshold,
		OptimalStock:       article.OptimalStock,
		LeadTimeDays:       article.LeadTimeDays,
		DaysUntilStockout:  forecast.DaysUntilStockout(article.Quantity, stats.AverageDaily),
		Policy:             sizer.Policy,
		Reason:             reason(article.Quantity, threshold, urgency),
	}
	return rec, true, nil
}

// suggestedOrderDate is now, except for preventive orders which can wait until
// projected consumption brings the stock down to the threshold.
func suggestedOrderDate(quantity, threshold int, averageDaily float64, urgency domain.Urgency, now time.Time) time.Time {
	if urgency != domain.UrgencyLow || averageDaily <= 0 {
		return now
	}
	days := int(math.Floor(float64(quantity-threshold) / averageDaily))
	return now.AddDate(0, 0, max(days, 0))
}

func reason(quantity, threshold int, urgency domain.Urgency) string {
	switch urgency {
	case domain.UrgencyCritical:
		if quantity < 0 {
			return fmt.Sprintf("negative stock (%d)", quantity)
		}
		return "out of stock"
	case domain.UrgencyHigh:
		return fmt.Sprintf("stock %d is under half of threshold %d", quantity, threshold)
	case domain.UrgencyMedium:
		return fmt.Sprintf("stock %d is below threshold %d", quantity, threshold)
	default:
		return fmt.Sprintf("preventive: stock %d is approaching threshold %d", quantity, threshold)
	}
}

// SortRecommendations orders by urgency, then days until stockout with unknown
// last, then article id.
func SortRecommendations(recs []domain.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Urgency.Rank() != b.Urgency.Rank() {
			return a.Urgency.Rank() < b.Urgency.Rank()
		}
		switch {
		case a.DaysUntilStockout != nil && b.DaysUntilStockout != nil:
			if *a.DaysUntilStockout != *b.DaysUntilStockout {
				return *a.DaysUntilStockout < *b.DaysUntilStockout
			}
		case a.DaysUntilStockout != nil:
			return true
		case b.DaysUntilStockout != nil:
			return false
		}
		return a.ArticleID < b.ArticleID
	})
}
