// Package scenario runs what-if simulations on a private copy of the inventory.
package scenario

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/andresuchdata/stockpilot/internal/inventory"
	"github.com/andresuchdata/stockpilot/internal/reorder"
	"github.com/andresuchdata/stockpilot/internal/sales"
	"github.com/andresuchdata/stockpilot/internal/threshold"
	"github.com/rs/zerolog/log"
)

const DefaultHorizonDays = 90

// Source provides the catalog the simulator copies.
type Source interface {
	Snapshot() inventory.Snapshot
	GetArticle(articleID string) (domain.Article, error)
}

// Config holds the engine settings a simulation runs under.
type Config struct {
	SafetyMargin float64
	OrderCost    float64
	// HoldingRate has no default. Runs fail with a configuration error when it is nil.
	HoldingRate *float64
	Policy      domain.SizingPolicy
	HorizonDays int
}

// Simulator runs scenarios against snapshots of source.
type Simulator struct {
	source Source
	cfg    Config
}

func NewSimulator(source Source, cfg Config) *Simulator {
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = threshold.DefaultSafetyMargin
	}
	if cfg.OrderCost < 0 {
		cfg.OrderCost = reorder.DefaultOrderCost
	}
	if !cfg.Policy.Valid() {
		cfg.Policy = domain.PolicyTargetFill
	}
	if cfg.HorizonDays < 1 {
		cfg.HorizonDays = DefaultHorizonDays
	}
	return &Simulator{source: source, cfg: cfg}
}

type runOptions struct {
	horizon int
	seed    *int64
}

// Option tunes a single run.
type Option func(*runOptions)

// WithHorizon sets the number of simulated days.
func WithHorizon(days int) Option {
	return func(o *runOptions) {
		o.horizon = days
	}
}

// WithSeed makes the run reproducible.
func WithSeed(seed int64) Option {
	return func(o *runOptions) {
		o.seed = &seed
	}
}

// simArticle is the mutable state of one article during a run.
type simArticle struct {
	article   domain.Article
	rate      float64
	threshold int
	short     bool
}

// Run simulates params day by day. The live inventory is never touched.
func (s *Simulator) Run(ctx context.Context, params domain.ScenarioParameters, opts ...Option) (domain.ScenarioResult, error) {
	const op = "run scenario"

	o := runOptions{horizon: s.cfg.HorizonDays}
	for _, opt := range opts {
		opt(&o)
	}
	if o.horizon < 1 {
		return domain.ScenarioResult{}, domain.NewValidationError(op, "horizon must be at least 1 day, got %d", o.horizon)
	}
	if err := params.Validate(); err != nil {
		return domain.ScenarioResult{}, err
	}
	if s.cfg.HoldingRate == nil {
		return domain.ScenarioResult{}, domain.NewConfigurationError(op, "holding rate is not configured")
	}

	policy := params.Policy
	if policy == "" {
		policy = s.cfg.Policy
	}
	sizer := reorder.Sizer{
		Policy:      policy,
		OrderCost:   s.cfg.OrderCost * (1 + params.OrderCostDelta),
		HoldingRate: s.cfg.HoldingRate,
	}
	if err := sizer.Validate(); err != nil {
		return domain.ScenarioResult{}, err
	}

	rng := newRand(o.seed)
	snap := s.source.Snapshot().Clone()
	articles, err := s.prepare(snap, params)
	if err != nil {
		return domain.ScenarioResult{}, err
	}

	result := domain.ScenarioResult{
		Parameters:  params,
		HorizonDays: o.horizon,
		Seed:        o.seed,
		StartedAt:   snap.TakenAt,
		Events:      []domain.ScenarioEvent{},
	}
	start := sales.DayStart(snap.TakenAt)
	holdingRate := *s.cfg.HoldingRate
	m := &result.Metrics

	for day := 1; day <= o.horizon; day++ {
		if err := ctx.Err(); err != nil {
			return domain.ScenarioResult{}, err
		}
		date := start.AddDate(0, 0, day)

		for _, sa := range articles {
			a := &sa.article

			demand := dailyDemand(sa.rate, params.DemandVariability, rng)
			sold := min(demand, max(a.Quantity, 0))
			shortfall := demand - sold

			a.Quantity -= sold
			m.Revenue += float64(sold) * a.SalePrice
			m.CostOfGoodsSold += float64(sold) * a.PurchasePrice

			if shortfall > 0 {
				m.StockoutDays++
				m.LostSales += float64(shortfall) * a.SalePrice
				if !sa.short {
					m.StockoutOccurrences++
				}
				result.Events = append(result.Events, domain.ScenarioEvent{
					Day:       day,
					Date:      date,
					Kind:      domain.EventStockout,
					ArticleID: a.ID,
					Quantity:  shortfall,
					Message:   fmt.Sprintf("%s short by %d units", a.Name, shortfall),
				})
			}
			sa.short = shortfall > 0

			if a.Quantity < sa.threshold {
				qty, err := sizer.Size(*a, sa.rate)
				if err != nil {
					return domain.ScenarioResult{}, err
				}
				if qty > 0 {
					a.Quantity += qty
					m.ReorderCount++
					m.ReplenishmentSpend += float64(qty) * a.PurchasePrice
					result.Events = append(result.Events, domain.ScenarioEvent{
						Day:       day,
						Date:      date,
						Kind:      domain.EventReorder,
						ArticleID: a.ID,
						Quantity:  qty,
						Message:   fmt.Sprintf("reordered %d units of %s", qty, a.Name),
					})
				}
			}

			m.HoldingCost += float64(max(a.Quantity, 0)) * a.PurchasePrice * holdingRate / 365
		}
	}

	m.Margin = m.Revenue - m.CostOfGoodsSold
	if m.Revenue > 0 {
		m.MarginRate = m.Margin / m.Revenue
	}
	if len(articles) > 0 {
		var total int
		for _, sa := range articles {
			total += sa.article.Quantity
		}
		m.EndingAverageStock = float64(total) / float64(len(articles))
	}
	result.Score = Score(*m)

	log.Debug().
		Str("scenario", params.Name).
		Int("horizon", o.horizon).
		Int("articles", len(articles)).
		Float64("score", result.Score).
		Msg("scenario simulated")

	return result, nil
}

// prepare applies the scenario adjustments to the active articles of snap.
func (s *Simulator) prepare(snap inventory.Snapshot, params domain.ScenarioParameters) ([]*simArticle, error) {
	forced := make(map[string]bool, len(params.ForcedStockouts))
	for _, id := range params.ForcedStockouts {
		forced[id] = true
	}

	var out []*simArticle
	seen := make(map[string]bool)
	for _, a := range snap.Active() {
		a.SalePrice *= 1 + params.SalePriceDelta
		a.PurchasePrice *= 1 + params.PurchaseCostDelta
		a.LeadTimeDays = max(1, a.LeadTimeDays+params.LeadTimeDelta)
		if forced[a.ID] {
			a.Quantity = 0
			seen[a.ID] = true
		}

		rate := a.AverageDailySales * (1 + params.DemandGrowth)
		thr := 0
		if a.ManualThreshold != nil {
			thr = *a.ManualThreshold
		} else {
			v, err := threshold.Compute(rate, a.LeadTimeDays, s.cfg.SafetyMargin, a.OptimalStock)
			if err != nil {
				return nil, err
			}
			thr = v
		}
		out = append(out, &simArticle{article: a, rate: rate, threshold: thr})
	}

	for id := range forced {
		if !seen[id] {
			log.Warn().Str("article_id", id).Str("scenario", params.Name).Msg("forced stockout of unknown or inactive article ignored")
		}
	}
	return out, nil
}

// dailyDemand rounds rate after an optional normal perturbation of relative size variability.
func dailyDemand(rate, variability float64, rng *rand.Rand) int {
	if variability > 0 && rate > 0 {
		rate *= 1 + rng.NormFloat64()*variability
	}
	return max(0, int(math.Round(rate)))
}

func newRand(seed *int64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewSource(*seed))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Score rates a run in [0,100]: 40 points for margin, 40 for availability and 20 for
// ordering effort.
func Score(m domain.ScenarioMetrics) float64 {
	margin := 40 * math.Min(1, m.MarginRate/0.5)
	availability := math.Max(0, 40-float64(m.StockoutDays)/10)
	effort := math.Max(0, 20-float64(m.ReorderCount)/5)
	return math.Max(0, math.Min(100, margin+availability+effort))
}

// Compare runs every scenario independently and ranks them by score, best first.
// Equal scores keep the input order.
func (s *Simulator) Compare(ctx context.Context, list []domain.ScenarioParameters, opts ...Option) ([]domain.ScenarioResult, error) {
	out := make([]domain.ScenarioResult, 0, len(list))
	for _, params := range list {
		r, err := s.Run(ctx, params, opts...)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", params.Name, err)
		}
		out = append(out, r)
	}
	Rank(out)
	return out, nil
}

// Rank sorts results by score, best first, keeping the order of equal scores.
func Rank(results []domain.ScenarioResult) {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
}
