package valuation

import (
	"sort"
	"time"

	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/andresuchdata/stockpilot/internal/sales"
)

const (
	FastMoverTurnover = 12.0
	SlowMoverTurnover = 4.0
	topListSize       = 5
	idleListSize      = 10
)

// ArticleKPI holds the value and velocity figures of one article.
type ArticleKPI struct {
	ArticleID         string  `json:"article_id"`
	ArticleName       string  `json:"article_name"`
	Category          string  `json:"category"`
	Quantity          int     `json:"quantity"`
	StockedValue      float64 `json:"stocked_value"`
	PotentialRevenue  float64 `json:"potential_revenue"`
	PotentialMargin   float64 `json:"potential_margin"`
	MarginRate        float64 `json:"margin_rate"`
	Markup            float64 `json:"markup"`
	AverageDailySales float64 `json:"average_daily_sales"`
	Turnover          float64 `json:"turnover"`
}

// CategoryKPI aggregates the articles of one category.
type CategoryKPI struct {
	Category         string  `json:"category"`
	Articles         int     `json:"articles"`
	StockedValue     float64 `json:"stocked_value"`
	PotentialRevenue float64 `json:"potential_revenue"`
	PotentialMargin  float64 `json:"potential_margin"`
	Share            float64 `json:"share"`
}

// Summary is the catalog-wide KPI report.
type Summary struct {
	GeneratedAt time.Time `json:"generated_at"`

	Articles       int `json:"articles"`
	ActiveArticles int `json:"active_articles"`
	StockoutCount  int `json:"stockout_count"`

	StockedValue      float64 `json:"stocked_value"`
	PotentialRevenue  float64 `json:"potential_revenue"`
	PotentialMargin   float64 `json:"potential_margin"`
	MarginRate        float64 `json:"margin_rate"`
	AverageMarginRate float64 `json:"average_margin_rate"`
	AverageMarkup     float64 `json:"average_markup"`

	AverageTurnover float64 `json:"average_turnover"`
	FastMovers      int     `json:"fast_movers"`
	SlowMovers      int     `json:"slow_movers"`
	ServiceRate     float64 `json:"service_rate"`

	// Nil when no holding rate is configured.
	AnnualHoldingCost *float64 `json:"annual_holding_cost,omitempty"`

	Categories  []CategoryKPI `json:"categories"`
	TopByValue  []ArticleKPI  `json:"top_by_value"`
	TopByMargin []ArticleKPI  `json:"top_by_margin"`
	Idle        []ArticleKPI  `json:"idle"`
}

// PromotionCandidate is a slow-moving article holding more than its optimal stock.
type PromotionCandidate struct {
	ArticleKPI
	OptimalStock int     `json:"optimal_stock"`
	Score        float64 `json:"score"`
}

// SalesReport summarizes demand over a trailing window.
type SalesReport struct {
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	Days          int       `json:"days"`
	Units         int       `json:"units"`
	Revenue       float64   `json:"revenue"`
	UnitsPerDay   float64   `json:"units_per_day"`
	RevenuePerDay float64   `json:"revenue_per_day"`
	ArticlesSold  int       `json:"articles_sold"`
	BestSellerID  string    `json:"best_seller_id,omitempty"`
	BestSellerQty int       `json:"best_seller_quantity"`
	TopRevenueID  string    `json:"top_revenue_id,omitempty"`
	TopRevenue    float64   `json:"top_revenue"`
}

// Ledger is the read side of the store used for KPIs.
type Ledger interface {
	ListArticles() []domain.Article
	Movements() []domain.Movement
}

// Analyzer computes KPIs from the live catalog.
type Analyzer struct {
	ledger      Ledger
	holdingRate *float64
	now         func() time.Time
}

func NewAnalyzer(ledger Ledger, holdingRate *float64, now func() time.Time) *Analyzer {
	if now == nil {
		now = time.Now
	}
	return &Analyzer{ledger: ledger, holdingRate: holdingRate, now: now}
}

// ComputeKPI derives the figures of a single article. Derived metrics must already be filled.
func ComputeKPI(a domain.Article) ArticleKPI {
	return ArticleKPI{
		ArticleID:         a.ID,
		ArticleName:       a.Name,
		Category:          a.Category,
		Quantity:          a.Quantity,
		StockedValue:      a.StockedValue(),
		PotentialRevenue:  a.PotentialRevenue(),
		PotentialMargin:   a.PotentialRevenue() - a.StockedValue(),
		MarginRate:        a.MarginRate(),
		Markup:            a.Markup(),
		AverageDailySales: a.AverageDailySales,
		Turnover:          a.AnnualTurnover,
	}
}

// ArticleKPIs returns the KPIs of every article in catalog order.
func (an *Analyzer) ArticleKPIs() []ArticleKPI {
	articles := an.ledger.ListArticles()
	out := make([]ArticleKPI, len(articles))
	for i, a := range articles {
		out[i] = ComputeKPI(a)
	}
	return out
}

// Summary aggregates the catalog.
func (an *Analyzer) Summary() Summary {
	return Summarize(an.ledger.ListArticles(), an.holdingRate, an.now())
}

// Summarize is the pure form of Analyzer.Summary.
func Summarize(articles []domain.Article, holdingRate *float64, now time.Time) Summary {
	s := Summary{GeneratedAt: now, Articles: len(articles)}

	kpis := make([]ArticleKPI, len(articles))
	categories := make(map[string]*CategoryKPI)
	var marginRates, markups, turnovers []float64

	for i, a := range articles {
		k := ComputeKPI(a)
		kpis[i] = k

		s.StockedValue += k.StockedValue
		s.PotentialRevenue += k.PotentialRevenue
		if a.Active {
			s.ActiveArticles++
			if a.Quantity > 0 {
				s.ServiceRate++
			}
		}
		if a.Quantity <= 0 {
			s.StockoutCount++
		}
		if a.SalePrice > 0 {
			marginRates = append(marginRates, k.MarginRate)
		}
		if a.PurchasePrice > 0 {
			markups = append(markups, k.Markup)
		}
		if k.Turnover > 0 {
			turnovers = append(turnovers, k.Turnover)
		}
		if k.Turnover > FastMoverTurnover {
			s.FastMovers++
		}
		if k.Turnover > 0 && k.Turnover < SlowMoverTurnover {
			s.SlowMovers++
		}

		c, ok := categories[a.Category]
		if !ok {
			c = &CategoryKPI{Category: a.Category}
			categories[a.Category] = c
		}
		c.Articles++
		c.StockedValue += k.StockedValue
		c.PotentialRevenue += k.PotentialRevenue
		c.PotentialMargin += k.PotentialMargin
	}

	s.PotentialMargin = s.PotentialRevenue - s.StockedValue
	if s.PotentialRevenue > 0 {
		s.MarginRate = s.PotentialMargin / s.PotentialRevenue
	}
	s.AverageMarginRate = mean(marginRates)
	s.AverageMarkup = mean(markups)
	s.AverageTurnover = mean(turnovers)
	if s.ActiveArticles > 0 {
		s.ServiceRate /= float64(s.ActiveArticles)
	}
	if holdingRate != nil {
		cost := s.StockedValue * *holdingRate
		s.AnnualHoldingCost = &cost
	}

	for _, c := range categories {
		if s.StockedValue > 0 {
			c.Share = c.StockedValue / s.StockedValue
		}
		s.Categories = append(s.Categories, *c)
	}
	sort.Slice(s.Categories, func(i, j int) bool {
		if s.Categories[i].StockedValue != s.Categories[j].StockedValue {
			return s.Categories[i].StockedValue > s.Categories[j].StockedValue
		}
		return s.Categories[i].Category < s.Categories[j].Category
	})

	s.TopByValue = top(kpis, func(k ArticleKPI) float64 { return k.StockedValue }, topListSize)
	s.TopByMargin = top(kpis, func(k ArticleKPI) float64 { return k.PotentialMargin }, topListSize)
	for _, k := range kpis {
		if k.AverageDailySales == 0 && k.Quantity > 0 && len(s.Idle) < idleListSize {
			s.Idle = append(s.Idle, k)
		}
	}
	return s
}

// PromotionCandidates lists active articles turning over slower than SlowMoverTurnover
// while holding more than their optimal stock, most capital tied up first.
func (an *Analyzer) PromotionCandidates(limit int) []PromotionCandidate {
	var out []PromotionCandidate
	for _, a := range an.ledger.ListArticles() {
		if !a.Active || a.AnnualTurnover >= SlowMoverTurnover || a.Quantity <= a.OptimalStock {
			continue
		}
		k := ComputeKPI(a)
		out = append(out, PromotionCandidate{
			ArticleKPI:   k,
			OptimalStock: a.OptimalStock,
			Score:        k.StockedValue / (k.Turnover + 0.1),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SalesReport summarizes demand of the trailing window of days calendar days.
func (an *Analyzer) SalesReport(days int) (SalesReport, error) {
	if days < 1 {
		return SalesReport{}, domain.NewValidationError("sales report", "days must be at least 1, got %d", days)
	}

	now := an.now()
	r := SalesReport{From: sales.WindowStart(now, days), To: now, Days: days}
	units := make(map[string]int)
	revenue := make(map[string]float64)

	for _, m := range an.ledger.Movements() {
		if !m.IsDemand() || m.Timestamp.Before(r.From) || m.Timestamp.After(now) {
			continue
		}
		value := float64(m.Quantity) * m.UnitPrice
		r.Units += m.Quantity
		r.Revenue += value
		units[m.ArticleID] += m.Quantity
		revenue[m.ArticleID] += value
	}

	r.UnitsPerDay = float64(r.Units) / float64(days)
	r.RevenuePerDay = r.Revenue / float64(days)
	r.ArticlesSold = len(units)
	for id, q := range units {
		if q > r.BestSellerQty || (q == r.BestSellerQty && id < r.BestSellerID) {
			r.BestSellerID, r.BestSellerQty = id, q
		}
	}
	for id, v := range revenue {
		if v > r.TopRevenue || (v == r.TopRevenue && id < r.TopRevenueID) {
			r.TopRevenueID, r.TopRevenue = id, v
		}
	}
	return r, nil
}

func top(kpis []ArticleKPI, key func(ArticleKPI) float64, n int) []ArticleKPI {
	sorted := make([]ArticleKPI, len(kpis))
	copy(sorted, kpis)
	sort.SliceStable(sorted, func(i, j int) bool { return key(sorted[i]) > key(sorted[j]) })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
