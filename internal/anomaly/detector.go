// Package anomaly flags stock-health problems across the catalog.
package anomaly

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/andresuchdata/stockpilot/internal/sales"
	"github.com/rs/zerolog/log"
)

const (
	DefaultOverstockFactor = 2.0
	// DefaultVariationLimit is the relative deviation of the latest day above which demand is abnormal.
	DefaultVariationLimit = 2.0
)

// Catalog lists the articles to evaluate.
type Catalog interface {
	ListArticles() []domain.Article
}

// Thresholds resolves the effective threshold of an article.
type Thresholds interface {
	Effective(article domain.Article) (int, error)
}

// Detector runs the six stock-health checks on every article.
type Detector struct {
	catalog         Catalog
	thresholds      Thresholds
	sales           *sales.Aggregator
	overstockFactor float64
	variationLimit  float64
}

type Option func(*Detector)

// WithOverstockFactor sets the multiple of optimal stock above which an article is overstocked.
func WithOverstockFactor(f float64) Option {
	return func(d *Detector) {
		if f > 0 {
			d.overstockFactor = f
		}
	}
}

func WithVariationLimit(limit float64) Option {
	return func(d *Detector) {
		if limit > 0 {
			d.variationLimit = limit
		}
	}
}

func NewDetector(catalog Catalog, thresholds Thresholds, agg *sales.Aggregator, opts ...Option) *Detector {
	d := &Detector{
		catalog:         catalog,
		thresholds:      thresholds,
		sales:           agg,
		overstockFactor: DefaultOverstockFactor,
		variationLimit:  DefaultVariationLimit,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect evaluates the whole catalog. Results are ordered by severity, article id, then kind.
func (d *Detector) Detect() ([]domain.Anomaly, error) {
	now := d.sales.Now()
	var out []domain.Anomaly

	for _, article := range d.catalog.ListArticles() {
		found, err := d.check(article, now)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}

	Sort(out)
	log.Debug().Int("anomalies", len(out)).Msg("anomaly detection finished")
	return out, nil
}

// DetectArticle evaluates a single article.
func (d *Detector) DetectArticle(article domain.Article) ([]domain.Anomaly, error) {
	out, err := d.check(article, d.sales.Now())
	if err != nil {
		return nil, err
	}
	Sort(out)
	return out, nil
}

func (d *Detector) check(article domain.Article, now time.Time) ([]domain.Anomaly, error) {
	stats, err := d.sales.Stats(article.ID)
	if err != nil {
		return nil, err
	}

	var out []domain.Anomaly
	add := func(kind domain.AnomalyKind, severity domain.Severity, observed float64, expected *float64, msg string) {
		out = append(out, domain.Anomaly{
			Kind:        kind,
			Severity:    severity,
			ArticleID:   article.ID,
			ArticleName: article.Name,
			Message:     msg,
			DetectedAt:  now,
			Observed:    observed,
			Expected:    expected,
		})
	}
	qty := float64(article.Quantity)

	switch {
	case article.Quantity < 0:
		add(domain.AnomalyNegativeStock, domain.SeverityCritical, qty, floatPtr(0),
			fmt.Sprintf("negative stock: %d units", article.Quantity))
	case article.Quantity == 0:
		add(domain.AnomalyStockout, domain.SeverityHigh, 0, nil, "article is out of stock")
	default:
		threshold, err := d.thresholds.Effective(article)
		switch {
		case errors.Is(err, domain.ErrConfiguration):
			log.Warn().Str("article_id", article.ID).Err(err).Msg("no threshold, skipping below-threshold check")
		case err != nil:
			return nil, err
		case article.Quantity < threshold:
			msg := fmt.Sprintf("stock %d is below threshold %d", article.Quantity, threshold)
			if stats.AverageDaily > 0 {
				msg += fmt.Sprintf(", stockout expected in %d days", int(math.Floor(qty/stats.AverageDaily)))
			}
			add(domain.AnomalyBelowThreshold, domain.SeverityMedium, qty, floatPtr(float64(threshold)), msg)
		}
	}

	limit := float64(article.OptimalStock) * d.overstockFactor
	if qty > limit {
		add(domain.AnomalyOverstock, domain.SeverityLow, qty, floatPtr(float64(article.OptimalStock)),
			fmt.Sprintf("overstock: %d units for an optimal stock of %d", article.Quantity, article.OptimalStock))
	}

	if article.Quantity > 0 && stats.LookbackMovements == 0 {
		add(domain.AnomalyDormant, domain.SeverityMedium, 0, nil,
			fmt.Sprintf("no sales in the last %d days with %d units on hand", stats.LookbackDays, article.Quantity))
	}

	if stats.AverageDaily > 0 && !stats.LatestDay.IsZero() {
		last := float64(stats.LatestDayQuantity)
		deviation := math.Abs(last-stats.AverageDaily) / stats.AverageDaily
		if deviation > d.variationLimit {
			add(domain.AnomalyAbnormalVariation, domain.SeverityMedium, last, floatPtr(stats.AverageDaily),
				fmt.Sprintf("%d units sold on %s, %.0f%% away from the daily average of %.2f",
					stats.LatestDayQuantity, stats.LatestDay.Format(time.DateOnly), deviation*100, stats.AverageDaily))
		}
	}

	return out, nil
}

// Sort orders anomalies by severity rank, article id, then kind rank.
func Sort(anomalies []domain.Anomaly) {
	sort.SliceStable(anomalies, func(i, j int) bool {
		a, b := anomalies[i], anomalies[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() < b.Severity.Rank()
		}
		if a.ArticleID != b.ArticleID {
			return a.ArticleID < b.ArticleID
		}
		return a.Kind.Rank() < b.Kind.Rank()
	})
}

// CountBySeverity tallies anomalies per severity.
func CountBySeverity(anomalies []domain.Anomaly) map[domain.Severity]int {
	out := make(map[domain.Severity]int)
	for _, a := range anomalies {
		out[a.Severity]++
	}
	return out
}

func floatPtr(v float64) *float64 {
	return &v
}
