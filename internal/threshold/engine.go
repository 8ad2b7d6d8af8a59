// Package threshold computes the stock level at which an article should be reordered.
package threshold

import (
	"math"
	"time"

	"github.com/andresuchdata/stockpilot/internal/cache"
	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/andresuchdata/stockpilot/internal/sales"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSafetyMargin = 1.5
	DefaultCacheTTL     = 5 * time.Minute
)

// Store is what the engine needs from the inventory.
type Store interface {
	GetArticle(articleID string) (domain.Article, error)
	Subscribe(fn func(articleID string))
}

type cacheKey struct {
	articleID string
	margin    float64
}

// Engine computes automatic thresholds and caches them per article and margin.
type Engine struct {
	store        Store
	sales        *sales.Aggregator
	safetyMargin float64
	ttl          time.Duration
	now          func() time.Time
	cache        *cache.Local[cacheKey, int]
}

type Option func(*Engine)

// WithSafetyMargin sets the margin used by Effective.
func WithSafetyMargin(margin float64) Option {
	return func(e *Engine) {
		if margin > 0 {
			e.safetyMargin = margin
		}
	}
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.ttl = ttl
	}
}

func NewEngine(store Store, agg *sales.Aggregator, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		sales:        agg,
		safetyMargin: DefaultSafetyMargin,
		ttl:          DefaultCacheTTL,
		now:          agg.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cache = cache.NewLocal[cacheKey, int](e.ttl, e.now)
	store.Subscribe(e.Invalidate)
	return e
}

// SafetyMargin is the margin applied by Effective.
func (e *Engine) SafetyMargin() float64 {
	return e.safetyMargin
}

// Invalidate drops every cached threshold of articleID.
func (e *Engine) Invalidate(articleID string) {
	e.cache.DeleteFunc(func(k cacheKey) bool { return k.articleID == articleID })
}

// AutoThreshold returns round(averageDaily × leadTime × margin) clamped to [1, optimal stock].
func (e *Engine) AutoThreshold(articleID string, margin float64) (int, error) {
	const op = "auto threshold"

	if margin <= 0 || math.IsNaN(margin) {
		return 0, domain.NewValidationError(op, "safety margin must be positive, got %g", margin)
	}

	key := cacheKey{articleID: articleID, margin: margin}
	if v, ok := e.cache.Get(key); ok {
		return v, nil
	}

	article, err := e.store.GetArticle(articleID)
	if err != nil {
		return 0, err
	}
	stats, err := e.sales.Stats(articleID)
	if err != nil {
		return 0, err
	}

	v, err := Compute(stats.AverageDaily, article.LeadTimeDays, margin, article.OptimalStock)
	if err != nil {
		return 0, err
	}
	e.cache.Set(key, v)

	log.Debug().
		Str("article_id", articleID).
		Float64("margin", margin).
		Float64("average_daily", stats.AverageDaily).
		Int("threshold", v).
		Msg("computed auto threshold")

	return v, nil
}

// Effective returns the manual threshold when set, else the auto threshold at the engine's margin.
func (e *Engine) Effective(article domain.Article) (int, error) {
	if article.ManualThreshold != nil {
		return *article.ManualThreshold, nil
	}
	return e.AutoThreshold(article.ID, e.safetyMargin)
}

// Annotate fills AutoThreshold on each article where one can be computed.
func (e *Engine) Annotate(articles []domain.Article) []domain.Article {
	for i := range articles {
		v, err := e.AutoThreshold(articles[i].ID, e.safetyMargin)
		if err != nil {
			articles[i].AutoThreshold = nil
			continue
		}
		articles[i].AutoThreshold = domain.IntPtr(v)
	}
	return articles
}

// Compute is the threshold formula without caching. A zero lead time means the
// lead time is unknown and no threshold can be derived.
func Compute(averageDaily float64, leadTimeDays int, margin float64, optimalStock int) (int, error) {
	const op = "compute threshold"

	if margin <= 0 || math.IsNaN(margin) {
		return 0, domain.NewValidationError(op, "safety margin must be positive, got %g", margin)
	}
	if leadTimeDays <= 0 {
		return 0, domain.NewConfigurationError(op, "lead time is unknown")
	}

	raw := int(math.Round(averageDaily * float64(leadTimeDays) * margin))
	upper := max(optimalStock, 1)
	return min(max(raw, 1), upper), nil
}
