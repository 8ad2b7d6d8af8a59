package sales

import (
	"fmt"
	"time"

	"github.com/andresuchdata/stockpilot/internal/cache"
	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/rs/zerolog/log"
)

// DefaultCacheTTL is how long a computed aggregate stays valid.
const DefaultCacheTTL = 5 * time.Minute

// Source is the part of the inventory store the aggregator reads from.
type Source interface {
	MovementsFor(articleID string, sinceDays int) ([]domain.Movement, error)
	Subscribe(fn func(articleID string))
}

// Stats is the per-article demand aggregate shared by the engines.
type Stats struct {
	ArticleID  string    `json:"article_id"`
	ComputedAt time.Time `json:"computed_at"`

	// Trailing 30-day figures.
	DemandTotal  int     `json:"demand_total"`
	AverageDaily float64 `json:"average_daily"`
	SaleDays     int     `json:"sale_days"`

	// Demand per day from the first sale day of the trailing 30 days through the
	// latest day: today once it has demand, the last complete day before that.
	Series DailySeries `json:"series"`

	// Last day of Series and its demand, zero days included.
	LatestDay         time.Time `json:"latest_day,omitempty"`
	LatestDayQuantity int       `json:"latest_day_quantity"`

	// Demand movements inside the lookback window.
	LookbackDays      int `json:"lookback_days"`
	LookbackMovements int `json:"lookback_movements"`
}

// AnnualDemand extrapolates the daily average to a year.
func (s Stats) AnnualDemand() float64 {
	return s.AverageDaily * 365
}

// HasSales reports whether any demand fell inside the trailing 30 days.
func (s Stats) HasSales() bool {
	return s.DemandTotal > 0
}

// Aggregator computes and caches Stats. Cached entries are dropped whenever
// the source reports a change for the article.
type Aggregator struct {
	source   Source
	now      func() time.Time
	lookback int
	ttl      time.Duration
	cache    *cache.Local[string, Stats]
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithTTL overrides DefaultCacheTTL. Zero disables caching.
func WithTTL(ttl time.Duration) Option {
	return func(a *Aggregator) {
		a.ttl = ttl
	}
}

// WithLookback sets the window used for dormant detection. Values below 30 are raised to 30.
func WithLookback(days int) Option {
	return func(a *Aggregator) {
		a.lookback = max(days, AverageWindowDays)
	}
}

func NewAggregator(source Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:   source,
		now:      time.Now,
		lookback: DefaultLookbackDays,
		ttl:      DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.cache = cache.NewLocal[string, Stats](a.ttl, a.now)
	source.Subscribe(a.Invalidate)
	return a
}

// Now returns the aggregator's clock reading.
func (a *Aggregator) Now() time.Time {
	return a.now()
}

// Invalidate drops the cached aggregate of articleID.
func (a *Aggregator) Invalidate(articleID string) {
	a.cache.Delete(articleID)
}

// Stats returns the aggregate of articleID, computing it on a cache miss.
func (a *Aggregator) Stats(articleID string) (Stats, error) {
	if s, ok := a.cache.Get(articleID); ok {
		return s, nil
	}

	movements, err := a.source.MovementsFor(articleID, a.lookback)
	if err != nil {
		return Stats{}, fmt.Errorf("load movements of %s: %w", articleID, err)
	}

	s := Compute(articleID, movements, a.now(), a.lookback)
	a.cache.Set(articleID, s)

	log.Debug().
		Str("article_id", articleID).
		Float64("average_daily", s.AverageDaily).
		Int("sale_days", s.SaleDays).
		Msg("computed sales aggregate")

	return s, nil
}

// Compute builds Stats from movements without any caching.
func Compute(articleID string, movements []domain.Movement, now time.Time, lookbackDays int) Stats {
	windowStart := WindowStart(now, AverageWindowDays)
	lookbackStart := WindowStart(now, lookbackDays)

	s := Stats{
		ArticleID:    articleID,
		ComputedAt:   now,
		LookbackDays: lookbackDays,
	}

	var first time.Time
	for _, m := range movements {
		if !m.IsDemand() || m.Timestamp.After(now) {
			continue
		}
		if !m.Timestamp.Before(lookbackStart) {
			s.LookbackMovements++
		}
		if m.Timestamp.Before(windowStart) {
			continue
		}
		s.DemandTotal += m.Quantity
		if first.IsZero() || m.Timestamp.Before(first) {
			first = m.Timestamp
		}
	}
	s.AverageDaily = float64(s.DemandTotal) / float64(AverageWindowDays)

	if first.IsZero() {
		return s
	}

	s.Series = BuildSeries(movements, first, SeriesEnd(movements, first, now))
	s.SaleDays = s.Series.ActiveDays()
	if n := s.Series.Len(); n > 0 {
		s.LatestDay = s.Series.Start.AddDate(0, 0, n-1)
		s.LatestDayQuantity = s.Series.Quantities[n-1]
	}
	return s
}
