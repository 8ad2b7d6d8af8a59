// Package forecast projects daily demand from the movement ledger.
package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/andresuchdata/stockpilot/internal/sales"
	"github.com/rs/zerolog/log"
)

const (
	DefaultHorizonDays = 30
	// trendTolerance is the relative drift over the window below which a series is flat.
	trendTolerance = 0.10
	// confidencePerSaleDay grows confidence with the amount of observed history, capped at 100.
	confidencePerSaleDay = 5.0
)

// Trend labels the direction of demand over the analysis window.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendFlat    Trend = "flat"
)

// DailyPrediction is the expected demand of one future day.
type DailyPrediction struct {
	Day      int       `json:"day"`
	Date     time.Time `json:"date"`
	Quantity int       `json:"quantity"`
}

// Forecast is the demand projection of one article.
type Forecast struct {
	ArticleID   string            `json:"article_id"`
	ArticleName string            `json:"article_name"`
	GeneratedAt time.Time         `json:"generated_at"`
	HorizonDays int               `json:"horizon_days"`
	WindowDays  int               `json:"window_days"`
	SaleDays    int               `json:"sale_days"`
	Average     float64           `json:"average"`
	Slope       float64           `json:"slope"`
	Trend       Trend             `json:"trend"`
	TrendChange float64           `json:"trend_change"`
	Confidence  float64           `json:"confidence"`
	Predictions []DailyPrediction `json:"predictions"`
	Total       int               `json:"total"`
	WeekTotal   int               `json:"week_total"`
	MonthTotal  int               `json:"month_total"`
}

// StockoutEstimate is the projected day an article runs out at its current sales rate.
type StockoutEstimate struct {
	ArticleID     string     `json:"article_id"`
	ArticleName   string     `json:"article_name"`
	Quantity      int        `json:"quantity"`
	AverageDaily  float64    `json:"average_daily"`
	Expected      bool       `json:"expected"`
	DaysRemaining *int       `json:"days_remaining,omitempty"`
	StockoutDate  *time.Time `json:"stockout_date,omitempty"`
	Message       string     `json:"message"`
}

// Ledger is the read side of the inventory store.
type Ledger interface {
	GetArticle(articleID string) (domain.Article, error)
	MovementsFor(articleID string, sinceDays int) ([]domain.Movement, error)
}

// Engine produces forecasts. It caches nothing: every call reads the ledger as it is.
type Engine struct {
	ledger Ledger
	now    func() time.Time
}

func NewEngine(ledger Ledger, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{ledger: ledger, now: now}
}

func (e *Engine) stats(articleID string) (domain.Article, sales.Stats, error) {
	article, err := e.ledger.GetArticle(articleID)
	if err != nil {
		return domain.Article{}, sales.Stats{}, err
	}
	movements, err := e.ledger.MovementsFor(articleID, sales.AverageWindowDays)
	if err != nil {
		return domain.Article{}, sales.Stats{}, err
	}
	return article, sales.Compute(articleID, movements, e.now(), sales.AverageWindowDays), nil
}

// Forecast projects horizonDays of demand. A zero horizon uses DefaultHorizonDays.
func (e *Engine) Forecast(articleID string, horizonDays int) (Forecast, error) {
	const op = "forecast"

	if horizonDays < 0 {
		return Forecast{}, domain.NewValidationError(op, "horizon must not be negative, got %d", horizonDays)
	}
	if horizonDays == 0 {
		horizonDays = DefaultHorizonDays
	}

	article, stats, err := e.stats(articleID)
	if err != nil {
		return Forecast{}, err
	}

	f := Project(stats, horizonDays, e.now())
	f.ArticleName = article.Name

	log.Debug().
		Str("article_id", articleID).
		Float64("average", f.Average).
		Float64("slope", f.Slope).
		Str("trend", string(f.Trend)).
		Msg("forecast computed")

	return f, nil
}

// Project builds a forecast from precomputed aggregates.
func Project(stats sales.Stats, horizonDays int, now time.Time) Forecast {
	f := Forecast{
		ArticleID:   stats.ArticleID,
		GeneratedAt: now,
		HorizonDays: horizonDays,
		WindowDays:  stats.Series.Len(),
		SaleDays:    stats.SaleDays,
		Average:     stats.Series.Mean(),
		Trend:       TrendFlat,
		Predictions: make([]DailyPrediction, 0, horizonDays),
	}
	if stats.SaleDays >= sales.MinTrendDays {
		f.Slope = stats.Series.Slope()
	}
	if f.Average > 0 {
		f.TrendChange = f.Slope * float64(f.WindowDays) / f.Average
		switch {
		case f.TrendChange > trendTolerance:
			f.Trend = TrendRising
		case f.TrendChange < -trendTolerance:
			f.Trend = TrendFalling
		}
	}
	f.Confidence = math.Min(100, float64(stats.SaleDays)*confidencePerSaleDay)

	today := sales.DayStart(now)
	for k := 1; k <= horizonDays; k++ {
		q := int(math.Max(0, math.Round(f.Average+f.Slope*float64(k))))
		f.Predictions = append(f.Predictions, DailyPrediction{
			Day:      k,
			Date:     today.AddDate(0, 0, k),
			Quantity: q,
		})
		f.Total += q
		if k <= 7 {
			f.WeekTotal += q
		}
		if k <= 30 {
			f.MonthTotal += q
		}
	}
	return f
}

// EstimateStockout projects when the article runs out at its trailing 30-day sales rate.
func (e *Engine) EstimateStockout(articleID string) (StockoutEstimate, error) {
	article, stats, err := e.stats(articleID)
	if err != nil {
		return StockoutEstimate{}, err
	}
	return Estimate(article, stats.AverageDaily, e.now()), nil
}

// Estimate is the stockout projection for a quantity and a daily rate.
func Estimate(article domain.Article, averageDaily float64, now time.Time) StockoutEstimate {
	est := StockoutEstimate{
		ArticleID:    article.ID,
		ArticleName:  article.Name,
		Quantity:     article.Quantity,
		AverageDaily: averageDaily,
	}
	days := DaysUntilStockout(article.Quantity, averageDaily)
	if days == nil {
		est.Message = "no recent sales, stockout cannot be estimated"
		return est
	}
	date := sales.DayStart(now).AddDate(0, 0, *days)

	est.Expected = true
	est.DaysRemaining = days
	est.StockoutDate = &date
	est.Message = fmt.Sprintf("stockout expected in %d days (%s)", *days, date.Format(time.DateOnly))
	return est
}

// DaysUntilStockout is the whole number of days the quantity lasts at averageDaily, or nil without sales.
func DaysUntilStockout(quantity int, averageDaily float64) *int {
	if averageDaily <= 0 {
		return nil
	}
	days := 0
	if quantity > 0 {
		days = int(math.Floor(float64(quantity) / averageDaily))
	}
	return &days
}
