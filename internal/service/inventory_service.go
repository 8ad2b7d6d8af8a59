// internal/service/inventory_service.go
package service

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/andresuchdata/stockpilot/internal/anomaly"
	"github.com/andresuchdata/stockpilot/internal/cache"
	"github.com/andresuchdata/stockpilot/internal/config"
	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/andresuchdata/stockpilot/internal/forecast"
	"github.com/andresuchdata/stockpilot/internal/inventory"
	"github.com/andresuchdata/stockpilot/internal/reorder"
	"github.com/andresuchdata/stockpilot/internal/repository"
	"github.com/andresuchdata/stockpilot/internal/sales"
	"github.com/andresuchdata/stockpilot/internal/scenario"
	"github.com/andresuchdata/stockpilot/internal/threshold"
	"github.com/andresuchdata/stockpilot/internal/valuation"
	"github.com/rs/zerolog/log"
)

const invalidateTimeout = 2 * time.Second

// InventoryService wires the engines around one store and fronts their reports
// with the shared report cache.
type InventoryService struct {
	store      *inventory.Store
	repo       repository.InventoryRepository
	reports    cache.ReportCache
	sales      *sales.Aggregator
	thresholds *threshold.Engine
	forecasts  *forecast.Engine
	anomalies  *anomaly.Detector
	classifier *valuation.Classifier
	analyzer   *valuation.Analyzer
	planner    *reorder.Planner
	simulator  *scenario.Simulator

	// set while Load restores the store; the per-article notifications are folded into one wipe
	restoring atomic.Bool
}

// NewInventoryService builds the engines from cfg. repo may be nil when the store is not persisted.
func NewInventoryService(cfg config.EngineConfig, store *inventory.Store, repo repository.InventoryRepository, reports cache.ReportCache) (*InventoryService, error) {
	policy, err := domain.ParseSizingPolicy(cfg.ReorderPolicy)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = cache.NewNoopReportCache()
	}

	clock := store.Now
	agg := sales.NewAggregator(store,
		sales.WithClock(clock),
		sales.WithTTL(cfg.CacheTTL),
		sales.WithLookback(cfg.DormantWindowDays),
	)
	thresholds := threshold.NewEngine(store, agg,
		threshold.WithSafetyMargin(cfg.SafetyMargin),
		threshold.WithCacheTTL(cfg.CacheTTL),
	)

	s := &InventoryService{
		store:      store,
		repo:       repo,
		reports:    reports,
		sales:      agg,
		thresholds: thresholds,
		forecasts:  forecast.NewEngine(store, clock),
		anomalies:  anomaly.NewDetector(store, thresholds, agg, anomaly.WithOverstockFactor(cfg.OverstockFactor)),
		classifier: valuation.NewClassifier(store),
		analyzer:   valuation.NewAnalyzer(store, cfg.HoldingRate, clock),
		planner: reorder.NewPlanner(store, thresholds, agg,
			reorder.WithOrderCost(cfg.OrderCost),
			reorder.WithHoldingRate(cfg.HoldingRate),
			reorder.WithDefaultPolicy(policy),
			reorder.WithPreventiveInOrders(cfg.PreventiveInOrders),
		),
		simulator: scenario.NewSimulator(store, scenario.Config{
			SafetyMargin: cfg.SafetyMargin,
			OrderCost:    cfg.OrderCost,
			HoldingRate:  cfg.HoldingRate,
			Policy:       policy,
			HorizonDays:  cfg.SimulationHorizon,
		}),
	}
	store.Subscribe(s.invalidateReports)
	return s, nil
}

// Store exposes the underlying store for callers that mutate the catalog directly.
func (s *InventoryService) Store() *inventory.Store {
	return s.store
}

// Load replaces the in-memory state with what the repository holds. Cached reports
// are dropped once, and only when the store held state the reports may describe.
func (s *InventoryService) Load(ctx context.Context) error {
	if s.repo == nil {
		return domain.NewConfigurationError("load inventory", "no repository configured")
	}
	articles, movements, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}

	hadState := s.store.Len() > 0
	s.restoring.Store(true)
	err = s.store.Restore(articles, movements)
	s.restoring.Store(false)
	if err != nil {
		return err
	}
	if hadState {
		s.invalidateAll("")
	}
	return nil
}

// invalidateReports drops every cached report. Reports span the whole catalog,
// so any change to one article invalidates all of them.
func (s *InventoryService) invalidateReports(articleID string) {
	if s.restoring.Load() {
		return
	}
	s.invalidateAll(articleID)
}

func (s *InventoryService) invalidateAll(articleID string) {
	ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
	defer cancel()
	if err := s.reports.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Str("article_id", articleID).Msg("report cache: invalidate failed")
	}
}

// cached serves report from the cache or computes and stores it.
func cached[T any](ctx context.Context, c cache.ReportCache, report string, params cache.Params, compute func() (T, error)) (T, error) {
	var out T
	if ok, err := c.Get(ctx, report, params, &out); err == nil && ok {
		return out, nil
	} else if err != nil {
		log.Warn().Err(err).Str("report", report).Msg("report cache: get failed")
	}

	out, err := compute()
	if err != nil {
		return out, err
	}

	if err := c.Set(ctx, report, params, out); err != nil {
		log.Warn().Err(err).Str("report", report).Msg("report cache: set failed")
	}
	return out, nil
}

// Articles lists the catalog with auto thresholds filled in.
func (s *InventoryService) Articles() []domain.Article {
	return s.thresholds.Annotate(s.store.ListArticles())
}

// Search matches articles by name, reference, category or supplier.
func (s *InventoryService) Search(term string) []domain.Article {
	return s.thresholds.Annotate(s.store.Search(term))
}

// RecordMovement validates spec against the store clock and records it.
func (s *InventoryService) RecordMovement(ctx context.Context, spec domain.MovementSpec) (domain.Movement, error) {
	m, err := domain.NewMovement(spec, s.store.Now())
	if err != nil {
		return domain.Movement{}, err
	}
	return s.store.RecordMovement(ctx, m)
}

func (s *InventoryService) Anomalies(ctx context.Context) ([]domain.Anomaly, error) {
	return cached(ctx, s.reports, cache.ReportAnomalies, nil, s.anomalies.Detect)
}

func (s *InventoryService) Recommendations(ctx context.Context, includePreventive bool, policy domain.SizingPolicy) ([]domain.Recommendation, error) {
	params := cache.Params{"preventive": strconv.FormatBool(includePreventive), "policy": string(policy)}
	return cached(ctx, s.reports, cache.ReportRecommendations, params, func() ([]domain.Recommendation, error) {
		return s.planner.Recommend(includePreventive, policy)
	})
}

func (s *InventoryService) Classification(ctx context.Context) (valuation.Classification, error) {
	return cached(ctx, s.reports, cache.ReportABC, nil, func() (valuation.Classification, error) {
		return s.classifier.Classify(), nil
	})
}

func (s *InventoryService) Summary(ctx context.Context) (valuation.Summary, error) {
	return cached(ctx, s.reports, cache.ReportKPI, nil, func() (valuation.Summary, error) {
		return s.analyzer.Summary(), nil
	})
}

func (s *InventoryService) ArticleKPIs() []valuation.ArticleKPI {
	return s.analyzer.ArticleKPIs()
}

func (s *InventoryService) PromotionCandidates(limit int) []valuation.PromotionCandidate {
	return s.analyzer.PromotionCandidates(limit)
}

func (s *InventoryService) SalesReport(days int) (valuation.SalesReport, error) {
	return s.analyzer.SalesReport(days)
}

func (s *InventoryService) Forecast(articleID string, horizonDays int) (forecast.Forecast, error) {
	return s.forecasts.Forecast(articleID, horizonDays)
}

func (s *InventoryService) EstimateStockout(articleID string) (forecast.StockoutEstimate, error) {
	return s.forecasts.EstimateStockout(articleID)
}

// Threshold returns the auto threshold of an article at margin, or at the engine margin when margin is 0.
func (s *InventoryService) Threshold(articleID string, margin float64) (int, error) {
	if margin == 0 {
		margin = s.thresholds.SafetyMargin()
	}
	return s.thresholds.AutoThreshold(articleID, margin)
}
