package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/andresuchdata/stockpilot/internal/cache"
	"github.com/andresuchdata/stockpilot/internal/config"
	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/andresuchdata/stockpilot/internal/inventory"
	"github.com/andresuchdata/stockpilot/internal/repository"
	"github.com/andresuchdata/stockpilot/internal/scenario"
	"github.com/andresuchdata/stockpilot/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 30, 15, 0, 0, 0, time.UTC)

type memoryReportCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	hits        int
	invalidated int
}

func newMemoryReportCache() *memoryReportCache {
	return &memoryReportCache{entries: make(map[string][]byte)}
}

func (m *memoryReportCache) key(report string, params cache.Params) string {
	b, _ := json.Marshal(params)
	return report + string(b)
}

func (m *memoryReportCache) Get(_ context.Context, report string, params cache.Params, dest any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.entries[m.key(report, params)]
	if !ok {
		return false, nil
	}
	m.hits++
	return true, json.Unmarshal(payload, dest)
}

func (m *memoryReportCache) Set(_ context.Context, report string, params cache.Params, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.key(report, params)] = payload
	return nil
}

func (m *memoryReportCache) InvalidateReport(context.Context, string) error {
	return nil
}

func (m *memoryReportCache) InvalidateAll(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string][]byte)
	m.invalidated++
	return nil
}

func (m *memoryReportCache) Close() error {
	return nil
}

type memoryRepository struct {
	articles  []domain.Article
	movements []domain.Movement
	orders    map[string]domain.PurchaseOrder
	saves     int
}

func (r *memoryRepository) SaveArticle(context.Context, domain.Article) error { return nil }

func (r *memoryRepository) DeleteArticle(context.Context, string) error { return nil }

func (r *memoryRepository) AppendMovement(context.Context, domain.Movement, int) error { return nil }

func (r *memoryRepository) Load(context.Context) ([]domain.Article, []domain.Movement, error) {
	return r.articles, r.movements, nil
}

func (r *memoryRepository) SavePurchaseOrder(_ context.Context, po domain.PurchaseOrder) error {
	if r.orders == nil {
		r.orders = make(map[string]domain.PurchaseOrder)
	}
	r.saves++
	if _, ok := r.orders[po.Number]; ok {
		return nil
	}
	r.orders[po.Number] = po
	return nil
}

func (r *memoryRepository) ListPurchaseOrders(context.Context, domain.OrderStatus) ([]domain.PurchaseOrder, error) {
	out := make([]domain.PurchaseOrder, 0, len(r.orders))
	for _, po := range r.orders {
		out = append(out, po)
	}
	return out, nil
}

func (r *memoryRepository) UpdatePurchaseOrderStatus(_ context.Context, number string, status domain.OrderStatus) error {
	po := r.orders[number]
	po.Status = status
	r.orders[number] = po
	return nil
}

func engineConfig() config.EngineConfig {
	rate := 0.25
	return config.EngineConfig{
		SafetyMargin:      1.5,
		OrderCost:         50,
		HoldingRate:       &rate,
		CacheTTL:          5 * time.Minute,
		SimulationHorizon: 30,
		ReorderPolicy:     "target_fill",
		OverstockFactor:   2,
		DormantWindowDays: 90,
	}
}

func newDemoService(t *testing.T, reports cache.ReportCache, repo *memoryRepository) *InventoryService {
	t.Helper()
	store := inventory.NewStore(inventory.WithClock(func() time.Time { return testNow }))
	_, err := seed.Populate(context.Background(), store, seed.Options{Seed: 3, Now: testNow})
	require.NoError(t, err)

	// a nil *memoryRepository must not become a non-nil interface
	var r repository.InventoryRepository
	if repo != nil {
		r = repo
	}
	svc, err := NewInventoryService(engineConfig(), store, r, reports)
	require.NoError(t, err)
	return svc
}

func TestNewInventoryServiceRejectsUnknownPolicy(t *testing.T) {
	cfg := engineConfig()
	cfg.ReorderPolicy = "lifo"
	_, err := NewInventoryService(cfg, inventory.NewStore(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestReportsAreCachedUntilAMovement(t *testing.T) {
	reports := newMemoryReportCache()
	svc := newDemoService(t, reports, nil)
	ctx := context.Background()

	first, err := svc.Anomalies(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := svc.Anomalies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reports.hits)
	assert.Equal(t, first, second)

	before := reports.invalidated
	_, err = svc.RecordMovement(ctx, domain.MovementSpec{ArticleID: "galaxy-s24", Direction: domain.Inbound, Quantity: 30, Reason: "restock"})
	require.NoError(t, err)
	assert.Equal(t, before+1, reports.invalidated)

	third, err := svc.Anomalies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reports.hits)
	for _, a := range third {
		if a.ArticleID == "galaxy-s24" {
			assert.NotEqual(t, domain.AnomalyStockout, a.Kind)
		}
	}
}

func TestDemoInventorySignals(t *testing.T) {
	svc := newDemoService(t, nil, nil)
	ctx := context.Background()

	anomalies, err := svc.Anomalies(ctx)
	require.NoError(t, err)
	kinds := make(map[string][]domain.AnomalyKind)
	for _, a := range anomalies {
		kinds[a.ArticleID] = append(kinds[a.ArticleID], a.Kind)
	}
	assert.Contains(t, kinds["galaxy-s24"], domain.AnomalyStockout)
	assert.Contains(t, kinds["crt-monitor"], domain.AnomalyDormant)
	assert.Contains(t, kinds["crt-monitor"], domain.AnomalyOverstock)

	recs, err := svc.Recommendations(ctx, false, "")
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.Equal(t, "galaxy-s24", recs[0].ArticleID)
	assert.Equal(t, domain.UrgencyCritical, recs[0].Urgency)
	for _, r := range recs {
		assert.NotEqual(t, "label-printer", r.ArticleID)
	}

	abc, err := svc.Classification(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(seed.Catalog()), abc.Len())

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.NotNil(t, summary.AnnualHoldingCost)
	assert.Equal(t, 1, summary.StockoutCount)
}

func TestPurchaseOrdersAreSavedAndAdvanced(t *testing.T) {
	repo := &memoryRepository{}
	svc := newDemoService(t, nil, repo)
	ctx := context.Background()

	orders, err := svc.PurchaseOrders(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, orders)
	assert.Len(t, repo.orders, len(orders))

	po, err := svc.AdvancePurchaseOrder(ctx, orders[0].Number)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusSent, po.Status)
	assert.Equal(t, domain.OrderStatusSent, repo.orders[po.Number].Status)

	_, err = svc.AdvancePurchaseOrder(ctx, "PO-missing")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCachedPurchaseOrdersAreNotSavedAgain(t *testing.T) {
	repo := &memoryRepository{}
	svc := newDemoService(t, newMemoryReportCache(), repo)
	ctx := context.Background()

	orders, err := svc.PurchaseOrders(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, orders)
	saves := repo.saves

	_, err = svc.AdvancePurchaseOrder(ctx, orders[0].Number)
	require.NoError(t, err)

	again, err := svc.PurchaseOrders(ctx)
	require.NoError(t, err)
	require.Len(t, again, len(orders))
	assert.Equal(t, orders[0].Number, again[0].Number)
	assert.Equal(t, saves, repo.saves)
	assert.Equal(t, domain.OrderStatusSent, repo.orders[orders[0].Number].Status)
}

func TestAdvanceWithoutRepository(t *testing.T) {
	svc := newDemoService(t, nil, nil)
	_, err := svc.AdvancePurchaseOrder(context.Background(), "PO-1")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.ErrorIs(t, svc.Load(context.Background()), domain.ErrConfiguration)
}

func TestLoadRestoresRepositoryState(t *testing.T) {
	a, err := domain.NewArticle(domain.ArticleSpec{ID: "x", Name: "X", Quantity: 4, OptimalStock: 10}, testNow)
	require.NoError(t, err)
	repo := &memoryRepository{articles: []domain.Article{a}}

	svc, err := NewInventoryService(engineConfig(), inventory.NewStore(), repo, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Load(context.Background()))

	got := svc.Articles()
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].ID)
}

func TestLoadInvalidatesReportsOnce(t *testing.T) {
	ctx := context.Background()
	var articles []domain.Article
	for _, id := range []string{"a", "b", "c"} {
		a, err := domain.NewArticle(domain.ArticleSpec{ID: id, Name: id, Quantity: 4, OptimalStock: 10}, testNow)
		require.NoError(t, err)
		articles = append(articles, a)
	}
	repo := &memoryRepository{articles: articles}

	reports := newMemoryReportCache()
	svc, err := NewInventoryService(engineConfig(), inventory.NewStore(), repo, reports)
	require.NoError(t, err)

	// a fresh store has nothing the cached reports could describe
	require.NoError(t, svc.Load(ctx))
	assert.Equal(t, 0, reports.invalidated)
	assert.Len(t, svc.Articles(), 3)

	require.NoError(t, svc.Load(ctx))
	assert.Equal(t, 1, reports.invalidated)

	_, err = svc.RecordMovement(ctx, domain.MovementSpec{ArticleID: "a", Direction: domain.Outbound, Quantity: 1, Reason: "sale"})
	require.NoError(t, err)
	assert.Equal(t, 2, reports.invalidated)
}

func TestCompareMatchesSequentialRuns(t *testing.T) {
	svc := newDemoService(t, nil, nil)
	ctx := context.Background()
	opts := []scenario.Option{scenario.WithSeed(11), scenario.WithHorizon(20)}

	concurrent, err := svc.Compare(ctx, scenario.Presets(), opts...)
	require.NoError(t, err)
	sequential, err := svc.simulator.Compare(ctx, scenario.Presets(), opts...)
	require.NoError(t, err)

	assert.Equal(t, sequential, concurrent)
}
