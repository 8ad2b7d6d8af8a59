package scenario

import (
	"context"
	"testing"
	"time"

	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/andresuchdata/stockpilot/internal/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 30, 15, 0, 0, 0, time.UTC)

// newStore holds one article selling 2 units a day with 100 left and a threshold of 15.
func newStore(t *testing.T) *inventory.Store {
	t.Helper()
	ctx := context.Background()
	store := inventory.NewStore(inventory.WithClock(func() time.Time { return testNow }))

	a, err := domain.NewArticle(domain.ArticleSpec{
		ID: "a", Name: "Stapler", Quantity: 160, OptimalStock: 100, LeadTimeDays: 5, PurchasePrice: 5, SalePrice: 10,
	}, testNow)
	require.NoError(t, err)
	_, err = store.AddArticle(ctx, a)
	require.NoError(t, err)

	for d := 0; d < 30; d++ {
		m, err := domain.NewMovement(domain.MovementSpec{
			ArticleID: "a", Direction: domain.Outbound, Quantity: 2, Timestamp: testNow.AddDate(0, 0, -d),
		}, testNow)
		require.NoError(t, err)
		_, err = store.RecordMovement(ctx, m)
		require.NoError(t, err)
	}
	return store
}

func newSimulator(t *testing.T, store *inventory.Store) *Simulator {
	t.Helper()
	rate := 0.25
	return NewSimulator(store, Config{HoldingRate: &rate, OrderCost: 50})
}

func TestRunBaseline(t *testing.T) {
	sim := newSimulator(t, newStore(t))

	r, err := sim.Run(context.Background(), Baseline())
	require.NoError(t, err)

	assert.Equal(t, DefaultHorizonDays, r.HorizonDays)
	assert.Equal(t, 1800.0, r.Metrics.Revenue)
	assert.Equal(t, 900.0, r.Metrics.CostOfGoodsSold)
	assert.InDelta(t, 0.5, r.Metrics.MarginRate, 1e-9)
	assert.Equal(t, 0, r.Metrics.StockoutDays)
	// stock drops below 15 on days 43 and 86
	assert.Equal(t, 2, r.Metrics.ReorderCount)
	assert.Equal(t, 860.0, r.Metrics.ReplenishmentSpend)
	assert.Equal(t, 92.0, r.Metrics.EndingAverageStock)
	assert.Greater(t, r.Metrics.HoldingCost, 0.0)
	assert.InDelta(t, 99.6, r.Score, 1e-9)

	require.Len(t, r.Events, 2)
	assert.Equal(t, domain.EventReorder, r.Events[0].Kind)
	assert.Equal(t, 43, r.Events[0].Day)
	assert.Equal(t, 86, r.Events[0].Quantity)
}

func TestRunNoDemand(t *testing.T) {
	sim := newSimulator(t, newStore(t))

	r, err := sim.Run(context.Background(), domain.ScenarioParameters{Name: "closed", DemandGrowth: -1})
	require.NoError(t, err)

	assert.Equal(t, 0.0, r.Metrics.Revenue)
	assert.Equal(t, 0, r.Metrics.StockoutDays)
	assert.Equal(t, 0, r.Metrics.ReorderCount)
	assert.Equal(t, 100.0, r.Metrics.EndingAverageStock)
	assert.InDelta(t, 60.0, r.Score, 1e-9)
}

func TestRunForcedStockout(t *testing.T) {
	sim := newSimulator(t, newStore(t))

	r, err := sim.Run(context.Background(), domain.ScenarioParameters{Name: "outage", ForcedStockouts: []string{"a", "ghost"}})
	require.NoError(t, err)

	assert.Equal(t, 1, r.Metrics.StockoutDays)
	assert.Equal(t, 1, r.Metrics.StockoutOccurrences)
	assert.Equal(t, 20.0, r.Metrics.LostSales)
	assert.Equal(t, 3, r.Metrics.ReorderCount)

	require.GreaterOrEqual(t, len(r.Events), 2)
	assert.Equal(t, domain.EventStockout, r.Events[0].Kind)
	assert.Equal(t, 2, r.Events[0].Quantity)
	assert.Equal(t, domain.EventReorder, r.Events[1].Kind)
	assert.Equal(t, 1, r.Events[1].Day)
}

func TestRunEOQPolicy(t *testing.T) {
	sim := newSimulator(t, newStore(t))

	r, err := sim.Run(context.Background(), domain.ScenarioParameters{Name: "eoq", Policy: domain.PolicyEOQ}, WithHorizon(50))
	require.NoError(t, err)

	require.Len(t, r.Events, 1)
	// sqrt(2 × 730 × 50 / 1.25)
	assert.Equal(t, 242, r.Events[0].Quantity)
}

func TestRunIsReproducibleWithSeed(t *testing.T) {
	sim := newSimulator(t, newStore(t))
	params := domain.ScenarioParameters{Name: "noisy", DemandVariability: 0.4, DemandGrowth: 0.3}

	first, err := sim.Run(context.Background(), params, WithSeed(42), WithHorizon(60))
	require.NoError(t, err)
	second, err := sim.Run(context.Background(), params, WithSeed(42), WithHorizon(60))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.NotNil(t, first.Seed)
	assert.Equal(t, int64(42), *first.Seed)
}

func TestRunLeavesStoreUntouched(t *testing.T) {
	store := newStore(t)
	before := len(store.Movements())

	_, err := newSimulator(t, store).Run(context.Background(), domain.ScenarioParameters{Name: "busy", DemandGrowth: 3})
	require.NoError(t, err)

	a, err := store.GetArticle("a")
	require.NoError(t, err)
	assert.Equal(t, 100, a.Quantity)
	assert.Len(t, store.Movements(), before)
}

func TestRunErrors(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := NewSimulator(store, Config{}).Run(ctx, Baseline())
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	sim := newSimulator(t, store)
	_, err = sim.Run(ctx, Baseline(), WithHorizon(0))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = sim.Run(ctx, domain.ScenarioParameters{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = sim.Run(cancelled, Baseline())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompare(t *testing.T) {
	sim := newSimulator(t, newStore(t))

	results, err := sim.Compare(context.Background(), Presets(), WithSeed(1))
	require.NoError(t, err)
	require.Len(t, results, len(Presets()))

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	names := make(map[string]bool)
	for _, r := range results {
		names[r.Parameters.Name] = true
	}
	assert.Len(t, names, len(Presets()))
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		m    domain.ScenarioMetrics
		want float64
	}{
		{"perfect", domain.ScenarioMetrics{MarginRate: 0.6}, 100},
		{"half margin", domain.ScenarioMetrics{MarginRate: 0.25}, 80},
		{"stockouts and reorders", domain.ScenarioMetrics{MarginRate: 0.5, StockoutDays: 100, ReorderCount: 50}, 80},
		{"floored", domain.ScenarioMetrics{MarginRate: -3, StockoutDays: 1000, ReorderCount: 500}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(tt.m), 1e-9)
		})
	}
}

func TestPresets(t *testing.T) {
	presets := Presets()
	require.Len(t, presets, 8)
	assert.Equal(t, BaselineName, presets[0].Name)
	for _, p := range presets {
		assert.NoError(t, p.Validate(), p.Name)
	}

	p, ok := Preset("lead-time-up")
	require.True(t, ok)
	assert.Equal(t, 5, p.LeadTimeDelta)
	_, ok = Preset("nope")
	assert.False(t, ok)
}

func TestStockoutImpact(t *testing.T) {
	sim := newSimulator(t, newStore(t))

	imp, err := sim.StockoutImpact("a", 30)
	require.NoError(t, err)
	assert.Equal(t, 60, imp.LostUnits)
	assert.Equal(t, 600.0, imp.LostRevenue)
	assert.Equal(t, 300.0, imp.LostMargin)
	assert.InDelta(t, 600.0/7300.0, imp.AnnualShare, 1e-9)
	assert.Equal(t, domain.SeverityMedium, imp.Severity)

	_, err = sim.StockoutImpact("a", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = sim.StockoutImpact("ghost", 10)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
