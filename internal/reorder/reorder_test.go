package reorder

import (
	"context"
	"testing"
	"time"

	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/andresuchdata/stockpilot/internal/inventory"
	"github.com/andresuchdata/stockpilot/internal/sales"
	"github.com/andresuchdata/stockpilot/internal/threshold"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 30, 15, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	store *inventory.Store
	agg   *sales.Aggregator
	thr   *threshold.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := func() time.Time { return testNow }
	store := inventory.NewStore(inventory.WithClock(clock))
	agg := sales.NewAggregator(store, sales.WithClock(clock))
	return &fixture{t: t, store: store, agg: agg, thr: threshold.NewEngine(store, agg)}
}

func (f *fixture) planner(opts ...Option) *Planner {
	return NewPlanner(f.store, f.thr, f.agg, opts...)
}

func (f *fixture) add(spec domain.ArticleSpec) {
	f.t.Helper()
	if spec.Name == "" {
		spec.Name = "Article " + spec.ID
	}
	a, err := domain.NewArticle(spec, testNow)
	require.NoError(f.t, err)
	_, err = f.store.AddArticle(context.Background(), a)
	require.NoError(f.t, err)
}

func (f *fixture) sellDaily(id string, days int) {
	f.t.Helper()
	for d := 0; d < days; d++ {
		m, err := domain.NewMovement(domain.MovementSpec{
			ArticleID: id, Direction: domain.Outbound, Quantity: 1, Timestamp: testNow.AddDate(0, 0, -d),
		}, testNow)
		require.NoError(f.t, err)
		_, err = f.store.RecordMovement(context.Background(), m)
		require.NoError(f.t, err)
	}
}

// seed builds one article per urgency plus two that need nothing.
func (f *fixture) seed() {
	f.add(domain.ArticleSpec{ID: "crit", Quantity: 0, ManualThreshold: domain.IntPtr(10), OptimalStock: 30, PurchasePrice: 2, Supplier: "Acme"})
	f.add(domain.ArticleSpec{ID: "high", Quantity: 4, ManualThreshold: domain.IntPtr(10), OptimalStock: 30, PurchasePrice: 3, Supplier: "Acme"})
	f.add(domain.ArticleSpec{ID: "med", Quantity: 8, ManualThreshold: domain.IntPtr(10), OptimalStock: 20, PurchasePrice: 1.5, Supplier: "Beta"})
	f.add(domain.ArticleSpec{ID: "low", Quantity: 42, ManualThreshold: domain.IntPtr(10), OptimalStock: 20, PurchasePrice: 1})
	f.add(domain.ArticleSpec{ID: "ok", Quantity: 20, ManualThreshold: domain.IntPtr(10), OptimalStock: 20, Supplier: "Beta"})
	f.add(domain.ArticleSpec{ID: "off", Quantity: 0, ManualThreshold: domain.IntPtr(10), OptimalStock: 20, Inactive: true})
	// low ends at 12 with one sale a day
	f.sellDaily("low", 30)
}

func recIDs(recs []domain.Recommendation) []string {
	var out []string
	for _, r := range recs {
		out = append(out, r.ArticleID)
	}
	return out
}

func TestEOQ(t *testing.T) {
	tests := []struct {
		name     string
		demand   float64
		order    float64
		holding  float64
		fallback int
		want     int
	}{
		{"wilson", 1095, 50, 3, 10, 191},
		{"no demand falls back", 0, 50, 3, 10, 10},
		{"no holding cost falls back", 1095, 50, 0, 10, 10},
		{"fallback at least one", 0, 50, 3, 0, 1},
		{"tiny demand rounds up to one", 0.01, 1, 100, 10, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EOQ(tt.demand, tt.order, tt.holding, tt.fallback))
		})
	}
}

func TestUrgencyFor(t *testing.T) {
	tests := []struct {
		qty, threshold int
		want           domain.Urgency
		ok             bool
	}{
		{-2, 10, domain.UrgencyCritical, true},
		{0, 10, domain.UrgencyCritical, true},
		{4, 10, domain.UrgencyHigh, true},
		{5, 10, domain.UrgencyMedium, true},
		{9, 10, domain.UrgencyMedium, true},
		{10, 10, domain.UrgencyLow, true},
		{14, 10, domain.UrgencyLow, true},
		{15, 10, "", false},
		{0, 0, domain.UrgencyCritical, true},
		{1, 0, "", false},
	}
	for _, tt := range tests {
		got, ok := UrgencyFor(tt.qty, tt.threshold)
		assert.Equal(t, tt.ok, ok, "qty %d threshold %d", tt.qty, tt.threshold)
		assert.Equal(t, tt.want, got, "qty %d threshold %d", tt.qty, tt.threshold)
	}
}

func TestTargetFill(t *testing.T) {
	assert.Equal(t, 26, TargetFill(30, 4))
	assert.Equal(t, 0, TargetFill(30, 45))
	assert.Equal(t, 33, TargetFill(30, -3))
}

func TestRecommend(t *testing.T) {
	f := newFixture(t)
	f.seed()
	p := f.planner()

	recs, err := p.Recommend(false, "")
	require.NoError(t, err)
	require.Equal(t, []string{"crit", "high", "med"}, recIDs(recs))

	crit := recs[0]
	assert.Equal(t, domain.UrgencyCritical, crit.Urgency)
	assert.Equal(t, 30, crit.Quantity)
	assert.Equal(t, 60.0, crit.EstimatedCost)
	assert.Equal(t, domain.PolicyTargetFill, crit.Policy)
	assert.Equal(t, testNow, crit.SuggestedOrderDate)
	assert.Equal(t, "out of stock", crit.Reason)
	assert.Nil(t, crit.DaysUntilStockout)

	assert.Equal(t, domain.UrgencyHigh, recs[1].Urgency)
	assert.Equal(t, 26, recs[1].Quantity)
	assert.Equal(t, domain.UrgencyMedium, recs[2].Urgency)
	assert.Equal(t, 12, recs[2].Quantity)
}

func TestRecommendPreventive(t *testing.T) {
	f := newFixture(t)
	f.seed()

	recs, err := f.planner().Recommend(true, "")
	require.NoError(t, err)
	require.Equal(t, []string{"crit", "high", "med", "low"}, recIDs(recs))

	low := recs[3]
	assert.Equal(t, domain.UrgencyLow, low.Urgency)
	assert.Equal(t, 12, low.CurrentQuantity)
	assert.Equal(t, 8, low.Quantity)
	require.NotNil(t, low.DaysUntilStockout)
	assert.Equal(t, 12, *low.DaysUntilStockout)
	// two days of sales before it reaches its threshold
	assert.Equal(t, testNow.AddDate(0, 0, 2), low.SuggestedOrderDate)
}

func TestRecommendEOQ(t *testing.T) {
	f := newFixture(t)
	f.seed()

	_, err := f.planner().Recommend(false, domain.PolicyEOQ)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = f.planner().Recommend(false, "fifo")
	assert.ErrorIs(t, err, domain.ErrValidation)

	rate := 0.25
	recs, err := f.planner(WithHoldingRate(&rate), WithOrderCost(50)).Recommend(true, domain.PolicyEOQ)
	require.NoError(t, err)

	byID := make(map[string]domain.Recommendation)
	for _, r := range recs {
		byID[r.ArticleID] = r
		assert.Equal(t, domain.PolicyEOQ, r.Policy)
	}
	// no sales: falls back to the optimal stock
	assert.Equal(t, 30, byID["crit"].Quantity)
	// 365 units a year, holding 0.25: sqrt(2*365*50/0.25) = 382.1
	assert.Equal(t, 382, byID["low"].Quantity)
}

func TestRecommendDefaultPolicyOption(t *testing.T) {
	f := newFixture(t)
	f.seed()

	rate := 0.25
	recs, err := f.planner(WithHoldingRate(&rate), WithDefaultPolicy(domain.PolicyEOQ)).Recommend(false, "")
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.Equal(t, domain.PolicyEOQ, recs[0].Policy)
}

func TestRecommendWithoutLeadTime(t *testing.T) {
	f := newFixture(t)
	f.add(domain.ArticleSpec{ID: "empty", Quantity: 0, OptimalStock: 5})
	f.add(domain.ArticleSpec{ID: "stocked", Quantity: 3, OptimalStock: 5})

	recs, err := f.planner().Recommend(true, "")
	require.NoError(t, err)
	require.Equal(t, []string{"empty"}, recIDs(recs))
	assert.Equal(t, domain.UrgencyCritical, recs[0].Urgency)
	assert.Equal(t, 0, recs[0].Threshold)
}

func TestSortRecommendations(t *testing.T) {
	recs := []domain.Recommendation{
		{ArticleID: "c", Urgency: domain.UrgencyHigh},
		{ArticleID: "b", Urgency: domain.UrgencyHigh, DaysUntilStockout: domain.IntPtr(9)},
		{ArticleID: "a", Urgency: domain.UrgencyHigh},
		{ArticleID: "d", Urgency: domain.UrgencyHigh, DaysUntilStockout: domain.IntPtr(2)},
		{ArticleID: "z", Urgency: domain.UrgencyCritical},
		{ArticleID: "e", Urgency: domain.UrgencyLow, DaysUntilStockout: domain.IntPtr(0)},
	}
	SortRecommendations(recs)
	assert.Equal(t, []string{"z", "d", "b", "a", "c", "e"}, recIDs(recs))
}

func TestGeneratePurchaseOrders(t *testing.T) {
	f := newFixture(t)
	f.seed()

	orders, err := f.planner().GeneratePurchaseOrders()
	require.NoError(t, err)
	require.Len(t, orders, 2)

	acme := orders[0]
	assert.Equal(t, "Acme", acme.Supplier)
	assert.Equal(t, "PO-20240330-150000-01-293ABB", acme.Number)
	assert.Equal(t, domain.OrderStatusDraft, acme.Status)
	assert.Equal(t, domain.UrgencyCritical, acme.MaxUrgency)
	assert.Equal(t, 56, acme.TotalQuantity)
	assert.True(t, decimal.NewFromInt(138).Equal(acme.TotalCost), acme.TotalCost.String())
	require.Len(t, acme.Lines, 2)
	assert.Equal(t, "crit", acme.Lines[0].ArticleID)

	beta := orders[1]
	assert.Equal(t, "Beta", beta.Supplier)
	assert.Equal(t, "PO-20240330-150000-02-A295E0", beta.Number)
	assert.True(t, decimal.NewFromInt(18).Equal(beta.TotalCost), beta.TotalCost.String())
}

func TestSeparateOrdersInTheSameSecondDoNotCollide(t *testing.T) {
	acme := BuildPurchaseOrders([]domain.Recommendation{{ArticleID: "a", Supplier: "Acme", Quantity: 1, UnitCost: 2, Urgency: domain.UrgencyHigh}}, testNow)
	beta := BuildPurchaseOrders([]domain.Recommendation{{ArticleID: "b", Supplier: "Beta", Quantity: 1, UnitCost: 2, Urgency: domain.UrgencyHigh}}, testNow)
	require.Len(t, acme, 1)
	require.Len(t, beta, 1)
	assert.NotEqual(t, acme[0].Number, beta[0].Number)

	again := BuildPurchaseOrders([]domain.Recommendation{{ArticleID: "c", Supplier: " acme ", Quantity: 3, UnitCost: 1, Urgency: domain.UrgencyLow}}, testNow)
	assert.Equal(t, acme[0].Number, again[0].Number)
}

func TestGeneratePurchaseOrder(t *testing.T) {
	f := newFixture(t)
	f.seed()

	po, err := f.planner().GeneratePurchaseOrder(" acme ")
	require.NoError(t, err)
	assert.Equal(t, "Acme", po.Supplier)
	assert.Len(t, po.Lines, 2)

	// drafted in the same second, the two suppliers still get their own numbers
	beta, err := f.planner().GeneratePurchaseOrder("BETA")
	require.NoError(t, err)
	assert.Equal(t, "Beta", beta.Supplier)
	assert.NotEqual(t, po.Number, beta.Number)
	assert.Equal(t, "PO-20240330-150000-01-293ABB", po.Number)
	assert.Equal(t, "PO-20240330-150000-02-A295E0", beta.Number)

	_, err = f.planner().GeneratePurchaseOrder("nobody")
	assert.ErrorIs(t, err, domain.ErrValidation)

	// low has no supplier and is only ordered when preventive lines are included
	_, err = f.planner().GeneratePurchaseOrder("")
	assert.ErrorIs(t, err, domain.ErrValidation)

	po, err = f.planner(WithPreventiveInOrders(true)).GeneratePurchaseOrder("")
	require.NoError(t, err)
	assert.Equal(t, UnknownSupplier, po.Supplier)
	assert.Equal(t, domain.UrgencyLow, po.MaxUrgency)
}
