package threshold

import (
	"context"
	"testing"
	"time"

	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/andresuchdata/stockpilot/internal/inventory"
	"github.com/andresuchdata/stockpilot/internal/sales"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 30, 15, 0, 0, 0, time.UTC)

func setup(t *testing.T, lead, optimal int) (*inventory.Store, *Engine) {
	t.Helper()
	clock := func() time.Time { return testNow }
	store := inventory.NewStore(inventory.WithClock(clock))
	agg := sales.NewAggregator(store, sales.WithClock(clock))
	engine := NewEngine(store, agg)

	a, err := domain.NewArticle(domain.ArticleSpec{
		ID:           "a1",
		Name:         "Paper",
		Quantity:     1000,
		OptimalStock: optimal,
		LeadTimeDays: lead,
	}, testNow)
	require.NoError(t, err)
	_, err = store.AddArticle(context.Background(), a)
	require.NoError(t, err)
	return store, engine
}

func sell(t *testing.T, store *inventory.Store, daysAgo, qty int) {
	t.Helper()
	m, err := domain.NewMovement(domain.MovementSpec{
		ArticleID: "a1",
		Direction: domain.Outbound,
		Quantity:  qty,
		Timestamp: testNow.AddDate(0, 0, -daysAgo),
	}, testNow)
	require.NoError(t, err)
	_, err = store.RecordMovement(context.Background(), m)
	require.NoError(t, err)
}

func TestComputeFormula(t *testing.T) {
	tests := []struct {
		name    string
		avg     float64
		lead    int
		margin  float64
		optimal int
		want    int
	}{
		{"reference case", 3, 7, 1.5, 100, 32},
		{"clamped to optimal", 3, 7, 1.5, 20, 20},
		{"no sales gives one", 0, 7, 1.5, 100, 1},
		{"rounds half away from zero", 0.5, 5, 1, 100, 3},
		{"rounds down", 0.1, 4, 1, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.avg, tt.lead, tt.margin, tt.optimal)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeErrors(t *testing.T) {
	_, err := Compute(3, 0, 1.5, 100)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = Compute(3, 7, 0, 100)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = Compute(3, 7, -1, 100)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAutoThresholdFromLedger(t *testing.T) {
	store, engine := setup(t, 7, 100)
	// 90 units in the trailing 30 days: 3 per day
	for d := 0; d < 30; d++ {
		sell(t, store, d, 3)
	}
	sell(t, store, 45, 500)

	v, err := engine.AutoThreshold("a1", 1.5)
	require.NoError(t, err)
	assert.Equal(t, 32, v)
}

func TestAutoThresholdBounds(t *testing.T) {
	store, engine := setup(t, 10, 15)
	for d := 0; d < 10; d++ {
		sell(t, store, d, 9)
	}

	for _, margin := range []float64{0.01, 0.5, 1, 1.5, 3, 10} {
		v, err := engine.AutoThreshold("a1", margin)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, 1)
		assert.LessOrEqual(t, v, 15)
	}
}

func TestAutoThresholdInvalidatedByMovement(t *testing.T) {
	store, engine := setup(t, 10, 1000)
	sell(t, store, 1, 30)

	v, err := engine.AutoThreshold("a1", 1)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	sell(t, store, 0, 30)
	v, err = engine.AutoThreshold("a1", 1)
	require.NoError(t, err)
	assert.Equal(t, 20, v)
}

func TestAutoThresholdInvalidatedByUpdate(t *testing.T) {
	store, engine := setup(t, 10, 1000)
	sell(t, store, 1, 30)

	v, err := engine.AutoThreshold("a1", 1)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	lead := 20
	_, err = store.UpdateArticle(context.Background(), "a1", domain.ArticleUpdate{LeadTimeDays: &lead})
	require.NoError(t, err)

	v, err = engine.AutoThreshold("a1", 1)
	require.NoError(t, err)
	assert.Equal(t, 20, v)
}

func TestAutoThresholdUnknownLeadTime(t *testing.T) {
	_, engine := setup(t, 0, 100)

	_, err := engine.AutoThreshold("a1", 1.5)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = engine.AutoThreshold("a1", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEffectivePrefersManual(t *testing.T) {
	store, engine := setup(t, 7, 100)
	for d := 0; d < 30; d++ {
		sell(t, store, d, 3)
	}

	a, err := store.GetArticle("a1")
	require.NoError(t, err)
	v, err := engine.Effective(a)
	require.NoError(t, err)
	assert.Equal(t, 32, v)

	a.ManualThreshold = domain.IntPtr(12)
	v, err = engine.Effective(a)
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	annotated := engine.Annotate([]domain.Article{a})
	require.NotNil(t, annotated[0].AutoThreshold)
	assert.Equal(t, 32, *annotated[0].AutoThreshold)
}
