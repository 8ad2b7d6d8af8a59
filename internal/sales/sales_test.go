package sales

import (
	"testing"
	"time"

	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 30, 15, 0, 0, 0, time.UTC)

type fakeSource struct {
	movements map[string][]domain.Movement
	calls     int
	listeners []func(string)
}

func (f *fakeSource) MovementsFor(articleID string, _ int) ([]domain.Movement, error) {
	f.calls++
	return f.movements[articleID], nil
}

func (f *fakeSource) Subscribe(fn func(string)) {
	f.listeners = append(f.listeners, fn)
}

func (f *fakeSource) notify(articleID string) {
	for _, fn := range f.listeners {
		fn(articleID)
	}
}

func sale(articleID string, daysAgo, qty int) domain.Movement {
	return domain.Movement{
		ArticleID: articleID,
		Direction: domain.Outbound,
		Quantity:  qty,
		Timestamp: testNow.AddDate(0, 0, -daysAgo).Add(-time.Hour),
		Reason:    domain.ReasonSale,
	}
}

func TestAverageDaily(t *testing.T) {
	var movements []domain.Movement
	for d := 0; d < 30; d++ {
		movements = append(movements, sale("a", d, 3))
	}
	// outside the window
	movements = append(movements, sale("a", 31, 100))
	// corrections and inbound are not demand
	movements = append(movements,
		domain.Movement{ArticleID: "a", Direction: domain.Outbound, Quantity: 50, Timestamp: testNow, Correction: true},
		domain.Movement{ArticleID: "a", Direction: domain.Inbound, Quantity: 50, Timestamp: testNow},
	)

	assert.InDelta(t, 3.0, AverageDaily(movements, testNow, AverageWindowDays), 1e-9)
	assert.Equal(t, 0.0, AverageDaily(nil, testNow, AverageWindowDays))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)
	b := time.Date(2024, 3, 3, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 2, DaysBetween(a, b))
	assert.Equal(t, -2, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a.Add(30*time.Minute)))
}

func TestSeriesSlope(t *testing.T) {
	tests := []struct {
		name  string
		qty   []int
		slope float64
		mean  float64
	}{
		{"flat", []int{5, 5, 5, 5}, 0, 5},
		{"rising", []int{1, 2, 3, 4, 5}, 1, 3},
		{"falling", []int{8, 6, 4, 2}, -2, 5},
		{"single", []int{7}, 0, 7},
		{"empty", nil, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DailySeries{Start: testNow, Quantities: tt.qty}
			assert.InDelta(t, tt.slope, s.Slope(), 1e-9)
			assert.InDelta(t, tt.mean, s.Mean(), 1e-9)
		})
	}
}

func TestBuildSeriesBucketsPerDay(t *testing.T) {
	movements := []domain.Movement{sale("a", 2, 4), sale("a", 2, 1), sale("a", 0, 3)}
	s := BuildSeries(movements, movements[0].Timestamp, testNow)

	require.Equal(t, 3, s.Len())
	assert.Equal(t, []int{5, 0, 3}, s.Quantities)
	assert.Equal(t, 2, s.ActiveDays())
}

func TestComputeStats(t *testing.T) {
	movements := []domain.Movement{
		sale("a", 60, 9),
		sale("a", 10, 6),
		sale("a", 4, 3),
		sale("a", 4, 3),
	}
	s := Compute("a", movements, testNow, DefaultLookbackDays)

	assert.Equal(t, 12, s.DemandTotal)
	assert.InDelta(t, 0.4, s.AverageDaily, 1e-9)
	assert.Equal(t, 2, s.SaleDays)
	// nothing sold today: the series stops on yesterday
	assert.Equal(t, 10, s.Series.Len())
	assert.Equal(t, 0, s.LatestDayQuantity)
	assert.Equal(t, DayStart(testNow.AddDate(0, 0, -1)), s.LatestDay)
	assert.Equal(t, 4, s.LookbackMovements)
	assert.True(t, s.HasSales())
	assert.InDelta(t, 146.0, s.AnnualDemand(), 1e-9)
}

func TestSeriesEnd(t *testing.T) {
	yesterday := DayStart(testNow).Add(-time.Nanosecond)
	tests := []struct {
		name      string
		movements []domain.Movement
		want      time.Time
	}{
		{"sale today", []domain.Movement{sale("a", 3, 1), sale("a", 0, 1)}, testNow},
		{"no sale today", []domain.Movement{sale("a", 3, 1), sale("a", 1, 1)}, yesterday},
		{"first sale today", []domain.Movement{sale("a", 0, 1)}, testNow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SeriesEnd(tt.movements, tt.movements[0].Timestamp, testNow))
		})
	}
}

func TestComputeStatsEndsOnLastCompleteDay(t *testing.T) {
	var movements []domain.Movement
	for d := 1; d <= 10; d++ {
		movements = append(movements, sale("a", d, 5))
	}
	s := Compute("a", movements, testNow, DefaultLookbackDays)

	assert.Equal(t, 10, s.Series.Len())
	assert.InDelta(t, 5.0, s.Series.Mean(), 1e-9)
	assert.InDelta(t, 0.0, s.Series.Slope(), 1e-9)
	assert.Equal(t, 5, s.LatestDayQuantity)
	assert.Equal(t, DayStart(testNow.AddDate(0, 0, -1)), s.LatestDay)
}

func TestComputeStatsWithoutSales(t *testing.T) {
	s := Compute("a", []domain.Movement{sale("a", 45, 2)}, testNow, DefaultLookbackDays)

	assert.False(t, s.HasSales())
	assert.Zero(t, s.AverageDaily)
	assert.Zero(t, s.Series.Len())
	assert.True(t, s.LatestDay.IsZero())
	assert.Equal(t, 1, s.LookbackMovements)
}

func TestAggregatorCachesUntilInvalidated(t *testing.T) {
	now := testNow
	src := &fakeSource{movements: map[string][]domain.Movement{"a": {sale("a", 1, 30)}}}
	agg := NewAggregator(src, WithClock(func() time.Time { return now }))

	s, err := agg.Stats("a")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.AverageDaily, 1e-9)

	_, err = agg.Stats("a")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	src.movements["a"] = append(src.movements["a"], sale("a", 0, 30))
	src.notify("a")

	s, err = agg.Stats("a")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	assert.InDelta(t, 2.0, s.AverageDaily, 1e-9)

	now = now.Add(DefaultCacheTTL)
	_, err = agg.Stats("a")
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
}

func TestAggregatorWithoutCache(t *testing.T) {
	src := &fakeSource{movements: map[string][]domain.Movement{}}
	agg := NewAggregator(src, WithClock(func() time.Time { return testNow }), WithTTL(0))

	_, _ = agg.Stats("a")
	_, _ = agg.Stats("a")
	assert.Equal(t, 2, src.calls)
}
