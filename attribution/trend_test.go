package attribution

import (
	"context"
	"testing"
	"time"

	"mta/model/model"
	U "mta/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrendTestStore() *testStore {
	store := newTestStore()
	// 2024-03-01 (friday), 03-04, 03-07, 03-10 and 03-13.
	store.addJourney("j1", 10, []string{"search", "email", "search", "search", "email"}, []float64{1, 2, 3, 4, 5})
	return store
}

func TestTrendDaily(t *testing.T) {
	analyzer := NewTrendAnalyzer(newTrendTestStore(), testOptions())

	points, err := analyzer.Trend(context.Background(), TrendQuery{
		Metric:    model.TrendMetricCost,
		ChannelID: "search",
		From:      testTime.AddDate(0, 0, -1),
		To:        testTime.AddDate(0, 0, 20),
	})
	require.NoError(t, err)
	assert.Equal(t, []model.TrendPoint{
		{BucketStart: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Value: 1},
		{BucketStart: time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), Value: 3},
		{BucketStart: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), Value: 4},
	}, points)
}

func TestTrendWeeklyAndMonthly(t *testing.T) {
	analyzer := NewTrendAnalyzer(newTrendTestStore(), testOptions())
	from, to := testTime.AddDate(0, 0, -1), testTime.AddDate(0, 0, 20)

	points, err := analyzer.Trend(context.Background(), TrendQuery{Metric: model.TrendMetricTouchpoints,
		From: from, To: to, Interval: U.GranularityWeek})
	require.NoError(t, err)
	// weeks start on sunday.
	assert.Equal(t, []model.TrendPoint{
		{BucketStart: time.Date(2024, 2, 25, 0, 0, 0, 0, time.UTC), Value: 1},
		{BucketStart: time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), Value: 2},
		{BucketStart: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), Value: 2},
	}, points)

	points, err = analyzer.Trend(context.Background(), TrendQuery{Metric: model.TrendMetricCost,
		From: from, To: to, Interval: U.GranularityMonth})
	require.NoError(t, err)
	assert.Equal(t, []model.TrendPoint{{BucketStart: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Value: 15}}, points)
}

func TestTrendZeroFill(t *testing.T) {
	analyzer := NewTrendAnalyzer(newTrendTestStore(), testOptions())

	points, err := analyzer.Trend(context.Background(), TrendQuery{Metric: model.TrendMetricTouchpoints,
		ChannelID: "email", From: testTime, To: testTime.AddDate(0, 0, 4), ZeroFill: true})
	require.NoError(t, err)
	require.Len(t, points, 5)
	assert.Equal(t, 0.0, points[0].Value)
	assert.Equal(t, 1.0, points[3].Value)
}

func TestTrendDefaultWindowAndValidation(t *testing.T) {
	analyzer := NewTrendAnalyzer(newTrendTestStore(), testOptions())

	// clock is 2024-03-11 10:00, so the 03-13 touchpoint is outside the window.
	points, err := analyzer.Trend(context.Background(), TrendQuery{Metric: model.TrendMetricTouchpoints})
	require.NoError(t, err)
	assert.Len(t, points, 4)

	_, err = analyzer.Trend(context.Background(), TrendQuery{Metric: "revenue"})
	assert.True(t, model.IsInvalidState(err))

	_, err = analyzer.Trend(context.Background(), TrendQuery{Metric: model.TrendMetricCost, Interval: "hour"})
	assert.True(t, model.IsInvalidState(err))
}
