package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetme/prediction-api/internal/model"
)

func TestAggregateMonthly(t *testing.T) {
	t.Run("empty input yields empty result", func(t *testing.T) {
		assert.Empty(t, AggregateMonthly(nil))
	})

	t.Run("intervals combine as root sum of squares", func(t *testing.T) {
		points := []model.PredictionPoint{
			{Date: day(2025, 3, 1), Predicted: 10, Upper: 12, Lower: 8, Trend: 10, Seasonal: 1},
			{Date: day(2025, 3, 2), Predicted: 20, Upper: 23, Lower: 17, Trend: 20, Seasonal: -1},
			{Date: day(2025, 3, 3), Predicted: 30, Upper: 33, Lower: 27, Trend: 30, Seasonal: 2},
		}
		months := AggregateMonthly(points)
		require.Len(t, months, 1)

		m := months[0]
		assert.Equal(t, "2025-03", m.Month)
		assert.Equal(t, 3, m.DayCount)
		assert.InDelta(t, 60.0, m.PredictedTotal, 1e-9)
		// half-widths 2, 3, 3 -> sqrt(4+9+9) = sqrt(22)
		assert.InDelta(t, 60+math.Sqrt(22), m.Upper, 1e-9)
		assert.InDelta(t, 60-math.Sqrt(22), m.Lower, 1e-9)
		assert.InDelta(t, 20.0, m.TrendAvg, 1e-9)
		assert.InDelta(t, 2.0, m.SeasonalTotal, 1e-9)
		assert.Greater(t, m.Confidence, 0.0)
		assert.LessOrEqual(t, m.Confidence, 1.0)
	})

	t.Run("rss bound is tighter than a straight sum", func(t *testing.T) {
		points := []model.PredictionPoint{
			{Date: day(2025, 3, 1), Predicted: 10, Upper: 12, Lower: 8},
			{Date: day(2025, 3, 2), Predicted: 20, Upper: 23, Lower: 17},
			{Date: day(2025, 3, 3), Predicted: 30, Upper: 33, Lower: 27},
		}
		m := AggregateMonthly(points)[0]
		assert.Less(t, m.Upper, 12.0+23+33)
		assert.Greater(t, m.Lower, 8.0+17+27)
	})

	t.Run("splits on month boundaries", func(t *testing.T) {
		points := []model.PredictionPoint{
			{Date: day(2025, 3, 30), Predicted: 1, Upper: 2, Lower: 0},
			{Date: day(2025, 3, 31), Predicted: 1, Upper: 2, Lower: 0},
			{Date: day(2025, 4, 1), Predicted: 5, Upper: 6, Lower: 4},
		}
		months := AggregateMonthly(points)
		require.Len(t, months, 2)

		assert.Equal(t, "2025-03", months[0].Month)
		assert.Equal(t, 2, months[0].DayCount)
		assert.Equal(t, "2025-04", months[1].Month)
		assert.Equal(t, 1, months[1].DayCount)
		assert.InDelta(t, 5.0, months[1].PredictedTotal, 1e-9)
	})
}
