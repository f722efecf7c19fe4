package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesFromValues(values []float64) DailySeries {
	series := make(DailySeries, len(values))
	d := day(2025, 1, 1)
	for i, v := range values {
		series[i] = DailyPoint{Date: d.AddDate(0, 0, i), NetFlow: v}
	}
	return series
}

func TestModerateOutliers(t *testing.T) {
	t.Run("short series passes through", func(t *testing.T) {
		series := seriesFromValues([]float64{1, 1000})
		assert.Equal(t, series, ModerateOutliers(series, 3))
	})

	t.Run("unflagged series passes through", func(t *testing.T) {
		series := seriesFromValues([]float64{10, 11, 9, 10, 12, 8, 10})
		assert.Equal(t, series.Values(), ModerateOutliers(series, 3).Values())
	})

	t.Run("constant series passes through", func(t *testing.T) {
		series := seriesFromValues([]float64{10, 10, 10, 10})
		assert.Equal(t, series.Values(), ModerateOutliers(series, 3).Values())
	})

	t.Run("extreme day triggers percentile clamp", func(t *testing.T) {
		values := make([]float64, 21)
		for i := range values {
			values[i] = 10
		}
		values[20] = 1000
		series := seriesFromValues(values)

		clean := ModerateOutliers(series, 3)
		for _, p := range clean {
			assert.Equal(t, 10.0, p.NetFlow)
		}
		// Input remains untouched.
		assert.Equal(t, 1000.0, series[20].NetFlow)
	})

	t.Run("clamped values stay within percentile bounds", func(t *testing.T) {
		values := []float64{5, 7, 6, 8, 5, 6, 7, 9, 6, 5, 8, 7, 6, 5, 9, 8, 7, 6, 5, -500}
		series := seriesFromValues(values)

		clean := ModerateOutliers(series, 3)
		lower := percentile(values, 0.05)
		upper := percentile(values, 0.95)
		for _, p := range clean {
			assert.GreaterOrEqual(t, p.NetFlow, lower)
			assert.LessOrEqual(t, p.NetFlow, upper)
		}
	})
}

func TestPercentile(t *testing.T) {
	values := []float64{4, 1, 3, 2}
	assert.Equal(t, 1.0, percentile(values, 0))
	assert.Equal(t, 4.0, percentile(values, 1))
	assert.InDelta(t, 2.5, percentile(values, 0.5), 1e-9)
}

func TestMeanStddev(t *testing.T) {
	mean, stddev := meanStddev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.InDelta(t, 5.0, mean, 1e-9)
	assert.InDelta(t, 2.0, stddev, 1e-9)
}
