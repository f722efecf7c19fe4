package forecast

import (
	"math"

	"github.com/budgetme/prediction-api/internal/model"
)

// AggregateMonthly rolls daily forecast points up into calendar-month totals.
// Daily uncertainties are treated as independent, so interval half-widths
// combine as a root sum of squares rather than a straight sum. The trend is
// averaged (it is a level, not a flow); seasonal effects sum. An empty input
// yields an empty result, not an error.
func AggregateMonthly(points []model.PredictionPoint) []model.MonthlyForecastPoint {
	if len(points) == 0 {
		return nil
	}

	var months []model.MonthlyForecastPoint
	var (
		current     string
		total       float64
		upSquares   float64
		downSquares float64
		trendSum    float64
		seasonalSum float64
		dayCount    int
	)

	flush := func() {
		if dayCount == 0 {
			return
		}
		upper := total + math.Sqrt(upSquares)
		lower := total - math.Sqrt(downSquares)
		months = append(months, model.MonthlyForecastPoint{
			Month:          current,
			PredictedTotal: total,
			Upper:          upper,
			Lower:          lower,
			TrendAvg:       trendSum / float64(dayCount),
			SeasonalTotal:  seasonalSum,
			Confidence:     ConfidenceScore(total, upper, lower),
			DayCount:       dayCount,
		})
		total, upSquares, downSquares, trendSum, seasonalSum, dayCount = 0, 0, 0, 0, 0, 0
	}

	for _, p := range points {
		month := p.Date.Format("2006-01")
		if month != current {
			flush()
			current = month
		}
		total += p.Predicted
		up := p.Upper - p.Predicted
		down := p.Predicted - p.Lower
		upSquares += up * up
		downSquares += down * down
		trendSum += p.Trend
		seasonalSum += p.Seasonal
		dayCount++
	}
	flush()
	return months
}
