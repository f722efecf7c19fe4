package insights

import (
	"math"

	"github.com/budgetme/prediction-api/internal/forecast"
	"github.com/budgetme/prediction-api/internal/model"
)

// Stability levels for the financial health assessment.
const (
	StabilityExcellent = "excellent"
	StabilityGood      = "good"
	StabilityFair      = "fair"
	StabilityPoor      = "poor"
)

// Context is the distilled view of a prediction result that prompts and
// fallback insights are built from.
type Context struct {
	Timeframe       model.Timeframe
	AvgMonthlyNet   float64
	TrendDirection  model.Trend
	ModelConfidence float64

	AvgMonthlyIncome   float64
	AvgMonthlyExpenses float64
	SavingsRate        float64
	ExpenseRatio       float64
	StabilityLevel     string

	// MonthsToEmergencyFund is how long building a three-month expense buffer
	// would take at the current savings rate. Zero when there is no surplus.
	MonthsToEmergencyFund float64

	TopCategories []model.CategoryForecast
}

const emergencyFundMonths = 3

// BuildContext summarizes a prediction result for insight generation.
func BuildContext(result *model.PredictionResult) Context {
	c := Context{
		Timeframe:          result.Timeframe,
		TrendDirection:     monthlyTrend(result.MonthlyForecasts),
		ModelConfidence:    result.ConfidenceScore,
		AvgMonthlyIncome:   result.UserProfile.AvgMonthlyIncome,
		AvgMonthlyExpenses: result.UserProfile.AvgMonthlyExpenses,
		SavingsRate:        result.UserProfile.SavingsRate,
		TopCategories:      forecast.TopCategoriesByImpact(result.CategoryForecasts, 3),
	}

	if len(result.MonthlyForecasts) > 0 {
		var total float64
		for _, m := range result.MonthlyForecasts {
			total += m.PredictedTotal
		}
		c.AvgMonthlyNet = total / float64(len(result.MonthlyForecasts))
	}

	if c.AvgMonthlyIncome > 0 {
		c.ExpenseRatio = c.AvgMonthlyExpenses / c.AvgMonthlyIncome
	}
	c.StabilityLevel = stabilityLevel(c.SavingsRate)

	surplus := c.AvgMonthlyIncome - c.AvgMonthlyExpenses
	if surplus > 0 && c.AvgMonthlyExpenses > 0 {
		c.MonthsToEmergencyFund = emergencyFundMonths * c.AvgMonthlyExpenses / surplus
	}
	return c
}

// stabilityLevel grades the savings rate.
func stabilityLevel(savingsRate float64) string {
	switch {
	case savingsRate >= 0.2:
		return StabilityExcellent
	case savingsRate >= 0.1:
		return StabilityGood
	case savingsRate >= 0:
		return StabilityFair
	default:
		return StabilityPoor
	}
}

// monthlyTrend classifies the overall direction from the first to the last
// forecast month.
func monthlyTrend(months []model.MonthlyForecastPoint) model.Trend {
	if len(months) < 2 {
		return model.TrendStable
	}
	first := months[0].TrendAvg
	last := months[len(months)-1].TrendAvg
	if first == 0 {
		return model.TrendStable
	}
	change := (last - first) / math.Abs(first)
	switch {
	case change > 0.05:
		return model.TrendIncreasing
	case change < -0.05:
		return model.TrendDecreasing
	default:
		return model.TrendStable
	}
}
