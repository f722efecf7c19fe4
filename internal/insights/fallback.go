package insights

import (
	"context"
	"fmt"

	"github.com/budgetme/prediction-api/internal/model"
)

// FallbackGenerator produces deterministic insights derived directly from the
// prediction result. It backs the API when no LLM provider is configured and
// fills in for individual failed LLM calls.
type FallbackGenerator struct{}

// NewFallbackGenerator returns the rule-based generator.
func NewFallbackGenerator() *FallbackGenerator {
	return &FallbackGenerator{}
}

// Generate produces one insight per category. It never fails.
func (g *FallbackGenerator) Generate(_ context.Context, result *model.PredictionResult) ([]model.Insight, error) {
	c := BuildContext(result)
	out := make([]model.Insight, 0, len(Categories))
	for _, category := range Categories {
		out = append(out, fallbackInsight(category, c))
	}
	return out, nil
}

// fallbackInsight builds the rule-based insight for one category.
func fallbackInsight(category string, c Context) model.Insight {
	switch category {
	case CategoryTrend:
		return trendInsight(c)
	case CategoryCategory:
		return categoryInsight(c)
	case CategoryRisk:
		return riskInsight(c)
	case CategoryOpportunity:
		return opportunityInsight(c)
	default:
		return goalInsight(c)
	}
}

func trendInsight(c Context) model.Insight {
	var description string
	switch c.TrendDirection {
	case model.TrendIncreasing:
		description = fmt.Sprintf("Your net cash flow is trending upward, averaging %.0f per month over the forecast period.", c.AvgMonthlyNet)
	case model.TrendDecreasing:
		description = fmt.Sprintf("Your net cash flow is trending downward, averaging %.0f per month over the forecast period.", c.AvgMonthlyNet)
	default:
		description = fmt.Sprintf("Your net cash flow is stable, averaging %.0f per month over the forecast period.", c.AvgMonthlyNet)
	}
	return model.Insight{
		Title:          "Cash flow trend",
		Description:    description,
		Category:       CategoryTrend,
		Confidence:     c.ModelConfidence,
		Recommendation: "Review the monthly forecast to see how the trend develops.",
	}
}

func categoryInsight(c Context) model.Insight {
	if len(c.TopCategories) == 0 {
		return model.Insight{
			Title:          "Spending categories",
			Description:    "Not enough categorized transactions to analyze spending by category.",
			Category:       CategoryCategory,
			Confidence:     0.5,
			Recommendation: "Categorize your transactions to unlock category-level insights.",
		}
	}
	top := c.TopCategories[0]
	return model.Insight{
		Title: "Biggest category shift",
		Description: fmt.Sprintf("%s shows the largest projected change: from %.0f to %.0f per month (%s).",
			top.Category, top.HistoricalAverage, top.PredictedAverage, top.Trend),
		Category:       CategoryCategory,
		Confidence:     top.Confidence,
		Recommendation: fmt.Sprintf("Keep an eye on your %s spending over the coming months.", top.Category),
	}
}

func riskInsight(c Context) model.Insight {
	if c.StabilityLevel == StabilityPoor {
		return model.Insight{
			Title: "Spending exceeds income",
			Description: fmt.Sprintf("Your expenses (%.0f/month) exceed your income (%.0f/month). At this rate your balance will keep shrinking.",
				c.AvgMonthlyExpenses, c.AvgMonthlyIncome),
			Category:       CategoryRisk,
			Confidence:     0.9,
			Recommendation: "Identify recurring expenses you can cut to bring spending below income.",
		}
	}
	return model.Insight{
		Title: "Expense ratio",
		Description: fmt.Sprintf("You spend %.0f%% of your income. Your financial stability rates as %s.",
			c.ExpenseRatio*100, c.StabilityLevel),
		Category:       CategoryRisk,
		Confidence:     0.8,
		Recommendation: "Keep fixed expenses below 50% of income to stay resilient.",
	}
}

func opportunityInsight(c Context) model.Insight {
	if c.SavingsRate >= 0.2 {
		return model.Insight{
			Title: "Strong savings rate",
			Description: fmt.Sprintf("You save %.0f%% of your income, which is an excellent base for investing.",
				c.SavingsRate*100),
			Category:       CategoryOpportunity,
			Confidence:     0.8,
			Recommendation: "Consider moving part of your monthly surplus into long-term investments.",
		}
	}
	return model.Insight{
		Title: "Room to save more",
		Description: fmt.Sprintf("Your savings rate is %.0f%%. Raising it toward 20%% would significantly strengthen your finances.",
			c.SavingsRate*100),
		Category:       CategoryOpportunity,
		Confidence:     0.7,
		Recommendation: "Automate a fixed transfer to savings right after each payday.",
	}
}

func goalInsight(c Context) model.Insight {
	if c.MonthsToEmergencyFund > 0 {
		return model.Insight{
			Title: "Emergency fund",
			Description: fmt.Sprintf("At your current savings rate, building a three-month emergency fund takes about %.0f months.",
				c.MonthsToEmergencyFund),
			Category:       CategoryGoal,
			Confidence:     0.7,
			Recommendation: "Treat the emergency fund as your first savings goal before other investments.",
		}
	}
	return model.Insight{
		Title:          "Set a savings goal",
		Description:    "With no monthly surplus, building reserves requires reducing expenses or increasing income first.",
		Category:       CategoryGoal,
		Confidence:     0.7,
		Recommendation: "Start with a small, fixed monthly savings amount to build the habit.",
	}
}
