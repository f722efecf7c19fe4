package forecast

import (
	"math"
	"sort"
	"sync"

	"github.com/budgetme/prediction-api/internal/model"
)

// GrowthPolicy names the business assumptions behind category projections.
// The growth figures are a policy choice, not a statistical estimate, so they
// are parameters rather than constants.
type GrowthPolicy struct {
	// AnnualGrowthRate compounds monthly over the forecast horizon.
	AnnualGrowthRate float64
	// AnnualGrowthCeiling caps total growth per year of horizon.
	AnnualGrowthCeiling float64
	// ExpenseIncomeCap is the share of predicted income that total predicted
	// expenses may not exceed.
	ExpenseIncomeCap float64
	// TrendThreshold is the relative change beyond which a category counts
	// as increasing or decreasing.
	TrendThreshold float64
	// MinTransactions is the per-category sample size below which a category
	// is silently skipped.
	MinTransactions int
}

// DefaultGrowthPolicy is the production policy: 2.5% annual growth, capped at
// 3% per year, expenses reconciled to 90% of predicted income, ±5% trend
// threshold, 7-transaction minimum.
func DefaultGrowthPolicy() GrowthPolicy {
	return GrowthPolicy{
		AnnualGrowthRate:    0.025,
		AnnualGrowthCeiling: 0.03,
		ExpenseIncomeCap:    0.90,
		TrendThreshold:      0.05,
		MinTransactions:     7,
	}
}

// ForecastCategories projects per-category monthly averages over the horizon.
// Categories are grouped by their label verbatim; labels differing only in
// case or whitespace form separate categories. Each qualifying category gets
// an independent projection, computed concurrently; when predictedIncome > 0
// the expense projections are then reconciled so their sum stays within the
// policy's share of income. Categories with too few transactions are skipped.
func ForecastCategories(
	transactions []model.Transaction,
	horizonDays int,
	predictedIncome float64,
	policy GrowthPolicy,
) map[string]model.CategoryForecast {
	grouped := make(map[string][]model.Transaction)
	for _, tx := range transactions {
		if tx.Category == "" {
			continue
		}
		grouped[tx.Category] = append(grouped[tx.Category], tx)
	}

	results := make(map[string]model.CategoryForecast, len(grouped))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for label, txs := range grouped {
		if len(txs) < policy.MinTransactions {
			continue
		}
		wg.Add(1)
		go func(label string, txs []model.Transaction) {
			defer wg.Done()
			fc := forecastCategory(label, txs, horizonDays, policy)
			mu.Lock()
			results[label] = fc
			mu.Unlock()
		}(label, txs)
	}
	// Reconciliation is a barrier: every category must be projected before
	// expenses can be scaled against income.
	wg.Wait()

	if predictedIncome > 0 {
		reconcileExpenses(results, predictedIncome, policy)
	}
	return results
}

// forecastCategory projects one category from its own history.
func forecastCategory(label string, txs []model.Transaction, horizonDays int, policy GrowthPolicy) model.CategoryForecast {
	isExpense := false
	var total float64
	minDate, maxDate := txs[0].Date, txs[0].Date
	for _, tx := range txs {
		if tx.Type == model.TransactionExpense {
			isExpense = true
		}
		total += math.Abs(tx.Amount)
		if tx.Date.Before(minDate) {
			minDate = tx.Date
		}
		if tx.Date.After(maxDate) {
			maxDate = tx.Date
		}
	}

	// Monthly average over the category's own span, not the global one.
	spanDays := maxDate.Sub(minDate).Hours() / 24
	months := math.Max(1, spanDays/30)
	historical := total / months

	predicted := historical * growthFactor(horizonDays, policy)

	return model.CategoryForecast{
		Category:          label,
		HistoricalAverage: historical,
		PredictedAverage:  predicted,
		Confidence:        categoryConfidence(len(txs)),
		Trend:             classifyTrend(historical, predicted, policy.TrendThreshold),
		DataPoints:        len(txs),
		IsExpense:         isExpense,
	}
}

// growthFactor applies the policy growth over the horizon, capped at the
// annual ceiling so a long horizon cannot compound past it.
func growthFactor(horizonDays int, policy GrowthPolicy) float64 {
	horizonMonths := float64(horizonDays) / 30
	grown := 1 + (policy.AnnualGrowthRate/12)*horizonMonths
	ceiling := 1 + policy.AnnualGrowthCeiling*(horizonMonths/12)
	return math.Min(grown, ceiling)
}

// reconcileExpenses scales expense projections down proportionally when their
// sum exceeds the policy share of predicted income. Independently grown
// per-category projections can sum past total income, which is never
// realistic, so this enforces a global consistency cap. Trend labels are
// re-evaluated after scaling.
func reconcileExpenses(forecasts map[string]model.CategoryForecast, predictedIncome float64, policy GrowthPolicy) {
	var totalExpenses float64
	hasExpense := false
	for _, fc := range forecasts {
		if fc.IsExpense {
			hasExpense = true
			totalExpenses += fc.PredictedAverage
		}
	}
	budget := policy.ExpenseIncomeCap * predictedIncome
	if !hasExpense || totalExpenses <= budget {
		return
	}

	scale := budget / totalExpenses
	for label, fc := range forecasts {
		if !fc.IsExpense {
			continue
		}
		fc.PredictedAverage *= scale
		fc.Trend = classifyTrend(fc.HistoricalAverage, fc.PredictedAverage, policy.TrendThreshold)
		forecasts[label] = fc
	}
}

// classifyTrend compares predicted against historical at the given relative
// threshold.
func classifyTrend(historical, predicted, threshold float64) model.Trend {
	if historical == 0 {
		return model.TrendStable
	}
	change := (predicted - historical) / historical
	switch {
	case change > threshold:
		return model.TrendIncreasing
	case change < -threshold:
		return model.TrendDecreasing
	default:
		return model.TrendStable
	}
}

// categoryConfidence grows with sample size alone, independent of the model's
// own accuracy.
func categoryConfidence(dataPoints int) float64 {
	return math.Min(0.95, 0.6+float64(dataPoints)/100)
}

// TopCategoriesByImpact orders category labels by the absolute change between
// historical and predicted averages, largest first.
func TopCategoriesByImpact(forecasts map[string]model.CategoryForecast, limit int) []model.CategoryForecast {
	ordered := make([]model.CategoryForecast, 0, len(forecasts))
	for _, fc := range forecasts {
		ordered = append(ordered, fc)
	}
	sort.Slice(ordered, func(i, j int) bool {
		di := math.Abs(ordered[i].PredictedAverage - ordered[i].HistoricalAverage)
		dj := math.Abs(ordered[j].PredictedAverage - ordered[j].HistoricalAverage)
		if di != dj {
			return di > dj
		}
		return ordered[i].Category < ordered[j].Category
	})
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered
}
