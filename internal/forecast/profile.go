package forecast

import (
	"math"
	"sort"

	"github.com/budgetme/prediction-api/internal/model"
)

// CalculateProfile derives the high-level financial profile straight from the
// raw transactions, independent of the fitted model. It never fails: bad or
// empty input yields a zeroed profile so the surrounding pipeline can carry
// on.
func CalculateProfile(transactions []model.Transaction) model.UserFinancialProfile {
	profile := model.UserFinancialProfile{
		SpendingCategories: []string{},
		TransactionCount:   len(transactions),
	}
	if len(transactions) == 0 {
		return profile
	}

	var totalIncome, totalExpenses float64
	categories := make(map[string]struct{})
	minDate, maxDate := transactions[0].Date, transactions[0].Date
	for _, tx := range transactions {
		switch tx.Type {
		case model.TransactionIncome:
			totalIncome += math.Abs(tx.Amount)
		case model.TransactionExpense:
			totalExpenses += math.Abs(tx.Amount)
		}
		if tx.Category != "" {
			categories[tx.Category] = struct{}{}
		}
		if tx.Date.Before(minDate) {
			minDate = tx.Date
		}
		if tx.Date.After(maxDate) {
			maxDate = tx.Date
		}
	}

	spanDays := maxDate.Sub(minDate).Hours() / 24
	months := math.Max(1, spanDays/30)

	profile.AvgMonthlyIncome = totalIncome / months
	profile.AvgMonthlyExpenses = totalExpenses / months
	if totalIncome > 0 {
		profile.SavingsRate = (totalIncome - totalExpenses) / totalIncome
	}
	for c := range categories {
		profile.SpendingCategories = append(profile.SpendingCategories, c)
	}
	sort.Strings(profile.SpendingCategories)
	return profile
}
