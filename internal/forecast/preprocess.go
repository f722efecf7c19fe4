// Package forecast implements the forecast-orchestration pipeline: it reshapes
// raw transactions into a regular daily series, fits a forecasting model,
// produces daily and monthly predictions with uncertainty bounds, and
// reconciles category-level projections against predicted income.
package forecast

import (
	"sort"
	"time"

	"github.com/budgetme/prediction-api/internal/model"
)

// DailyPoint is one day of net cash flow in a gap-free daily series.
type DailyPoint struct {
	Date    time.Time
	NetFlow float64
	Income  float64
	Expense float64
}

// DailySeries is an ordered, gap-free sequence of daily net-flow points.
// Consecutive entries are exactly one calendar day apart.
type DailySeries []DailyPoint

// Values returns the net-flow column of the series.
func (s DailySeries) Values() []float64 {
	vals := make([]float64, len(s))
	for i, p := range s {
		vals[i] = p.NetFlow
	}
	return vals
}

// SpanDays returns the inclusive calendar span of the series in days.
func (s DailySeries) SpanDays() int {
	if len(s) == 0 {
		return 0
	}
	return int(s[len(s)-1].Date.Sub(s[0].Date).Hours()/24) + 1
}

// Preprocess converts raw transactions into a dense daily net-flow series.
// Transactions are grouped by calendar day (time of day discarded), income
// and expense amounts summed separately, and the result reindexed over the
// full inclusive date range with zero-flow entries for days that had no
// transactions. Rows with a non-positive amount are dropped; an input that
// is empty, or empties after dropping, is invalid.
func Preprocess(transactions []model.Transaction) (DailySeries, error) {
	if len(transactions) == 0 {
		return nil, NewInvalidInputError("no transaction data provided")
	}

	type dayTotals struct {
		income  float64
		expense float64
	}
	byDay := make(map[time.Time]*dayTotals)
	kept := 0
	for _, tx := range transactions {
		if tx.Amount <= 0 || tx.Date.IsZero() {
			continue
		}
		day := truncateToDay(tx.Date)
		totals, ok := byDay[day]
		if !ok {
			totals = &dayTotals{}
			byDay[day] = totals
		}
		switch tx.Type {
		case model.TransactionIncome:
			totals.income += tx.Amount
		case model.TransactionExpense:
			totals.expense += tx.Amount
		default:
			continue
		}
		kept++
	}
	if kept == 0 {
		return nil, NewInvalidInputError("no transactions with a valid date, positive amount and type")
	}

	days := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	// Reindex over the full inclusive range so gaps become explicit zero days.
	start, end := days[0], days[len(days)-1]
	var series DailySeries
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		point := DailyPoint{Date: day}
		if totals, ok := byDay[day]; ok {
			point.Income = totals.income
			point.Expense = totals.expense
			point.NetFlow = totals.income - totals.expense
		}
		series = append(series, point)
	}
	return series, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
