package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetme/prediction-api/internal/model"
)

// dailyIncome builds count days of identical income transactions.
func dailyIncome(amount float64, count int, start time.Time) []model.Transaction {
	txs := make([]model.Transaction, count)
	for i := range txs {
		txs[i] = model.Transaction{
			Date:     start.AddDate(0, 0, i),
			Amount:   amount,
			Type:     model.TransactionIncome,
			Category: "Salary",
		}
	}
	return txs
}

func TestPipelineGenerate(t *testing.T) {
	ctx := context.Background()
	pipeline := NewPipeline(PipelineOptions{})
	start := day(2025, 1, 1)

	t.Run("rejects an unsupported timeframe", func(t *testing.T) {
		_, err := pipeline.Generate(ctx, Request{
			Transactions: dailyIncome(100, 30, start),
			Timeframe:    model.Timeframe("weeks_2"),
		})
		require.Error(t, err)
		assert.Equal(t, ErrInvalidInput, CodeOf(err))
	})

	t.Run("rejects too few transactions before fitting", func(t *testing.T) {
		_, err := pipeline.Generate(ctx, Request{
			Transactions: dailyIncome(100, 5, start),
			Timeframe:    model.Timeframe3Months,
		})
		require.Error(t, err)
		assert.Equal(t, ErrInsufficientData, CodeOf(err))
	})

	t.Run("many transactions on one day still count as one point", func(t *testing.T) {
		txs := make([]model.Transaction, 10)
		for i := range txs {
			txs[i] = model.Transaction{Date: start, Amount: 50, Type: model.TransactionExpense}
		}
		_, err := pipeline.Generate(ctx, Request{Transactions: txs, Timeframe: model.Timeframe3Months})
		require.Error(t, err)

		fe, ok := err.(*Error)
		require.True(t, ok)
		assert.Equal(t, ErrInsufficientData, fe.Code)
		assert.Equal(t, 1, fe.Details["available_points"])
	})

	t.Run("generates a complete result", func(t *testing.T) {
		result, err := pipeline.Generate(ctx, Request{
			UserID:            "user-1",
			Transactions:      dailyIncome(100, 40, start),
			Timeframe:         model.Timeframe3Months,
			IncludeCategories: true,
		})
		require.NoError(t, err)

		assert.Equal(t, "user-1", result.UserID)
		assert.Equal(t, model.Timeframe3Months, result.Timeframe)
		assert.Len(t, result.Predictions, 90)
		assert.NotEmpty(t, result.MonthlyForecasts)
		assert.Contains(t, result.CategoryForecasts, "Salary")
		assert.Equal(t, 40, result.ModelAccuracy.DataPoints)
		assert.Greater(t, result.ConfidenceScore, 0.0)
		assert.LessOrEqual(t, result.ConfidenceScore, 1.0)
		assert.InDelta(t, 24*time.Hour.Seconds(), result.ExpiresAt.Sub(result.GeneratedAt).Seconds(), 1)
		assert.Greater(t, result.UserProfile.AvgMonthlyIncome, 0.0)
	})

	t.Run("categories are omitted unless requested", func(t *testing.T) {
		result, err := pipeline.Generate(ctx, Request{
			Transactions: dailyIncome(100, 40, start),
			Timeframe:    model.Timeframe3Months,
		})
		require.NoError(t, err)
		assert.Nil(t, result.CategoryForecasts)
	})

	t.Run("withholds results when backtest error is too high", func(t *testing.T) {
		// Income every other day makes the series whipsaw between 0 and 200,
		// which a trend model cannot track.
		var txs []model.Transaction
		for i := 0; i < 40; i += 2 {
			txs = append(txs, model.Transaction{
				Date:   start.AddDate(0, 0, i),
				Amount: 200,
				Type:   model.TransactionIncome,
			})
		}
		_, err := pipeline.Generate(ctx, Request{Transactions: txs, Timeframe: model.Timeframe3Months})
		require.Error(t, err)
		assert.Equal(t, ErrModelAccuracyTooLow, CodeOf(err))
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := pipeline.Generate(cancelled, Request{
			Transactions: dailyIncome(100, 40, start),
			Timeframe:    model.Timeframe3Months,
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestValidate(t *testing.T) {
	start := day(2025, 1, 1)

	t.Run("flags insufficient data as an error", func(t *testing.T) {
		report := Validate(dailyIncome(100, 5, start))
		assert.False(t, report.Valid)
		assert.NotEmpty(t, report.Errors)
	})

	t.Run("warns about thin but acceptable data", func(t *testing.T) {
		txs := make([]model.Transaction, 10)
		for i := range txs {
			txs[i] = model.Transaction{
				Date:     start.AddDate(0, 0, i),
				Amount:   50,
				Type:     model.TransactionExpense,
				Category: "Food",
			}
		}
		report := Validate(txs)
		assert.True(t, report.Valid)
		assert.Empty(t, report.Errors)
		require.Len(t, report.Warnings, 3)
		assert.Equal(t, 10, report.TransactionCount)
		assert.Equal(t, 10, report.DateRangeDays)
		assert.Equal(t, 1, report.CategoriesCount)
		assert.Equal(t, 10, report.ExpenseTransactions)
		assert.Zero(t, report.IncomeTransactions)
	})

	t.Run("clean data passes without warnings", func(t *testing.T) {
		txs := dailyIncome(100, 40, start)
		txs = append(txs, model.Transaction{
			Date: start, Amount: 30, Type: model.TransactionExpense, Category: "Food",
		})
		report := Validate(txs)
		assert.True(t, report.Valid)
		assert.Empty(t, report.Warnings)
		assert.Equal(t, 40, report.IncomeTransactions)
		assert.Equal(t, 1, report.ExpenseTransactions)
	})
}
