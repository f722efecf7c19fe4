// Package model defines the domain types shared across the prediction service.
package model

import "time"

// TransactionType distinguishes money in from money out.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Trend is the direction classification for a forecast.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// SeasonalityMode selects how seasonal effects combine with the trend.
type SeasonalityMode string

const (
	SeasonalityAdditive       SeasonalityMode = "additive"
	SeasonalityMultiplicative SeasonalityMode = "multiplicative"
)

// Timeframe is the forecast horizon requested by a client.
type Timeframe string

const (
	Timeframe3Months Timeframe = "months_3"
	Timeframe6Months Timeframe = "months_6"
	Timeframe1Year   Timeframe = "year_1"
)

// Valid reports whether the timeframe is one of the supported values.
func (tf Timeframe) Valid() bool {
	switch tf {
	case Timeframe3Months, Timeframe6Months, Timeframe1Year:
		return true
	}
	return false
}

// Days returns the forecast horizon in days for the timeframe.
func (tf Timeframe) Days() int {
	switch tf {
	case Timeframe6Months:
		return 180
	case Timeframe1Year:
		return 365
	default:
		return 90
	}
}

// Transaction is a single financial event supplied by the client. Amount is
// always positive; direction is carried by Type.
type Transaction struct {
	Date        time.Time       `json:"date"`
	Amount      float64         `json:"amount"`
	Type        TransactionType `json:"type"`
	Category    string          `json:"category,omitempty"`
	Description string          `json:"description,omitempty"`
}

// PredictionPoint is one day of the forecast horizon.
type PredictionPoint struct {
	Date           time.Time `json:"date"`
	Predicted      float64   `json:"predicted"`
	Upper          float64   `json:"upper"`
	Lower          float64   `json:"lower"`
	Trend          float64   `json:"trend"`
	Seasonal       float64   `json:"seasonal"`
	Confidence     float64   `json:"confidence"`
	TrendDirection Trend     `json:"trend_direction"`
}

// MonthlyForecastPoint aggregates a calendar month of daily predictions.
type MonthlyForecastPoint struct {
	Month          string  `json:"month"` // "2026-01"
	PredictedTotal float64 `json:"predicted_total"`
	Upper          float64 `json:"upper"`
	Lower          float64 `json:"lower"`
	TrendAvg       float64 `json:"trend_avg"`
	SeasonalTotal  float64 `json:"seasonal_total"`
	Confidence     float64 `json:"confidence"`
	DayCount       int     `json:"day_count"`
}

// CategoryForecast is the per-category monthly projection.
type CategoryForecast struct {
	Category          string  `json:"category"`
	HistoricalAverage float64 `json:"historical_average"`
	PredictedAverage  float64 `json:"predicted_average"`
	Confidence        float64 `json:"confidence"`
	Trend             Trend   `json:"trend"`
	DataPoints        int     `json:"data_points"`
	IsExpense         bool    `json:"is_expense"`
}

// ModelAccuracy holds backtest metrics for a fitted model.
type ModelAccuracy struct {
	MAE        float64 `json:"mae"`
	MAPE       float64 `json:"mape"`
	RMSE       float64 `json:"rmse"`
	DataPoints int     `json:"data_points"`
}

// UserFinancialProfile summarizes the raw transactions independently of the
// fitted model.
type UserFinancialProfile struct {
	AvgMonthlyIncome   float64  `json:"avg_monthly_income"`
	AvgMonthlyExpenses float64  `json:"avg_monthly_expenses"`
	SavingsRate        float64  `json:"savings_rate"`
	SpendingCategories []string `json:"spending_categories"`
	TransactionCount   int      `json:"transaction_count"`
}

// Insight is one generated (or fallback) financial insight.
type Insight struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	Confidence     float64 `json:"confidence"`
	Recommendation string  `json:"recommendation,omitempty"`
}

// PredictionResult bundles everything a forecast run produces.
type PredictionResult struct {
	UserID      string    `json:"user_id"`
	Timeframe   Timeframe `json:"timeframe"`
	GeneratedAt time.Time `json:"generated_at"`
	ExpiresAt   time.Time `json:"expires_at"`

	Predictions       []PredictionPoint           `json:"predictions"`
	MonthlyForecasts  []MonthlyForecastPoint      `json:"monthly_forecasts"`
	CategoryForecasts map[string]CategoryForecast `json:"category_forecasts"`

	ModelAccuracy   ModelAccuracy        `json:"model_accuracy"`
	ConfidenceScore float64              `json:"confidence_score"`
	UserProfile     UserFinancialProfile `json:"user_profile"`
	Insights        []Insight            `json:"insights"`
}

// UsageStatus reports a user's quota position.
type UsageStatus struct {
	UserID       string    `json:"user_id"`
	CurrentUsage int       `json:"current_usage"`
	MaxUsage     int       `json:"max_usage"`
	ResetDate    time.Time `json:"reset_date"`
	Exceeded     bool      `json:"exceeded"`
	Remaining    int       `json:"remaining"`
}

// UsageRecord is the persisted quota document for one user.
type UsageRecord struct {
	UserID     string    `firestore:"user_id" json:"user_id"`
	UsageCount int       `firestore:"usage_count" json:"usage_count"`
	MaxUsage   int       `firestore:"max_usage" json:"max_usage"`
	ResetDate  time.Time `firestore:"reset_date" json:"reset_date"`
	CreatedAt  time.Time `firestore:"created_at" json:"created_at"`
	UpdatedAt  time.Time `firestore:"updated_at" json:"updated_at"`
}

// PredictionRecord is a cached prediction result persisted per run.
type PredictionRecord struct {
	ID          string           `firestore:"id" json:"id"`
	UserID      string           `firestore:"user_id" json:"user_id"`
	Timeframe   Timeframe        `firestore:"timeframe" json:"timeframe"`
	Result      PredictionResult `firestore:"result" json:"result"`
	GeneratedAt time.Time        `firestore:"generated_at" json:"generated_at"`
	ExpiresAt   time.Time        `firestore:"expires_at" json:"expires_at"`
}

// ValidationReport is the outcome of a dry-run transaction check.
type ValidationReport struct {
	Valid               bool     `json:"valid"`
	TransactionCount    int      `json:"transaction_count"`
	DateRangeDays       int      `json:"date_range_days"`
	CategoriesCount     int      `json:"categories_count"`
	IncomeTransactions  int      `json:"income_transactions"`
	ExpenseTransactions int      `json:"expense_transactions"`
	Warnings            []string `json:"warnings"`
	Errors              []string `json:"errors"`
}
