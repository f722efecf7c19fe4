package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/budgetme/prediction-api/internal/model"
)

const (
	// mapeCeiling is the backtest error above which results are withheld.
	mapeCeiling = 0.4
	// defaultMaxConcurrentFits bounds how many model fits run at once across
	// all requests. Fitting is CPU-bound, so unbounded fan-out under load
	// would thrash rather than parallelize.
	defaultMaxConcurrentFits = 4
	// resultTTL is how long a generated prediction stays fresh.
	resultTTL = 24 * time.Hour
)

// PipelineOptions tune a Pipeline. Zero values fall back to defaults.
type PipelineOptions struct {
	MaxConcurrentFits int
	GrowthPolicy      *GrowthPolicy
	Logger            *logrus.Logger
}

// Pipeline runs the full prediction flow: preprocessing, model fit, daily
// forecast, monthly aggregation, category projection and profile calculation.
// It is safe for concurrent use.
type Pipeline struct {
	fitSlots chan struct{}
	policy   GrowthPolicy
	log      *logrus.Logger
}

// NewPipeline builds a pipeline with the given options.
func NewPipeline(opts PipelineOptions) *Pipeline {
	slots := opts.MaxConcurrentFits
	if slots <= 0 {
		slots = defaultMaxConcurrentFits
	}
	policy := DefaultGrowthPolicy()
	if opts.GrowthPolicy != nil {
		policy = *opts.GrowthPolicy
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{
		fitSlots: make(chan struct{}, slots),
		policy:   policy,
		log:      log,
	}
}

// Request describes one prediction run.
type Request struct {
	UserID            string
	Transactions      []model.Transaction
	Timeframe         model.Timeframe
	SeasonalityMode   model.SeasonalityMode
	IncludeCategories bool
}

// Generate runs the pipeline end to end. Input is validated before any model
// work: at least MinDataPoints transactions spanning at least MinDataPoints
// distinct days. A backtest MAPE above the ceiling withholds the result.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*model.PredictionResult, error) {
	if !req.Timeframe.Valid() {
		return nil, NewInvalidInputError(fmt.Sprintf("unsupported timeframe %q", req.Timeframe))
	}
	if err := checkDataSufficiency(req.Transactions); err != nil {
		return nil, err
	}

	series, err := Preprocess(req.Transactions)
	if err != nil {
		return nil, err
	}

	forecaster := NewForecaster(req.SeasonalityMode)
	if err := p.fit(ctx, forecaster, series); err != nil {
		return nil, err
	}

	accuracy := forecaster.Accuracy()
	if accuracy.MAPE > mapeCeiling {
		p.log.WithFields(logrus.Fields{
			"user_id": req.UserID,
			"mape":    accuracy.MAPE,
		}).Warn("withholding forecast, backtest error above ceiling")
		return nil, NewAccuracyError(accuracy.MAPE, mapeCeiling)
	}

	points, err := forecaster.Forecast(req.Timeframe.Days())
	if err != nil {
		return nil, err
	}

	profile := CalculateProfile(req.Transactions)

	result := &model.PredictionResult{
		UserID:           req.UserID,
		Timeframe:        req.Timeframe,
		GeneratedAt:      time.Now().UTC(),
		Predictions:      points,
		MonthlyForecasts: AggregateMonthly(points),
		ModelAccuracy:    accuracy,
		ConfidenceScore:  MeanConfidence(points),
		UserProfile:      profile,
	}
	result.ExpiresAt = result.GeneratedAt.Add(resultTTL)

	if req.IncludeCategories {
		result.CategoryForecasts = ForecastCategories(
			req.Transactions,
			req.Timeframe.Days(),
			profile.AvgMonthlyIncome,
			p.policy,
		)
	}

	p.log.WithFields(logrus.Fields{
		"user_id":    req.UserID,
		"timeframe":  req.Timeframe,
		"points":     len(points),
		"confidence": result.ConfidenceScore,
	}).Info("prediction generated")
	return result, nil
}

// fit trains the model under the shared concurrency limit, respecting
// cancellation while waiting for a slot.
func (p *Pipeline) fit(ctx context.Context, f *Forecaster, series DailySeries) error {
	select {
	case p.fitSlots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.fitSlots }()

	if err := ctx.Err(); err != nil {
		return err
	}
	return f.Fit(series)
}

// checkDataSufficiency rejects inputs too small to model before any fitting
// work happens. Both the raw count and the number of distinct days must reach
// MinDataPoints, since many transactions on one day still give one series
// point.
func checkDataSufficiency(transactions []model.Transaction) error {
	if len(transactions) < MinDataPoints {
		return NewInsufficientDataError(MinDataPoints, len(transactions))
	}
	days := make(map[time.Time]struct{})
	for _, tx := range transactions {
		if tx.Date.IsZero() {
			continue
		}
		days[truncateToDay(tx.Date)] = struct{}{}
	}
	if len(days) < MinDataPoints {
		return NewInsufficientDataError(MinDataPoints, len(days))
	}
	return nil
}

// Validate dry-runs the input checks without fitting anything, so clients can
// probe whether their data would be accepted and what would weaken the model.
func Validate(transactions []model.Transaction) model.ValidationReport {
	report := model.ValidationReport{
		TransactionCount: len(transactions),
		Warnings:         []string{},
		Errors:           []string{},
	}

	categories := make(map[string]struct{})
	var minDate, maxDate time.Time
	for _, tx := range transactions {
		switch tx.Type {
		case model.TransactionIncome:
			report.IncomeTransactions++
		case model.TransactionExpense:
			report.ExpenseTransactions++
		}
		if tx.Category != "" {
			categories[tx.Category] = struct{}{}
		}
		if tx.Date.IsZero() {
			continue
		}
		if minDate.IsZero() || tx.Date.Before(minDate) {
			minDate = tx.Date
		}
		if tx.Date.After(maxDate) {
			maxDate = tx.Date
		}
	}
	report.CategoriesCount = len(categories)
	if !minDate.IsZero() {
		report.DateRangeDays = int(maxDate.Sub(minDate).Hours()/24) + 1
	}

	if err := checkDataSufficiency(transactions); err != nil {
		report.Errors = append(report.Errors, err.Error())
	}
	report.Valid = len(report.Errors) == 0

	if report.TransactionCount < 30 {
		report.Warnings = append(report.Warnings,
			"fewer than 30 transactions, forecast quality may be limited")
	}
	if report.DateRangeDays > 0 && report.DateRangeDays < 30 {
		report.Warnings = append(report.Warnings,
			"history spans less than 30 days, seasonal effects cannot be learned")
	}
	if report.IncomeTransactions == 0 {
		report.Warnings = append(report.Warnings,
			"no income transactions, net flow will be entirely negative")
	}
	return report
}
