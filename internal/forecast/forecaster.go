package forecast

import (
	"math"

	"github.com/budgetme/prediction-api/internal/model"
)

const (
	// MinDataPoints is the minimum daily series length for a meaningful fit.
	MinDataPoints = 7
	// backtestMinPoints is the minimum series length for rolling validation.
	backtestMinPoints = 14
	// monthlySeasonPeriod is the custom financial cycle layered on top of the
	// built-in components when the history spans more than one year.
	monthlySeasonPeriod = 30.5
)

// Forecaster wraps the forecasting engine for financial series: it owns the
// engine configuration, the fitted model for one run, and the backtest
// accuracy derived from training.
type Forecaster struct {
	cfg    EngineConfig
	engine Engine

	fitted   Model
	series   DailySeries
	accuracy model.ModelAccuracy
}

// NewForecaster builds a forecaster with the production engine configuration
// for the given seasonality mode.
func NewForecaster(mode model.SeasonalityMode) *Forecaster {
	cfg := DefaultEngineConfig(mode)
	return &Forecaster{cfg: cfg, engine: NewStructuralEngine(cfg)}
}

// NewForecasterWithEngine builds a forecaster around a custom engine, used to
// swap the statistical capability without touching orchestration.
func NewForecasterWithEngine(cfg EngineConfig, engine Engine) *Forecaster {
	return &Forecaster{cfg: cfg, engine: engine}
}

// Fit trains the model on a prepared daily series. The series is moderated
// for outliers first; histories longer than one year get an extra ~30.5-day
// seasonal component. Series shorter than MinDataPoints are rejected. If the
// series has at least backtestMinPoints, a rolling-origin backtest derives
// accuracy metrics; backtest failure zeroes the metrics but never fails the
// fit.
func (f *Forecaster) Fit(series DailySeries) error {
	if len(series) < MinDataPoints {
		return NewInsufficientDataError(MinDataPoints, len(series))
	}

	clean := ModerateOutliers(series, defaultOutlierThreshold)

	cfg := f.cfg
	if clean.SpanDays() > 365 {
		cfg.ExtraSeasonalities = append(cfg.ExtraSeasonalities, Seasonality{
			Name:       "monthly",
			PeriodDays: monthlySeasonPeriod,
		})
	}
	// The default engine is rebuilt so the per-fit seasonality applies;
	// custom engines are assumed to be configured by their caller.
	engine := f.engine
	if _, ok := engine.(*structuralEngine); ok {
		engine = NewStructuralEngine(cfg)
	}

	fitted, err := engine.Fit(clean.Values())
	if err != nil {
		return err
	}
	f.fitted = fitted
	f.series = clean

	f.accuracy = model.ModelAccuracy{DataPoints: len(clean)}
	if len(clean) >= backtestMinPoints {
		metrics, err := Backtest(engine, clean.Values(), BacktestConfig{
			InitialWindow: 7,
			Step:          1,
			Horizon:       3,
		})
		if err == nil {
			metrics.DataPoints = len(clean)
			f.accuracy = metrics
		}
	}
	return nil
}

// Accuracy returns the backtest metrics from the last successful Fit.
func (f *Forecaster) Accuracy() model.ModelAccuracy {
	return f.accuracy
}

// Forecast produces horizonDays of future daily points. It fails with
// ModelNotFitted when called before a successful Fit.
func (f *Forecaster) Forecast(horizonDays int) ([]model.PredictionPoint, error) {
	if f.fitted == nil {
		return nil, NewModelNotFittedError()
	}
	if horizonDays <= 0 {
		return nil, NewInvalidInputError("forecast horizon must be positive")
	}

	raw := f.fitted.Predict(horizonDays)
	lastDate := f.series[len(f.series)-1].Date

	points := make([]model.PredictionPoint, len(raw))
	prevTrend := raw[0].Trend
	for i, p := range raw {
		points[i] = model.PredictionPoint{
			Date:           lastDate.AddDate(0, 0, i+1),
			Predicted:      p.Predicted,
			Upper:          p.Upper,
			Lower:          p.Lower,
			Trend:          p.Trend,
			Seasonal:       p.Seasonal,
			Confidence:     ConfidenceScore(p.Predicted, p.Upper, p.Lower),
			TrendDirection: trendStep(p.Trend - prevTrend),
		}
		prevTrend = p.Trend
	}
	return points, nil
}

// ConfidenceScore maps an uncertainty interval to a 0..1 score: the narrower
// the interval relative to the predicted magnitude, the higher the score.
func ConfidenceScore(predicted, upper, lower float64) float64 {
	width := upper - lower
	score := 1 - width/math.Max(1, math.Abs(predicted))
	return clamp01(score)
}

// MeanConfidence averages the per-point confidence of a forecast.
func MeanConfidence(points []model.PredictionPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Confidence
	}
	return sum / float64(len(points))
}

// trendStep classifies the first difference of the trend component.
func trendStep(delta float64) model.Trend {
	switch {
	case delta > 0:
		return model.TrendIncreasing
	case delta < 0:
		return model.TrendDecreasing
	default:
		return model.TrendStable
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
