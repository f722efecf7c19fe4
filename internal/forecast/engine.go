package forecast

import (
	"math"

	"github.com/budgetme/prediction-api/internal/model"
)

// Prediction is one future step produced by a fitted model.
type Prediction struct {
	Predicted float64
	Upper     float64
	Lower     float64
	Trend     float64
	Seasonal  float64
}

// Seasonality describes an extra seasonal component layered on the defaults.
type Seasonality struct {
	Name       string
	PeriodDays float64
}

// EngineConfig configures the forecasting capability for financial series.
type EngineConfig struct {
	SeasonalityMode   model.SeasonalityMode
	YearlySeasonality bool
	WeeklySeasonality bool

	// ChangepointPriorScale weights how much a recent-window slope can pull
	// the long-run trend. Small values keep the trend conservative.
	ChangepointPriorScale float64

	// SeasonalityPriorScale controls shrinkage of seasonal components toward
	// zero. Large values leave seasonality flexible.
	SeasonalityPriorScale float64

	// IntervalWidth is the coverage of the uncertainty interval (0..1).
	IntervalWidth float64

	ExtraSeasonalities []Seasonality
}

// DefaultEngineConfig mirrors the production model settings: additive
// seasonality, yearly on, weekly off, conservative changepoints, flexible
// seasonality, 80% intervals.
func DefaultEngineConfig(mode model.SeasonalityMode) EngineConfig {
	if mode != model.SeasonalityMultiplicative {
		mode = model.SeasonalityAdditive
	}
	return EngineConfig{
		SeasonalityMode:       mode,
		YearlySeasonality:     true,
		WeeklySeasonality:     false,
		ChangepointPriorScale: 0.05,
		SeasonalityPriorScale: 10.0,
		IntervalWidth:         0.80,
	}
}

// Engine is the black-box forecasting capability: fit a series, get a model.
// It is an interface so the statistical engine can be swapped without
// touching the orchestration, aggregation, or reconciliation logic.
type Engine interface {
	Fit(values []float64) (Model, error)
}

// Model produces future points with uncertainty bounds and a decomposed
// trend/seasonal value. A model is owned by the run that fitted it.
type Model interface {
	Predict(horizon int) []Prediction
}

// structuralEngine is the default Engine: least-squares trend with
// changepoint blending, phase-mean seasonal components with shrinkage, and
// residual-sigma uncertainty intervals that widen with the horizon.
type structuralEngine struct {
	cfg EngineConfig
}

// NewStructuralEngine returns the default forecasting engine.
func NewStructuralEngine(cfg EngineConfig) Engine {
	return &structuralEngine{cfg: cfg}
}

type seasonalComponent struct {
	period float64
	// additive offsets or multiplicative factors per phase bucket
	values []float64
}

type structuralModel struct {
	cfg       EngineConfig
	n         int
	slope     float64
	intercept float64
	seasonals []seasonalComponent
	sigma     float64
	z         float64
}

func (e *structuralEngine) Fit(values []float64) (Model, error) {
	n := len(values)
	if n < 2 {
		return nil, NewInsufficientDataError(2, n)
	}

	slope, intercept := fitTrend(values, e.cfg.ChangepointPriorScale)

	multiplicative := e.cfg.SeasonalityMode == model.SeasonalityMultiplicative
	if multiplicative {
		// Ratios are only meaningful when the trend stays strictly positive
		// over the observed range.
		for i := 0; i < n; i++ {
			if intercept+slope*float64(i) <= 0 {
				multiplicative = false
				break
			}
		}
	}

	residuals := make([]float64, n)
	for i, v := range values {
		trend := intercept + slope*float64(i)
		if multiplicative {
			residuals[i] = v/trend - 1
		} else {
			residuals[i] = v - trend
		}
	}

	var seasonals []seasonalComponent
	for _, period := range e.seasonalPeriods(n) {
		comp := fitSeasonal(residuals, period, e.cfg.SeasonalityPriorScale)
		seasonals = append(seasonals, comp)
		for i := range residuals {
			residuals[i] -= comp.at(i)
		}
	}

	// Residual spread drives the uncertainty interval. For multiplicative
	// fits the residuals are relative, so scale back by the trend level.
	var sigma float64
	if multiplicative {
		var level float64
		for i := 0; i < n; i++ {
			level += math.Abs(intercept + slope*float64(i))
		}
		level /= float64(n)
		_, relSigma := meanStddev(residuals)
		sigma = relSigma * level
	} else {
		_, sigma = meanStddev(residuals)
	}

	mode := model.SeasonalityAdditive
	if multiplicative {
		mode = model.SeasonalityMultiplicative
	}
	cfg := e.cfg
	cfg.SeasonalityMode = mode

	return &structuralModel{
		cfg:       cfg,
		n:         n,
		slope:     slope,
		intercept: intercept,
		seasonals: seasonals,
		sigma:     sigma,
		z:         intervalZ(e.cfg.IntervalWidth),
	}, nil
}

// seasonalPeriods lists the seasonal periods enabled for a series of length n.
// Components longer than the observed history carry no signal and are skipped.
func (e *structuralEngine) seasonalPeriods(n int) []float64 {
	var periods []float64
	if e.cfg.WeeklySeasonality && n >= 14 {
		periods = append(periods, 7)
	}
	if e.cfg.YearlySeasonality && n >= 730 {
		periods = append(periods, 365.25)
	}
	for _, extra := range e.cfg.ExtraSeasonalities {
		if extra.PeriodDays > 0 && float64(n) >= 2*extra.PeriodDays {
			periods = append(periods, extra.PeriodDays)
		}
	}
	return periods
}

func (m *structuralModel) Predict(horizon int) []Prediction {
	if horizon <= 0 {
		return nil
	}
	multiplicative := m.cfg.SeasonalityMode == model.SeasonalityMultiplicative

	preds := make([]Prediction, horizon)
	for h := 1; h <= horizon; h++ {
		t := m.n - 1 + h
		trend := m.intercept + m.slope*float64(t)

		var seasonal float64
		for _, comp := range m.seasonals {
			seasonal += comp.at(t)
		}

		var predicted, seasonalOut float64
		if multiplicative {
			predicted = trend * (1 + seasonal)
			seasonalOut = trend * seasonal
		} else {
			predicted = trend + seasonal
			seasonalOut = seasonal
		}

		// Bounds widen as the horizon extends beyond the training window.
		margin := m.z * m.sigma * math.Sqrt(1+float64(h)/float64(m.n))
		preds[h-1] = Prediction{
			Predicted: predicted,
			Upper:     predicted + margin,
			Lower:     predicted - margin,
			Trend:     trend,
			Seasonal:  seasonalOut,
		}
	}
	return preds
}

// fitTrend estimates the linear trend. The long-run least-squares slope is
// blended with a recent-window slope weighted by changepointPrior, so small
// priors resist late changepoints.
func fitTrend(values []float64, changepointPrior float64) (slope, intercept float64) {
	globalSlope, _ := linearFit(values)

	slope = globalSlope
	const recentWindow = 30
	if changepointPrior > 0 && len(values) > recentWindow {
		recent := values[len(values)-recentWindow:]
		recentSlope, _ := linearFit(recent)
		slope = (1-changepointPrior)*globalSlope + changepointPrior*recentSlope
	}

	// Recenter so the trend line passes through the series centroid.
	n := float64(len(values))
	var sumY float64
	for _, v := range values {
		sumY += v
	}
	meanX := (n - 1) / 2
	intercept = sumY/n - slope*meanX
	return slope, intercept
}

// linearFit computes the least-squares slope and intercept of y over x=0,1,...
func linearFit(points []float64) (slope, intercept float64) {
	n := float64(len(points))
	if n < 2 {
		return 0, 0
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range points {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

// fitSeasonal estimates a phase-mean seasonal component over the residuals.
// Phase means are shrunk toward zero with prior strength 1/priorScale, so a
// large prior scale leaves the component flexible.
func fitSeasonal(residuals []float64, period, priorScale float64) seasonalComponent {
	buckets := int(math.Ceil(period))
	sums := make([]float64, buckets)
	counts := make([]float64, buckets)
	for i, r := range residuals {
		k := phase(i, period)
		sums[k] += r
		counts[k]++
	}

	shrink := 0.0
	if priorScale > 0 {
		shrink = 1 / priorScale
	}
	values := make([]float64, buckets)
	for k := range values {
		if counts[k] > 0 {
			values[k] = sums[k] / (counts[k] + shrink)
		}
	}
	return seasonalComponent{period: period, values: values}
}

func (c seasonalComponent) at(t int) float64 {
	return c.values[phase(t, c.period)]
}

func phase(t int, period float64) int {
	buckets := int(math.Ceil(period))
	k := int(math.Mod(float64(t), period))
	if k >= buckets {
		k = buckets - 1
	}
	return k
}

// intervalZ converts an interval coverage (e.g. 0.80) to a normal quantile.
func intervalZ(width float64) float64 {
	if width <= 0 || width >= 1 {
		width = 0.80
	}
	return math.Sqrt2 * math.Erfinv(width)
}
