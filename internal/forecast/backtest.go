package forecast

import (
	"fmt"
	"math"

	"github.com/budgetme/prediction-api/internal/model"
)

// BacktestConfig describes a rolling-origin cross-validation run.
type BacktestConfig struct {
	InitialWindow int // minimum training prefix, in days
	Step          int // days between successive cutoffs
	Horizon       int // days forecast past each cutoff
}

// Backtest runs rolling-origin validation: the engine is refitted on each
// growing prefix of the series and its short-horizon forecast compared with
// the held-out actuals. Returns MAE, MAPE and RMSE averaged over all folds.
func Backtest(engine Engine, values []float64, cfg BacktestConfig) (model.ModelAccuracy, error) {
	if cfg.InitialWindow < 2 || cfg.Step < 1 || cfg.Horizon < 1 {
		return model.ModelAccuracy{}, fmt.Errorf("invalid backtest config %+v", cfg)
	}
	if len(values) < cfg.InitialWindow+cfg.Horizon {
		return model.ModelAccuracy{}, fmt.Errorf(
			"series too short for backtest: %d points, need %d",
			len(values), cfg.InitialWindow+cfg.Horizon)
	}

	var (
		absErrSum float64
		sqErrSum  float64
		pctErrSum float64
		samples   int
		pctCount  int
	)
	for cutoff := cfg.InitialWindow; cutoff+cfg.Horizon <= len(values); cutoff += cfg.Step {
		m, err := engine.Fit(values[:cutoff])
		if err != nil {
			return model.ModelAccuracy{}, fmt.Errorf("fit at cutoff %d: %w", cutoff, err)
		}
		preds := m.Predict(cfg.Horizon)
		for h, p := range preds {
			actual := values[cutoff+h]
			diff := math.Abs(p.Predicted - actual)
			absErrSum += diff
			sqErrSum += diff * diff
			if actual != 0 {
				pctErrSum += diff / math.Abs(actual)
				pctCount++
			}
			samples++
		}
	}
	if samples == 0 {
		return model.ModelAccuracy{}, fmt.Errorf("backtest produced no samples")
	}

	metrics := model.ModelAccuracy{
		MAE:  absErrSum / float64(samples),
		RMSE: math.Sqrt(sqErrSum / float64(samples)),
	}
	if pctCount > 0 {
		metrics.MAPE = pctErrSum / float64(pctCount)
	}
	return metrics, nil
}
