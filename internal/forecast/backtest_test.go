package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetme/prediction-api/internal/model"
)

func TestBacktest(t *testing.T) {
	engine := NewStructuralEngine(DefaultEngineConfig(model.SeasonalityAdditive))
	cfg := BacktestConfig{InitialWindow: 7, Step: 1, Horizon: 3}

	t.Run("rejects an invalid config", func(t *testing.T) {
		values := make([]float64, 30)
		_, err := Backtest(engine, values, BacktestConfig{InitialWindow: 1, Step: 1, Horizon: 3})
		assert.Error(t, err)
		_, err = Backtest(engine, values, BacktestConfig{InitialWindow: 7, Step: 0, Horizon: 3})
		assert.Error(t, err)
	})

	t.Run("rejects a series shorter than one fold", func(t *testing.T) {
		_, err := Backtest(engine, make([]float64, 9), cfg)
		assert.Error(t, err)
	})

	t.Run("constant series scores zero error", func(t *testing.T) {
		values := make([]float64, 20)
		for i := range values {
			values[i] = 10
		}
		metrics, err := Backtest(engine, values, cfg)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, metrics.MAE, 1e-9)
		assert.InDelta(t, 0.0, metrics.MAPE, 1e-9)
		assert.InDelta(t, 0.0, metrics.RMSE, 1e-9)
	})

	t.Run("noisy series scores positive error", func(t *testing.T) {
		values := []float64{10, 40, 15, 35, 12, 38, 14, 36, 11, 39, 13, 37, 10, 40, 15, 35, 12, 38, 14, 36}
		metrics, err := Backtest(engine, values, cfg)
		require.NoError(t, err)
		assert.Greater(t, metrics.MAE, 0.0)
		assert.Greater(t, metrics.RMSE, 0.0)
		assert.GreaterOrEqual(t, metrics.RMSE, metrics.MAE)
	})
}
