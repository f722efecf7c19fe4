package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetme/prediction-api/internal/auth"
	"github.com/budgetme/prediction-api/internal/forecast"
	"github.com/budgetme/prediction-api/internal/insights"
	"github.com/budgetme/prediction-api/internal/model"
	"github.com/budgetme/prediction-api/internal/store"
	"github.com/budgetme/prediction-api/internal/usage"
)

// rateLimitedGenerator simulates an LLM provider that is rate limiting.
type rateLimitedGenerator struct{}

func (rateLimitedGenerator) Generate(context.Context, *model.PredictionResult) ([]model.Insight, error) {
	return nil, &insights.RateLimitError{RetryAfter: 30 * time.Second}
}

// countingGenerator records whether the provider was invoked at all.
type countingGenerator struct {
	calls int
}

func (g *countingGenerator) Generate(context.Context, *model.PredictionResult) ([]model.Insight, error) {
	g.calls++
	return []model.Insight{{Title: "counted"}}, nil
}

func boolPtr(b bool) *bool { return &b }

type testEnv struct {
	svc    *PredictionService
	store  *store.MemoryStore
	router *mux.Router
}

func newTestEnv(t *testing.T, maxPerMonth int, gen insights.Generator) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	st := store.NewMemoryStore()
	usageSvc := usage.NewService(st, maxPerMonth, log)
	pipeline := forecast.NewPipeline(forecast.PipelineOptions{Logger: log})
	if gen == nil {
		gen = insights.NewFallbackGenerator()
	}

	svc := New(pipeline, st, usageSvc, gen, log)
	svc.spawn = func(fn func()) { fn() } // synchronous for assertions

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	svc.Routes(api)
	svc.AdminRoutes(api)
	return &testEnv{svc: svc, store: st, router: router}
}

func (e *testEnv) do(method, path, userID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body) //nolint:errcheck
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req = req.WithContext(auth.WithUserClaims(req.Context(), &auth.UserClaims{UID: userID}))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// sampleTransactions builds a healthy 40-day income/expense history.
func sampleTransactions() []model.Transaction {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var txs []model.Transaction
	for i := 0; i < 40; i++ {
		txs = append(txs, model.Transaction{
			Date: start.AddDate(0, 0, i), Amount: 150, Type: model.TransactionIncome, Category: "Salary",
		})
		txs = append(txs, model.Transaction{
			Date: start.AddDate(0, 0, i), Amount: 50, Type: model.TransactionExpense, Category: "Food",
		})
	}
	return txs
}

func TestHandleGenerate(t *testing.T) {
	t.Run("requires authentication", func(t *testing.T) {
		env := newTestEnv(t, 5, nil)
		rec := env.do(http.MethodPost, "/api/v1/predictions/generate", "", generateRequest{})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		env := newTestEnv(t, 5, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/predictions/generate", bytes.NewBufferString("{nope"))
		req = req.WithContext(auth.WithUserClaims(req.Context(), &auth.UserClaims{UID: "u1"}))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("generates, persists and counts a run", func(t *testing.T) {
		env := newTestEnv(t, 5, nil)
		// Both include flags are omitted: categories and insights default on.
		rec := env.do(http.MethodPost, "/api/v1/predictions/generate", "u1", generateRequest{
			Transactions: sampleTransactions(),
			Timeframe:    model.Timeframe3Months,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp generateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Cached)
		assert.Len(t, resp.Result.Predictions, 90)
		assert.NotEmpty(t, resp.Result.Insights)
		assert.Contains(t, resp.Result.CategoryForecasts, "Salary")

		// The run was cached and counted.
		records, err := env.store.ListPredictions(context.Background(), "u1", "", 0)
		require.NoError(t, err)
		assert.Len(t, records, 1)

		usageRec := env.do(http.MethodGet, "/api/v1/predictions/usage", "u1", nil)
		var status model.UsageStatus
		require.NoError(t, json.Unmarshal(usageRec.Body.Bytes(), &status))
		assert.Equal(t, 1, status.CurrentUsage)
	})

	t.Run("serves a fresh cached result without consuming quota", func(t *testing.T) {
		env := newTestEnv(t, 5, nil)
		first := env.do(http.MethodPost, "/api/v1/predictions/generate", "u1", generateRequest{
			Transactions: sampleTransactions(),
			Timeframe:    model.Timeframe3Months,
		})
		require.Equal(t, http.StatusOK, first.Code)

		second := env.do(http.MethodPost, "/api/v1/predictions/generate", "u1", generateRequest{
			Transactions: sampleTransactions(),
			Timeframe:    model.Timeframe3Months,
		})
		require.Equal(t, http.StatusOK, second.Code)

		var resp generateResponse
		require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
		assert.True(t, resp.Cached)

		usageRec := env.do(http.MethodGet, "/api/v1/predictions/usage", "u1", nil)
		var status model.UsageStatus
		require.NoError(t, json.Unmarshal(usageRec.Body.Bytes(), &status))
		assert.Equal(t, 1, status.CurrentUsage)
	})

	t.Run("force refresh bypasses the cache", func(t *testing.T) {
		env := newTestEnv(t, 5, nil)
		for i := 0; i < 2; i++ {
			rec := env.do(http.MethodPost, "/api/v1/predictions/generate", "u1", generateRequest{
				Transactions: sampleTransactions(),
				Timeframe:    model.Timeframe3Months,
				ForceRefresh: true,
			})
			require.Equal(t, http.StatusOK, rec.Code)

			var resp generateResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Cached)
		}
	})

	t.Run("quota exhaustion returns 429 with reset details", func(t *testing.T) {
		env := newTestEnv(t, 1, nil)
		first := env.do(http.MethodPost, "/api/v1/predictions/generate", "u1", generateRequest{
			Transactions: sampleTransactions(),
			Timeframe:    model.Timeframe3Months,
			ForceRefresh: true,
		})
		require.Equal(t, http.StatusOK, first.Code)

		second := env.do(http.MethodPost, "/api/v1/predictions/generate", "u1", generateRequest{
			Transactions: sampleTransactions(),
			Timeframe:    model.Timeframe3Months,
			ForceRefresh: true,
		})
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.Contains(t, second.Body.String(), "USAGE_LIMIT_EXCEEDED")
		assert.Contains(t, second.Body.String(), "reset_date")
	})

	t.Run("insufficient data maps to 422", func(t *testing.T) {
		env := newTestEnv(t, 5, nil)
		rec := env.do(http.MethodPost, "/api/v1/predictions/generate", "u1", generateRequest{
			Transactions: sampleTransactions()[:6],
			Timeframe:    model.Timeframe3Months,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "INSUFFICIENT_DATA")
	})

	t.Run("include_insights false skips the provider entirely", func(t *testing.T) {
		gen := &countingGenerator{}
		env := newTestEnv(t, 5, gen)
		rec := env.do(http.MethodPost, "/api/v1/predictions/generate", "u1", generateRequest{
			Transactions:    sampleTransactions(),
			Timeframe:       model.Timeframe3Months,
			IncludeInsights: boolPtr(false),
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp generateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Empty(t, resp.Result.Insights)
		assert.Zero(t, gen.calls)
	})

	t.Run("include_categories false omits category forecasts", func(t *testing.T) {
		env := newTestEnv(t, 5, nil)
		rec := env.do(http.MethodPost, "/api/v1/predictions/generate", "u1", generateRequest{
			Transactions:      sampleTransactions(),
			Timeframe:         model.Timeframe3Months,
			IncludeCategories: boolPtr(false),
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp generateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Empty(t, resp.Result.CategoryForecasts)
	})

	t.Run("rate limited insights degrade to a placeholder", func(t *testing.T) {
		env := newTestEnv(t, 5, rateLimitedGenerator{})
		rec := env.do(http.MethodPost, "/api/v1/predictions/generate", "u1", generateRequest{
			Transactions: sampleTransactions(),
			Timeframe:    model.Timeframe3Months,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp generateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Result.Insights, 1)
		assert.Equal(t, "Insights temporarily unavailable", resp.Result.Insights[0].Title)
	})
}

func TestHandleUsage(t *testing.T) {
	env := newTestEnv(t, 5, nil)
	rec := env.do(http.MethodGet, "/api/v1/predictions/usage", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status model.UsageStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 0, status.CurrentUsage)
	assert.Equal(t, 5, status.MaxUsage)
}

func TestHandleHistory(t *testing.T) {
	t.Run("rejects a bad limit", func(t *testing.T) {
		env := newTestEnv(t, 5, nil)
		rec := env.do(http.MethodGet, "/api/v1/predictions/history?limit=zero", "u1", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects a bad timeframe", func(t *testing.T) {
		env := newTestEnv(t, 5, nil)
		rec := env.do(http.MethodGet, "/api/v1/predictions/history?timeframe=decade_1", "u1", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns newest-first records", func(t *testing.T) {
		env := newTestEnv(t, 5, nil)
		base := time.Now().UTC()
		for i := 0; i < 3; i++ {
			require.NoError(t, env.store.SavePrediction(context.Background(), &model.PredictionRecord{
				ID:          fmt.Sprintf("p%d", i),
				UserID:      "u1",
				Timeframe:   model.Timeframe3Months,
				GeneratedAt: base.Add(time.Duration(i) * time.Minute),
			}))
		}

		rec := env.do(http.MethodGet, "/api/v1/predictions/history?limit=2", "u1", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp historyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, 2, resp.Count)
		assert.Equal(t, "p2", resp.Predictions[0].ID)
	})
}

func TestHandleValidate(t *testing.T) {
	env := newTestEnv(t, 5, nil)
	rec := env.do(http.MethodPost, "/api/v1/predictions/validate", "u1", validateRequest{
		Transactions: sampleTransactions()[:10],
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var report model.ValidationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.False(t, report.Valid)
}

func TestHandleClearCache(t *testing.T) {
	env := newTestEnv(t, 5, nil)
	require.NoError(t, env.store.SavePrediction(context.Background(), &model.PredictionRecord{
		ID: "p1", UserID: "u1", Timeframe: model.Timeframe3Months, GeneratedAt: time.Now().UTC(),
	}))

	rec := env.do(http.MethodDelete, "/api/v1/predictions/cache", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted":1`)
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
