package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/budgetme/prediction-api/internal/auth"
	"github.com/budgetme/prediction-api/internal/forecast"
	"github.com/budgetme/prediction-api/internal/insights"
	"github.com/budgetme/prediction-api/internal/model"
	"github.com/budgetme/prediction-api/internal/store"
)

// generateRequest is the POST /generate payload. The include flags are
// pointers so an omitted field keeps its enabled default instead of decoding
// to false.
type generateRequest struct {
	Transactions      []model.Transaction   `json:"transactions"`
	Timeframe         model.Timeframe       `json:"timeframe"`
	SeasonalityMode   model.SeasonalityMode `json:"seasonality_mode,omitempty"`
	IncludeCategories *bool                 `json:"include_categories"`
	IncludeInsights   *bool                 `json:"include_insights"`
	ForceRefresh      bool                  `json:"force_refresh"`
}

// flagOrTrue resolves an optional request flag. Omitted means enabled.
func flagOrTrue(v *bool) bool { return v == nil || *v }

// generateResponse wraps a result with cache provenance.
type generateResponse struct {
	Result *model.PredictionResult `json:"result"`
	Cached bool                    `json:"cached"`
}

func (s *PredictionService) handleGenerate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserID(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated, "authentication required", nil)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "invalid JSON body", nil)
		return
	}
	if req.Timeframe == "" {
		req.Timeframe = model.Timeframe3Months
	}

	status, err := s.usage.Status(r.Context(), userID)
	if err != nil {
		s.log.WithError(err).Error("failed to load usage status")
		writeServiceError(w, r, err)
		return
	}
	if status.Exceeded {
		writeError(w, r, http.StatusTooManyRequests, codeQuotaExceeded,
			"monthly prediction limit reached", map[string]any{
				"current_usage": status.CurrentUsage,
				"max_usage":     status.MaxUsage,
				"reset_date":    status.ResetDate,
			})
		return
	}

	// A fresh cached result does not consume quota.
	if !req.ForceRefresh {
		if cached, err := s.store.GetLatestPrediction(r.Context(), userID, req.Timeframe); err == nil {
			if cached.ExpiresAt.After(s.now()) {
				writeJSON(w, http.StatusOK, generateResponse{Result: &cached.Result, Cached: true})
				return
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			s.log.WithError(err).Warn("prediction cache lookup failed")
		}
	}

	result, err := s.pipeline.Generate(r.Context(), forecast.Request{
		UserID:            userID,
		Transactions:      req.Transactions,
		Timeframe:         req.Timeframe,
		SeasonalityMode:   req.SeasonalityMode,
		IncludeCategories: flagOrTrue(req.IncludeCategories),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if flagOrTrue(req.IncludeInsights) {
		result.Insights = s.generateInsights(r, result)
	}

	// Persist and count the run off the request path.
	s.spawn(func() { s.persistRun(userID, result) })

	writeJSON(w, http.StatusOK, generateResponse{Result: result, Cached: false})
}

// generateInsights runs the insight generator. A rate-limited provider yields
// the single placeholder insight instead of a fabricated batch.
func (s *PredictionService) generateInsights(r *http.Request, result *model.PredictionResult) []model.Insight {
	out, err := s.insights.Generate(r.Context(), result)
	if err != nil {
		var rl *insights.RateLimitError
		if errors.As(err, &rl) {
			s.log.WithFields(logrus.Fields{
				"request_id":  requestIDFrom(r),
				"retry_after": rl.RetryAfter.String(),
			}).Warn("insight provider rate limited")
			return []model.Insight{insights.RateLimitInsight(rl.RetryAfter)}
		}
		s.log.WithError(err).Warn("insight generation failed")
		return nil
	}
	return out
}

func (s *PredictionService) handleUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserID(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated, "authentication required", nil)
		return
	}

	status, err := s.usage.Status(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// historyResponse is the GET /history payload.
type historyResponse struct {
	Predictions []*model.PredictionRecord `json:"predictions"`
	Count       int                       `json:"count"`
}

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 50
)

func (s *PredictionService) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserID(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated, "authentication required", nil)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, r, http.StatusBadRequest, codeBadRequest, "limit must be a positive integer", nil)
			return
		}
		limit = parsed
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	timeframe := model.Timeframe(r.URL.Query().Get("timeframe"))
	if timeframe != "" && !timeframe.Valid() {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "unsupported timeframe", nil)
		return
	}

	records, err := s.store.ListPredictions(r.Context(), userID, timeframe, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Predictions: records, Count: len(records)})
}

// validateRequest is the POST /validate payload.
type validateRequest struct {
	Transactions []model.Transaction `json:"transactions"`
}

func (s *PredictionService) handleValidate(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.GetUserID(r.Context()); !ok {
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated, "authentication required", nil)
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "invalid JSON body", nil)
		return
	}

	writeJSON(w, http.StatusOK, forecast.Validate(req.Transactions))
}

func (s *PredictionService) handleClearCache(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserID(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated, "authentication required", nil)
		return
	}

	deleted, err := s.store.DeletePredictions(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

// HealthHandler reports service liveness. Registered outside the
// authenticated subrouter.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
