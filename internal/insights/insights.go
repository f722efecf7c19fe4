// Package insights turns prediction results into natural-language financial
// insights. An LLM-backed generator produces them when an API key is
// configured; a deterministic fallback covers every failure path so the API
// always returns something useful.
package insights

import (
	"context"
	"fmt"
	"time"

	"github.com/budgetme/prediction-api/internal/model"
)

// Insight categories. One insight is generated per category.
const (
	CategoryTrend       = "trend"
	CategoryCategory    = "category"
	CategoryRisk        = "risk"
	CategoryOpportunity = "opportunity"
	CategoryGoal        = "goal"
)

// Categories lists the insight categories in their stable output order.
var Categories = []string{
	CategoryTrend,
	CategoryCategory,
	CategoryRisk,
	CategoryOpportunity,
	CategoryGoal,
}

// Generator produces insights for a completed prediction run.
type Generator interface {
	Generate(ctx context.Context, result *model.PredictionResult) ([]model.Insight, error)
}

// RateLimitError signals that the LLM provider rejected a request with a rate
// limit. The batch is aborted rather than retried; RetryAfter tells clients
// when to try again.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("insight provider rate limited, retry after %s", e.RetryAfter)
}

// RateLimitInsight is the single insight returned in place of a batch that
// was aborted by provider rate limiting. It is visibly not a real insight.
func RateLimitInsight(retryAfter time.Duration) model.Insight {
	return model.Insight{
		Title:       "Insights temporarily unavailable",
		Description: fmt.Sprintf("The insight service is rate limited. Personalized insights will be available again in about %d minutes.", int(retryAfter.Minutes())+1),
		Category:    CategoryRisk,
		Confidence:  0,
	}
}
