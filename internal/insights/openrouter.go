package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/budgetme/prediction-api/internal/model"
)

const (
	// DefaultBaseURL is the OpenRouter OpenAI-compatible endpoint.
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	// DefaultModel is the free-tier model used when none is configured.
	DefaultModel = "openai/gpt-oss-20b:free"

	requestTimeout = 30 * time.Second
	// defaultRetryAfter is assumed when the provider rate limits without a
	// usable retry hint.
	defaultRetryAfter = 60 * time.Second
)

// OpenRouterConfig configures the LLM-backed generator.
type OpenRouterConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Retry   *RetryConfig
	Logger  *logrus.Logger
}

// OpenRouterGenerator generates insights through OpenRouter's OpenAI-compatible
// chat API. One request is made per insight category, fanned out concurrently;
// a rate-limited request aborts the whole batch.
type OpenRouterGenerator struct {
	client *openai.Client
	model  string
	retry  RetryConfig
	log    *logrus.Logger
}

// NewOpenRouterGenerator builds the LLM generator.
func NewOpenRouterGenerator(cfg OpenRouterConfig) *OpenRouterGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: requestTimeout}

	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultModel
	}
	retry := DefaultRetryConfig
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &OpenRouterGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  modelName,
		retry:  retry,
		log:    log,
	}
}

// Generate requests one insight per category concurrently. Categories whose
// request fails for a non-rate-limit reason fall back to the rule-based
// insight; a rate limit aborts the batch and surfaces a RateLimitError.
func (g *OpenRouterGenerator) Generate(ctx context.Context, result *model.PredictionResult) ([]model.Insight, error) {
	c := BuildContext(result)

	out := make([]model.Insight, len(Categories))
	var (
		mu        sync.Mutex
		rateLimit *RateLimitError
		wg        sync.WaitGroup
	)
	for i, category := range Categories {
		wg.Add(1)
		go func(i int, category string) {
			defer wg.Done()
			insight, err := g.generateOne(ctx, category, c)
			if err != nil {
				var rl *RateLimitError
				if errors.As(err, &rl) {
					mu.Lock()
					if rateLimit == nil {
						rateLimit = rl
					}
					mu.Unlock()
					return
				}
				g.log.WithError(err).WithField("category", category).
					Warn("insight generation failed, using fallback")
				insight = fallbackInsight(category, c)
			}
			out[i] = insight
		}(i, category)
	}
	wg.Wait()

	if rateLimit != nil {
		return nil, rateLimit
	}
	return out, nil
}

// insightPayload is the JSON shape the model is asked to produce.
type insightPayload struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Recommendation string  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
}

func (g *OpenRouterGenerator) generateOne(ctx context.Context, category string, c Context) (model.Insight, error) {
	resp, err := withRetry(ctx, g.retry, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: g.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: categoryPrompt(category, c)},
			},
			Temperature: 0.7,
			MaxTokens:   300,
		})
		if err != nil {
			return resp, classifyProviderError(err)
		}
		return resp, nil
	})
	if err != nil {
		return model.Insight{}, err
	}
	if len(resp.Choices) == 0 {
		return model.Insight{}, fmt.Errorf("empty completion for category %s", category)
	}

	content := resp.Choices[0].Message.Content
	payload, err := parsePayload(content)
	if err != nil {
		// An unparseable but non-empty reply is still usable as prose.
		return model.Insight{
			Title:       strings.ToUpper(category[:1]) + category[1:] + " insight",
			Description: strings.TrimSpace(content),
			Category:    category,
			Confidence:  0.5,
		}, nil
	}

	confidence := payload.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 0.7
	}
	return model.Insight{
		Title:          payload.Title,
		Description:    payload.Description,
		Category:       category,
		Confidence:     confidence,
		Recommendation: payload.Recommendation,
	}, nil
}

// classifyProviderError maps provider failures to package error types.
func classifyProviderError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return &RateLimitError{RetryAfter: defaultRetryAfter}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return &RateLimitError{RetryAfter: defaultRetryAfter}
	}
	return err
}

// parsePayload extracts the JSON insight from the model reply, tolerating
// markdown fences around it.
func parsePayload(content string) (*insightPayload, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var payload insightPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil, fmt.Errorf("parse insight payload: %w", err)
	}
	if payload.Title == "" || payload.Description == "" {
		return nil, fmt.Errorf("insight payload missing title or description")
	}
	return &payload, nil
}

const systemPrompt = `You are a personal finance advisor. You are given a summary of a user's financial forecast. Respond with a single JSON object, no markdown, with the keys: title (short headline), description (2-3 sentences, concrete numbers), recommendation (one actionable sentence), confidence (0..1). Be specific and use the numbers provided.`

// categoryPrompt builds the user prompt for one insight category.
func categoryPrompt(category string, c Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Forecast timeframe: %s\n", c.Timeframe)
	fmt.Fprintf(&b, "Average predicted monthly net cash flow: %.2f\n", c.AvgMonthlyNet)
	fmt.Fprintf(&b, "Cash flow trend: %s\n", c.TrendDirection)
	fmt.Fprintf(&b, "Average monthly income: %.2f, expenses: %.2f\n", c.AvgMonthlyIncome, c.AvgMonthlyExpenses)
	fmt.Fprintf(&b, "Savings rate: %.1f%%, expense ratio: %.1f%%, stability: %s\n",
		c.SavingsRate*100, c.ExpenseRatio*100, c.StabilityLevel)
	if c.MonthsToEmergencyFund > 0 {
		fmt.Fprintf(&b, "Months to a three-month emergency fund at current pace: %.1f\n", c.MonthsToEmergencyFund)
	}
	for _, top := range c.TopCategories {
		fmt.Fprintf(&b, "Category %q: historical %.2f/month, predicted %.2f/month, trend %s\n",
			top.Category, top.HistoricalAverage, top.PredictedAverage, top.Trend)
	}

	switch category {
	case CategoryTrend:
		b.WriteString("\nWrite an insight about the overall cash flow trend.")
	case CategoryCategory:
		b.WriteString("\nWrite an insight about the most significant spending category change.")
	case CategoryRisk:
		b.WriteString("\nWrite an insight about the biggest financial risk visible in this forecast.")
	case CategoryOpportunity:
		b.WriteString("\nWrite an insight about the biggest savings or investment opportunity.")
	case CategoryGoal:
		b.WriteString("\nWrite an insight suggesting a concrete financial goal for the forecast period.")
	}
	return b.String()
}
