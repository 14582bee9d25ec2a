package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fallsearch/internal/domain"
	"github.com/kailas-cloud/fallsearch/internal/metrics"
)

// QueryPlaceholder marks where the raw query goes in a prompt template.
const QueryPlaceholder = "{query}"

// DefaultPrompt asks the model to translate a query to English or echo it back.
const DefaultPrompt = "<Instructions>Translate the query to english if it is in another language, " +
	"if not just output the original text</Instructions>\n\n<Query>" + QueryPlaceholder + "</Query>"

// Translator rewrites search queries through an OpenAI-compatible chat completion API.
type Translator struct {
	client      *openai.Client
	model       string
	temperature float32
	prompt      string
	user        string
	provider    string
	logger      *zap.Logger
}

// Config holds the rewrite provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Prompt      string
	User        string
	Provider    string
	Logger      *zap.Logger
}

// NewTranslator creates an OpenAI-compatible query translator.
func NewTranslator(cfg *Config) *Translator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	prompt := cfg.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Translator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		prompt:      prompt,
		user:        cfg.User,
		provider:    cfg.Provider,
		logger:      logger,
	}
}

// Rewrite returns the model's translation of query, trimmed of surrounding whitespace.
func (t *Translator) Rewrite(ctx context.Context, query string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       t.model,
		Temperature: t.temperature,
		User:        t.user,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: renderPrompt(t.prompt, query)},
		},
	}

	start := time.Now()

	resp, err := t.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.RewriteRequestsTotal.WithLabelValues(t.provider, t.model, "error").Inc()
		metrics.RewriteErrorsTotal.WithLabelValues(t.provider, t.model, errorType(err)).Inc()
		t.logger.Debug("Rewrite request failed",
			zap.String("provider", t.provider),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", parseAPIError(err)
	}

	if len(resp.Choices) == 0 {
		metrics.RewriteRequestsTotal.WithLabelValues(t.provider, t.model, "error").Inc()
		metrics.RewriteErrorsTotal.WithLabelValues(t.provider, t.model, "empty_response").Inc()
		return "", fmt.Errorf("empty completion response: %w", domain.ErrRewriteFailed)
	}

	metrics.RewriteRequestsTotal.WithLabelValues(t.provider, t.model, "success").Inc()
	metrics.RewriteRequestDuration.WithLabelValues(t.provider, t.model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.RewriteTokensTotal.WithLabelValues(t.provider, t.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.RewriteTokensTotal.WithLabelValues(t.provider, t.model, "completion").
			Add(float64(resp.Usage.CompletionTokens))
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// renderPrompt substitutes the query into every placeholder. Other text,
// including % signs, is passed through untouched.
func renderPrompt(template, query string) string {
	return strings.ReplaceAll(template, QueryPlaceholder, query)
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (t *Translator) HealthCheck(ctx context.Context) error {
	if _, err := t.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "api_error"
	}
}

// parseAPIError extracts a readable message from the provider response.
// Every error wraps domain.ErrRewriteFailed so callers can classify it.
func parseAPIError(err error) error {
	wrap := domain.ErrRewriteFailed

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("rewrite API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("rewrite API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("rewrite API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("rewrite request failed: %w: %w", wrap, err)
}

// extractDetail pulls the "detail" field out of a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
