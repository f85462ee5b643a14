package ai

import (
	"context"
	"encoding/json"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/reviewhub/reviewhub/internal/config"
)

// FallbackModel marks a summary produced locally instead of by the
// external service.
const FallbackModel = "local-fallback"

// Request carries the snippet and the counts from the earlier analysis
// stages, read-only.
type Request struct {
	Code                  string
	Language              string
	SecurityIssueCount    int
	PerformanceIssueCount int
	QualityIssueCount     int
	DocCoverage           float64
	TechDebtMinutes       int
}

type Summary struct {
	Summary        string   `json:"summary"`
	KeySuggestions []string `json:"key_suggestions"`
	Model          string   `json:"model,omitempty"`
	ParsingError   string   `json:"parsing_error,omitempty"`
}

// Summarizer produces the review summary. The implementation must be
// time-bounded and degrade to a deterministic local result rather than
// fail.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (*Summary, error)
}

type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

var _ Summarizer = (*Client)(nil)

func NewClient(cfg *config.Config) *Client {
	c := &Client{
		model:       cfg.OpenAI.Model,
		temperature: cfg.OpenAI.Temperature,
		timeout:     cfg.OpenAI.Timeout,
	}
	if cfg.OpenAI.APIKey != "" {
		c.api = openai.NewClient(cfg.OpenAI.APIKey)
	}
	return c
}

// Summarize asks the model for an executive summary of the analysis. The
// call is bounded by the configured timeout; on a missing key, an API
// error or a timeout it degrades to the local fallback instead of
// failing the review.
func (c *Client) Summarize(ctx context.Context, req Request) (*Summary, error) {
	logger := zap.S().Named("ai")

	if c.api == nil {
		logger.Debug("no API key configured, using local fallback summary")
		return Fallback(req), nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	system, user := buildPrompts(req)
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		logger.Warnw("summary request failed, using local fallback", "error", err)
		return Fallback(req), nil
	}
	if len(resp.Choices) == 0 {
		logger.Warn("summary response had no choices, using local fallback")
		return Fallback(req), nil
	}

	return parseResponse(resp.Choices[0].Message.Content, c.model), nil
}

// parseResponse validates the model output. Invalid JSON falls back to
// treating the raw text as the summary, with the parse error recorded
// for monitoring.
func parseResponse(content, model string) *Summary {
	var summary Summary
	if err := json.Unmarshal([]byte(content), &summary); err != nil || summary.Summary == "" {
		reason := "response JSON is missing required keys"
		if err != nil {
			reason = err.Error()
		}
		return &Summary{
			Summary:        content,
			KeySuggestions: []string{},
			Model:          model,
			ParsingError:   reason,
		}
	}
	if summary.KeySuggestions == nil {
		summary.KeySuggestions = []string{}
	}
	summary.Model = model
	return &summary
}
