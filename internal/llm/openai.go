package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/metrics"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

var ErrEmptyResponse = errors.New("empty response from model")

type Config struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
}

// Client talks to an OpenAI-compatible API for chat and embeddings.
type Client struct {
	client  *openai.Client
	config  Config
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

func NewClient(config Config, m *metrics.Metrics, logger *logrus.Logger) *Client {
	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	return &Client{
		client:  openai.NewClientWithConfig(cfg),
		config:  config,
		metrics: m,
		logger:  logger,
	}
}

// Generate asks the chat model for a structured answer. Transport failures
// and empty replies are errors; replies that fail schema validation are
// returned as a fallback answer.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*Answer, error) {
	start := time.Now()
	timer := c.metrics.UpstreamTimer("llm")
	defer timer.ObserveDuration()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.config.ChatModel,
		Messages:    buildMessages(req),
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.metrics.UpstreamErrorInc("llm")
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		c.metrics.UpstreamErrorInc("llm")
		return nil, ErrEmptyResponse
	}

	raw := resp.Choices[0].Message.Content
	answer, parseErr := ParseAnswer(raw)
	if parseErr != nil {
		c.metrics.LLMFallbackInc()
		c.logger.WithError(parseErr).WithFields(logrus.Fields{
			"model":        resp.Model,
			"reply_length": len(raw),
		}).Warn("Model reply failed validation, using raw text")
	}

	c.logger.WithFields(logrus.Fields{
		"model":             resp.Model,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
		"sources":           len(answer.Sources),
		"fallback":          answer.Fallback,
		"duration_ms":       time.Since(start).Milliseconds(),
	}).Debug("Answer generated")

	return answer, nil
}

// Embed returns one embedding per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	timer := c.metrics.UpstreamTimer("embedding")
	defer timer.ObserveDuration()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.config.EmbeddingModel),
	})
	if err != nil {
		c.metrics.UpstreamErrorInc("embedding")
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Ping checks that the API is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.ListModels(ctx)
	return err
}
