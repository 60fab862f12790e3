// Package llm provides the model-invocation collaborator: one system plus
// one user message in, response text out.
package llm

import (
	"context"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client defines the single model operation the pipeline uses. No
// streaming; one call per invocation.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Option configures the SDK-backed client.
type Option func(*sdkClient)

// WithBaseURL points the client at a non-default endpoint (proxy, local
// gateway).
func WithBaseURL(url string) Option {
	return func(c *sdkClient) {
		c.baseURL = url
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *sdkClient) {
		c.temperature = &t
	}
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int) Option {
	return func(c *sdkClient) {
		c.maxTokens = int64(n)
	}
}

// WithTimeout bounds each individual call.
func WithTimeout(d time.Duration) Option {
	return func(c *sdkClient) {
		c.timeout = d
	}
}

// WithRateLimit throttles calls to rps requests per second. Zero or
// negative disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *sdkClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type sdkClient struct {
	client      sdk.Client
	model       string
	baseURL     string
	maxTokens   int64
	temperature *float64
	timeout     time.Duration
	limiter     *rate.Limiter
}

// NewClient creates a model client backed by the official SDK.
func NewClient(apiKey, model string, opts ...Option) Client {
	c := &sdkClient{
		model:     model,
		maxTokens: 8192,
		timeout:   120 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	sdkOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if c.baseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(c.baseURL))
	}
	c.client = sdk.NewClient(sdkOpts...)

	return c
}

func (c *sdkClient) Complete(ctx context.Context, system, user string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "llm: rate limit wait")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []sdk.TextBlockParam{
			{Text: system},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(user)),
		},
	}
	if c.temperature != nil {
		params.Temperature = sdk.Float(*c.temperature)
	}

	start := time.Now()
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", eris.Wrap(err, "llm: create message")
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	text := strings.Join(parts, "\n")

	zap.L().Debug("llm: completion",
		zap.String("model", c.model),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)),
	)

	return text, nil
}
