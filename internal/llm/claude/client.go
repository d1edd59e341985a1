// Package claude implements llm.Completer on the Anthropic Messages API.
package claude

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sift/internal/llm/claude")

const defaultMaxTokens = 2048

// Client is a Claude-backed completer. Model and temperature pass through
// from config without interpretation.
type Client struct {
	client      anthropic.Client
	model       string
	temperature float64
	timeout     time.Duration
	maxTokens   int64
}

// New creates a Claude client. timeout bounds each individual completion
// call; retries above this layer issue fresh calls with fresh budgets.
// Extra request options are for tests (base URL override).
func New(apiKey, model string, temperature float64, timeout time.Duration, opts ...option.RequestOption) *Client {
	return &Client{
		client:      anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
		model:       model,
		temperature: temperature,
		timeout:     timeout,
		maxTokens:   defaultMaxTokens,
	}
}

// Complete sends one prompt and returns the concatenated text content of the
// response.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("gen_ai.operation.name", "llm.complete"),
		attribute.String("gen_ai.request.model", c.model),
		attribute.Float64("gen_ai.request.temperature", c.temperature),
		attribute.Int("sift.prompt.bytes", len(prompt)),
	))
	defer span.End()

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("claude: messages.new: %w", err)
	}

	span.SetAttributes(
		attribute.String("gen_ai.response.model", string(msg.Model)),
		attribute.Int64("gen_ai.usage.input_tokens", msg.Usage.InputTokens),
		attribute.Int64("gen_ai.usage.output_tokens", msg.Usage.OutputTokens),
	)

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
