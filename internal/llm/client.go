// Package llm is the Anthropic-backed collaborator that drafts questions,
// integrates answers, and reviews sections for review gates.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/debug"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/telemetry"
)

const instrumentationName = "github.com/Jmiracle76/orchestrator-agent-sub000/llm"

// ErrAPIKeyRequired is returned when no API key is configured.
var ErrAPIKeyRequired = errors.New("API key required")

// messageSender is the part of the Anthropic client we use.
type messageSender interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Options configures a Client. Zero values take the defaults below.
type Options struct {
	APIKey     string
	Model      string
	MaxTokens  int
	MaxRetries int
	Timeout    time.Duration
}

const (
	defaultModel          = "claude-haiku-4-5"
	defaultMaxTokens      = 4096
	defaultMaxRetries     = 3
	defaultTimeout        = 2 * time.Minute
	defaultInitialBackoff = time.Second
)

// Client talks to the Anthropic Messages API.
type Client struct {
	messages       messageSender
	model          anthropic.Model
	maxTokens      int64
	maxRetries     int
	timeout        time.Duration
	initialBackoff time.Duration
	prompts        *prompts
}

// New creates a Client. ANTHROPIC_API_KEY takes precedence over opts.APIKey.
func New(opts Options) (*Client, error) {
	apiKey := opts.APIKey
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY", ErrAPIKeyRequired)
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newClient(&client.Messages, opts)
}

func newClient(sender messageSender, opts Options) (*Client, error) {
	p, err := parsePrompts()
	if err != nil {
		return nil, err
	}
	aiMetricsOnce.Do(initAIMetrics)

	c := &Client{
		messages:       sender,
		model:          anthropic.Model(opts.Model),
		maxTokens:      int64(opts.MaxTokens),
		maxRetries:     opts.MaxRetries,
		timeout:        opts.Timeout,
		initialBackoff: defaultInitialBackoff,
		prompts:        p,
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	} else if opts.MaxRetries == 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	return c, nil
}

// aiMetrics holds lazily-initialized OTel instruments for Anthropic API calls.
var aiMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var aiMetricsOnce sync.Once

func initAIMetrics() {
	m := telemetry.Meter(instrumentationName)
	aiMetrics.inputTokens, _ = m.Int64Counter("orch.ai.input_tokens",
		metric.WithDescription("Anthropic API input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.outputTokens, _ = m.Int64Counter("orch.ai.output_tokens",
		metric.WithDescription("Anthropic API output tokens generated"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.duration, _ = m.Float64Histogram("orch.ai.request.duration",
		metric.WithDescription("Anthropic API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

// complete sends one prompt and returns the text of the reply, retrying
// rate limits, server errors, and timeouts with exponential backoff.
func (c *Client) complete(ctx context.Context, operation, system, prompt string) (string, error) {
	ctx, span := telemetry.Tracer(instrumentationName).Start(ctx, "anthropic.messages.new")
	defer span.End()
	modelAttr := attribute.String("orch.ai.model", string(c.model))
	span.SetAttributes(modelAttr, attribute.String("orch.ai.operation", operation))

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialBackoff
	bo.MaxElapsedTime = c.timeout

	var (
		text     string
		attempts int
	)
	err := backoff.Retry(func() error {
		attempts++
		t0 := time.Now()
		message, err := c.messages.New(ctx, params)
		ms := float64(time.Since(t0).Milliseconds())
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if !isRetryable(err) {
				return backoff.Permanent(fmt.Errorf("non-retryable error: %w", err))
			}
			debug.Logf("llm: %s attempt %d failed: %v", operation, attempts, err)
			return err
		}

		if aiMetrics.inputTokens != nil {
			aiMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
			aiMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
			aiMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))
		}
		span.SetAttributes(
			attribute.Int64("orch.ai.input_tokens", message.Usage.InputTokens),
			attribute.Int64("orch.ai.output_tokens", message.Usage.OutputTokens),
		)

		if len(message.Content) == 0 {
			return backoff.Permanent(fmt.Errorf("unexpected response format: no content blocks"))
		}
		content := message.Content[0]
		if content.Type != "text" {
			return backoff.Permanent(fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type))
		}
		text = content.Text
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.maxRetries)), ctx))

	span.SetAttributes(attribute.Int("orch.ai.attempts", attempts))
	debug.LogEvent("LLM_CALL", operation, "", fmt.Sprintf("model=%s attempts=%d ok=%t", c.model, attempts, err == nil))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("%s: %w", operation, err)
	}
	return text, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	return false
}
