package llmextract

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/vehicle-catalog/internal/cost"
	"github.com/sells-group/vehicle-catalog/pkg/anthropic"
	"github.com/sells-group/vehicle-catalog/pkg/gemini"
)

// streamThreshold is the output budget above which Anthropic requests must
// be streamed.
const streamThreshold = 8192

// Request is one completion call. PDF is optional; when set the document
// is attached natively.
type Request struct {
	System string
	Prompt string
	PDF    []byte
	Source string
}

// Completion is the raw reply of a model.
type Completion struct {
	Text      string
	Truncated bool
	Cost      float64
	Model     string
}

// Completer is a model that answers extraction prompts.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// AnthropicCompleter sends requests to Claude.
type AnthropicCompleter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
	calc      *cost.Calculator
}

// NewAnthropicCompleter creates a Claude completer. limiter and calc may
// be nil.
func NewAnthropicCompleter(client anthropic.Client, model string, maxTokens int64, limiter *rate.Limiter, calc *cost.Calculator) *AnthropicCompleter {
	if maxTokens <= 0 {
		maxTokens = 16384
	}
	return &AnthropicCompleter{client: client, model: model, maxTokens: maxTokens, limiter: limiter, calc: calc}
}

// Name implements Completer.
func (c *AnthropicCompleter) Name() string { return "claude" }

// Complete implements Completer.
func (c *AnthropicCompleter) Complete(ctx context.Context, req Request) (*Completion, error) {
	if err := wait(ctx, c.limiter); err != nil {
		return nil, err
	}

	msg := anthropic.Message{Role: "user", Content: req.Prompt}
	if len(req.PDF) > 0 {
		msg.PDFs = [][]byte{req.PDF}
	}
	temp := 0.0
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(req.System),
		Messages:    []anthropic.Message{msg},
		Temperature: &temp,
		Stream:      c.maxTokens > streamThreshold,
	})
	if err != nil {
		return nil, eris.Wrap(err, "llmextract: claude completion")
	}

	resp.Usage.LogCost(c.model, req.Source)
	u := resp.Usage
	var usd float64
	if c.calc != nil {
		usd = c.calc.Claude(c.model, u.InputTokens, u.OutputTokens, u.CacheCreationInputTokens, u.CacheReadInputTokens)
	} else {
		usd = u.EstimateCost(c.model)
	}
	return &Completion{
		Text:      resp.Text(),
		Truncated: resp.Truncated(),
		Cost:      usd,
		Model:     c.model,
	}, nil
}

// GeminiCompleter sends requests to Gemini.
type GeminiCompleter struct {
	client    gemini.Client
	model     string
	maxTokens int32
	limiter   *rate.Limiter
	calc      *cost.Calculator
}

// NewGeminiCompleter creates a Gemini completer. limiter and calc may be
// nil.
func NewGeminiCompleter(client gemini.Client, model string, maxTokens int32, limiter *rate.Limiter, calc *cost.Calculator) *GeminiCompleter {
	if maxTokens <= 0 {
		maxTokens = 16384
	}
	return &GeminiCompleter{client: client, model: model, maxTokens: maxTokens, limiter: limiter, calc: calc}
}

// Name implements Completer.
func (c *GeminiCompleter) Name() string { return "gemini" }

// Complete implements Completer.
func (c *GeminiCompleter) Complete(ctx context.Context, req Request) (*Completion, error) {
	if err := wait(ctx, c.limiter); err != nil {
		return nil, err
	}

	greq := gemini.Request{
		Model:           c.model,
		System:          req.System,
		Prompt:          req.Prompt,
		MaxOutputTokens: c.maxTokens,
	}
	if len(req.PDF) > 0 {
		greq.Attachments = []gemini.Blob{{MIMEType: "application/pdf", Data: req.PDF}}
	}
	resp, err := c.client.GenerateJSON(ctx, greq)
	if err != nil {
		return nil, eris.Wrap(err, "llmextract: gemini completion")
	}

	var usd float64
	if c.calc != nil {
		usd = c.calc.Gemini(c.model, resp.Usage.PromptTokens, resp.Usage.CandidateTokens)
	} else {
		usd = resp.Usage.EstimateCost(c.model)
	}
	zap.L().Info("cost attribution",
		zap.String("model", c.model),
		zap.String("source", req.Source),
		zap.Int64("input_tokens", resp.Usage.PromptTokens),
		zap.Int64("output_tokens", resp.Usage.CandidateTokens),
		zap.Float64("estimated_cost_usd", usd),
	)
	return &Completion{
		Text:      resp.Text,
		Truncated: resp.Truncated(),
		Cost:      usd,
		Model:     c.model,
	}, nil
}

func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return eris.Wrap(l.Wait(ctx), "llmextract: rate limiter")
}
