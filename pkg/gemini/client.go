// Package gemini wraps the Google generative AI client for JSON extraction
// from text and PDF documents.
package gemini

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Client defines the Gemini operations used by the extraction tiers.
type Client interface {
	GenerateJSON(ctx context.Context, req Request) (*Response, error)
	Close() error
}

// Request is a single JSON generation call.
type Request struct {
	Model           string
	System          string
	Prompt          string
	Attachments     []Blob
	MaxOutputTokens int32
	Temperature     *float32
}

// Blob is an inline document sent alongside the prompt.
type Blob struct {
	MIMEType string
	Data     []byte
}

// Response is the text and usage of a generation.
type Response struct {
	Text         string
	FinishReason string
	Usage        Usage
}

// Truncated reports whether generation stopped at the token limit.
func (r *Response) Truncated() bool {
	return r.FinishReason == genai.FinishReasonMaxTokens.String()
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens    int64
	CandidateTokens int64
}

// modelPricing holds per-million-token pricing: {input, output}.
var modelPricing = map[string][2]float64{
	"gemini-2.5-flash":      {0.30, 2.50},
	"gemini-2.5-flash-lite": {0.10, 0.40},
	"gemini-2.5-pro":        {1.25, 10.00},
}

// EstimateCost returns the USD cost of u for model, or 0 when unknown.
func (u Usage) EstimateCost(model string) float64 {
	p, ok := modelPricing[model]
	if !ok {
		return 0
	}
	return float64(u.PromptTokens)/1e6*p[0] + float64(u.CandidateTokens)/1e6*p[1]
}

type sdkClient struct {
	client *genai.Client
}

// NewClient creates a Gemini client authenticated with an API key.
func NewClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, eris.New("gemini: api key is empty")
	}
	cl, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{client: cl}, nil
}

func (c *sdkClient) GenerateJSON(ctx context.Context, req Request) (*Response, error) {
	m := c.client.GenerativeModel(req.Model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      req.Temperature,
		ResponseMIMEType: "application/json",
	}
	if m.GenerationConfig.Temperature == nil {
		m.GenerationConfig.Temperature = ptrFloat32(0)
	}
	if req.MaxOutputTokens > 0 {
		m.GenerationConfig.MaxOutputTokens = &req.MaxOutputTokens
	}
	if req.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	resp, err := m.GenerateContent(ctx, toParts(req)...)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate content")
	}

	out := fromResponse(resp)
	zap.L().Debug("gemini: generation complete",
		zap.String("model", req.Model),
		zap.String("finish_reason", out.FinishReason),
		zap.Int64("prompt_tokens", out.Usage.PromptTokens),
		zap.Int64("candidate_tokens", out.Usage.CandidateTokens),
	)
	return out, nil
}

func (c *sdkClient) Close() error {
	return c.client.Close()
}

func toParts(req Request) []genai.Part {
	parts := make([]genai.Part, 0, len(req.Attachments)+1)
	for _, a := range req.Attachments {
		parts = append(parts, genai.Blob{MIMEType: a.MIMEType, Data: a.Data})
	}
	return append(parts, genai.Text(req.Prompt))
}

func fromResponse(resp *genai.GenerateContentResponse) *Response {
	out := &Response{}
	if resp == nil {
		return out
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:    int64(resp.UsageMetadata.PromptTokenCount),
			CandidateTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(resp.Candidates) == 0 {
		return out
	}
	c := resp.Candidates[0]
	out.FinishReason = c.FinishReason.String()
	if c.Content == nil {
		return out
	}
	var sb strings.Builder
	for _, p := range c.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	out.Text = sb.String()
	return out
}

func ptrFloat32(v float32) *float32 { return &v }
