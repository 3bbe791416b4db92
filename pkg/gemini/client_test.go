package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonMaxTokens,
			Content: &genai.Content{Parts: []genai.Part{
				genai.Text(`{"variants":[`),
				genai.Text(`{"name":"Base"}`),
			}},
		}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 1000, CandidatesTokenCount: 200},
	}

	out := fromResponse(resp)
	assert.Equal(t, `{"variants":[{"name":"Base"}`, out.Text)
	assert.True(t, out.Truncated())
	assert.Equal(t, int64(1000), out.Usage.PromptTokens)
	assert.Equal(t, int64(200), out.Usage.CandidateTokens)
}

func TestFromResponse_Empty(t *testing.T) {
	assert.Empty(t, fromResponse(nil).Text)
	out := fromResponse(&genai.GenerateContentResponse{})
	assert.Empty(t, out.Text)
	assert.False(t, out.Truncated())
}

func TestToParts_AttachmentsFirst(t *testing.T) {
	parts := toParts(Request{
		Prompt:      "Extract the price list.",
		Attachments: []Blob{{MIMEType: "application/pdf", Data: []byte("%PDF")}},
	})
	require.Len(t, parts, 2)
	blob, ok := parts[0].(genai.Blob)
	require.True(t, ok)
	assert.Equal(t, "application/pdf", blob.MIMEType)
	assert.Equal(t, genai.Text("Extract the price list."), parts[1])
}

func TestUsage_EstimateCost(t *testing.T) {
	u := Usage{PromptTokens: 1_000_000, CandidateTokens: 1_000_000}
	assert.InDelta(t, 2.80, u.EstimateCost("gemini-2.5-flash"), 0.0001)
	assert.Zero(t, u.EstimateCost("unknown"))
}

func TestNewClient_EmptyKey(t *testing.T) {
	_, err := NewClient(context.Background(), " ")
	require.Error(t, err)
}
