package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vehicle-catalog/internal/llmextract"
	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/ocr"
)

type fakeOCR struct {
	doc *ocr.Document
	err error
	got []byte
}

func (f *fakeOCR) Extract(_ context.Context, pdf []byte) (*ocr.Document, error) {
	f.got = pdf
	return f.doc, f.err
}

type fakeCompleter struct {
	req llmextract.Request
}

func (f *fakeCompleter) Name() string { return "claude" }

func (f *fakeCompleter) Complete(_ context.Context, req llmextract.Request) (*llmextract.Completion, error) {
	f.req = req
	return &llmextract.Completion{Text: `{"vehicles":[]}`, Truncated: true, Cost: 0.2}, nil
}

func TestOCRTier(t *testing.T) {
	pos := int64(4)
	f := &fakeOCR{doc: &ocr.Document{
		Text:     "Active 199 900 kr",
		Entities: []model.Entity{{Type: "variant_name", Text: "Active", TextPosition: &pos}},
		Pages:    3,
	}}
	tier := NewOCRTier("documentai", f)
	assert.True(t, tier.Supports(model.KindPDF))
	assert.False(t, tier.Supports(model.KindHTML))

	out, err := tier.Extract(context.Background(), pdfDoc)
	require.NoError(t, err)
	assert.Equal(t, "Active 199 900 kr", out.Text)
	assert.Len(t, out.Entities, 1)
	assert.Equal(t, 3, out.Pages)
	assert.Equal(t, pdfDoc.Payload, f.got)
}

func TestOCRTier_Errors(t *testing.T) {
	_, err := NewOCRTier("documentai", nil).Extract(context.Background(), pdfDoc)
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	boom := errors.New("boom")
	_, err = NewOCRTier("mistral", &fakeOCR{err: boom}).Extract(context.Background(), pdfDoc)
	assert.ErrorIs(t, err, boom)
}

func TestLLMTier_PDF(t *testing.T) {
	fc := &fakeCompleter{}
	tier := NewLLMTier(fc)
	assert.Equal(t, "claude", tier.Name())

	doc := pdfDoc
	doc.BrandHint = "Kia"
	out, err := tier.Extract(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, `{"vehicles":[]}`, out.Structured)
	assert.True(t, out.Truncated)
	assert.InDelta(t, 0.2, out.Cost, 1e-9)

	assert.Equal(t, doc.Payload, fc.req.PDF)
	assert.Contains(t, fc.req.Prompt, "Kia")
	assert.Equal(t, llmextract.SystemPrompt(), fc.req.System)
}

func TestLLMTier_HTML(t *testing.T) {
	fc := &fakeCompleter{}
	doc := model.RawDocument{SourceURL: "https://dealer.se/", Kind: model.KindHTML, Payload: []byte("Niro 389 900 kr")}
	_, err := NewLLMTier(fc).Extract(context.Background(), doc)
	require.NoError(t, err)
	assert.Nil(t, fc.req.PDF)
	assert.Contains(t, fc.req.Prompt, "Niro 389 900 kr")
}

func TestLLMTier_Unconfigured(t *testing.T) {
	tier := NewLLMTier(nil)
	assert.Equal(t, "llm", tier.Name())
	_, err := tier.Extract(context.Background(), pdfDoc)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestHeuristicTier(t *testing.T) {
	tier := NewHeuristicTier(nil)
	assert.False(t, tier.Supports(model.KindPDF))
	assert.True(t, tier.Supports(model.KindHTML))

	doc := model.RawDocument{
		SourceURL: "https://dealer.se/ceed",
		Kind:      model.KindHTML,
		Payload:   []byte("<h2>Ceed</h2><p>GT-Line 299&nbsp;900 kr</p>"),
		BrandHint: "Kia",
	}
	out, err := tier.Extract(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, out.Vehicles, 1)
	assert.Equal(t, "Kia", out.Vehicles[0].Brand)
	assert.Equal(t, "Ceed", out.Vehicles[0].Title)
	assert.Empty(t, out.Text)
}

func TestHeuristicTier_PDFWithoutPricesIsEmpty(t *testing.T) {
	tier := NewHeuristicTier(&fakeOCR{doc: &ocr.Document{Text: "Broschyr", Pages: 12}})
	out, err := tier.Extract(context.Background(), pdfDoc)
	require.NoError(t, err)
	assert.True(t, out.Empty())
	assert.Equal(t, 12, out.Pages)
}
