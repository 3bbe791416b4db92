package extract

import (
	"context"

	"github.com/sells-group/vehicle-catalog/internal/heuristic"
	"github.com/sells-group/vehicle-catalog/internal/llmextract"
	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/ocr"
)

// OCRTier runs a PDF through an OCR engine.
type OCRTier struct {
	name string
	ocr  ocr.Extractor
}

// NewOCRTier creates an OCR tier. A nil extractor means the provider is
// not configured and every call fails with ErrProviderUnavailable.
func NewOCRTier(name string, ex ocr.Extractor) *OCRTier {
	return &OCRTier{name: name, ocr: ex}
}

// Name implements Tier.
func (t *OCRTier) Name() string { return t.name }

// Supports implements Tier.
func (t *OCRTier) Supports(kind model.DocumentKind) bool { return kind == model.KindPDF }

// Extract implements Tier.
func (t *OCRTier) Extract(ctx context.Context, doc model.RawDocument) (*Output, error) {
	if t.ocr == nil {
		return nil, ErrProviderUnavailable
	}
	d, err := t.ocr.Extract(ctx, doc.Payload)
	if err != nil {
		return nil, err
	}
	return &Output{Text: d.Text, Entities: d.Entities, Pages: d.Pages}, nil
}

// LLMTier sends the document natively to a language model and returns its
// structured reply undecoded.
type LLMTier struct {
	completer llmextract.Completer
}

// NewLLMTier creates an LLM tier. A nil completer means the provider is
// not configured.
func NewLLMTier(c llmextract.Completer) *LLMTier {
	return &LLMTier{completer: c}
}

// Name implements Tier.
func (t *LLMTier) Name() string {
	if t.completer == nil {
		return "llm"
	}
	return t.completer.Name()
}

// Supports implements Tier.
func (t *LLMTier) Supports(kind model.DocumentKind) bool {
	return kind == model.KindPDF || kind == model.KindHTML
}

// Extract implements Tier.
func (t *LLMTier) Extract(ctx context.Context, doc model.RawDocument) (*Output, error) {
	if t.completer == nil {
		return nil, ErrProviderUnavailable
	}
	hints := llmextract.Hints{Source: doc.SourceURL, BrandHint: doc.BrandHint, TitleHint: doc.TitleHint}
	req := llmextract.Request{System: llmextract.SystemPrompt(), Source: doc.SourceURL}
	if doc.Kind == model.KindPDF {
		req.PDF = doc.Payload
		req.Prompt = llmextract.PDFPrompt(hints)
	} else {
		req.Prompt = llmextract.UserPrompt(hints, string(doc.Payload))
	}

	comp, err := t.completer.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Output{Structured: comp.Text, Truncated: comp.Truncated, Cost: comp.Cost}, nil
}

// HeuristicTier parses prices locally. PDFs are converted to text with
// the given extractor, normally pdftotext.
type HeuristicTier struct {
	pdf ocr.Extractor
}

// NewHeuristicTier creates the local parser tier. pdf may be nil, in
// which case only HTML is supported.
func NewHeuristicTier(pdf ocr.Extractor) *HeuristicTier {
	return &HeuristicTier{pdf: pdf}
}

// Name implements Tier.
func (t *HeuristicTier) Name() string { return "heuristic" }

// Supports implements Tier.
func (t *HeuristicTier) Supports(kind model.DocumentKind) bool {
	return kind == model.KindHTML || (kind == model.KindPDF && t.pdf != nil)
}

// Extract implements Tier. Output carries vehicles only, so a document
// without recognizable prices counts as empty.
func (t *HeuristicTier) Extract(ctx context.Context, doc model.RawDocument) (*Output, error) {
	var (
		text  string
		pages int
	)
	switch doc.Kind {
	case model.KindPDF:
		d, err := t.pdf.Extract(ctx, doc.Payload)
		if err != nil {
			return nil, err
		}
		text, pages = d.Text, d.Pages
	default:
		text = heuristic.StripHTML(string(doc.Payload))
	}

	vs := heuristic.Parse(text, heuristic.Hints{
		Brand:  doc.BrandHint,
		Title:  doc.TitleHint,
		Source: doc.SourceURL,
	})
	return &Output{Vehicles: vs, Pages: pages}, nil
}
