package ocr

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	documentai "google.golang.org/api/documentai/v1"
	"google.golang.org/api/option"

	"github.com/sells-group/vehicle-catalog/internal/model"
)

// DocumentAI runs a Google Document AI custom extractor processor, which
// returns typed entities for price-list cells as well as the page text.
type DocumentAI struct {
	svc  *documentai.Service
	name string
}

// ProcessorName builds the fully qualified processor resource name.
func ProcessorName(project, location, processorID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processorID)
}

// NewDocumentAI creates a Document AI client for the processor in the given
// location. ts supplies bearer tokens, normally a *TokenCache.
func NewDocumentAI(ctx context.Context, project, location, processorID string, ts oauth2.TokenSource, opts ...option.ClientOption) (*DocumentAI, error) {
	if project == "" || processorID == "" {
		return nil, eris.New("ocr: documentai requires project and processor id")
	}
	if location == "" {
		location = "eu"
	}
	base := []option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("https://%s-documentai.googleapis.com/", location)),
	}
	if ts != nil {
		base = append(base, option.WithTokenSource(ts))
	}
	svc, err := documentai.NewService(ctx, append(base, opts...)...)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: create documentai service")
	}
	return &DocumentAI{svc: svc, name: ProcessorName(project, location, processorID)}, nil
}

// Extract sends the PDF inline to the processor.
func (d *DocumentAI) Extract(ctx context.Context, pdf []byte) (*Document, error) {
	req := &documentai.GoogleCloudDocumentaiV1ProcessRequest{
		RawDocument: &documentai.GoogleCloudDocumentaiV1RawDocument{
			Content:  base64.StdEncoding.EncodeToString(pdf),
			MimeType: "application/pdf",
		},
	}
	resp, err := d.svc.Projects.Locations.Processors.Process(d.name, req).Context(ctx).Do()
	if err != nil {
		return nil, eris.Wrap(err, "ocr: documentai process")
	}
	if resp.Document == nil {
		return &Document{}, nil
	}

	doc := fromDocument(resp.Document)
	zap.L().Debug("ocr: documentai processed",
		zap.Int("pages", doc.Pages),
		zap.Int("entities", len(doc.Entities)),
	)
	return doc, nil
}

func fromDocument(d *documentai.GoogleCloudDocumentaiV1Document) *Document {
	out := &Document{Text: d.Text, Pages: len(d.Pages)}
	var walk func(es []*documentai.GoogleCloudDocumentaiV1DocumentEntity)
	walk = func(es []*documentai.GoogleCloudDocumentaiV1DocumentEntity) {
		for _, e := range es {
			if e == nil {
				continue
			}
			if len(e.Properties) > 0 {
				walk(e.Properties)
				continue
			}
			out.Entities = append(out.Entities, toEntity(e, d.Text))
		}
	}
	walk(d.Entities)
	return out
}

// anchorText returns text[start:end] where the indices count code points,
// as Document AI text anchors do.
func anchorText(text string, start, end int64) string {
	r := []rune(text)
	if start < 0 || end <= start || end > int64(len(r)) {
		return ""
	}
	return string(r[start:end])
}

func toEntity(e *documentai.GoogleCloudDocumentaiV1DocumentEntity, text string) model.Entity {
	ent := model.Entity{
		Type:       e.Type,
		Text:       e.MentionText,
		Confidence: e.Confidence,
	}

	if e.TextAnchor != nil && len(e.TextAnchor.TextSegments) > 0 {
		seg := e.TextAnchor.TextSegments[0]
		start := seg.StartIndex
		ent.TextPosition = &start
		if ent.Text == "" {
			ent.Text = anchorText(text, start, seg.EndIndex)
		}
	}
	if ent.Text == "" && e.NormalizedValue != nil {
		ent.Text = e.NormalizedValue.Text
	}

	if e.PageAnchor != nil && len(e.PageAnchor.PageRefs) > 0 {
		ref := e.PageAnchor.PageRefs[0]
		page := int(ref.Page)
		ent.PageIndex = &page
		if ref.BoundingPoly != nil {
			if vs := ref.BoundingPoly.NormalizedVertices; len(vs) > 0 && vs[0] != nil {
				y := vs[0].Y
				ent.BoundingBoxY = &y
			}
		}
	}
	return ent
}
