// Package scrape turns dealer pages into extraction input: bounded text
// batches plus the PDF documents the page links to.
package scrape

import (
	"context"

	"github.com/sells-group/vehicle-catalog/internal/model"
)

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*model.ScrapeResult, error)
	Name() string
	Supports(url string) bool
}

// Documents converts a scrape result into raw documents for the
// extraction chain. HTML batches come first, in page order, followed by
// one placeholder per PDF link; PDF payloads are filled in by the caller
// after download. Indexes start at offset.
func Documents(res *model.ScrapeResult, offset int) []model.RawDocument {
	if res == nil {
		return nil
	}
	docs := make([]model.RawDocument, 0, len(res.HTMLBatches)+len(res.PDFLinks))
	for _, batch := range res.HTMLBatches {
		docs = append(docs, model.RawDocument{
			SourceURL: res.URL,
			Kind:      model.KindHTML,
			Payload:   []byte(batch),
			Index:     offset + len(docs),
			TitleHint: res.Title,
		})
	}
	for _, link := range res.PDFLinks {
		docs = append(docs, model.RawDocument{
			SourceURL: link.URL,
			Kind:      model.KindPDF,
			Index:     offset + len(docs),
			Category:  link.Category,
			TitleHint: res.Title,
		})
	}
	return docs
}
