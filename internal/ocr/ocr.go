// Package ocr extracts text and typed entities from PDF price lists.
package ocr

import (
	"context"

	"github.com/sells-group/vehicle-catalog/internal/model"
)

// Document is the result of running OCR over a PDF.
type Document struct {
	Text     string
	Entities []model.Entity
	Pages    int
}

// Empty reports whether the document carries neither text nor entities.
func (d *Document) Empty() bool {
	return d == nil || (len(d.Entities) == 0 && isBlank(d.Text))
}

// Extractor extracts content from PDF bytes.
type Extractor interface {
	Extract(ctx context.Context, pdf []byte) (*Document, error)
}

func isBlank(s string) bool {
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
		default:
			return false
		}
	}
	return true
}
