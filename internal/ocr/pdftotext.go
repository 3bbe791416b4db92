package ocr

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// Extract writes the PDF to a temp file and runs pdftotext -layout on it.
// Pages are counted from the form feeds pdftotext emits after each page.
func (p *PdfToText) Extract(ctx context.Context, pdf []byte) (*Document, error) {
	f, err := os.CreateTemp("", "catalog-*.pdf")
	if err != nil {
		return nil, eris.Wrap(err, "ocr: create temp file")
	}
	defer os.Remove(f.Name()) //nolint:errcheck

	if _, err := f.Write(pdf); err != nil {
		f.Close() //nolint:errcheck,gosec
		return nil, eris.Wrap(err, "ocr: write temp file")
	}
	if err := f.Close(); err != nil {
		return nil, eris.Wrap(err, "ocr: close temp file")
	}

	text, err := p.ExtractFile(ctx, f.Name())
	if err != nil {
		return nil, err
	}

	pages := strings.Count(text, "\f")
	if pages == 0 && !isBlank(text) {
		pages = 1
	}
	return &Document{Text: text, Pages: pages}, nil
}

// ExtractFile runs pdftotext -layout on the given PDF and returns stdout.
func (p *PdfToText) ExtractFile(ctx context.Context, pdfPath string) (string, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ocr: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}

	return stdout.String(), nil
}
