package model

import "time"

// DocumentKind is the payload format of a raw document.
type DocumentKind string

const (
	KindHTML DocumentKind = "html"
	KindPDF  DocumentKind = "pdf"
)

// LinkCategory is the coarse classification of a discovered PDF link.
type LinkCategory string

const (
	CategoryPriceList LinkCategory = "pricelist"
	CategoryBrochure  LinkCategory = "brochure"
	CategorySpec      LinkCategory = "spec"
	CategoryUnknown   LinkCategory = "unknown"
)

// Reprocess reports whether documents in this category are worth
// extracting. Brochures and spec sheets rarely carry prices.
func (c LinkCategory) Reprocess() bool {
	return c == CategoryPriceList || c == CategoryUnknown || c == ""
}

// RawDocument is one unit of input for the extraction chain. It is
// produced by a scraper or fetcher and never mutated afterwards.
type RawDocument struct {
	SourceURL string       `json:"source_url"`
	Kind      DocumentKind `json:"kind"`
	Payload   []byte       `json:"-"`
	// Index is the position of the document in the original scrape order.
	// Results are merged in Index order regardless of completion order.
	Index     int          `json:"index"`
	Category  LinkCategory `json:"category,omitempty"`
	TitleHint string       `json:"title_hint,omitempty"`
	BrandHint string       `json:"brand_hint,omitempty"`
}

// PDFLink is a PDF discovered on a scraped page.
type PDFLink struct {
	URL      string       `json:"url"`
	Category LinkCategory `json:"category"`
	Label    string       `json:"label,omitempty"`
}

// ScrapeResult is the output of a scraper for a single page.
type ScrapeResult struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	HTMLBatches []string  `json:"html_batches"`
	PDFLinks    []PDFLink `json:"pdf_links"`
	Tokens      int       `json:"tokens"`
}

// ExtractionAttempt records one try of one extraction tier.
type ExtractionAttempt struct {
	Provider     string        `json:"provider"`
	Document     string        `json:"document,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Succeeded    bool          `json:"succeeded"`
	RawOutput    string        `json:"raw_output,omitempty"`
	Error        string        `json:"error,omitempty"`
	ErrorKind    IssueKind     `json:"error_kind,omitempty"`
	Pages        int           `json:"pages,omitempty"`
	CostEstimate float64       `json:"cost_estimate"`
}
