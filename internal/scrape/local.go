package scrape

import (
	"context"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-catalog/internal/heuristic"
	"github.com/sells-group/vehicle-catalog/internal/model"
)

// maxLocalBody caps how much of a page LocalScraper reads.
const maxLocalBody = 2 << 20

// LocalScraper fetches HTML via net/http, detects blocks, and converts the
// page to line-oriented text. It needs no API key and is the fallback when
// the reader is unavailable.
type LocalScraper struct {
	client    *http.Client
	exclude   *PathMatcher
	maxBatch  int
	userAgent string
}

// NewLocalScraper creates a LocalScraper with sensible defaults.
func NewLocalScraper(maxBatchChars int, userAgent string, exclude *PathMatcher) *LocalScraper {
	if exclude == nil {
		exclude = NewPathMatcher(nil)
	}
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; VehicleCatalogBot/1.0)"
	}
	return &LocalScraper{
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		exclude:   exclude,
		maxBatch:  maxBatchChars,
		userAgent: userAgent,
	}
}

// Name implements Scraper.
func (l *LocalScraper) Name() string { return "local_http" }

// Supports implements Scraper.
func (l *LocalScraper) Supports(_ string) bool { return true }

// Scrape fetches a URL, detects blocks and strips the markup.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*model.ScrapeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLocalBody))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", blockType)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("local_http: status %d", resp.StatusCode)
	}

	text := heuristic.StripHTML(string(body))
	if len(text) < minContentChars {
		return nil, eris.New("local_http: empty page")
	}

	return &model.ScrapeResult{
		URL:         targetURL,
		Title:       extractTitle(body),
		HTMLBatches: SplitBatches(text, l.maxBatch),
		PDFLinks:    DiscoverPDFLinks(targetURL, string(body), nil, l.exclude),
	}, nil
}

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

func extractTitle(body []byte) string {
	m := titleRe.FindSubmatch(body)
	if len(m) > 1 {
		return strings.TrimSpace(string(m[1]))
	}
	return ""
}
