package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/resilience"
	"github.com/sells-group/vehicle-catalog/pkg/jina"
)

// JinaScraper reads pages through Jina Reader as markdown. A circuit
// breaker stops calling the reader after repeated provider failures so
// the chain falls through to the next scraper.
type JinaScraper struct {
	client   jina.Client
	breaker  *resilience.CircuitBreaker
	exclude  *PathMatcher
	maxBatch int
}

// NewJinaScraper creates a JinaScraper. A nil breaker gets the default
// configuration; a nil matcher uses the default exclude patterns.
func NewJinaScraper(client jina.Client, maxBatchChars int, breaker *resilience.CircuitBreaker, exclude *PathMatcher) *JinaScraper {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("jina", resilience.DefaultCircuitBreakerConfig())
	}
	if exclude == nil {
		exclude = NewPathMatcher(nil)
	}
	return &JinaScraper{
		client:   client,
		breaker:  breaker,
		exclude:  exclude,
		maxBatch: maxBatchChars,
	}
}

// Name implements Scraper.
func (j *JinaScraper) Name() string { return "jina" }

// Supports returns true unless the circuit breaker is open.
func (j *JinaScraper) Supports(_ string) bool {
	return j.breaker.State() != resilience.CircuitOpen
}

// Scrape fetches a URL via Jina Reader and splits it into batches.
func (j *JinaScraper) Scrape(ctx context.Context, targetURL string) (*model.ScrapeResult, error) {
	resp, err := resilience.ExecuteVal(ctx, j.breaker, func(ctx context.Context) (*jina.ReadResponse, error) {
		return j.client.Read(ctx, targetURL, jina.WithLinksSummary())
	})
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: jina read %s", targetURL)
	}
	if resp == nil {
		return nil, eris.Errorf("scrape: jina returned nothing for %s", targetURL)
	}
	if blocked, kind := DetectContentBlock(resp.Code, resp.Data.Content); blocked {
		zap.L().Debug("scrape: jina content unusable",
			zap.String("url", targetURL),
			zap.String("block", string(kind)),
		)
		return nil, eris.Errorf("scrape: jina content unusable (%s) for %s", kind, targetURL)
	}

	pageURL := resp.Data.URL
	if pageURL == "" {
		pageURL = targetURL
	}
	return &model.ScrapeResult{
		URL:         pageURL,
		Title:       resp.Data.Title,
		HTMLBatches: SplitBatches(resp.Data.Content, j.maxBatch),
		PDFLinks:    DiscoverPDFLinks(pageURL, resp.Data.Content, resp.Data.Links, j.exclude),
		Tokens:      resp.Data.Usage.Tokens,
	}, nil
}
