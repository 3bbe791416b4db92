// Package pipeline wires scraping, PDF download, tiered extraction, entity
// correlation and reconciliation into one catalog run.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/vehicle-catalog/internal/cost"
	"github.com/sells-group/vehicle-catalog/internal/extract"
	"github.com/sells-group/vehicle-catalog/internal/llmextract"
	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/reconcile"
	"github.com/sells-group/vehicle-catalog/internal/scrape"
)

// PageScraper scrapes many pages, one result slot per URL in input order.
type PageScraper interface {
	ScrapeAll(ctx context.Context, urls []string, maxConcurrent int) []scrape.Page
}

// PDFFetcher downloads a PDF payload.
type PDFFetcher interface {
	FetchPDF(ctx context.Context, url string) ([]byte, error)
}

// Extractor runs a document through the extraction tiers.
type Extractor interface {
	Extract(ctx context.Context, doc model.RawDocument) (*extract.Result, error)
}

// TextExtractor turns OCR text into vehicles with a language model.
type TextExtractor interface {
	FromText(ctx context.Context, text string, hints llmextract.Hints) (*llmextract.Decoded, error)
}

// Options configures a Pipeline.
type Options struct {
	// Concurrency bounds in-flight documents and pages. Default: 4.
	Concurrency int
	// MinEntityConfidence drops OCR entities scored below it.
	MinEntityConfidence float64
	// Threshold is the variant merge threshold. Default: reconcile.DefaultThreshold.
	Threshold float64
	// Reconciler carries the vocabulary. Default: reconcile.Default().
	Reconciler *reconcile.Reconciler
	// Calculator prices scrape tokens. Optional.
	Calculator *cost.Calculator
}

// Pipeline runs documents through extraction and reconciliation.
type Pipeline struct {
	scraper  PageScraper
	fetcher  PDFFetcher
	selector Extractor
	text     TextExtractor
	opts     Options
}

// New creates a Pipeline. scraper, fetcher and text may be nil: without a
// scraper Run fails, without a fetcher PDF links are skipped with an issue,
// and without a text extractor OCR text goes to the local parser.
func New(scraper PageScraper, fetcher PDFFetcher, selector Extractor, text TextExtractor, opts Options) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Threshold <= 0 {
		opts.Threshold = reconcile.DefaultThreshold
	}
	if opts.Reconciler == nil {
		opts.Reconciler = reconcile.Default()
	}
	return &Pipeline{scraper: scraper, fetcher: fetcher, selector: selector, text: text, opts: opts}
}

// Input is one catalog run request.
type Input struct {
	URLs []string `json:"urls"`
	// Brand seeds the brand of every document when the source omits it.
	Brand string `json:"brand,omitempty"`
}

// Run scrapes every URL, turns pages into documents and processes them.
// Failures are contained per page and per document; the returned result
// always holds whatever could be reconciled. An error is returned only for
// a cancelled context or a missing scraper.
func (p *Pipeline) Run(ctx context.Context, in Input) (*model.ReconciliationResult, error) {
	if p.scraper == nil {
		return nil, eris.New("pipeline: no scraper configured")
	}
	log := zap.L().With(zap.Int("urls", len(in.URLs)), zap.String("brand", in.Brand))
	log.Info("pipeline: scraping")
	start := time.Now()

	pages := p.scraper.ScrapeAll(ctx, in.URLs, p.opts.Concurrency)
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: scrape cancelled")
	}

	var (
		docs      []model.RawDocument
		preIssues []model.Issue
		tokens    int
	)
	for _, pg := range pages {
		if pg.Err != nil {
			preIssues = append(preIssues, model.Issue{
				Kind:     model.IssueProviderUnavailable,
				Severity: model.SeverityError,
				Source:   pg.URL,
				Message:  pg.Err.Error(),
			})
			log.Warn("pipeline: scrape failed", zap.String("url", pg.URL), zap.Error(pg.Err))
			continue
		}
		tokens += pg.Result.Tokens
		docs = append(docs, scrape.Documents(pg.Result, len(docs))...)
	}
	for i := range docs {
		if docs[i].BrandHint == "" {
			docs[i].BrandHint = in.Brand
		}
	}
	log.Info("pipeline: scraped",
		zap.Int("pages", len(pages)),
		zap.Int("documents", len(docs)),
		zap.Int("tokens", tokens),
		zap.Duration("elapsed", time.Since(start)),
	)

	result, err := p.Process(ctx, docs)
	if err != nil {
		return nil, err
	}
	result.Issues = append(preIssues, result.Issues...)
	if p.opts.Calculator != nil {
		result.TotalCost += p.opts.Calculator.Jina(tokens)
	}
	return result, nil
}

// docResult is what one document contributes. Each goroutine writes only
// its own slot.
type docResult struct {
	vehicles []model.Vehicle
	issues   []model.Issue
	attempts []model.ExtractionAttempt
	cost     float64
}

// Process extracts every document concurrently and reconciles the
// candidates in document-index order, so identical input always yields the
// same catalog.
func (p *Pipeline) Process(ctx context.Context, docs []model.RawDocument) (*model.ReconciliationResult, error) {
	slots := make([]docResult, len(docs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			slots[i] = p.document(gCtx, doc)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: cancelled")
	}

	result := &model.ReconciliationResult{}
	var candidates []model.Vehicle
	for _, s := range slots {
		candidates = append(candidates, s.vehicles...)
		result.Issues = append(result.Issues, s.issues...)
		result.Attempts = append(result.Attempts, s.attempts...)
		result.TotalCost += s.cost
	}
	result.Vehicles = p.opts.Reconciler.Vehicles(candidates, p.opts.Threshold)
	if result.Issues == nil {
		result.Issues = []model.Issue{}
	}
	if result.Vehicles == nil {
		result.Vehicles = []model.Vehicle{}
	}

	zap.L().Info("pipeline: reconciled",
		zap.Int("documents", len(docs)),
		zap.Int("candidates", len(candidates)),
		zap.Int("vehicles", len(result.Vehicles)),
		zap.Int("variants", result.VariantCount()),
		zap.Int("issues", len(result.Issues)),
		zap.Float64("cost_usd", result.TotalCost),
	)
	return result, nil
}

func (p *Pipeline) document(ctx context.Context, doc model.RawDocument) docResult {
	var out docResult
	log := zap.L().With(zap.String("source", doc.SourceURL), zap.Int("index", doc.Index))

	if doc.Kind == model.KindPDF && doc.Payload == nil {
		if !doc.Category.Reprocess() {
			log.Debug("pipeline: skipping pdf", zap.String("category", string(doc.Category)))
			return out
		}
		if p.fetcher == nil {
			out.issue(model.IssueProviderUnavailable, model.SeverityWarning, doc.SourceURL, "", "no fetcher configured for pdf links")
			return out
		}
		data, err := p.fetcher.FetchPDF(ctx, doc.SourceURL)
		if err != nil {
			log.Warn("pipeline: pdf download failed", zap.Error(err))
			out.issue(model.IssueExtractionFailed, model.SeverityWarning, doc.SourceURL, "", "download failed: "+err.Error())
			return out
		}
		doc.Payload = data
	}

	res, err := p.selector.Extract(ctx, doc)
	if err != nil {
		var failed *extract.ExtractionFailed
		if errors.As(err, &failed) {
			out.attempts = failed.Attempts
			for _, a := range failed.Attempts {
				out.cost += a.CostEstimate
			}
		}
		if ctx.Err() == nil {
			log.Warn("pipeline: extraction failed", zap.Error(err))
			out.issue(model.IssueExtractionFailed, model.SeverityError, doc.SourceURL, "", err.Error())
		}
		return out
	}

	out.attempts = res.Attempts
	for _, a := range res.Attempts {
		out.cost += a.CostEstimate
	}
	if res.Degraded {
		out.issue(model.IssueExtractionDegraded, model.SeverityWarning, doc.SourceURL, "",
			"higher tier rate limited, used "+res.Tier)
	}

	p.vehiclesFrom(ctx, doc, res, &out)
	log.Debug("pipeline: document extracted",
		zap.String("tier", res.Tier),
		zap.Int("vehicles", len(out.vehicles)),
	)
	return out
}

func (r *docResult) issue(kind model.IssueKind, sev model.Severity, source, vehicle, msg string) {
	r.issues = append(r.issues, model.Issue{Kind: kind, Severity: sev, Source: source, Vehicle: vehicle, Message: msg})
}
