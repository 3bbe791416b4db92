package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	documentai "google.golang.org/api/documentai/v1"

	"github.com/sells-group/vehicle-catalog/internal/config"
	"github.com/sells-group/vehicle-catalog/internal/cost"
	"github.com/sells-group/vehicle-catalog/internal/extract"
	"github.com/sells-group/vehicle-catalog/internal/fetcher"
	"github.com/sells-group/vehicle-catalog/internal/llmextract"
	"github.com/sells-group/vehicle-catalog/internal/ocr"
	"github.com/sells-group/vehicle-catalog/internal/pipeline"
	"github.com/sells-group/vehicle-catalog/internal/publish"
	"github.com/sells-group/vehicle-catalog/internal/reconcile"
	"github.com/sells-group/vehicle-catalog/internal/resilience"
	"github.com/sells-group/vehicle-catalog/internal/scrape"
	"github.com/sells-group/vehicle-catalog/internal/store"
	anthropicpkg "github.com/sells-group/vehicle-catalog/pkg/anthropic"
	"github.com/sells-group/vehicle-catalog/pkg/gemini"
	"github.com/sells-group/vehicle-catalog/pkg/jina"
	"github.com/sells-group/vehicle-catalog/pkg/notion"
)

const tokenMargin = 5 * time.Minute

// catalogEnv holds the clients and the pipeline needed by the run,
// extract and serve commands.
type catalogEnv struct {
	Pipeline  *pipeline.Pipeline
	Selector  *extract.Selector
	Fetcher   *fetcher.Router
	Store     store.Store              // may be nil
	Publisher *publish.NotionPublisher // may be nil
	closers   []func() error
}

// Close releases resources held by the environment.
func (e *catalogEnv) Close() {
	for _, c := range e.closers {
		_ = c()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func retryPolicy(c *config.Config) resilience.Policy {
	return resilience.PolicyFromConfig(c.Retry.MaxAttempts, c.Retry.BaseDelayMs, c.Retry.MaxDelayMs, c.Retry.TimeoutDelayMs)
}

// tierSet is the extraction chain built from config plus the language
// model used for OCR text.
type tierSet struct {
	tiers   []extract.Tier
	text    llmextract.Completer
	closers []func() error
}

// buildTiers creates the tiers named in tiers.order. Tiers without
// credentials are skipped so a partial configuration still yields a chain.
func buildTiers(ctx context.Context, c *config.Config, calc *cost.Calculator) (*tierSet, error) {
	set := &tierSet{}
	for _, name := range c.Tiers.Order {
		switch name {
		case "documentai":
			if c.DocumentAI.Project == "" || c.DocumentAI.ProcessorID == "" {
				zap.L().Debug("documentai not configured, tier skipped")
				continue
			}
			ts, err := documentAITokens(ctx, c.DocumentAI)
			if err != nil {
				return nil, err
			}
			dai, err := ocr.NewDocumentAI(ctx, c.DocumentAI.Project, c.DocumentAI.Location, c.DocumentAI.ProcessorID, ts)
			if err != nil {
				return nil, err
			}
			set.tiers = append(set.tiers, extract.NewOCRTier("documentai", dai))

		case "mistral":
			if c.Mistral.Key == "" {
				zap.L().Debug("mistral not configured, tier skipped")
				continue
			}
			set.tiers = append(set.tiers, extract.NewOCRTier("mistral", ocr.NewMistralOCR(c.Mistral.Key, c.Mistral.Model)))

		case "claude":
			if c.Anthropic.Key == "" {
				zap.L().Debug("anthropic not configured, tier skipped")
				continue
			}
			comp := llmextract.NewAnthropicCompleter(
				anthropicpkg.NewClient(c.Anthropic.Key),
				c.Anthropic.Model, c.Anthropic.MaxTokens,
				limiter(c.Anthropic.RPS), calc,
			)
			set.add(comp)

		case "gemini":
			if c.Gemini.Key == "" {
				zap.L().Debug("gemini not configured, tier skipped")
				continue
			}
			client, err := gemini.NewClient(ctx, c.Gemini.Key)
			if err != nil {
				return nil, err
			}
			set.closers = append(set.closers, client.Close)
			comp := llmextract.NewGeminiCompleter(client, c.Gemini.Model, c.Gemini.MaxTokens, limiter(c.Gemini.RPS), calc)
			set.add(comp)

		case "heuristic":
			set.tiers = append(set.tiers, extract.NewHeuristicTier(ocr.NewPdfToText(c.Fetch.PdfToText)))

		default:
			zap.L().Warn("unknown extraction tier, skipped", zap.String("tier", name))
		}
	}
	if len(set.tiers) == 0 {
		return nil, eris.New("no extraction tier configured")
	}
	return set, nil
}

func (s *tierSet) add(c llmextract.Completer) {
	s.tiers = append(s.tiers, extract.NewLLMTier(c))
	if s.text == nil {
		s.text = c
	}
}

func documentAITokens(ctx context.Context, c config.DocumentAIConfig) (oauth2.TokenSource, error) {
	if c.CredentialsFile != "" {
		data, err := os.ReadFile(c.CredentialsFile)
		if err != nil {
			return nil, eris.Wrap(err, "read documentai credentials")
		}
		return ocr.NewServiceAccountTokenCache(ctx, data, tokenMargin)
	}
	ts, err := google.DefaultTokenSource(ctx, documentai.CloudPlatformScope)
	if err != nil {
		return nil, eris.Wrap(err, "documentai default credentials")
	}
	return ocr.NewTokenCache(ts, tokenMargin), nil
}

func limiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

func newSelector(c *config.Config, tiers []extract.Tier, calc *cost.Calculator) *extract.Selector {
	timeouts := make(map[string]time.Duration, len(c.Tiers.Timeouts))
	for name, secs := range c.Tiers.Timeouts {
		timeouts[name] = time.Duration(secs) * time.Second
	}
	return extract.NewSelector(tiers, extract.Options{
		Policy:   retryPolicy(c),
		Timeout:  time.Duration(c.Tiers.TimeoutSecs) * time.Second,
		Timeouts: timeouts,
		PageCost: calc.PageCosts(),
		Breakers: resilience.NewBreakers(resilience.FromCircuitConfig(c.Retry.FailureThreshold, c.Retry.ResetTimeoutSecs)),
	})
}

func newFetcher(c *config.Config) *fetcher.Router {
	timeout := time.Duration(c.Fetch.TimeoutSecs) * time.Second
	return fetcher.NewRouter(
		fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent: c.Fetch.UserAgent,
			Timeout:   timeout,
			RPS:       c.Fetch.RPS,
			Policy:    retryPolicy(c),
		}),
		fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: timeout}),
		fetcher.FileFetcher{},
		c.Fetch.MaxBytes,
	)
}

// newScraper chains Jina Reader, when a key is set, in front of the local
// HTTP scraper.
func newScraper(c *config.Config) *scrape.Chain {
	var scrapers []scrape.Scraper
	if c.Jina.Key != "" {
		client := jina.NewClient(c.Jina.Key, jina.WithBaseURL(c.Jina.BaseURL), jina.WithRetryPolicy(retryPolicy(c)))
		scrapers = append(scrapers, scrape.NewJinaScraper(client, c.Pipeline.MaxBatchChars, nil, nil))
	}
	scrapers = append(scrapers, scrape.NewLocalScraper(c.Pipeline.MaxBatchChars, c.Fetch.UserAgent, nil))
	return scrape.NewChain(nil, scrapers...)
}

func newReconciler(c *config.Config) (*reconcile.Reconciler, error) {
	if c.Reconcile.VocabularyPath == "" {
		return reconcile.Default(), nil
	}
	vocab, err := reconcile.LoadVocabulary(c.Reconcile.VocabularyPath)
	if err != nil {
		return nil, err
	}
	return reconcile.New(vocab), nil
}

func newPublisher(c *config.Config) *publish.NotionPublisher {
	if c.Notion.Token == "" || c.Notion.VehicleDB == "" {
		return nil
	}
	client := notion.NewClient(c.Notion.Token,
		notion.WithRateLimit(c.Notion.RPS),
		notion.WithRetry(retryPolicy(c)),
	)
	return publish.NewNotionPublisher(client, c.Notion.VehicleDB)
}

// envOptions selects the optional collaborators of an environment.
type envOptions struct {
	Mode  string
	Store bool
}

// initPipeline validates the config for mode and builds the pipeline with
// every configured collaborator. Callers should defer env.Close().
func initPipeline(ctx context.Context, opts envOptions) (*catalogEnv, error) {
	if err := cfg.Validate(opts.Mode); err != nil {
		return nil, eris.Wrap(err, "config: validation failed")
	}

	reconciler, err := newReconciler(cfg)
	if err != nil {
		return nil, err
	}

	calc := cost.NewCalculator(cfg.Pricing)
	set, err := buildTiers(ctx, cfg, calc)
	if err != nil {
		return nil, err
	}

	env := &catalogEnv{closers: set.closers}
	env.Selector = newSelector(cfg, set.tiers, calc)
	env.Fetcher = newFetcher(cfg)
	env.Publisher = newPublisher(cfg)

	var text pipeline.TextExtractor
	if set.text != nil {
		text = llmextract.NewExtractor(set.text, retryPolicy(cfg))
	}
	env.Pipeline = pipeline.New(newScraper(cfg), env.Fetcher, env.Selector, text, pipeline.Options{
		Concurrency:         cfg.Pipeline.Concurrency,
		MinEntityConfidence: cfg.Pipeline.MinEntityConfidence,
		Threshold:           cfg.Reconcile.Threshold,
		Reconciler:          reconciler,
		Calculator:          calc,
	})

	if opts.Store {
		st, err := initStore(ctx)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Store = st
	}

	zap.L().Info("pipeline ready",
		zap.Strings("tiers", env.Selector.Tiers()),
		zap.Bool("text_extractor", text != nil),
		zap.Bool("store", env.Store != nil),
		zap.Bool("publisher", env.Publisher != nil),
	)
	return env, nil
}
