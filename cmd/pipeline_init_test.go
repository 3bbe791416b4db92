//go:build !integration

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vehicle-catalog/internal/config"
	"github.com/sells-group/vehicle-catalog/internal/cost"
)

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "catalog.db"),
		},
		Pipeline:  config.PipelineConfig{Concurrency: 2, MaxBatchChars: 4000},
		Reconcile: config.ReconcileConfig{Threshold: 0.8},
		Tiers:     config.TiersConfig{Order: []string{"heuristic"}, TimeoutSecs: 5},
		Fetch:     config.FetchConfig{TimeoutSecs: 5, RPS: 2, PdfToText: "pdftotext"},
		Jina:      config.JinaConfig{Key: "jina-key", BaseURL: "https://r.jina.ai"},
		Anthropic: config.AnthropicConfig{Key: "test-key", Model: "claude-haiku-4-5-20251001", MaxTokens: 1024},
		Pricing:   cost.DefaultRates(),
	}
}

func TestCatalogEnv_Close_Nil(t *testing.T) {
	env := &catalogEnv{}
	assert.NotPanics(t, func() {
		env.Close()
	})
}

func TestCatalogEnv_Close_RunsClosers(t *testing.T) {
	closed := 0
	env := &catalogEnv{closers: []func() error{
		func() error { closed++; return nil },
		func() error { closed++; return nil },
	}}
	env.Close()
	assert.Equal(t, 2, closed)
}

func TestInitStore_SQLite(t *testing.T) {
	cfg = baseConfig(t)
	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

func TestInitStore_UnknownDriver(t *testing.T) {
	cfg = baseConfig(t)
	cfg.Store.Driver = "mysql"
	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestBuildTiers_Order(t *testing.T) {
	c := baseConfig(t)
	c.Tiers.Order = []string{"documentai", "mistral", "claude", "heuristic", "carrier-pigeon"}
	c.Mistral = config.MistralConfig{Key: "m-key", Model: "mistral-ocr-latest"}

	set, err := buildTiers(context.Background(), c, cost.NewCalculator(c.Pricing))
	require.NoError(t, err)

	names := make([]string, len(set.tiers))
	for i, tier := range set.tiers {
		names[i] = tier.Name()
	}
	assert.Equal(t, []string{"mistral", "claude", "heuristic"}, names)
	require.NotNil(t, set.text)
	assert.Equal(t, "claude", set.text.Name())
}

func TestBuildTiers_NoneConfigured(t *testing.T) {
	c := baseConfig(t)
	c.Tiers.Order = []string{"claude", "gemini"}
	c.Anthropic.Key = ""

	_, err := buildTiers(context.Background(), c, cost.NewCalculator(c.Pricing))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no extraction tier configured")
}

func TestDocumentAITokens_MissingCredentialsFile(t *testing.T) {
	_, err := documentAITokens(context.Background(), config.DocumentAIConfig{
		CredentialsFile: filepath.Join(t.TempDir(), "missing.json"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read documentai credentials")
}

func TestLimiter(t *testing.T) {
	assert.Nil(t, limiter(0))
	l := limiter(2)
	require.NotNil(t, l)
	assert.InDelta(t, 2.0, float64(l.Limit()), 1e-9)
}

func TestNewSelector_Timeouts(t *testing.T) {
	c := baseConfig(t)
	c.Tiers.Timeouts = map[string]int{"heuristic": 3}
	set, err := buildTiers(context.Background(), c, cost.NewCalculator(c.Pricing))
	require.NoError(t, err)

	sel := newSelector(c, set.tiers, cost.NewCalculator(c.Pricing))
	assert.Equal(t, []string{"heuristic"}, sel.Tiers())
}

func TestNewReconciler(t *testing.T) {
	c := baseConfig(t)
	r, err := newReconciler(c)
	require.NoError(t, err)
	assert.NotNil(t, r)

	c.Reconcile.VocabularyPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = newReconciler(c)
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trims:\n  - signature\n"), 0o644))
	c.Reconcile.VocabularyPath = path
	r, err = newReconciler(c)
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestNewPublisher(t *testing.T) {
	c := baseConfig(t)
	assert.Nil(t, newPublisher(c))

	c.Notion = config.NotionConfig{Token: "secret", VehicleDB: "db-id", RPS: 3}
	assert.NotNil(t, newPublisher(c))
}

func TestNewScraper(t *testing.T) {
	c := baseConfig(t)
	assert.NotNil(t, newScraper(c))

	c.Jina.Key = ""
	assert.NotNil(t, newScraper(c))
}

func TestInitPipeline_FailsValidation(t *testing.T) {
	cfg = baseConfig(t)
	cfg.Jina.Key = ""

	env, err := initPipeline(context.Background(), envOptions{Mode: "run"})
	assert.Nil(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: validation failed")
}

func TestInitPipeline_WithStore(t *testing.T) {
	cfg = baseConfig(t)

	env, err := initPipeline(context.Background(), envOptions{Mode: "run", Store: true})
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Pipeline)
	assert.NotNil(t, env.Fetcher)
	assert.NotNil(t, env.Store)
	assert.Nil(t, env.Publisher)
	assert.Equal(t, []string{"heuristic"}, env.Selector.Tiers())
}

func TestInitPipeline_BadStoreDriver(t *testing.T) {
	cfg = baseConfig(t)
	cfg.Store.Driver = "oracle"

	env, err := initPipeline(context.Background(), envOptions{Mode: "extract", Store: true})
	assert.Nil(t, env)
	require.Error(t, err)
}
