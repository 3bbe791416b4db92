package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/vehicle-catalog/internal/cost"
	"github.com/sells-group/vehicle-catalog/internal/logring"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Reconcile  ReconcileConfig  `yaml:"reconcile" mapstructure:"reconcile"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Tiers      TiersConfig      `yaml:"tiers" mapstructure:"tiers"`
	DocumentAI DocumentAIConfig `yaml:"documentai" mapstructure:"documentai"`
	Mistral    MistralConfig    `yaml:"mistral" mapstructure:"mistral"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Pricing    cost.Rates       `yaml:"pricing" mapstructure:"pricing"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	// RingSize is the number of recent entries kept for GET /v1/logs.
	RingSize int `yaml:"ring_size" mapstructure:"ring_size"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PipelineConfig configures document fan-out.
type PipelineConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	// MaxBatchChars bounds each HTML batch produced by the scraper.
	MaxBatchChars int `yaml:"max_batch_chars" mapstructure:"max_batch_chars"`
	// MinEntityConfidence drops OCR entities below this confidence.
	MinEntityConfidence float64 `yaml:"min_entity_confidence" mapstructure:"min_entity_confidence"`
}

// ReconcileConfig configures variant and vehicle merging.
type ReconcileConfig struct {
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
	// VocabularyPath optionally overrides the built-in word lists.
	VocabularyPath string `yaml:"vocabulary_path" mapstructure:"vocabulary_path"`
}

// RetryConfig configures provider retries and circuit breaking.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelayMs      int `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
	MaxDelayMs       int `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
	TimeoutDelayMs   int `yaml:"timeout_delay_ms" mapstructure:"timeout_delay_ms"`
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// TiersConfig orders the extraction chain and sets per-tier timeouts.
type TiersConfig struct {
	// Order lists tier names from most to least preferred. Unknown or
	// unconfigured names are skipped.
	Order       []string       `yaml:"order" mapstructure:"order"`
	TimeoutSecs int            `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Timeouts    map[string]int `yaml:"timeouts" mapstructure:"timeouts"`
}

// DocumentAIConfig configures the Google Document AI OCR tier.
type DocumentAIConfig struct {
	Project         string `yaml:"project" mapstructure:"project"`
	Location        string `yaml:"location" mapstructure:"location"`
	ProcessorID     string `yaml:"processor_id" mapstructure:"processor_id"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
}

// MistralConfig configures the Mistral OCR tier.
type MistralConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	Model     string  `yaml:"model" mapstructure:"model"`
	MaxTokens int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RPS       float64 `yaml:"rps" mapstructure:"rps"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	Model     string  `yaml:"model" mapstructure:"model"`
	MaxTokens int32   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RPS       float64 `yaml:"rps" mapstructure:"rps"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// NotionConfig holds the Notion token and the catalog database.
type NotionConfig struct {
	Token     string  `yaml:"token" mapstructure:"token"`
	VehicleDB string  `yaml:"vehicle_db" mapstructure:"vehicle_db"`
	RPS       float64 `yaml:"rps" mapstructure:"rps"`
}

// FetchConfig configures PDF downloads.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RPS         float64 `yaml:"rps" mapstructure:"rps"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBytes    int64   `yaml:"max_bytes" mapstructure:"max_bytes"`
	PdfToText   string  `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.ring_size", logring.DefaultSize)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "catalog.db")
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.max_batch_chars", 12000)
	v.SetDefault("pipeline.min_entity_confidence", 0.3)
	v.SetDefault("reconcile.threshold", 0.8)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay_ms", 1000)
	v.SetDefault("retry.max_delay_ms", 30000)
	v.SetDefault("retry.timeout_delay_ms", 250)
	v.SetDefault("retry.failure_threshold", 5)
	v.SetDefault("retry.reset_timeout_secs", 30)
	v.SetDefault("tiers.order", []string{"documentai", "mistral", "claude", "gemini", "heuristic"})
	v.SetDefault("tiers.timeout_secs", 120)
	v.SetDefault("documentai.location", "eu")
	v.SetDefault("mistral.model", "mistral-ocr-latest")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 16384)
	v.SetDefault("anthropic.rps", 2.0)
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.max_tokens", 16384)
	v.SetDefault("gemini.rps", 2.0)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("notion.rps", 3.0)
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.rps", 4.0)
	v.SetDefault("fetch.user_agent", "vehicle-catalog/1.0")
	v.SetDefault("fetch.max_bytes", 64<<20)
	v.SetDefault("fetch.pdftotext_path", "pdftotext")

	// Secrets have no default but must be known to viper for env binding.
	for _, key := range []string{
		"anthropic.key", "gemini.key", "mistral.key", "jina.key",
		"notion.token", "notion.vehicle_db",
		"documentai.project", "documentai.processor_id", "documentai.credentials_file",
		"reconcile.vocabulary_path",
	} {
		v.SetDefault(key, "")
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.Pricing = withDefaultRates(cfg.Pricing)

	return &cfg, nil
}

// withDefaultRates fills every model or tier the configured rates do not
// price from cost.DefaultRates.
func withDefaultRates(r cost.Rates) cost.Rates {
	d := cost.DefaultRates()
	if r.Anthropic == nil {
		r.Anthropic = map[string]cost.ModelRate{}
	}
	for k, v := range d.Anthropic {
		if _, ok := r.Anthropic[k]; !ok {
			r.Anthropic[k] = v
		}
	}
	if r.Gemini == nil {
		r.Gemini = map[string]cost.ModelRate{}
	}
	for k, v := range d.Gemini {
		if _, ok := r.Gemini[k]; !ok {
			r.Gemini[k] = v
		}
	}
	if r.OCRPerPage == nil {
		r.OCRPerPage = map[string]float64{}
	}
	for k, v := range d.OCRPerPage {
		if _, ok := r.OCRPerPage[k]; !ok {
			r.OCRPerPage[k] = v
		}
	}
	if r.Jina.PerMTok <= 0 {
		r.Jina = d.Jina
	}
	return r
}

// Validate checks that the keys a command needs are present. mode is the
// command name: "run", "extract", "reconcile" or "serve".
func (c *Config) Validate(mode string) error {
	var missing []string
	switch mode {
	case "run", "serve":
		if c.Jina.Key == "" {
			missing = append(missing, "jina.key")
		}
		if !c.HasLLM() && !c.HasOCR() {
			missing = append(missing, "anthropic.key, gemini.key, mistral.key or documentai.processor_id")
		}
	case "extract":
		if !c.HasLLM() && !c.HasOCR() {
			missing = append(missing, "anthropic.key, gemini.key, mistral.key or documentai.processor_id")
		}
	case "reconcile":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	if c.Reconcile.Threshold <= 0 || c.Reconcile.Threshold > 1 {
		missing = append(missing, "reconcile.threshold in (0,1]")
	}
	if c.Pipeline.Concurrency <= 0 {
		missing = append(missing, "pipeline.concurrency > 0")
	}
	if len(missing) > 0 {
		return eris.Errorf("config: missing required keys for %s: %s", mode, strings.Join(missing, "; "))
	}
	return nil
}

// HasLLM reports whether at least one LLM provider is configured.
func (c *Config) HasLLM() bool {
	return c.Anthropic.Key != "" || c.Gemini.Key != ""
}

// HasOCR reports whether at least one remote OCR provider is configured.
func (c *Config) HasOCR() bool {
	return c.Mistral.Key != "" || (c.DocumentAI.Project != "" && c.DocumentAI.ProcessorID != "")
}

// InitLogger initializes the global zap logger. When ring is non-nil every
// entry is also recorded into it.
func InitLogger(cfg LogConfig, ring *logring.Ring) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	var opts []zap.Option
	if ring != nil {
		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, ring)
		}))
	}

	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
