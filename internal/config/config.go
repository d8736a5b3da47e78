// Package config provides the configuration schema and loader for the
// emendo correction pipeline.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded
// from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	LogLevel LogLevel       `yaml:"log_level"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Cache    CacheConfig    `yaml:"cache"`
	Grammar  GrammarConfig  `yaml:"grammar"`
	LLM      LLMConfig      `yaml:"llm"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// PipelineConfig tunes correction behaviour.
type PipelineConfig struct {
	// Language is the BCP 47 document language (e.g., "it").
	Language string `yaml:"language"`

	// QualityThreshold is the minimum overall score a correction must
	// reach to be accepted. Must lie in (0, 1]; an explicit zero is
	// indistinguishable from an absent key and takes the default.
	QualityThreshold float64 `yaml:"quality_threshold"`

	// TokenLossVeto is the fraction of word tokens a correction may
	// lose before it is vetoed outright when it also drops sentences.
	TokenLossVeto float64 `yaml:"token_loss_veto"`

	// MaxChunkUnits caps how many paragraphs go into one LLM batch.
	MaxChunkUnits int `yaml:"max_chunk_units"`

	// MaxChunkTokens caps the estimated token size of one LLM batch.
	MaxChunkTokens int `yaml:"max_chunk_tokens"`

	// MaxConcurrentChunks bounds chunk-level parallelism. Zero means
	// one less than the number of CPUs, floored at one.
	MaxConcurrentChunks int `yaml:"max_concurrent_chunks"`

	// MinSuccessRate is the fraction of paragraphs that must be
	// processed without stage failure before the run is reported as
	// degraded. Must lie in (0, 1]; an explicit zero is
	// indistinguishable from an absent key and takes the default.
	MinSuccessRate float64 `yaml:"min_success_rate"`

	// GlossaryMinOccurrences is the number of sightings a proper noun
	// needs before it is included in LLM prompts.
	GlossaryMinOccurrences int `yaml:"glossary_min_occurrences"`

	// LocalFixes maps misspellings to replacements applied by the
	// local stage before any external service is consulted.
	LocalFixes map[string]string `yaml:"local_fixes"`
}

// CacheConfig selects and tunes the correction cache.
type CacheConfig struct {
	// PostgresDSN enables the shared PostgreSQL cache backend. When
	// empty, an in-process cache is used.
	PostgresDSN string `yaml:"postgres_dsn"`

	// TTLHours bounds entry lifetime. Zero falls back to 24.
	TTLHours int `yaml:"ttl_hours"`

	// SimilarityThreshold is the minimum Jaro-Winkler similarity for a
	// near-match cache hit. Zero falls back to 0.95.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// MaxEntries caps the in-process cache size.
	MaxEntries int `yaml:"max_entries"`
}

// GrammarConfig configures the external grammar service stage.
type GrammarConfig struct {
	// Endpoint is the LanguageTool server base URL. Empty disables the
	// grammar stage.
	Endpoint string `yaml:"endpoint"`

	// TimeoutSeconds bounds each check request. Zero falls back to 10.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// TrustedRules lists rule IDs whose first replacement is applied
	// even when a rule offers several alternatives.
	TrustedRules []string `yaml:"trusted_rules"`
}

// LLMConfig selects the LLM backend for the batch correction stage.
type LLMConfig struct {
	// Provider is the backend name: "openai" for the native OpenAI
	// client, or any name supported by the any-llm multi-provider
	// bridge ("anthropic", "ollama", "gemini", ...). Empty disables
	// the LLM stage.
	Provider string `yaml:"provider"`

	// Model is the model identifier (e.g., "gpt-4o-mini").
	Model string `yaml:"model"`

	// APIKey authenticates against the backend. When empty, provider
	// specific environment variables are consulted.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Temperature for correction prompts. Corrections want low values;
	// zero requests the provider default.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps each batch completion. Zero means provider default.
	MaxTokens int `yaml:"max_tokens"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	// ListenAddr is the address the /metrics endpoint binds to.
	// Empty disables the endpoint.
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns a Config with the values used when a field is absent
// from the YAML file.
func Default() *Config {
	return &Config{
		LogLevel: LogInfo,
		Pipeline: PipelineConfig{
			Language:               "it",
			QualityThreshold:       0.85,
			TokenLossVeto:          0.15,
			MaxChunkUnits:          5,
			MaxChunkTokens:         3000,
			MinSuccessRate:         0.8,
			GlossaryMinOccurrences: 2,
		},
		Cache: CacheConfig{
			TTLHours:            24,
			SimilarityThreshold: 0.95,
			MaxEntries:          10000,
		},
		Grammar: GrammarConfig{
			TimeoutSeconds: 10,
		},
	}
}
