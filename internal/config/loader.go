package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidLLMProviders lists known LLM backend names. Used by [Validate]
// to warn about unrecognised provider names.
var ValidLLMProviders = []string{
	"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a
// validated [Config]. It is a convenience wrapper around
// [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills in defaults, and
// validates the result. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults restores defaults for fields the YAML left at zero.
// Decoding into Default() covers absent sections; this covers fields
// explicitly set to zero inside a present section.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.Pipeline.Language == "" {
		cfg.Pipeline.Language = def.Pipeline.Language
	}
	if cfg.Pipeline.QualityThreshold == 0 {
		cfg.Pipeline.QualityThreshold = def.Pipeline.QualityThreshold
	}
	if cfg.Pipeline.TokenLossVeto == 0 {
		cfg.Pipeline.TokenLossVeto = def.Pipeline.TokenLossVeto
	}
	if cfg.Pipeline.MaxChunkUnits == 0 {
		cfg.Pipeline.MaxChunkUnits = def.Pipeline.MaxChunkUnits
	}
	if cfg.Pipeline.MaxChunkTokens == 0 {
		cfg.Pipeline.MaxChunkTokens = def.Pipeline.MaxChunkTokens
	}
	if cfg.Pipeline.MinSuccessRate == 0 {
		cfg.Pipeline.MinSuccessRate = def.Pipeline.MinSuccessRate
	}
	if cfg.Pipeline.GlossaryMinOccurrences == 0 {
		cfg.Pipeline.GlossaryMinOccurrences = def.Pipeline.GlossaryMinOccurrences
	}
	if cfg.Cache.TTLHours == 0 {
		cfg.Cache.TTLHours = def.Cache.TTLHours
	}
	if cfg.Cache.SimilarityThreshold == 0 {
		cfg.Cache.SimilarityThreshold = def.Cache.SimilarityThreshold
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = def.Cache.MaxEntries
	}
	if cfg.Grammar.TimeoutSeconds == 0 {
		cfg.Grammar.TimeoutSeconds = def.Grammar.TimeoutSeconds
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Pipeline.QualityThreshold < 0 || cfg.Pipeline.QualityThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.quality_threshold %.2f is out of range [0, 1]", cfg.Pipeline.QualityThreshold))
	}
	if cfg.Pipeline.TokenLossVeto < 0 || cfg.Pipeline.TokenLossVeto > 1 {
		errs = append(errs, fmt.Errorf("pipeline.token_loss_veto %.2f is out of range [0, 1]", cfg.Pipeline.TokenLossVeto))
	}
	if cfg.Pipeline.MaxChunkUnits <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_chunk_units must be positive, got %d", cfg.Pipeline.MaxChunkUnits))
	}
	if cfg.Pipeline.MaxChunkTokens <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_chunk_tokens must be positive, got %d", cfg.Pipeline.MaxChunkTokens))
	}
	if cfg.Pipeline.MinSuccessRate < 0 || cfg.Pipeline.MinSuccessRate > 1 {
		errs = append(errs, fmt.Errorf("pipeline.min_success_rate %.2f is out of range [0, 1]", cfg.Pipeline.MinSuccessRate))
	}
	if cfg.Cache.SimilarityThreshold < 0 || cfg.Cache.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("cache.similarity_threshold %.2f is out of range [0, 1]", cfg.Cache.SimilarityThreshold))
	}

	if cfg.LLM.Provider != "" {
		if !slices.Contains(ValidLLMProviders, cfg.LLM.Provider) {
			slog.Warn("unknown llm provider name — may be a typo or third-party provider",
				"name", cfg.LLM.Provider,
				"known", ValidLLMProviders,
			)
		}
		if cfg.LLM.Model == "" {
			errs = append(errs, errors.New("llm.model is required when llm.provider is set"))
		}
	}

	if cfg.LLM.Provider == "" && cfg.Grammar.Endpoint == "" {
		slog.Warn("neither llm.provider nor grammar.endpoint configured; only local fixes will be applied")
	}

	return errors.Join(errs...)
}
