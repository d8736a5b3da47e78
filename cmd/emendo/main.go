// Command emendo corrects the text of an Italian document through a
// staged pipeline: cache replay, local fixes, grammar-service
// suggestions, and LLM batch correction, each guarded by a quality
// gate that rolls back corrections that damage the text.
//
// The document is read as JSON (paragraphs of formatting runs), the
// corrected document is written back as JSON, and an optional JSONL
// modification log records every accepted and rolled-back change.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/emendo-dev/emendo/internal/config"
	"github.com/emendo-dev/emendo/internal/engine"
	"github.com/emendo-dev/emendo/internal/health"
	"github.com/emendo-dev/emendo/internal/observe"
	"github.com/emendo-dev/emendo/internal/report"
	"github.com/emendo-dev/emendo/internal/resilience"
	"github.com/emendo-dev/emendo/pkg/cache"
	cachememory "github.com/emendo-dev/emendo/pkg/cache/memory"
	cachepostgres "github.com/emendo-dev/emendo/pkg/cache/postgres"
	"github.com/emendo-dev/emendo/pkg/document"
	"github.com/emendo-dev/emendo/pkg/grammar/languagetool"
	"github.com/emendo-dev/emendo/pkg/llm"
	"github.com/emendo-dev/emendo/pkg/llm/anyllm"
	llmopenai "github.com/emendo-dev/emendo/pkg/llm/openai"
)

// version is stamped via -ldflags at release time.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	inPath := flag.String("in", "", "input document JSON (default: stdin)")
	outPath := flag.String("out", "", "output document JSON (default: stdout)")
	reportPath := flag.String("report", "", "append the modification log to this JSONL file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "emendo: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "emendo: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.LogLevel))
	slog.Info("emendo starting",
		"version", version,
		"config", *configPath,
		"language", cfg.Pipeline.Language,
		"log_level", cfg.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	telemetryShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "emendo",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Pipeline stages ───────────────────────────────────────────────────────
	stages, err := buildStages(ctx, cfg)
	if err != nil {
		slog.Error("failed to build pipeline stages", "err", err)
		return 1
	}
	defer stages.close()

	// ── Metrics and health endpoint (optional) ────────────────────────────────
	if cfg.Metrics.ListenAddr != "" {
		srv := health.NewServer(cfg.Metrics.ListenAddr, stages.checkers...)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "err", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		slog.Info("metrics endpoint listening", "addr", cfg.Metrics.ListenAddr)
	}

	// ── Process the document ──────────────────────────────────────────────────
	doc, err := readDocument(*inPath)
	if err != nil {
		slog.Error("failed to read document", "err", err)
		return 1
	}

	e := engine.New(cfg.Pipeline, stages.options...)
	summary, err := e.ProcessDocument(ctx, doc)
	if err != nil {
		slog.Error("processing aborted", "err", err)
		return 1
	}

	if err := writeDocument(*outPath, doc); err != nil {
		slog.Error("failed to write document", "err", err)
		return 1
	}

	if *reportPath != "" {
		if err := report.NewFileStore(*reportPath).WriteAll(e.Log()); err != nil {
			slog.Warn("failed to write modification log", "path", *reportPath, "err", err)
		}
	}

	slog.Info("document processed",
		"paragraphs", summary.Paragraphs,
		"accepted", summary.Accepted,
		"rolled_back", summary.RolledBack,
		"unchanged", summary.Unchanged,
		"cache_hits", summary.CacheHits,
		"degraded_services", summary.DegradedServices,
	)
	return 0
}

// pipelineStages bundles the optional stage backends built from config.
type pipelineStages struct {
	options  []engine.Option
	checkers []health.Checker
	closers  []func() error
}

func (s *pipelineStages) close() {
	for _, fn := range s.closers {
		if err := fn(); err != nil {
			slog.Warn("stage shutdown error", "err", err)
		}
	}
}

// buildStages instantiates the cache backend, grammar client, and LLM
// provider named in cfg. Missing configuration disables a stage rather
// than failing startup.
func buildStages(ctx context.Context, cfg *config.Config) (*pipelineStages, error) {
	s := &pipelineStages{}

	// ── Cache ─────────────────────────────────────────────────────────────────
	store, err := buildCache(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("cache backend: %w", err)
	}
	s.options = append(s.options, engine.WithCache(store, cfg.Cache.SimilarityThreshold))
	s.closers = append(s.closers, store.Close)
	if pg, ok := store.(*cachepostgres.Store); ok {
		s.checkers = append(s.checkers, health.Checker{Name: "cache", Check: pg.Ping})
		slog.Info("cache backend ready", "kind", "postgres", "ttl_hours", cfg.Cache.TTLHours)
	} else {
		slog.Info("cache backend ready", "kind", "memory", "ttl_hours", cfg.Cache.TTLHours)
	}

	// ── Grammar service ───────────────────────────────────────────────────────
	if cfg.Grammar.Endpoint != "" {
		timeout := time.Duration(cfg.Grammar.TimeoutSeconds) * time.Second
		lt, err := languagetool.New(cfg.Grammar.Endpoint, languagetool.WithTimeout(timeout))
		if err != nil {
			return nil, fmt.Errorf("grammar service: %w", err)
		}
		s.options = append(s.options, engine.WithGrammar(lt, cfg.Grammar.TrustedRules))
		s.checkers = append(s.checkers, health.Checker{
			Name: "grammar",
			Check: func(ctx context.Context) error {
				_, err := lt.Check(ctx, "ok", cfg.Pipeline.Language)
				return err
			},
		})
		slog.Info("grammar service configured", "endpoint", cfg.Grammar.Endpoint)
	}

	// ── LLM provider ──────────────────────────────────────────────────────────
	if cfg.LLM.Provider != "" {
		p, err := buildLLM(cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("llm provider %q: %w", cfg.LLM.Provider, err)
		}
		guarded := resilience.NewProvider(p, resilience.ProviderConfig{
			Breaker: resilience.BreakerConfig{Name: "llm"},
		})
		s.options = append(s.options, engine.WithLLM(guarded, cfg.LLM.Temperature, cfg.LLM.MaxTokens))
		slog.Info("llm provider configured", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	}

	return s, nil
}

// buildCache selects the PostgreSQL backend when a DSN is configured
// and the in-process backend otherwise.
func buildCache(ctx context.Context, cfg config.CacheConfig) (cache.Store, error) {
	ttl := time.Duration(cfg.TTLHours) * time.Hour
	if cfg.PostgresDSN != "" {
		return cachepostgres.NewStore(ctx, cfg.PostgresDSN, ttl)
	}
	return cachememory.New(
		cachememory.WithTTL(ttl),
		cachememory.WithMaxEntries(cfg.MaxEntries),
	), nil
}

// buildLLM maps the configured provider name to a backend. "openai"
// uses the native client; every other name goes through the any-llm
// multi-provider bridge.
func buildLLM(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "openai":
		var opts []llmopenai.Option
		if cfg.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(cfg.BaseURL))
		}
		return llmopenai.New(cfg.APIKey, cfg.Model, opts...)
	case "ollama":
		var opts []anyllmlib.Option
		if cfg.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
		}
		return anyllm.NewOllama(cfg.Model, opts...)
	default:
		var opts []anyllmlib.Option
		if cfg.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
		}
		return anyllm.New(cfg.Provider, cfg.Model, opts...)
	}
}

// ── Document I/O ──────────────────────────────────────────────────────────────

func readDocument(path string) (*document.Document, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var doc document.Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}

func writeDocument(path string, doc *document.Document) error {
	var w io.Writer = os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
