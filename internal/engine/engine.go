package engine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/emendo-dev/emendo/internal/config"
	"github.com/emendo-dev/emendo/internal/glossary"
	"github.com/emendo-dev/emendo/internal/observe"
	"github.com/emendo-dev/emendo/internal/quality"
	"github.com/emendo-dev/emendo/internal/report"
	"github.com/emendo-dev/emendo/internal/runmap"
	"github.com/emendo-dev/emendo/internal/safecorrect"
	"github.com/emendo-dev/emendo/pkg/cache"
	"github.com/emendo-dev/emendo/pkg/document"
	"github.com/emendo-dev/emendo/pkg/grammar"
	"github.com/emendo-dev/emendo/pkg/llm"
)

// Engine runs the correction pipeline over documents. Construct with
// [New]; a zero Engine is not usable. Safe for concurrent use, though a
// single document is only processed by one ProcessDocument call.
type Engine struct {
	cfg       config.PipelineConfig
	corrector *safecorrect.Corrector
	gloss     *glossary.Glossary
	log       *report.Log
	metrics   *observe.Metrics

	store      cache.Store
	similarity float64

	grammarSvc   grammar.Service
	trustedRules map[string]bool
	grammarDown  atomic.Bool

	provider    llm.Provider
	temperature float64
	maxTokens   int
	estimate    tokenEstimator
}

// Option is a functional option for [New].
type Option func(*Engine)

// WithCache enables the correction cache. similarityThreshold is the
// minimum Jaro-Winkler similarity for near-match hits.
func WithCache(store cache.Store, similarityThreshold float64) Option {
	return func(e *Engine) {
		e.store = store
		e.similarity = similarityThreshold
	}
}

// WithGrammar enables the grammar-service stage. trustedRules lists
// rule IDs applied even when a rule offers several replacements.
func WithGrammar(svc grammar.Service, trustedRules []string) Option {
	return func(e *Engine) {
		e.grammarSvc = svc
		e.trustedRules = make(map[string]bool, len(trustedRules))
		for _, r := range trustedRules {
			e.trustedRules[r] = true
		}
	}
}

// WithLLM enables the LLM batch stage.
func WithLLM(p llm.Provider, temperature float64, maxTokens int) Option {
	return func(e *Engine) {
		e.provider = p
		e.temperature = temperature
		e.maxTokens = maxTokens
		e.estimate = func(text string) int {
			n, err := p.CountTokens([]llm.Message{{Role: "user", Content: text}})
			if err != nil {
				return defaultEstimator(text)
			}
			return n
		}
	}
}

// WithMetrics overrides the default metrics instance. Tests use this to
// avoid cross-test pollution.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLog replaces the modification log, letting callers share one log
// across several documents.
func WithLog(l *report.Log) Option {
	return func(e *Engine) { e.log = l }
}

// New builds an Engine from validated pipeline configuration. Stages
// without a corresponding option (cache, grammar, LLM) are skipped at
// run time; the local stage always runs.
func New(cfg config.PipelineConfig, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		corrector: safecorrect.New(quality.NewScorer(), cfg.QualityThreshold, cfg.TokenLossVeto),
		gloss:     glossary.New(),
		log:       report.NewLog(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// Log returns the modification log accumulated so far.
func (e *Engine) Log() *report.Log { return e.log }

// Glossary returns the session glossary, populated during processing.
func (e *Engine) Glossary() *glossary.Glossary { return e.gloss }

// ProcessDocument corrects doc in place. Paragraphs are grouped into
// chunks processed concurrently; within a chunk the cheap stages run
// per paragraph and the LLM stage runs once for the whole batch.
// The returned summary covers this call's paragraphs.
//
// The only error returned is context cancellation; stage failures
// degrade the run and are reflected in the summary instead.
func (e *Engine) ProcessDocument(ctx context.Context, doc *document.Document) (report.Summary, error) {
	ctx, span := observe.StartSpan(ctx, "engine.process_document")
	defer span.End()

	units := e.collectUnits(doc)

	// Names seen anywhere in the document inform every chunk's prompt.
	for _, u := range units {
		e.gloss.Observe(u.text)
	}

	chunks := makeChunks(units, e.cfg.MaxChunkUnits, e.cfg.MaxChunkTokens, e.estimate)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency())
	for _, c := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e.processChunk(gctx, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return e.log.Summarize(len(doc.Paragraphs)), err
	}

	e.checkSuccessRate(units)
	return e.log.Summarize(len(doc.Paragraphs)), nil
}

// collectUnits returns one unit per non-empty paragraph.
func (e *Engine) collectUnits(doc *document.Document) []*unit {
	var units []*unit
	for i, p := range doc.Paragraphs {
		text := p.Text()
		if strings.TrimSpace(text) == "" {
			e.log.RecordUnchanged()
			continue
		}
		units = append(units, &unit{index: i, para: p, text: text})
	}
	return units
}

func (e *Engine) concurrency() int {
	if e.cfg.MaxConcurrentChunks > 0 {
		return e.cfg.MaxConcurrentChunks
	}
	if n := runtime.NumCPU() - 1; n > 1 {
		return n
	}
	return 1
}

func (e *Engine) processChunk(ctx context.Context, c *chunk) {
	ctx, span := observe.StartSpan(ctx, "engine.chunk")
	defer span.End()

	e.metrics.ActiveChunks.Add(ctx, 1)
	defer e.metrics.ActiveChunks.Add(ctx, -1)

	for _, u := range c.units {
		e.cacheStage(ctx, u)
		if u.done {
			continue
		}
		e.localStage(ctx, u)
		e.grammarStage(ctx, u)
	}
	e.llmStage(ctx, c)
	e.finalize(ctx, c)
}

// textSpan adapts a unit's working text to the safe corrector.
type textSpan struct{ u *unit }

func (s textSpan) Text() string        { return s.u.text }
func (s textSpan) SetText(text string) { s.u.text = text }

// cacheStage replays a cached correction when one exists. A hit that
// passes the gate (or proposes no change) finishes the paragraph; a
// stale hit that fails the gate falls through to the regular stages.
func (e *Engine) cacheStage(ctx context.Context, u *unit) {
	if e.store == nil {
		return
	}
	defer e.timeStage(ctx, StageCache)()

	entry, err := e.store.Get(ctx, cache.Key(u.text))
	if err != nil {
		observe.Logger(ctx).Warn("cache lookup failed", "paragraph", u.index, "err", err)
		return
	}
	kind := "exact"
	if entry == nil {
		entry, err = e.store.Similar(ctx, u.text, e.similarity)
		if err != nil {
			observe.Logger(ctx).Warn("cache similarity lookup failed", "paragraph", u.index, "err", err)
			return
		}
		kind = "similar"
	}
	if entry == nil {
		e.metrics.CacheMisses.Add(ctx, 1)
		return
	}

	corrected := entry.Corrected
	att := e.corrector.Apply(textSpan{u}, func(string) (string, error) {
		return corrected, nil
	}, StageCache)

	e.log.RecordCacheHit()
	e.metrics.RecordCacheHit(ctx, kind)
	e.recordAttempt(ctx, u, att)

	if att.Applied || att.RollbackReason == safecorrect.ReasonNoChange {
		u.done = true
	}
}

// localStage applies the misspelling dictionary and mechanical
// normalisations. Always cheap, always attempted.
func (e *Engine) localStage(ctx context.Context, u *unit) {
	defer e.timeStage(ctx, StageLocal)()

	fixes := e.cfg.LocalFixes
	att := e.corrector.Apply(textSpan{u}, func(text string) (string, error) {
		return localFix(text, fixes), nil
	}, StageLocal)
	e.recordAttempt(ctx, u, att)
}

// grammarStage consults the grammar service and applies the trusted
// subset of its suggestions as one aggregate correction. An unreachable
// service degrades the run once and is not retried.
func (e *Engine) grammarStage(ctx context.Context, u *unit) {
	if e.grammarSvc == nil || e.grammarDown.Load() {
		return
	}
	defer e.timeStage(ctx, StageGrammar)()

	suggestions, err := e.grammarSvc.Check(ctx, u.text, e.cfg.Language)
	if err != nil {
		if errors.Is(err, grammar.ErrServiceUnavailable) {
			if e.grammarDown.CompareAndSwap(false, true) {
				observe.Logger(ctx).Warn("grammar service unavailable, continuing without it", "err", err)
				e.metrics.RecordDegradation(ctx, StageGrammar)
				e.log.RecordDegradation()
			}
			return
		}
		observe.Logger(ctx).Warn("grammar check failed", "paragraph", u.index, "err", err)
		return
	}
	if len(suggestions) == 0 {
		return
	}

	trusted := e.trustedRules
	att := e.corrector.Apply(textSpan{u}, func(text string) (string, error) {
		return applySuggestions(text, suggestions, trusted), nil
	}, StageGrammar)
	e.recordAttempt(ctx, u, att)
}

// batchTimeout bounds one LLM batch call so a hung backend degrades
// the chunk instead of stalling the run.
const batchTimeout = 2 * time.Minute

// llmStage sends the chunk's remaining paragraphs to the model as one
// batch, then gates each returned segment individually. Only units the
// cheap stages left effectively untouched are sent; a paragraph that
// local fixes or grammar suggestions already corrected is considered
// handled.
func (e *Engine) llmStage(ctx context.Context, c *chunk) {
	if e.provider == nil {
		return
	}
	var pending []*unit
	for _, u := range c.units {
		if u.done {
			continue
		}
		if cache.Normalize(u.text) != cache.Normalize(u.para.Text()) {
			continue
		}
		pending = append(pending, u)
	}
	if len(pending) == 0 {
		return
	}
	defer e.timeStage(ctx, StageLLM)()

	texts := make([]string, len(pending))
	for i, u := range pending {
		texts[i] = u.text
	}

	req, err := buildBatchPrompt(texts, e.gloss.Established(e.cfg.GlossaryMinOccurrences))
	if err != nil {
		observe.Logger(ctx).Warn("llm batch prompt build failed", "err", err)
		return
	}
	req.Temperature = e.temperature
	req.MaxTokens = e.maxTokens

	callCtx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()
	resp, err := e.provider.Complete(callCtx, req)
	if err != nil {
		observe.Logger(ctx).Warn("llm batch failed, leaving chunk unchanged", "units", len(pending), "err", err)
		e.metrics.RecordDegradation(ctx, StageLLM)
		e.log.RecordDegradation()
		for _, u := range pending {
			u.failed = true
		}
		return
	}

	outputs, err := parseBatchResponse(resp.Content, texts)
	if err != nil {
		observe.Logger(ctx).Warn("llm batch response unparseable, leaving chunk unchanged", "err", err)
		e.metrics.RecordDegradation(ctx, StageLLM)
		e.log.RecordDegradation()
		for _, u := range pending {
			u.failed = true
		}
		return
	}

	for i, u := range pending {
		corrected := outputs[i]
		att := e.corrector.Apply(textSpan{u}, func(string) (string, error) {
			return corrected, nil
		}, StageLLM)
		e.recordAttempt(ctx, u, att)
	}
}

// finalize writes each changed paragraph's correction back to the
// cache, redistributes its text over the formatting runs, and merges
// what redistribution fragmented. Cache replays are not re-written.
func (e *Engine) finalize(ctx context.Context, c *chunk) {
	for _, u := range c.units {
		if u.text == u.para.Text() {
			e.log.RecordUnchanged()
			continue
		}
		if e.store != nil && u.stage != "" && u.stage != StageCache {
			entry := &cache.Entry{
				Original:  u.para.Text(),
				Corrected: u.text,
				Quality:   u.quality,
				Type:      u.stage,
			}
			if err := e.store.Put(ctx, entry); err != nil {
				observe.Logger(ctx).Warn("cache put failed", "paragraph", u.index, "err", err)
			}
		}
		e.gloss.Observe(u.text)
		if err := runmap.Apply(u.para, u.text); err != nil {
			if errors.Is(err, runmap.ErrNoRuns) {
				u.para.SetText(u.text)
			} else {
				observe.Logger(ctx).Warn("run redistribution failed, paragraph left unchanged",
					"paragraph", u.index, "err", err)
				continue
			}
		}
		u.para.Consolidate()
	}
}

// recordAttempt logs and counts one gate decision. No-change proposals
// are not modifications and stay out of the log.
func (e *Engine) recordAttempt(ctx context.Context, u *unit, att safecorrect.Attempt) {
	if att.RollbackReason == safecorrect.ReasonNoChange {
		return
	}
	e.log.Record(report.Entry{
		Paragraph:      u.index,
		Stage:          att.Label,
		Original:       att.Original,
		Corrected:      att.Proposed,
		Applied:        att.Applied,
		Quality:        att.Quality.Overall,
		RollbackReason: att.RollbackReason,
	})
	if att.Applied {
		u.stage = att.Label
		u.quality = att.Quality.Overall
		e.metrics.RecordAccepted(ctx, att.Label)
	} else {
		e.metrics.RecordRolledBack(ctx, att.Label, reasonLabel(att.RollbackReason))
	}
}

// reasonLabel trims the variable tail off a rollback reason so metric
// label cardinality stays bounded.
func reasonLabel(reason string) string {
	if i := strings.IndexByte(reason, ':'); i >= 0 {
		return reason[:i]
	}
	return reason
}

// timeStage returns a func recording the elapsed time for stage.
func (e *Engine) timeStage(ctx context.Context, stage string) func() {
	start := time.Now()
	return func() {
		e.metrics.StageDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(observe.Attr("stage", stage)),
		)
	}
}

// checkSuccessRate warns when too many paragraphs hit a stage failure.
func (e *Engine) checkSuccessRate(units []*unit) {
	if len(units) == 0 {
		return
	}
	failed := 0
	for _, u := range units {
		if u.failed {
			failed++
		}
	}
	rate := 1 - float64(failed)/float64(len(units))
	if rate < e.cfg.MinSuccessRate {
		slog.Warn("correction run degraded below minimum success rate",
			"rate", rate, "min", e.cfg.MinSuccessRate, "failed", failed, "units", len(units))
	}
}
