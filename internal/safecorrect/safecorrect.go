// Package safecorrect implements the rollback-capable gate through
// which every correction (local fix, grammar-service pass, LLM batch,
// or cache replay) must pass before it may touch a document span.
//
// The gate is a one-step state machine: a correction attempt starts
// Pending and terminates as either Accepted (the span is mutated) or
// RolledBack (the span is untouched). There is no retry loop here;
// retries belong to the orchestrator. A span is never left partially
// mutated: either the full replacement happens or nothing changes.
package safecorrect

import (
	"fmt"
	"strings"

	"github.com/emendo-dev/emendo/internal/quality"
	"github.com/emendo-dev/emendo/internal/token"
)

// State is the terminal state of a correction attempt.
type State string

const (
	StateAccepted   State = "accepted"
	StateRolledBack State = "rolled_back"
)

// Well-known rollback reasons. "no change" is a no-op, not a failure,
// and callers must be able to tell it apart from genuine rejection.
const (
	ReasonNoChange     = "no change"
	ReasonFuncFailed   = "function execution failed"
	ReasonBelowQuality = "quality below threshold"
	ReasonContentVeto  = "content-loss veto"
)

// Span is a mutable text region, typically backed by a document
// paragraph. Implementations of SetText must apply the full replacement
// atomically with respect to Text.
type Span interface {
	Text() string
	SetText(text string)
}

// Attempt records the outcome of one correction proposal. It is
// ephemeral: produced per call, consumed by the caller for its
// accept/log decision, not retained here.
type Attempt struct {
	State          State
	Original       string
	Proposed       string
	Quality        quality.Score
	Applied        bool
	RollbackReason string
	Label          string
}

// Corrector gates corrections behind a quality threshold and an
// independent content-loss veto. Read-only after construction; safe for
// concurrent use.
type Corrector struct {
	scorer        *quality.Scorer
	threshold     float64
	tokenLossVeto float64
}

// New returns a Corrector that accepts corrections scoring at least
// threshold and vetoes any correction losing more than tokenLossVeto of
// the original's word tokens while also reducing the sentence count.
func New(scorer *quality.Scorer, threshold, tokenLossVeto float64) *Corrector {
	return &Corrector{
		scorer:        scorer,
		threshold:     threshold,
		tokenLossVeto: tokenLossVeto,
	}
}

// Apply invokes fn on the span's current text and applies the result
// only when it passes both gates. Errors and panics from fn are
// contained: they surface as a rollback reason, never to the caller.
// label tags the attempt for logs (e.g. "local", "grammar", "llm").
func (c *Corrector) Apply(span Span, fn func(string) (string, error), label string) Attempt {
	original := span.Text()
	attempt := Attempt{
		State:    StateRolledBack,
		Original: original,
		Label:    label,
	}

	proposed, err := invoke(fn, original)
	if err != nil {
		attempt.RollbackReason = fmt.Sprintf("%s: %v", ReasonFuncFailed, err)
		return attempt
	}
	attempt.Proposed = proposed

	if proposed == original {
		attempt.RollbackReason = ReasonNoChange
		return attempt
	}

	attempt.Quality = c.scorer.Score(original, proposed)

	// The content-loss veto is independent of the numeric score: a
	// correction that silently drops whole clauses can still score
	// acceptably on character similarity.
	if c.lossVetoed(original, proposed) {
		attempt.RollbackReason = fmt.Sprintf(
			"%s: lost over %.0f%% of tokens with fewer sentences",
			ReasonContentVeto, c.tokenLossVeto*100,
		)
		return attempt
	}

	if attempt.Quality.Overall < c.threshold {
		attempt.RollbackReason = fmt.Sprintf(
			"%s: %.3f < %.3f", ReasonBelowQuality, attempt.Quality.Overall, c.threshold,
		)
		return attempt
	}

	span.SetText(proposed)
	attempt.State = StateAccepted
	attempt.Applied = true
	return attempt
}

// invoke runs fn with panic containment.
func invoke(fn func(string) (string, error), text string) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(text)
}

// lossVetoed reports whether proposed loses more than the configured
// fraction of original word tokens AND ends up with strictly fewer
// sentences.
func (c *Corrector) lossVetoed(original, proposed string) bool {
	origWords := token.Words(original)
	if len(origWords) == 0 {
		return false
	}
	propSet := make(map[string]bool)
	for _, w := range token.Words(proposed) {
		propSet[strings.ToLower(w.Text)] = true
	}
	lost := 0
	for _, w := range origWords {
		if !propSet[strings.ToLower(w.Text)] {
			lost++
		}
	}
	lossFrac := float64(lost) / float64(len(origWords))
	if lossFrac <= c.tokenLossVeto {
		return false
	}
	return sentenceCount(proposed) < sentenceCount(original)
}

// sentenceCount counts runs of sentence terminators, so an ellipsis
// counts once.
func sentenceCount(text string) int {
	n := 0
	inTerm := false
	for _, r := range text {
		switch r {
		case '.', '!', '?', '…':
			if !inTerm {
				n++
				inTerm = true
			}
		default:
			inTerm = false
		}
	}
	return n
}

