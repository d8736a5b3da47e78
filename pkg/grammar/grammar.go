// Package grammar defines the contract for external grammar checkers.
//
// A grammar service inspects text and returns offset-addressed
// suggestions; it never mutates text itself. The [languagetool]
// subpackage implements the contract against a LanguageTool server and
// [mock] provides a test double.
package grammar

import (
	"context"
	"errors"
)

// ErrServiceUnavailable signals that the backing service could not be
// reached. The pipeline treats it as a degradation, not a failure: the
// grammar stage is skipped and later stages still run.
var ErrServiceUnavailable = errors.New("grammar: service unavailable")

// Suggestion is one finding in a checked text. Offset and Length are
// byte positions into the checked string.
type Suggestion struct {
	// RuleID identifies the rule that fired (e.g. "IT_ACCENTI").
	RuleID string

	// Offset is the byte position where the issue starts.
	Offset int

	// Length is the byte length of the flagged span.
	Length int

	// Replacements lists proposed substitutions, best first. May be
	// empty for purely informational findings.
	Replacements []string

	// Message is the human-readable description of the issue.
	Message string
}

// Service checks text in the given language (BCP 47, e.g. "it").
// Implementations must be safe for concurrent use.
type Service interface {
	Check(ctx context.Context, text, language string) ([]Suggestion, error)
}
