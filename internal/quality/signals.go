// Package quality scores proposed corrections along four dimensions
// (content preservation, grammar improvement, style preservation, and
// safety) and combines them into one bounded overall score.
//
// Scoring is a pure function of the (original, corrected) string pair:
// no state, no I/O, never an error. The grammar dimension is driven by
// a pluggable list of [Signal] heuristics so the weighting logic stays
// independent of the Italian-specific detectors.
package quality

import "regexp"

// Signal is one heuristic error detector feeding the grammar-improvement
// sub-score. A signal that applies to the original text contributes to
// the score positively when the corrected text no longer exhibits it.
type Signal interface {
	// Name identifies the signal in issue lists and logs.
	Name() string

	// Applies reports whether the error pattern is present in text.
	Applies(text string) bool
}

// regexpSignal implements [Signal] with a single compiled pattern.
type regexpSignal struct {
	name    string
	pattern *regexp.Regexp
}

func (s regexpSignal) Name() string             { return s.name }
func (s regexpSignal) Applies(text string) bool { return s.pattern.MatchString(text) }

// apostropheSignal flags a conspicuous change in apostrophe density:
// truncated forms written with a straight apostrophe where an accented
// vowel belongs (e.g. "perche'" for "perché").
type apostropheSignal struct{}

func (apostropheSignal) Name() string { return "apostrophe_accent" }

var apostropheAccent = regexp.MustCompile(`(?i)\b(perche|poiche|affinche|benche|finche|cioe|piu|gia|cosi|pero|percio|lassu|laggiu)'`)

func (apostropheSignal) Applies(text string) bool {
	return apostropheAccent.MatchString(text)
}

// DefaultSignals returns the built-in Italian error detectors, in the
// order they are reported.
func DefaultSignals() []Signal {
	return []Signal{
		apostropheSignal{},
		regexpSignal{
			name: "accent_error",
			// Bare "e" used as verb between space-delimited words where
			// "è" is required reads as a missing accent; the common giveaway
			// is "e'" with a straight apostrophe.
			pattern: regexp.MustCompile(`(?i)\b(e|ne|se|sta|da)'(\s|$)`),
		},
		regexpSignal{
			name:    "doubled_punctuation",
			pattern: regexp.MustCompile(`,,|;;|::|!!|\?\?|\.\s+\.`),
		},
		regexpSignal{
			name: "lowercase_after_period",
			// A sentence terminator followed by a lowercase letter.
			pattern: regexp.MustCompile(`[.!?]\s+\p{Ll}`),
		},
	}
}
