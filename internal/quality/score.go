package quality

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/emendo-dev/emendo/internal/token"
)

// Confidence is the categorical band of an overall score. It exists for
// display and logging only: accept/reject decisions always use the
// numeric threshold.
type Confidence string

const (
	ConfidenceVeryLow Confidence = "very_low"
	ConfidenceLow     Confidence = "low"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceHigh    Confidence = "high"
)

// Fixed sub-score weights. They sum to 1.0, so Overall is bounded to
// [0,1] whenever every sub-score is.
const (
	weightContent = 0.40
	weightGrammar = 0.25
	weightStyle   = 0.20
	weightSafety  = 0.15
)

// Score is the structured result of evaluating one proposed correction.
// All numeric fields are in [0,1].
type Score struct {
	Overall             float64
	ContentPreservation float64
	GrammarImprovement  float64
	StylePreservation   float64
	Safety              float64
	Confidence          Confidence
	Issues              []string
}

// Scorer evaluates (original, corrected) pairs. The zero value is not
// usable; construct with [NewScorer]. Scorer is read-only after
// construction and safe for concurrent use.
type Scorer struct {
	signals []Signal
}

// NewScorer returns a Scorer using the given grammar signals. Passing
// no signals installs [DefaultSignals].
func NewScorer(signals ...Signal) *Scorer {
	if len(signals) == 0 {
		signals = DefaultSignals()
	}
	return &Scorer{signals: signals}
}

// Score evaluates the corrected text against the original. It is a
// total function: any two strings, including empty ones, produce a
// well-defined bounded result.
func (s *Scorer) Score(original, corrected string) Score {
	var issues []string

	content := contentPreservation(original, corrected)
	grammar := s.grammarImprovement(original, corrected, &issues)
	style := stylePreservation(original, corrected, &issues)
	safety := safetyScore(original, corrected, &issues)

	overall := weightContent*content +
		weightGrammar*grammar +
		weightStyle*style +
		weightSafety*safety

	return Score{
		Overall:             clamp01(overall),
		ContentPreservation: content,
		GrammarImprovement:  grammar,
		StylePreservation:   style,
		Safety:              safety,
		Confidence:          bandFor(overall),
		Issues:              issues,
	}
}

func bandFor(overall float64) Confidence {
	switch {
	case overall >= 0.90:
		return ConfidenceHigh
	case overall >= 0.75:
		return ConfidenceMedium
	case overall >= 0.50:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

// ── Content preservation ──────────────────────────────────────────────

// contentPreservation combines character similarity, a length-ratio
// penalty, and original-word retention, weighted 0.5/0.2/0.3.
func contentPreservation(original, corrected string) float64 {
	sim := charSimilarity(strings.ToLower(original), strings.ToLower(corrected))
	length := lengthScore(original, corrected)
	retained := wordRetention(original, corrected)
	return clamp01(0.5*sim + 0.2*length + 0.3*retained)
}

// charSimilarity is a normalized edit-distance similarity in [0,1].
func charSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	max := la
	if lb > max {
		max = lb
	}
	if max == 0 {
		return 1
	}
	dist := matchr.Levenshtein(a, b)
	return clamp01(1 - float64(dist)/float64(max))
}

// lengthScore penalises large expansions or contractions:
// 1 − |1 − min/max|·2, floored at 0. Equal lengths score 1.
func lengthScore(original, corrected string) float64 {
	la, lb := len([]rune(original)), len([]rune(corrected))
	if la == 0 && lb == 0 {
		return 1
	}
	min, max := la, lb
	if min > max {
		min, max = max, min
	}
	if max == 0 {
		return 1
	}
	ratio := float64(min) / float64(max)
	return clamp01(1 - (1-ratio)*2)
}

// wordRetention is the fraction of original word tokens (as a set)
// still present in the corrected text.
func wordRetention(original, corrected string) float64 {
	origWords := wordSet(original)
	if len(origWords) == 0 {
		return 1
	}
	corrWords := wordSet(corrected)
	kept := 0
	for w := range origWords {
		if corrWords[w] {
			kept++
		}
	}
	return float64(kept) / float64(len(origWords))
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range token.Words(text) {
		set[strings.ToLower(t.Text)] = true
	}
	return set
}

// ── Grammar improvement ───────────────────────────────────────────────

// grammarImprovement scores 0.85 ("no applicable signal") when none of
// the heuristic checks fire on the original; otherwise
// 0.7 + 0.3·(improved/applicable).
func (s *Scorer) grammarImprovement(original, corrected string, issues *[]string) float64 {
	applicable, improved := 0, 0
	for _, sig := range s.signals {
		if !sig.Applies(original) {
			continue
		}
		applicable++
		if !sig.Applies(corrected) {
			improved++
		} else {
			*issues = append(*issues, "grammar signal not resolved: "+sig.Name())
		}
	}
	if applicable == 0 {
		return 0.85
	}
	return clamp01(0.7 + 0.3*float64(improved)/float64(applicable))
}

// ── Style preservation ────────────────────────────────────────────────

// stylePreservation averages terminator preservation, tone
// preservation, and uppercase preservation. The uppercase part is
// skipped when the original has no uppercase letters.
func stylePreservation(original, corrected string, issues *[]string) float64 {
	parts := 0
	total := 0.0

	term := countRatio(countAny(original, ".!?"), countAny(corrected, ".!?"))
	total += term
	parts++
	if term < 0.5 {
		*issues = append(*issues, "sentence terminators changed substantially")
	}

	// Tone: exclamation/question counts, with a tolerance bonus.
	tone := countRatio(countAny(original, "!?"), countAny(corrected, "!?"))
	tone = clamp01(tone + 0.2)
	total += tone
	parts++

	if upper := countUpper(original); upper > 0 {
		total += countRatio(upper, countUpper(corrected))
		parts++
	}

	return clamp01(total / float64(parts))
}

func countAny(s, chars string) int {
	n := 0
	for _, r := range s {
		if strings.ContainsRune(chars, r) {
			n++
		}
	}
	return n
}

func countUpper(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsUpper(r) {
			n++
		}
	}
	return n
}

// countRatio is min/max of two counts, 1 when both are zero.
func countRatio(a, b int) float64 {
	if a == 0 && b == 0 {
		return 1
	}
	min, max := a, b
	if min > max {
		min, max = max, min
	}
	if max == 0 {
		return 1
	}
	return float64(min) / float64(max)
}

// ── Safety ────────────────────────────────────────────────────────────

// positiveWords and negativeWords are small Italian polarity lists for
// the coarse sentiment-flip detector.
var (
	positiveWords = []string{
		"bello", "bene", "buono", "felice", "gioia", "amore",
		"meraviglioso", "splendido", "ottimo", "fantastico",
	}
	negativeWords = []string{
		"brutto", "male", "cattivo", "triste", "dolore", "odio",
		"terribile", "orribile", "pessimo", "disastro",
	}
)

// safetyScore averages four checks: truncation, immediate word
// duplication, proper-noun preservation, and sentiment-flip detection.
// Truncation below half the original length zeroes the whole dimension:
// a correction that discards that much text is never safe.
func safetyScore(original, corrected string, issues *[]string) float64 {
	if lo := len([]rune(original)); lo > 0 && len([]rune(corrected)) < lo/2 {
		*issues = append(*issues, "corrected text truncated below 50% of original")
		return 0
	}

	total := 1.0 // not-truncated check passed

	// No excessive immediate word duplication.
	if duplicationExcessive(corrected) {
		total += 0.5
		*issues = append(*issues, "excessive repeated words in corrected text")
	} else {
		total += 1
	}

	total += properNounPreservation(original, corrected, issues)

	if sentimentFlipped(original, corrected) {
		total += 0.7
		*issues = append(*issues, "sentiment polarity flipped")
	} else {
		total += 1
	}

	return clamp01(total / 4)
}

// duplicationExcessive reports whether more than 10% of words repeat
// back-to-back.
func duplicationExcessive(text string) bool {
	words := token.Words(text)
	if len(words) < 2 {
		return false
	}
	dups := 0
	for i := 1; i < len(words); i++ {
		if strings.EqualFold(words[i].Text, words[i-1].Text) {
			dups++
		}
	}
	return float64(dups) > 0.1*float64(len(words))
}

// properNounPreservation is the fraction of the original's capitalized
// words (as a set) still present in the corrected text; 1 when the
// original has none.
func properNounPreservation(original, corrected string, issues *[]string) float64 {
	orig := capitalizedSet(original)
	if len(orig) == 0 {
		return 1
	}
	corr := capitalizedSet(corrected)
	kept := 0
	for w := range orig {
		if corr[w] {
			kept++
		}
	}
	ratio := float64(kept) / float64(len(orig))
	if ratio < 1 {
		*issues = append(*issues, "capitalized words lost in correction")
	}
	return ratio
}

func capitalizedSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range token.Words(text) {
		r := []rune(t.Text)
		if len(r) > 1 && unicode.IsUpper(r[0]) {
			set[t.Text] = true
		}
	}
	return set
}

// sentimentFlipped reports a full polarity inversion between the texts.
func sentimentFlipped(original, corrected string) bool {
	po, no := polarity(original)
	pc, nc := polarity(corrected)
	return (po > no && nc > pc) || (no > po && pc > nc)
}

func polarity(text string) (pos, neg int) {
	lower := strings.ToLower(text)
	for _, w := range positiveWords {
		pos += strings.Count(lower, w)
	}
	for _, w := range negativeWords {
		neg += strings.Count(lower, w)
	}
	return pos, neg
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
