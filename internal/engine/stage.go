// Package engine orchestrates the multi-stage correction pipeline over
// a document: cache replay, local fixes, grammar-service suggestions,
// and LLM batch correction, each gated by the safe corrector before it
// may touch a paragraph.
//
// Stages are ordered cheapest first. A paragraph served from the cache
// skips the remaining stages entirely; a stage outage degrades the run
// instead of failing it.
package engine

import (
	"regexp"
	"sort"
	"strings"

	"github.com/emendo-dev/emendo/pkg/grammar"
)

// Stage names as they appear in logs, metrics, and the modification log.
const (
	StageCache   = "cache"
	StageLocal   = "local"
	StageGrammar = "grammar"
	StageLLM     = "llm"
)

var (
	doubledPunct = regexp.MustCompile(`,,+|;;+|::+|!!+|\?\?+`)
	spacedPunct  = regexp.MustCompile(`\s+([,;:.!?])`)
	multiSpace   = regexp.MustCompile(`[ \t]{2,}`)
)

// localFix applies the configured misspelling dictionary and a small
// set of mechanical normalisations. It is deterministic and needs no
// network access.
func localFix(text string, fixes map[string]string) string {
	out := text
	for wrong, right := range fixes {
		out = replaceWord(out, wrong, right)
	}
	out = doubledPunct.ReplaceAllStringFunc(out, func(m string) string { return m[:1] })
	out = spacedPunct.ReplaceAllString(out, "$1")
	out = multiSpace.ReplaceAllString(out, " ")
	return out
}

// replaceWord substitutes whole-word occurrences of wrong with right,
// leaving substrings inside larger words alone.
func replaceWord(text, wrong, right string) string {
	if wrong == "" {
		return text
	}
	var sb strings.Builder
	for {
		i := strings.Index(text, wrong)
		if i < 0 {
			sb.WriteString(text)
			return sb.String()
		}
		before := text[:i]
		after := text[i+len(wrong):]
		if boundaryBefore(before) && boundaryAfter(after) {
			sb.WriteString(before)
			sb.WriteString(right)
		} else {
			sb.WriteString(text[:i+len(wrong)])
		}
		text = after
	}
}

func boundaryBefore(s string) bool {
	if s == "" {
		return true
	}
	r := rune(s[len(s)-1])
	return !isWordByte(r)
}

func boundaryAfter(s string) bool {
	if s == "" {
		return true
	}
	return !isWordByte(rune(s[0]))
}

// isWordByte treats ASCII letters and digits as word characters; any
// non-ASCII lead byte is treated as a word character too, which keeps
// accented Italian letters from being mistaken for boundaries.
func isWordByte(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r >= 0x80:
		return true
	}
	return false
}

// applySuggestions produces the text with the trusted subset of
// suggestions applied. A suggestion is trusted when its rule is
// allowlisted or it offers exactly one replacement. Replacements are
// applied back to front so earlier offsets stay valid.
func applySuggestions(text string, suggestions []grammar.Suggestion, trusted map[string]bool) string {
	var apply []grammar.Suggestion
	for _, s := range suggestions {
		if len(s.Replacements) == 0 {
			continue
		}
		if !trusted[s.RuleID] && len(s.Replacements) != 1 {
			continue
		}
		if s.Offset < 0 || s.Offset+s.Length > len(text) {
			continue
		}
		apply = append(apply, s)
	}
	sort.Slice(apply, func(i, j int) bool { return apply[i].Offset > apply[j].Offset })

	out := text
	lastStart := len(out) + 1
	for _, s := range apply {
		// Overlapping suggestions would corrupt offsets; keep the first.
		if s.Offset+s.Length > lastStart {
			continue
		}
		out = out[:s.Offset] + s.Replacements[0] + out[s.Offset+s.Length:]
		lastStart = s.Offset
	}
	return out
}
