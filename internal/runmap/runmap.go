// Package runmap maps corrected paragraph text back onto the original
// run structure so that corrections never lose formatting.
//
// The mapping works at token level: the corrected text is aligned
// against the original text with [token.Align], and every corrected
// token is appended to the run that owned its origin token's first
// character. Tokens with no traceable origin join the most recently
// used run, so inserted text adopts the style of what precedes it.
package runmap

import (
	"errors"
	"strings"

	"github.com/emendo-dev/emendo/internal/token"
	"github.com/emendo-dev/emendo/pkg/document"
)

// ErrNoRuns is reported when a paragraph has non-empty text but no runs
// to redistribute into. Callers should fall back to replacing the whole
// paragraph with a single unformatted run.
var ErrNoRuns = errors.New("runmap: paragraph has text but no runs")

// quoteChars are the quotation marks an orphaned single-character run
// may consist of after redistribution.
const quoteChars = "«»\"“”‘’'"

// Apply rewrites p's run texts so that the paragraph reads corrected
// while each character keeps the formatting of the original run it
// descends from. The paragraph's run count and formatting descriptors
// are never changed; runs that receive no tokens end up with empty text
// but are kept (they may carry non-text markers such as line breaks).
//
// Returns [ErrNoRuns] when p has no runs to receive text; any other
// malformed structure degrades the same way.
func Apply(p *document.Paragraph, corrected string) error {
	original := p.Text()
	if corrected == original {
		return nil
	}
	if len(p.Runs) == 0 {
		if corrected == "" {
			return nil
		}
		return ErrNoRuns
	}

	origin := buildCharOrigins(p)
	origTokens := token.Tokenize(original)
	corrTokens := token.Tokenize(corrected)
	edits := token.Align(origTokens, corrTokens)

	buffers := make([]strings.Builder, len(p.Runs))

	// The most recently used run index is threaded explicitly through
	// the loop: tokens with no origin join whatever came before them.
	last := 0
	for _, e := range edits {
		idx := last
		if e.Origin != token.NoOrigin {
			start := origTokens[e.Origin].Start
			if start < len(origin) {
				idx = origin[start]
			}
		}
		buffers[idx].WriteString(e.Token.Text)
		last = idx
	}

	for i, r := range p.Runs {
		r.Text = buffers[i].String()
	}

	preserveLeadingEmphasis(p, corrTokens, edits, origin, origTokens)
	mergeOrphanQuotes(p)
	dropQuoteBreaks(p)

	return nil
}

// buildCharOrigins precomputes, for every byte offset of the
// paragraph's text, the index of the run owning that byte.
func buildCharOrigins(p *document.Paragraph) []int {
	total := 0
	for _, r := range p.Runs {
		total += len(r.Text)
	}
	origin := make([]int, total)
	pos := 0
	for i, r := range p.Runs {
		for range len(r.Text) {
			origin[pos] = i
			pos++
		}
	}
	return origin
}

// preserveLeadingEmphasis copies rich formatting onto the first
// text-bearing run when the leading corrected word was split across
// runs and a later contributor carries emphasis the first run lacks.
// Without this, a bold opening word whose first character migrates runs
// would lose its bold lead-in.
func preserveLeadingEmphasis(
	p *document.Paragraph,
	corrTokens []token.Token,
	edits []token.Edit,
	origin []int,
	origTokens []token.Token,
) {
	// The leading word is the cluster of non-whitespace tokens before
	// the first whitespace token (so "C'era" counts as one word).
	var contributors []int
	seen := make(map[int]bool)
	last := 0
	started := false
	for _, e := range edits {
		idx := last
		if e.Origin != token.NoOrigin {
			start := origTokens[e.Origin].Start
			if start < len(origin) {
				idx = origin[start]
			}
		}
		last = idx

		if strings.TrimSpace(e.Token.Text) == "" {
			if started {
				break
			}
			continue
		}
		started = true
		if !seen[idx] {
			seen[idx] = true
			contributors = append(contributors, idx)
		}
	}
	if len(contributors) < 2 {
		return
	}

	first := contributors[0]
	if p.Runs[first].Format.HasEmphasis() {
		return
	}
	for _, idx := range contributors[1:] {
		if p.Runs[idx].Format.HasEmphasis() {
			p.Runs[first].Format = p.Runs[idx].Format
			return
		}
	}
}

// mergeOrphanQuotes folds a run whose entire text is a single quotation
// character into the following non-empty run, so punctuation is never
// left visually detached from the word it opens.
func mergeOrphanQuotes(p *document.Paragraph) {
	for i, r := range p.Runs {
		if !isLoneQuote(r.Text) {
			continue
		}
		for j := i + 1; j < len(p.Runs); j++ {
			next := p.Runs[j]
			if next.Text == "" {
				continue
			}
			next.Text = r.Text + next.Text
			r.Text = ""
			break
		}
	}
}

func isLoneQuote(s string) bool {
	if s == "" {
		return false
	}
	runes := []rune(s)
	return len(runes) == 1 && strings.ContainsRune(quoteChars, runes[0])
}

// dropQuoteBreaks removes a run that carries only a line-break marker
// immediately after a run ending in a quotation character. Cosmetic
// cleanup only: a break run that still owns text is never removed.
func dropQuoteBreaks(p *document.Paragraph) {
	out := p.Runs[:0]
	for i, r := range p.Runs {
		if r.HasBreak && r.Text == "" && i > 0 && endsWithQuote(p.Runs[i-1].Text) {
			continue
		}
		out = append(out, r)
	}
	p.Runs = out
}

func endsWithQuote(s string) bool {
	if s == "" {
		return false
	}
	runes := []rune(s)
	return strings.ContainsRune(quoteChars, runes[len(runes)-1])
}
