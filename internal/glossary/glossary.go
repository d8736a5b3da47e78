// Package glossary accumulates proper nouns observed across a
// correction session so later LLM prompts can be told which names to
// leave alone. The glossary is per-document and starts empty; nothing
// is persisted between runs.
package glossary

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/emendo-dev/emendo/internal/token"
)

// Headings and section markers that look like proper nouns but are not.
var stoplist = map[string]bool{
	"CAPITOLO": true,
	"CHAPTER":  true,
	"INDICE":   true,
	"PROLOGO":  true,
	"EPILOGO":  true,
	"PARTE":    true,
	"NOTA":     true,
}

// Glossary counts candidate proper nouns. Safe for concurrent use.
type Glossary struct {
	mu     sync.RWMutex
	counts map[string]int
}

func New() *Glossary {
	return &Glossary{counts: make(map[string]int)}
}

// Observe extracts candidate proper nouns from accepted text and bumps
// their occurrence counts. A candidate is a capitalized word of at
// least three runes that is not a known heading word.
func (g *Glossary) Observe(text string) {
	words := candidates(text)
	if len(words) == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, w := range words {
		g.counts[w]++
	}
}

// Add records a single term directly, bypassing extraction. Used when
// the caller already knows the term is a name.
func (g *Glossary) Add(term string) {
	if term == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counts[term]++
}

// Count returns the number of times term has been observed.
func (g *Glossary) Count(term string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.counts[term]
}

// Established returns the terms seen at least min times, sorted
// alphabetically so prompts built from the glossary are stable.
func (g *Glossary) Established(min int) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for term, n := range g.counts {
		if n >= min {
			out = append(out, term)
		}
	}
	sort.Strings(out)
	return out
}

func allUpper(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

func candidates(text string) []string {
	var out []string
	for _, w := range token.Words(text) {
		runes := []rune(w.Text)
		if len(runes) < 3 {
			continue
		}
		if !unicode.IsUpper(runes[0]) {
			continue
		}
		// All-caps tokens are headings or roman numerals, not names.
		if allUpper(runes) {
			continue
		}
		if stoplist[strings.ToUpper(w.Text)] {
			continue
		}
		out = append(out, w.Text)
	}
	return out
}
