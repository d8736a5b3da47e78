// Package token provides word-level tokenization and token-sequence
// alignment for the correction engine.
//
// The tokenizer follows one uniform convention: a token is either a
// maximal run of word characters (letters, digits, combining marks),
// a single punctuation or symbol character, or a maximal run of
// whitespace. Whitespace is tokenized so that concatenating a token
// sequence always reconstructs the source string exactly; the
// run-formatting redistribution depends on that.
//
// [Align] produces a token-level edit script between an original and a
// corrected sequence with origin tracking, used both to validate
// corrections and to map corrected text back onto the original run
// structure.
package token

import (
	"unicode"
	"unicode/utf8"
)

// Token is one unit of tokenized text. Immutable once produced.
type Token struct {
	// Text is the token's exact source text.
	Text string

	// Start is the byte offset of the token in its source string.
	Start int
}

// kind classifies a rune for tokenization.
type kind int

const (
	kindWord kind = iota
	kindSpace
	kindPunct
)

func classify(r rune) kind {
	switch {
	case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r):
		return kindWord
	case unicode.IsSpace(r):
		return kindSpace
	default:
		return kindPunct
	}
}

// Tokenize splits s into tokens. It is deterministic, side-effect free,
// and total: the empty string yields an empty (nil) sequence.
// Concatenating the returned tokens' Text in order reproduces s.
func Tokenize(s string) []Token {
	if s == "" {
		return nil
	}

	var tokens []Token
	start := 0
	cur := kindPunct
	started := false

	flush := func(end int) {
		if started && end > start {
			tokens = append(tokens, Token{Text: s[start:end], Start: start})
		}
	}

	for i, r := range s {
		k := classify(r)
		switch {
		case !started:
			start, cur, started = i, k, true
		case k == kindPunct || cur == kindPunct || k != cur:
			// Punctuation tokens are always single characters; word and
			// whitespace runs break on any kind change.
			flush(i)
			start, cur = i, k
		}
	}
	flush(len(s))

	return tokens
}

// Words returns just the word-kind tokens of s, in order. Convenience
// for token-set comparisons in the quality scorer and the rollback veto.
func Words(s string) []Token {
	all := Tokenize(s)
	words := make([]Token, 0, len(all))
	for _, t := range all {
		r, _ := utf8.DecodeRuneInString(t.Text)
		if classify(r) == kindWord {
			words = append(words, t)
		}
	}
	return words
}
