package token_test

import (
	"strings"
	"testing"

	"github.com/emendo-dev/emendo/internal/token"
)

func wordsOf(s string) []token.Token {
	return token.Words(s)
}

func joinEdits(edits []token.Edit) string {
	var sb strings.Builder
	for _, e := range edits {
		sb.WriteString(e.Token.Text)
	}
	return sb.String()
}

func TestAlign_InsertionAtEndInheritsPreceding(t *testing.T) {
	t.Parallel()

	orig := wordsOf("Il gatto dorme")
	corr := wordsOf("Il gatto dorme bene")

	edits := token.Align(orig, corr)
	if len(edits) != 4 {
		t.Fatalf("got %d edits, want 4", len(edits))
	}
	for i := 0; i < 3; i++ {
		if edits[i].Origin != i {
			t.Errorf("edit[%d].Origin=%d, want %d", i, edits[i].Origin, i)
		}
	}
	if edits[3].Token.Text != "bene" || edits[3].Origin != 2 {
		t.Errorf("inserted edit=%+v, want origin 2 for %q", edits[3], "bene")
	}
}

func TestAlign_InsertionAtStartHasNoOrigin(t *testing.T) {
	t.Parallel()

	orig := wordsOf("gatto dorme")
	corr := wordsOf("Il gatto dorme")

	edits := token.Align(orig, corr)
	if len(edits) != 3 {
		t.Fatalf("got %d edits, want 3", len(edits))
	}
	if edits[0].Origin != token.NoOrigin {
		t.Errorf("leading insertion Origin=%d, want NoOrigin", edits[0].Origin)
	}
	if edits[1].Origin != 0 || edits[2].Origin != 1 {
		t.Errorf("anchored origins=%d,%d, want 0,1", edits[1].Origin, edits[2].Origin)
	}
}

func TestAlign_ReplacementInheritsFirstReplacedIndex(t *testing.T) {
	t.Parallel()

	orig := wordsOf("un piccolo borggo antico")
	corr := wordsOf("un piccolo borgo antico")

	edits := token.Align(orig, corr)
	if len(edits) != 4 {
		t.Fatalf("got %d edits, want 4", len(edits))
	}
	if edits[2].Token.Text != "borgo" || edits[2].Origin != 2 {
		t.Errorf("replacement edit=%+v, want origin 2", edits[2])
	}
}

func TestAlign_ReplacementExpansionSharesOrigin(t *testing.T) {
	t.Parallel()

	// One original word becomes two corrected words: both inherit the
	// earlier (only) replaced index.
	orig := wordsOf("ciao delmondo intero")
	corr := wordsOf("ciao del mondo intero")

	edits := token.Align(orig, corr)
	if len(edits) != 4 {
		t.Fatalf("got %d edits, want 4", len(edits))
	}
	if edits[1].Origin != 1 || edits[2].Origin != 1 {
		t.Errorf("expanded origins=%d,%d, want 1,1", edits[1].Origin, edits[2].Origin)
	}
}

func TestAlign_DeletedTokensContributeNothing(t *testing.T) {
	t.Parallel()

	orig := wordsOf("il vecchio gatto dorme")
	corr := wordsOf("il gatto dorme")

	edits := token.Align(orig, corr)
	if len(edits) != 3 {
		t.Fatalf("got %d edits, want 3", len(edits))
	}
	wantOrigins := []int{0, 2, 3}
	for i, e := range edits {
		if e.Origin != wantOrigins[i] {
			t.Errorf("edit[%d].Origin=%d, want %d", i, e.Origin, wantOrigins[i])
		}
	}
}

func TestAlign_EmptySequences(t *testing.T) {
	t.Parallel()

	if edits := token.Align(nil, nil); edits != nil {
		t.Errorf("Align(nil,nil)=%v, want nil", edits)
	}
	if edits := token.Align(wordsOf("ciao"), nil); edits != nil {
		t.Errorf("Align(orig,nil)=%v, want nil", edits)
	}

	edits := token.Align(nil, wordsOf("ciao mondo"))
	if len(edits) != 2 {
		t.Fatalf("got %d edits, want 2", len(edits))
	}
	for i, e := range edits {
		if e.Origin != token.NoOrigin {
			t.Errorf("edit[%d].Origin=%d, want NoOrigin", i, e.Origin)
		}
	}
}

func TestAlign_IdenticalSequencesIdentityPath(t *testing.T) {
	t.Parallel()

	orig := wordsOf("tutto già corretto qui")
	edits := token.Align(orig, orig)
	if len(edits) != len(orig) {
		t.Fatalf("got %d edits, want %d", len(edits), len(orig))
	}
	for i, e := range edits {
		if e.Origin != i {
			t.Errorf("edit[%d].Origin=%d, want %d", i, e.Origin, i)
		}
	}
}

func TestAlign_ReconstructionProperty(t *testing.T) {
	t.Parallel()

	// Reconstruction must hold for full token streams (including
	// whitespace and punctuation), not just word tokens.
	pairs := [][2]string{
		{"C'era una vlta, in un piccolo borggo", "C'era una volta, in un piccolo borgo"},
		{"", "testo nuovo"},
		{"testo vecchio", ""},
		{"uguale identico", "uguale identico"},
		{"solo  spazi   diversi", "solo spazi diversi"},
	}

	for _, pair := range pairs {
		orig := token.Tokenize(pair[0])
		corr := token.Tokenize(pair[1])
		if got := joinEdits(token.Align(orig, corr)); got != pair[1] {
			t.Errorf("Align(%q,%q) reconstructs %q", pair[0], pair[1], got)
		}
	}
}
