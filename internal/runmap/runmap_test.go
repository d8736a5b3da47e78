package runmap_test

import (
	"errors"
	"testing"

	"github.com/emendo-dev/emendo/internal/runmap"
	"github.com/emendo-dev/emendo/pkg/document"
)

func para(texts ...string) *document.Paragraph {
	p := &document.Paragraph{}
	for _, t := range texts {
		p.Runs = append(p.Runs, &document.Run{Text: t})
	}
	return p
}

func TestApply_ConservesCorrectedText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		runs      []string
		corrected string
	}{
		{
			"single word fix",
			[]string{"C'era una vlta, ", "in un piccolo borggo"},
			"C'era una volta, in un piccolo borgo",
		},
		{
			"insertion at end",
			[]string{"Il gatto ", "dorme"},
			"Il gatto dorme bene",
		},
		{
			"deletion",
			[]string{"Il vecchio ", "gatto dorme"},
			"Il gatto dorme",
		},
		{
			"three runs",
			[]string{"Questo ", "è un ", "testo sbagliatto."},
			"Questo è un testo sbagliato.",
		},
		{
			"single run",
			[]string{"tutto qui"},
			"tutto cambiato qui",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := para(tc.runs...)
			if err := runmap.Apply(p, tc.corrected); err != nil {
				t.Fatalf("Apply returned error: %v", err)
			}
			if got := p.Text(); got != tc.corrected {
				t.Errorf("paragraph text=%q, want %q", got, tc.corrected)
			}
		})
	}
}

func TestApply_PreservesRunFormatting(t *testing.T) {
	t.Parallel()

	bold := document.Formatting{Bold: document.Bool(true)}
	p := &document.Paragraph{Runs: []*document.Run{
		{Text: "Il gatto "},
		{Text: "dorme", Format: bold},
		{Text: " sempre."},
	}}

	if err := runmap.Apply(p, "Il gatto dormiva sempre."); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	if len(p.Runs) != 3 {
		t.Fatalf("run count changed: got %d, want 3", len(p.Runs))
	}
	if p.Runs[1].Text != "dormiva" {
		t.Errorf("bold run text=%q, want %q", p.Runs[1].Text, "dormiva")
	}
	if !p.Runs[1].Format.Equal(bold) {
		t.Errorf("bold run lost its formatting: %+v", p.Runs[1].Format)
	}
}

func TestApply_NoOpOnIdenticalText(t *testing.T) {
	t.Parallel()

	p := para("già ", "corretto")
	if err := runmap.Apply(p, "già corretto"); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if p.Runs[0].Text != "già " || p.Runs[1].Text != "corretto" {
		t.Errorf("runs changed on identical text: %q %q", p.Runs[0].Text, p.Runs[1].Text)
	}
}

func TestApply_EmptyRunsKeptNotDeleted(t *testing.T) {
	t.Parallel()

	p := para("Il vecchio", " gatto")
	if err := runmap.Apply(p, "gatto"); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if len(p.Runs) != 2 {
		t.Fatalf("run count changed: got %d, want 2", len(p.Runs))
	}
	if p.Text() != "gatto" {
		t.Errorf("text=%q, want %q", p.Text(), "gatto")
	}
}

func TestApply_NoRunsSignalsFallback(t *testing.T) {
	t.Parallel()

	p := &document.Paragraph{}
	err := runmap.Apply(p, "nuovo testo")
	if !errors.Is(err, runmap.ErrNoRuns) {
		t.Fatalf("err=%v, want ErrNoRuns", err)
	}

	// Empty corrected text on an empty paragraph is a no-op, not a failure.
	if err := runmap.Apply(&document.Paragraph{}, ""); err != nil {
		t.Errorf("empty-for-empty returned error: %v", err)
	}
}

func TestApply_InsertedTextJoinsPrecedingRun(t *testing.T) {
	t.Parallel()

	italic := document.Formatting{Italic: document.Bool(true)}
	p := &document.Paragraph{Runs: []*document.Run{
		{Text: "disse ", Format: italic},
		{Text: "piano"},
	}}

	// "molto" is inserted between the runs; its origin token is "disse"
	// (preceding), so it must land in the italic run.
	if err := runmap.Apply(p, "disse molto piano"); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if p.Runs[0].Text != "disse molto " {
		t.Errorf("first run text=%q, want %q", p.Runs[0].Text, "disse molto ")
	}
}

func TestApply_LeadingEmphasisCopied(t *testing.T) {
	t.Parallel()

	bold := document.Formatting{Bold: document.Bool(true)}
	p := &document.Paragraph{Runs: []*document.Run{
		{Text: "C"},
		{Text: "'era", Format: bold},
		{Text: " una vlta"},
	}}

	if err := runmap.Apply(p, "C'era una volta"); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if !p.Runs[0].Format.HasEmphasis() {
		t.Errorf("first run did not inherit emphasis: %+v", p.Runs[0].Format)
	}
}

func TestApply_OrphanQuoteMergedForward(t *testing.T) {
	t.Parallel()

	p := &document.Paragraph{Runs: []*document.Run{
		{Text: "«"},
		{Text: "Ciao», disse."},
	}}

	if err := runmap.Apply(p, "«Ciao,» disse."); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if p.Runs[0].Text != "" {
		t.Errorf("orphan quote run text=%q, want empty after merge", p.Runs[0].Text)
	}
	if got := p.Text(); got != "«Ciao,» disse." {
		t.Errorf("text=%q, want %q", got, "«Ciao,» disse.")
	}
}

func TestApply_QuoteBreakRunRemoved(t *testing.T) {
	t.Parallel()

	p := &document.Paragraph{Runs: []*document.Run{
		{Text: "«Addio»"},
		{Text: "", HasBreak: true},
		{Text: " e partì subbito"},
	}}

	if err := runmap.Apply(p, "«Addio» e partì subito"); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	for _, r := range p.Runs {
		if r.HasBreak && r.Text == "" {
			t.Error("empty break run after quote was not removed")
		}
	}
	if got := p.Text(); got != "«Addio» e partì subito" {
		t.Errorf("text=%q, want %q", got, "«Addio» e partì subito")
	}
}
