// Package document defines the in-memory model of a word-processing
// document as consumed by the correction engine: paragraphs composed of
// formatting runs.
//
// The engine never touches the container file format (zip/XML extraction
// is a front-end concern). It reads [Paragraph.Text], enumerates
// [Paragraph.Runs], and rewrites run text in place while leaving each
// run's [Formatting] descriptor untouched. The central invariant is that
// the concatenation of a paragraph's run texts always equals the
// paragraph's full text.
package document

import "strings"

// Formatting is the style descriptor shared by every character of a
// [Run]. Pointer fields distinguish "explicitly off" from "inherit from
// paragraph/document defaults" (nil).
type Formatting struct {
	Bold      *bool   `json:"bold,omitempty"`
	Italic    *bool   `json:"italic,omitempty"`
	Underline *bool   `json:"underline,omitempty"`
	FontName  string  `json:"font_name,omitempty"`
	FontSize  float64 `json:"font_size,omitempty"`
	Color     string  `json:"color,omitempty"`
}

// Equal reports whether f and other describe the same style.
func (f Formatting) Equal(other Formatting) bool {
	return boolPtrEqual(f.Bold, other.Bold) &&
		boolPtrEqual(f.Italic, other.Italic) &&
		boolPtrEqual(f.Underline, other.Underline) &&
		f.FontName == other.FontName &&
		f.FontSize == other.FontSize &&
		f.Color == other.Color
}

// HasEmphasis reports whether f carries any explicitly enabled rich
// attribute (bold, italic, or underline).
func (f Formatting) HasEmphasis() bool {
	return isSet(f.Bold) || isSet(f.Italic) || isSet(f.Underline)
}

// IsZero reports whether every attribute of f is unset (full inherit).
func (f Formatting) IsZero() bool {
	return f.Bold == nil && f.Italic == nil && f.Underline == nil &&
		f.FontName == "" && f.FontSize == 0 && f.Color == ""
}

func boolPtrEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func isSet(b *bool) bool { return b != nil && *b }

// Bool returns a pointer to b. Convenience for building [Formatting]
// literals in callers and tests.
func Bool(b bool) *bool { return &b }

// Run is a maximal contiguous span of paragraph text sharing one
// [Formatting] descriptor. Runs are created by the source document;
// the correction engine replaces their text but never their identity
// or formatting, except when [Paragraph.Consolidate] merges adjacent
// identical-format runs.
type Run struct {
	Text   string     `json:"text"`
	Format Formatting `json:"format,omitempty"`

	// HasBreak marks a run that carries an embedded line-break element
	// in addition to (or instead of) text. Runs with HasBreak are kept
	// even when their text becomes empty, so the break survives
	// redistribution.
	HasBreak bool `json:"has_break,omitempty"`
}

// Paragraph owns an ordered sequence of runs whose concatenated text is
// the paragraph's full text.
type Paragraph struct {
	Runs []*Run `json:"runs"`
}

// Text returns the paragraph's full text: the concatenation of all run
// texts in order.
func (p *Paragraph) Text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// SetText replaces the paragraph's entire content with a single
// unformatted run. This is the structural fallback used when run-level
// redistribution cannot proceed; all formatting is lost by design of
// the fallback, never as a side effect of the normal path.
func (p *Paragraph) SetText(text string) {
	p.Runs = []*Run{{Text: text}}
}

// Consolidate merges adjacent runs with equal formatting into one run.
// Runs carrying an embedded break are never merged away, and empty runs
// without a break are dropped. Returns the number of runs removed.
func (p *Paragraph) Consolidate() int {
	if len(p.Runs) < 2 {
		return 0
	}
	out := make([]*Run, 0, len(p.Runs))
	for _, r := range p.Runs {
		if r.Text == "" && !r.HasBreak {
			continue
		}
		if len(out) > 0 {
			prev := out[len(out)-1]
			if !prev.HasBreak && !r.HasBreak && prev.Format.Equal(r.Format) {
				prev.Text += r.Text
				continue
			}
		}
		out = append(out, r)
	}
	removed := len(p.Runs) - len(out)
	p.Runs = out
	return removed
}

// Document is an ordered collection of paragraphs.
type Document struct {
	Paragraphs []*Paragraph `json:"paragraphs"`
}
