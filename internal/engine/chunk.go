package engine

import "github.com/emendo-dev/emendo/pkg/document"

// unit is one paragraph moving through the pipeline. text is the
// working copy; the paragraph itself is only touched after all stages
// finish, so a rolled-back run leaves the document untouched.
type unit struct {
	index  int
	para   *document.Paragraph
	text   string
	done   bool
	failed bool

	// stage and quality describe the last accepted correction, for the
	// cache write-back in finalize.
	stage   string
	quality float64
}

// chunk is a group of units corrected together by one LLM batch call.
type chunk struct {
	units []*unit
}

// tokenEstimator approximates the LLM token cost of a text.
type tokenEstimator func(text string) int

// defaultEstimator is the ~4 bytes per token heuristic used when no
// provider-specific estimator is available.
func defaultEstimator(text string) int {
	return (len(text) + 3) / 4
}

// makeChunks packs units into chunks, closing a chunk when the next
// unit would exceed either the unit cap or the token budget. A unit
// whose own estimate exceeds the budget gets a chunk to itself rather
// than being dropped.
func makeChunks(units []*unit, maxUnits, maxTokens int, estimate tokenEstimator) []*chunk {
	if estimate == nil {
		estimate = defaultEstimator
	}
	var (
		chunks  []*chunk
		current *chunk
		budget  int
	)
	for _, u := range units {
		cost := estimate(u.text)
		if current != nil &&
			(len(current.units) >= maxUnits || budget+cost > maxTokens) {
			chunks = append(chunks, current)
			current = nil
		}
		if current == nil {
			current = &chunk{}
			budget = 0
		}
		current.units = append(current.units, u)
		budget += cost
	}
	if current != nil {
		chunks = append(chunks, current)
	}
	return chunks
}
