package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/emendo-dev/emendo/pkg/llm"
)

// systemPromptTemplate is the base correction prompt. The glossary
// block is substituted at call time so each request carries the names
// established so far in the session.
const systemPromptTemplate = `You are a proofreader for Italian prose.

Your task: correct the numbered text segments provided by the user.

Rules:
- Fix spelling, accents, apostrophes, doubled consonants, agreement errors, and obvious typos.
- Do NOT rewrite style, reorder sentences, merge or split segments, or summarise.
- Do NOT add or remove content. Every sentence of the input must survive.
- Never translate.
%s
Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{"segments": [{"i": <index>, "text": "<corrected segment>"}]}

Return EVERY segment with its original index, including segments that needed no changes.`

// batchRequest is the JSON body sent as the user message.
type batchRequest struct {
	Segments []batchSegment `json:"segments"`
}

type batchSegment struct {
	I    int    `json:"i"`
	Text string `json:"text"`
}

// batchResponse is the expected JSON structure returned by the model.
type batchResponse struct {
	Segments []batchSegment `json:"segments"`
}

// buildBatchPrompt renders the system prompt and the user message for a
// set of segments. glossaryTerms lists proper nouns the model must not
// alter; empty is fine.
func buildBatchPrompt(texts []string, glossaryTerms []string) (llm.Request, error) {
	glossaryBlock := ""
	if len(glossaryTerms) > 0 {
		var sb strings.Builder
		sb.WriteString("\nPreserve these proper nouns exactly as written:\n")
		for _, term := range glossaryTerms {
			sb.WriteString("- ")
			sb.WriteString(term)
			sb.WriteByte('\n')
		}
		glossaryBlock = sb.String()
	}

	body := batchRequest{Segments: make([]batchSegment, len(texts))}
	for i, t := range texts {
		body.Segments[i] = batchSegment{I: i, Text: t}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return llm.Request{}, fmt.Errorf("engine: marshal batch: %w", err)
	}

	return llm.Request{
		SystemPrompt: fmt.Sprintf(systemPromptTemplate, glossaryBlock),
		Messages: []llm.Message{
			{Role: "user", Content: string(payload)},
		},
	}, nil
}

// parseBatchResponse maps the model output back onto input slots.
// Slots the model skipped keep their original text; out-of-range or
// duplicate indexes are ignored. An unparseable body is an error so the
// caller can fall back to leaving the chunk unchanged.
func parseBatchResponse(content string, inputs []string) ([]string, error) {
	cleaned := stripMarkdown(content)

	var r batchResponse
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return nil, fmt.Errorf("engine: parse batch response: %w", err)
	}

	out := make([]string, len(inputs))
	copy(out, inputs)
	seen := make(map[int]bool, len(r.Segments))
	for _, seg := range r.Segments {
		if seg.I < 0 || seg.I >= len(inputs) || seen[seg.I] {
			continue
		}
		seen[seg.I] = true
		if seg.Text != "" {
			out[seg.I] = seg.Text
		}
	}
	return out, nil
}

// stripMarkdown removes optional markdown code fences (```json ... ```)
// that some models prepend and append to JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
