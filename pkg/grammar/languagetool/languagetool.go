// Package languagetool implements grammar.Service against the
// LanguageTool HTTP API (self-hosted or hosted), using its
// /v2/check endpoint.
package languagetool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/emendo-dev/emendo/pkg/grammar"
)

var _ grammar.Service = (*Client)(nil)

// Client talks to a LanguageTool server. Safe for concurrent use.
type Client struct {
	endpoint string
	http     *http.Client
}

// Option is a functional option for Client.
type Option func(*Client)

// WithTimeout sets a per-request timeout. Default is 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the LanguageTool server at endpoint, e.g.
// "http://localhost:8010".
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("languagetool: endpoint must not be empty")
	}
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// checkResponse mirrors the subset of the /v2/check JSON body we need.
type checkResponse struct {
	Matches []struct {
		Message      string `json:"message"`
		Offset       int    `json:"offset"`
		Length       int    `json:"length"`
		Replacements []struct {
			Value string `json:"value"`
		} `json:"replacements"`
		Rule struct {
			ID string `json:"id"`
		} `json:"rule"`
	} `json:"matches"`
}

// Check implements grammar.Service. Connection failures are wrapped in
// [grammar.ErrServiceUnavailable] so callers can degrade gracefully.
func (c *Client) Check(ctx context.Context, text, language string) ([]grammar.Suggestion, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("language", language)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/v2/check", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("languagetool: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", grammar.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: server returned %s", grammar.ErrServiceUnavailable, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("languagetool: check failed: %s: %s", resp.Status, body)
	}

	var parsed checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("languagetool: decode response: %w", err)
	}

	suggestions := make([]grammar.Suggestion, 0, len(parsed.Matches))
	for _, m := range parsed.Matches {
		offset, length := byteSpan(text, m.Offset, m.Length)
		s := grammar.Suggestion{
			RuleID:  m.Rule.ID,
			Offset:  offset,
			Length:  length,
			Message: m.Message,
		}
		for _, r := range m.Replacements {
			s.Replacements = append(s.Replacements, r.Value)
		}
		suggestions = append(suggestions, s)
	}
	return suggestions, nil
}

// byteSpan converts a match position, reported by the Java server in
// UTF-16 code units, into a byte offset and length within text.
// Callers splice suggestions by byte position, and any accented letter
// before a match makes the two units diverge.
func byteSpan(text string, offset, length int) (int, int) {
	start := byteOffset(text, offset)
	end := byteOffset(text, offset+length)
	return start, end - start
}

func byteOffset(text string, units int) int {
	n := 0
	for i, r := range text {
		if n >= units {
			return i
		}
		l := utf16.RuneLen(r)
		if l < 0 {
			l = 1
		}
		n += l
	}
	return len(text)
}
