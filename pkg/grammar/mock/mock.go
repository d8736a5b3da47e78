// Package mock provides a test double for the grammar.Service
// interface.
package mock

import (
	"context"
	"sync"

	"github.com/emendo-dev/emendo/pkg/grammar"
)

// Ensure Service implements grammar.Service at compile time.
var _ grammar.Service = (*Service)(nil)

// CheckCall records a single invocation of Check.
type CheckCall struct {
	Text     string
	Language string
}

// Service is a mock implementation of grammar.Service. Zero values
// cause Check to return no suggestions and a nil error.
type Service struct {
	mu sync.Mutex

	// Suggestions is returned by Check.
	Suggestions []grammar.Suggestion

	// Err, if non-nil, is returned as the error from Check.
	Err error

	// CheckFunc, if non-nil, overrides Suggestions/Err.
	CheckFunc func(ctx context.Context, text, language string) ([]grammar.Suggestion, error)

	// CheckCalls records every invocation of Check in order.
	CheckCalls []CheckCall
}

// Check records the call and returns the configured suggestions.
func (s *Service) Check(ctx context.Context, text, language string) ([]grammar.Suggestion, error) {
	s.mu.Lock()
	s.CheckCalls = append(s.CheckCalls, CheckCall{Text: text, Language: language})
	fn := s.CheckFunc
	suggestions, err := s.Suggestions, s.Err
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, language)
	}
	return suggestions, err
}

// Calls returns a copy of the recorded invocations. Thread-safe.
func (s *Service) Calls() []CheckCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := make([]CheckCall, len(s.CheckCalls))
	copy(calls, s.CheckCalls)
	return calls
}
