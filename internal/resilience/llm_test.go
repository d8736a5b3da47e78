package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/emendo-dev/emendo/pkg/llm"
	"github.com/emendo-dev/emendo/pkg/llm/mock"
)

func TestProviderRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	calls := 0
	inner := &mock.Provider{
		CompleteFunc: func(context.Context, llm.Request) (*llm.Response, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("temporary")
			}
			return &llm.Response{Content: "ok"}, nil
		},
	}
	p := NewProvider(inner, ProviderConfig{MaxAttempts: 3, Backoff: time.Millisecond})

	resp, err := p.Complete(context.Background(), llm.Request{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("content = %q", resp.Content)
	}
	if calls != 3 {
		t.Errorf("inner called %d times, want 3", calls)
	}
}

func TestProviderSurfacesErrorAfterAttempts(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("permanently broken")
	inner := &mock.Provider{CompleteErr: wantErr}
	p := NewProvider(inner, ProviderConfig{MaxAttempts: 2, Backoff: time.Millisecond})

	if _, err := p.Complete(context.Background(), llm.Request{}); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if got := len(inner.Calls()); got != 2 {
		t.Errorf("inner called %d times, want 2", got)
	}
}

func TestProviderDoesNotRetryCancelledContext(t *testing.T) {
	t.Parallel()

	inner := &mock.Provider{CompleteErr: context.Canceled}
	p := NewProvider(inner, ProviderConfig{MaxAttempts: 5, Backoff: time.Millisecond})

	if _, err := p.Complete(context.Background(), llm.Request{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got := len(inner.Calls()); got != 1 {
		t.Errorf("inner called %d times, want 1", got)
	}
}

func TestProviderBreakerStopsRepeatedBatches(t *testing.T) {
	t.Parallel()

	inner := &mock.Provider{CompleteErr: errors.New("down")}
	p := NewProvider(inner, ProviderConfig{
		MaxAttempts: 1,
		Backoff:     time.Millisecond,
		Breaker:     BreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})

	ctx := context.Background()
	_, _ = p.Complete(ctx, llm.Request{})
	_, _ = p.Complete(ctx, llm.Request{})

	if _, err := p.Complete(ctx, llm.Request{}); !errors.Is(err, ErrOpen) {
		t.Fatalf("err = %v, want ErrOpen", err)
	}
	if got := len(inner.Calls()); got != 2 {
		t.Errorf("inner called %d times after breaker opened, want 2", got)
	}
}

func TestProviderCountTokensDelegates(t *testing.T) {
	t.Parallel()

	inner := &mock.Provider{TokenCount: 42}
	p := NewProvider(inner, ProviderConfig{})

	n, err := p.CountTokens([]llm.Message{{Role: "user", Content: "ciao"}})
	if err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	if n != 42 {
		t.Errorf("tokens = %d, want 42", n)
	}
}
