// Package cache defines the correction cache contract. Cached entries
// let the pipeline skip grammar-service and LLM calls for text it has
// already corrected, either verbatim or near-verbatim.
//
// Implementations live in subpackages: [memory] for a process-local
// store and [postgres] for a shared one.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Entry is one cached correction.
type Entry struct {
	Key            string    `json:"key"`
	Original       string    `json:"original"`
	Corrected      string    `json:"corrected"`
	Quality        float64   `json:"quality"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	AccessCount    int       `json:"access_count"`
}

// Store is a TTL-bounded correction cache. Implementations must be safe
// for concurrent use.
type Store interface {
	// Get returns the entry for the exact normalized key, or nil when
	// absent or expired. A hit updates access accounting.
	Get(ctx context.Context, key string) (*Entry, error)

	// Similar returns the best non-expired entry whose original text is
	// at least threshold similar to text, or nil when none qualifies.
	Similar(ctx context.Context, text string, threshold float64) (*Entry, error)

	// Put stores or replaces an entry under the normalized key of its
	// original text.
	Put(ctx context.Context, e *Entry) error

	// EvictExpired removes entries past their TTL and returns how many
	// were dropped.
	EvictExpired(ctx context.Context) (int, error)

	Close() error
}

// Normalize produces the canonical form used for exact-match keying:
// lowercased with interior whitespace collapsed to single spaces.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Key returns the cache key for text, a hex SHA-256 of its normalized
// form.
func Key(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}
