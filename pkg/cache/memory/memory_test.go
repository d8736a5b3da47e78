package memory

import (
	"context"
	"testing"
	"time"

	"github.com/emendo-dev/emendo/pkg/cache"
)

func TestStore_PutGet(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	e := &cache.Entry{
		Original:  "Il gato dorme.",
		Corrected: "Il gatto dorme.",
		Quality:   0.97,
		Type:      "local",
	}
	if err := s.Put(ctx, e); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, cache.Key("Il gato dorme."))
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("Get returned nil for stored entry")
	}
	if got.Corrected != "Il gatto dorme." {
		t.Errorf("Corrected = %q", got.Corrected)
	}
	if got.AccessCount != 1 {
		t.Errorf("AccessCount = %d, want 1", got.AccessCount)
	}
}

func TestStore_GetNormalizesKey(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	if err := s.Put(ctx, &cache.Entry{Original: "Il  Gato   dorme.", Corrected: "Il gatto dorme."}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, cache.Key("il gato dorme."))
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("case and whitespace differences should map to the same key")
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	t.Parallel()
	now := time.Now()
	clock := func() time.Time { return now }
	s := New(WithTTL(time.Hour), withClock(clock))
	ctx := context.Background()

	if err := s.Put(ctx, &cache.Entry{Original: "testo", Corrected: "testo"}); err != nil {
		t.Fatal(err)
	}

	now = now.Add(2 * time.Hour)
	got, err := s.Get(ctx, cache.Key("testo"))
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("expired entry returned")
	}
	if s.Len() != 0 {
		t.Errorf("expired entry not dropped, Len = %d", s.Len())
	}
}

func TestStore_EvictExpired(t *testing.T) {
	t.Parallel()
	now := time.Now()
	clock := func() time.Time { return now }
	s := New(WithTTL(time.Hour), withClock(clock))
	ctx := context.Background()

	for _, text := range []string{"uno", "due", "tre"} {
		if err := s.Put(ctx, &cache.Entry{Original: text, Corrected: text}); err != nil {
			t.Fatal(err)
		}
	}
	now = now.Add(90 * time.Minute)
	if err := s.Put(ctx, &cache.Entry{Original: "quattro", Corrected: "quattro"}); err != nil {
		t.Fatal(err)
	}

	n, err := s.EvictExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("evicted %d, want 3", n)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

// A near-duplicate of a cached paragraph should be served from the
// cache when it clears the similarity bar, and missed when it does not.
func TestStore_Similar(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	original := "Maria andò al mercato per comprare la frutta fresca di stagione."
	if err := s.Put(ctx, &cache.Entry{Original: original, Corrected: original, Quality: 0.95}); err != nil {
		t.Fatal(err)
	}

	near := "Maria andò al mercato per comprare la frutta fresca di stagione!"
	hit, err := s.Similar(ctx, near, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	if hit == nil {
		t.Fatal("near-identical text missed the cache")
	}
	if hit.Original != original {
		t.Errorf("hit.Original = %q", hit.Original)
	}

	far := "Il temporale spazzò via le tende del campeggio durante la notte."
	miss, err := s.Similar(ctx, far, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	if miss != nil {
		t.Errorf("unrelated text matched the cache: %q", miss.Original)
	}
}

func TestStore_CapacityEviction(t *testing.T) {
	t.Parallel()
	now := time.Now()
	clock := func() time.Time { return now }
	s := New(WithMaxEntries(2), withClock(clock))
	ctx := context.Background()

	if err := s.Put(ctx, &cache.Entry{Original: "primo", Corrected: "primo"}); err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Minute)
	if err := s.Put(ctx, &cache.Entry{Original: "secondo", Corrected: "secondo"}); err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Minute)
	if _, err := s.Get(ctx, cache.Key("primo")); err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Minute)
	if err := s.Put(ctx, &cache.Entry{Original: "terzo", Corrected: "terzo"}); err != nil {
		t.Fatal(err)
	}

	if got, _ := s.Get(ctx, cache.Key("secondo")); got != nil {
		t.Error("least recently used entry survived eviction")
	}
	if got, _ := s.Get(ctx, cache.Key("primo")); got == nil {
		t.Error("recently used entry was evicted")
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	if err := s.Put(ctx, &cache.Entry{Original: "testo", Corrected: "testo corretto"}); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Get(ctx, cache.Key("testo"))
	got.Corrected = "manomesso"

	again, _ := s.Get(ctx, cache.Key("testo"))
	if again.Corrected != "testo corretto" {
		t.Error("caller mutation leaked into the store")
	}
}
