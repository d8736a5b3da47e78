package engine

import (
	"fmt"
	"testing"
)

func testUnits(n int) []*unit {
	units := make([]*unit, n)
	for i := range units {
		units[i] = &unit{index: i, text: fmt.Sprintf("paragrafo numero %d", i)}
	}
	return units
}

func chunkSizes(chunks []*chunk) []int {
	sizes := make([]int, len(chunks))
	for i, c := range chunks {
		sizes[i] = len(c.units)
	}
	return sizes
}

func TestMakeChunksUnitCap(t *testing.T) {
	t.Parallel()

	chunks := makeChunks(testUnits(12), 5, 100000, nil)

	want := []int{5, 5, 2}
	got := chunkSizes(chunks)
	if len(got) != len(want) {
		t.Fatalf("got %d chunks (%v), want %v", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk sizes = %v, want %v", got, want)
		}
	}
}

func TestMakeChunksTokenBudget(t *testing.T) {
	t.Parallel()

	// Each unit costs 10 tokens; a 25-token budget fits two per chunk.
	estimate := func(string) int { return 10 }
	chunks := makeChunks(testUnits(5), 100, 25, estimate)

	want := []int{2, 2, 1}
	got := chunkSizes(chunks)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("chunk sizes = %v, want %v", got, want)
	}
}

func TestMakeChunksOversizedUnitAlone(t *testing.T) {
	t.Parallel()

	units := testUnits(3)
	costs := map[int]int{0: 10, 1: 100, 2: 10}
	estimate := func(text string) int {
		for _, u := range units {
			if u.text == text {
				return costs[u.index]
			}
		}
		return 1
	}

	chunks := makeChunks(units, 5, 50, estimate)

	want := []int{1, 1, 1}
	got := chunkSizes(chunks)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("chunk sizes = %v, want %v", got, want)
	}
	if chunks[1].units[0].index != 1 {
		t.Errorf("oversized unit landed in chunk %v", chunks[1].units[0].index)
	}
}

func TestMakeChunksPreservesOrder(t *testing.T) {
	t.Parallel()

	chunks := makeChunks(testUnits(9), 4, 100000, nil)

	next := 0
	for _, c := range chunks {
		for _, u := range c.units {
			if u.index != next {
				t.Fatalf("unit order broken: got index %d, want %d", u.index, next)
			}
			next++
		}
	}
	if next != 9 {
		t.Fatalf("chunks cover %d units, want 9", next)
	}
}

func TestMakeChunksEmpty(t *testing.T) {
	t.Parallel()

	if chunks := makeChunks(nil, 5, 1000, nil); len(chunks) != 0 {
		t.Fatalf("got %d chunks for no units", len(chunks))
	}
}

func TestDefaultEstimator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"dodici lettere", 4},
	}
	for _, tt := range tests {
		if got := defaultEstimator(tt.in); got != tt.want {
			t.Errorf("defaultEstimator(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
