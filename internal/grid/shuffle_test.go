package grid

import "testing"

func TestShuffle(t *testing.T) {
	t.Run("keeps every element", func(t *testing.T) {
		s := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
		Shuffle(NewSeededRand(1), s)
		seen := make(map[int]bool)
		for _, v := range s {
			seen[v] = true
		}
		if len(seen) != 10 {
			t.Errorf("expected 10 distinct values, got %d", len(seen))
		}
	})

	t.Run("same seed same order", func(t *testing.T) {
		a := []int{0, 1, 2, 3, 4, 5, 6, 7}
		b := []int{0, 1, 2, 3, 4, 5, 6, 7}
		Shuffle(NewSeededRand(42), a)
		Shuffle(NewSeededRand(42), b)
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("expected deterministic shuffle, got %v and %v", a, b)
			}
		}
	})

	t.Run("every position reachable", func(t *testing.T) {
		rng := NewSeededRand(3)
		first := make(map[int]int)
		for i := 0; i < 2000; i++ {
			s := []int{0, 1, 2, 3}
			Shuffle(rng, s)
			first[s[0]]++
		}
		for v := 0; v < 4; v++ {
			if first[v] < 350 {
				t.Errorf("value %d led only %d of 2000 shuffles", v, first[v])
			}
		}
	})
}
