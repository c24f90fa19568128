package engine

import (
	"testing"

	"pgregory.net/rapid"
)

// Tally must always return either a unique plurality target or a tie, never a
// target that some other candidate matched or beat.
func TestTallyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		voters := rapid.IntRange(0, 12).Draw(t, "voters")
		votes := make(map[string]string, voters)
		for i := 0; i < voters; i++ {
			target := rapid.SampledFrom([]string{"a", "b", "c", "d"}).Draw(t, "target")
			votes[string(rune('A'+i))] = target
		}

		target, count, tie := Tally(votes)

		counts := map[string]int{}
		for _, tg := range votes {
			counts[tg]++
		}
		best := 0
		bestHolders := 0
		for _, c := range counts {
			if c > best {
				best = c
				bestHolders = 1
			} else if c == best {
				bestHolders++
			}
		}

		if len(votes) == 0 || bestHolders > 1 {
			if !tie {
				t.Fatalf("expected tie, got target %q with %d", target, count)
			}
			return
		}
		if tie {
			t.Fatalf("unexpected tie with counts %v", counts)
		}
		if count != best || counts[target] != best {
			t.Fatalf("target %q count %d does not hold the plurality %d (%v)", target, count, best, counts)
		}
	})
}
