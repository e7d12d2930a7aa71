package util

import "math/rand"

// PickWeighted returns an index with probability proportional to its weight.
// Entries that are masked out by enabled or have a non-positive weight are
// never chosen unless nothing else is left, in which case the pick is
// uniform over the enabled entries. A nil mask enables everything.
func PickWeighted(r *rand.Rand, weights []int, enabled []bool) int {
	total := 0
	for i, w := range weights {
		if w > 0 && armEnabled(enabled, i) {
			total += w
		}
	}
	if total == 0 {
		var open []int
		for i := range weights {
			if armEnabled(enabled, i) {
				open = append(open, i)
			}
		}
		if len(open) == 0 {
			return r.Intn(len(weights))
		}
		return Pick(r, open)
	}
	roll := r.Intn(total)
	for i, w := range weights {
		if w <= 0 || !armEnabled(enabled, i) {
			continue
		}
		if roll < w {
			return i
		}
		roll -= w
	}
	return len(weights) - 1
}

// Chance reports true with the given percent probability.
func Chance(r *rand.Rand, percent int) bool {
	switch {
	case percent <= 0:
		return false
	case percent >= 100:
		return true
	}
	return r.Intn(100) < percent
}
