package util

import (
	"math"
	"math/rand"
)

// Coin returns true half of the time.
func Coin(r *rand.Rand) bool {
	return r.Intn(2) == 0
}

// RatherLow returns true with a 10% chance.
func RatherLow(r *rand.Rand) bool {
	return r.Intn(10) == 1
}

// Small returns true with a 1% chance.
func Small(r *rand.Rand) bool {
	return r.Intn(100) == 1
}

// SmallNumber returns a small non-negative number, usually 0-3.
func SmallNumber(r *rand.Rand) int {
	return int(math.Abs(r.NormFloat64()) * 2)
}

// IntBetween returns a value in [lo, hi). It returns lo for empty ranges.
func IntBetween(r *rand.Rand, lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + r.Int63n(hi-lo)
}

// Pick returns a random element of items.
func Pick[T any](r *rand.Rand, items []T) T {
	return items[r.Intn(len(items))]
}

// Subset returns a random subset of items, preserving order.
func Subset[T any](r *rand.Rand, items []T) []T {
	return pickN(r, items, r.Intn(len(items)+1))
}

// NonEmptySubset returns a random non-empty subset of items, preserving order.
func NonEmptySubset[T any](r *rand.Rand, items []T) []T {
	if len(items) == 0 {
		return nil
	}
	return pickN(r, items, 1+r.Intn(len(items)))
}

func pickN[T any](r *rand.Rand, items []T, n int) []T {
	idx := r.Perm(len(items))[:n]
	keep := make([]bool, len(items))
	for _, i := range idx {
		keep[i] = true
	}
	out := make([]T, 0, n)
	for i, item := range items {
		if keep[i] {
			out = append(out, item)
		}
	}
	return out
}

// Shuffled returns a shuffled copy of items.
func Shuffled[T any](r *rand.Rand, items []T) []T {
	out := append([]T(nil), items...)
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
