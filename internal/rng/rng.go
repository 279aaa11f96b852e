// Package rng derives independent random streams from a run seed and the key
// of the entity being generated. A stream for (seed, "noise", 3, "SKU-0001",
// "2024-10-09") is the same no matter which goroutine asks for it or in which
// order, which keeps parallel generation byte-identical to sequential.
package rng

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// New returns a PCG stream seeded with (seed, xxhash64 of parts joined by "|").
func New(seed int64, parts ...any) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), Key(parts...)))
}

// Key hashes parts into a stream selector.
func Key(parts ...any) uint64 {
	d := xxhash.New()
	for i, p := range parts {
		if i > 0 {
			_, _ = d.WriteString("|")
		}
		switch v := p.(type) {
		case string:
			_, _ = d.WriteString(v)
		default:
			_, _ = fmt.Fprint(d, v)
		}
	}
	return d.Sum64()
}

// Uniform draws from [lo, hi).
func Uniform(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// IntRange draws from [lo, hi). It returns lo when the range is empty.
func IntRange(r *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo)
}

// Poisson draws a Poisson variate with mean lambda (Knuth's method).
func Poisson(r *rand.Rand, lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	limit := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		p *= r.Float64()
		if p <= limit {
			return k
		}
		k++
	}
}

// WeightedIndex picks an index with probability proportional to weights.
func WeightedIndex(r *rand.Rand, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return r.IntN(len(weights))
	}
	x := r.Float64() * total
	for i, w := range weights {
		x -= w
		if x < 0 {
			return i
		}
	}
	return len(weights) - 1
}

// Choice picks one element of xs uniformly. xs must be non-empty.
func Choice[T any](r *rand.Rand, xs []T) T {
	return xs[r.IntN(len(xs))]
}

// Sample returns k distinct indices from [0, n) in ascending order.
func Sample(r *rand.Rand, n, k int) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	// partial Fisher-Yates
	for i := 0; i < k; i++ {
		j := i + r.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	out := idx[:k]
	sort.Ints(out)
	return out
}
