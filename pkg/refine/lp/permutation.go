// Package lp implements the deterministic synchronous label-propagation
// refiner (spec.md §4.5): moves are computed in parallel, but the applied
// set is always a pure function of (pi, seed, k, config), independent of
// thread count.
package lp

import (
	"context"

	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/concurrent"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"
)

// Permutation is the reproducible bucketed ordering of §4.5.1 step 1: every
// vertex is hashed into one of numBuckets buckets by a pure function of
// (seed, vertex id) — never a shared PRNG — and parallel counting sort
// scatters vertices into bucket-contiguous order. No goroutine's output ever
// depends on another's, so the result is identical regardless of thread
// count, which is what makes I6 achievable.
type Permutation struct {
	order  []hypergraph.NodeID
	bounds []int
}

// NewPermutation buckets nodes deterministically under seed.
func NewPermutation(ctx context.Context, pool *concurrent.Pool, nodes []hypergraph.NodeID, numBuckets int, seed int64) (*Permutation, error) {
	if numBuckets < 1 {
		numBuckets = 1
	}
	n := len(nodes)
	if n == 0 {
		return &Permutation{bounds: make([]int, numBuckets+1)}, nil
	}

	keyOf := func(i int) int { return bucketHash(seed, nodes[i], numBuckets) }

	// A sequential counting pass to recover the bucket boundaries: cheap
	// relative to CountingSort's own two parallel passes below, and it lets
	// Bounds() report exactly where each hash bucket landed rather than an
	// arbitrary equal split.
	counts := make([]int, numBuckets)
	for i := 0; i < n; i++ {
		counts[keyOf(i)]++
	}

	order := make([]hypergraph.NodeID, n)
	if err := pool.CountingSort(ctx, n, numBuckets, keyOf, func(srcIdx, dstSlot int) {
		order[dstSlot] = nodes[srcIdx]
	}); err != nil {
		return nil, err
	}

	bounds := make([]int, numBuckets+1)
	for b := 0; b < numBuckets; b++ {
		bounds[b+1] = bounds[b] + counts[b]
	}

	return &Permutation{order: order, bounds: bounds}, nil
}

// bucketHash assigns v to one of numBuckets buckets as a pure function of
// (seed, v): a splitmix64-style bit mix, not a shared PRNG, so it is safe to
// evaluate concurrently from CountingSort's parallel count and scatter
// passes without any ordering dependency.
func bucketHash(seed int64, v hypergraph.NodeID, numBuckets int) int {
	x := uint64(seed) + uint64(uint32(v))*0x9E3779B97F4A7C15
	x ^= x >> 30
	x *= 0xBF58476D1CE4E5B9
	x ^= x >> 27
	x *= 0x94D049BB133111EB
	x ^= x >> 31
	return int(x % uint64(numBuckets))
}

// Order returns the full permuted vertex sequence.
func (p *Permutation) Order() []hypergraph.NodeID { return p.order }

// Len returns the permutation length.
func (p *Permutation) Len() int { return len(p.order) }

// Bounds returns the numBuckets+1 boundary indices into Order() delimiting
// each hash bucket, as populated by NewPermutation.
func (p *Permutation) Bounds() []int { return p.bounds }
