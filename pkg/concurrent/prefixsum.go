package concurrent

import (
	"context"

	"golang.org/x/exp/constraints"
)

// PrefixSum computes out[i] = id ⊕ in[0] ⊕ ... ⊕ in[i] for i in [0, len(in)),
// using a two-pass (up-sweep then down-sweep) block algorithm: O(n) work,
// O(log n) depth when op is associative. out may alias in (in-place).
//
// Elements are int64, so the result is bit-identical to the sequential
// definition regardless of block count (spec.md I5) — wrapping integer
// arithmetic is associative exactly, unlike floating point.
func (p *Pool) PrefixSum(ctx context.Context, in, out []int64, op func(a, b int64) int64, id int64) error {
	n := len(in)
	if n == 0 {
		return nil
	}
	if len(out) != n {
		panic("concurrent.PrefixSum: out and in must have equal length")
	}

	numBlocks := p.numThreads
	if numBlocks > n {
		numBlocks = n
	}
	if numBlocks < 1 {
		numBlocks = 1
	}
	blockSize := (n + numBlocks - 1) / numBlocks

	blockBounds := make([]int, numBlocks+1)
	for b := 0; b <= numBlocks; b++ {
		lo := b * blockSize
		if lo > n {
			lo = n
		}
		blockBounds[b] = lo
	}

	// Up-sweep: each block computes its local inclusive prefix sum into out,
	// and we remember the block's total (out[hi-1]).
	blockTotals := make([]int64, numBlocks)
	err := p.ParallelFor(ctx, numBlocks, func(_ context.Context, b int) error {
		lo, hi := blockBounds[b], blockBounds[b+1]
		if lo >= hi {
			blockTotals[b] = id
			return nil
		}
		acc := in[lo]
		out[lo] = acc
		for i := lo + 1; i < hi; i++ {
			acc = op(acc, in[i])
			out[i] = acc
		}
		blockTotals[b] = acc
		return nil
	})
	if err != nil {
		return err
	}

	// Sequential exclusive prefix sum over the (few) block totals: this is
	// the tree-of-blocks reduction, small enough to do on one goroutine.
	blockOffsets := make([]int64, numBlocks)
	acc := id
	for b := 0; b < numBlocks; b++ {
		blockOffsets[b] = acc
		acc = op(acc, blockTotals[b])
	}

	// Down-sweep: fold each block's offset (id ⊕ everything before the
	// block) into every element of the block.
	return p.ParallelFor(ctx, numBlocks, func(_ context.Context, b int) error {
		lo, hi := blockBounds[b], blockBounds[b+1]
		offset := blockOffsets[b]
		if offset == id {
			return nil
		}
		for i := lo; i < hi; i++ {
			out[i] = op(offset, out[i])
		}
		return nil
	})
}

// Sum is the common associative operator used by most callers.
func Sum(a, b int64) int64 { return a + b }

// SequentialPrefixSum is the reference definition PrefixSum must match
// (spec.md I5); exported for tests.
func SequentialPrefixSum(in []int64, op func(a, b int64) int64, id int64) []int64 {
	out := make([]int64, len(in))
	acc := id
	for i, v := range in {
		acc = op(acc, v)
		out[i] = acc
	}
	return out
}

// Ordered is a convenience alias of constraints.Integer so callers outside
// this package can write generic integer helpers; PrefixSum itself is
// int64-only.
type Ordered = constraints.Integer
