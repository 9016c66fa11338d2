package concurrent

import "context"

// CountingSort stably scatters items into buckets determined by keyOf, in
// parallel: a first pass counts per-bucket occurrences per block (same
// block split as PrefixSum), a sequential prefix sum over those counts
// turns them into offsets, and
// a second pass scatters each item to its slot. Used by the LP refiner's
// bucketed permutation (§4.5.1) and by Strategy A's grouping of moves by
// (from, to) block pair (§4.5.2).
//
// Stability (equal keys preserve relative input order) is required so that
// "sort by (gain desc, node id asc)" in the apply-strategies can be
// expressed as two successive stable sorts, or as one CountingSort by gain
// bucket followed by an in-bucket tie-break — callers choose.
func (p *Pool) CountingSort(ctx context.Context, n int, numBuckets int, keyOf func(i int) int, scatter func(srcIdx, dstSlot int)) error {
	if n == 0 {
		return nil
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

	// counts[b][k] = number of items in block b with key k.
	counts := make([][]int64, numBlocks)
	for b := range counts {
		counts[b] = make([]int64, numBuckets)
	}

	if err := p.ParallelFor(ctx, numBlocks, func(_ context.Context, b int) error {
		lo, hi := blockBounds[b], blockBounds[b+1]
		for i := lo; i < hi; i++ {
			counts[b][keyOf(i)]++
		}
		return nil
	}); err != nil {
		return err
	}

	// globalOffsets[k] = total items with key < k, bucketStart[b][k] =
	// offset within bucket k where block b's items begin.
	globalOffsets := make([]int64, numBuckets+1)
	bucketStart := make([][]int64, numBlocks)
	for b := range bucketStart {
		bucketStart[b] = make([]int64, numBuckets)
	}

	for k := 0; k < numBuckets; k++ {
		running := int64(0)
		for b := 0; b < numBlocks; b++ {
			bucketStart[b][k] = running
			running += counts[b][k]
		}
		globalOffsets[k+1] = globalOffsets[k] + running
	}

	return p.ParallelFor(ctx, numBlocks, func(_ context.Context, b int) error {
		lo, hi := blockBounds[b], blockBounds[b+1]
		cursor := make([]int64, numBuckets)
		copy(cursor, bucketStart[b])
		for i := lo; i < hi; i++ {
			k := keyOf(i)
			dst := globalOffsets[k] + cursor[k]
			cursor[k]++
			scatter(i, int(dst))
		}
		return nil
	})
}
