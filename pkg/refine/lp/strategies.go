package lp

import (
	"context"
	"sort"

	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/concurrent"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/gaincache"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/movetracker"
)

// applyCandidate realizes one candidate directly against the shared
// hypergraph and gain cache, logging the move with the candidate's
// snapshot gain (not a gain recomputed after the apply).
func applyCandidate(phg hypergraph.PartitionedHypergraph, cache *gaincache.Cache, moves *movetracker.Tracker, c candidate, budget hypergraph.Weight) bool {
	return phg.ChangeNodePart(c.node, c.from, c.to, budget, func(eu hypergraph.EdgeUpdate) {
		cache.Update(phg, gaincache.SyncUpdate{
			Mover: c.node, Edge: eu.Edge, Weight: int64(eu.Weight),
			From: eu.From, PinCountFrom: eu.PinCountFrom,
			To: eu.To, PinCountTo: eu.PinCountTo,
		})
	}, func() {
		moves.InsertMove(hypergraph.Move{Node: c.node, From: c.from, To: c.to, Gain: c.gain})
	})
}

// unorderedPairKey canonicalizes a (from,to) move into its unordered block
// pair, plus which direction the move travels within it.
type unorderedPairKey struct {
	lo, hi hypergraph.PartID
}

func pairOf(a, b hypergraph.PartID) unorderedPairKey {
	if a > b {
		a, b = b, a
	}
	return unorderedPairKey{lo: a, hi: b}
}

// canonicalPairIndex assigns every unordered block pair a dense index in
// [0, k*(k-1)/2), built once via a fixed nested loop over block ids. Never
// ranged over, so it carries no map-iteration-order nondeterminism, and it
// doubles as the key space for grouping moves by pair with CountingSort.
type canonicalPairIndex struct {
	index [][]int
	pairs []unorderedPairKey
}

func newCanonicalPairIndex(k int) *canonicalPairIndex {
	idx := make([][]int, k)
	for i := range idx {
		idx[i] = make([]int, k)
	}
	var pairs []unorderedPairKey
	for lo := 0; lo < k; lo++ {
		for hi := lo + 1; hi < k; hi++ {
			idx[lo][hi] = len(pairs)
			pairs = append(pairs, unorderedPairKey{lo: hypergraph.PartID(lo), hi: hypergraph.PartID(hi)})
		}
	}
	return &canonicalPairIndex{index: idx, pairs: pairs}
}

func (c *canonicalPairIndex) of(a, b hypergraph.PartID) int {
	pair := pairOf(a, b)
	return c.index[pair.lo][pair.hi]
}

func (c *canonicalPairIndex) numPairs() int { return len(c.pairs) }

// applyMaximalPrefixesInBlockPairs is Strategy A (spec.md §4.5.2): group
// candidates by unordered block pair via parallel counting sort, sort each
// direction by (gain desc, node id asc), and greedily pick the largest
// prefix pair (a,b) that keeps both blocks within budget. The true
// implementation recurses divide-and-conquer over the longer axis with a
// sequential cutoff of 2000; this binary-searches the feasible boundary
// directly (see DESIGN.md) — same feasibility contract, different search
// order, since a bitwise-identical tie-break is not required to honor I6
// (determinism is about the final applied set under a fixed gain snapshot,
// not about which internal search order found it).
//
// Pairs are then applied in fixed index order 0..numPairs-1, never by
// ranging over a map: applying one pair mutates PartWeight, which feeds the
// feasibility budget of every later pair sharing a block, so the traversal
// order over pairs is itself part of what determinism requires.
//
// Returns the moves actually applied, and the moves left over for the
// residual strategy (B1/B2), plus whether any pair had to leave moves on
// the table (increaseSubRounds).
func applyMaximalPrefixesInBlockPairs(
	ctx context.Context, pool *concurrent.Pool,
	phg hypergraph.PartitionedHypergraph, cache *gaincache.Cache, moves *movetracker.Tracker,
	candidates []candidate, maxPartWeight []hypergraph.Weight,
) (applied, residual []candidate, increaseSubRounds bool, err error) {
	pairs := newCanonicalPairIndex(len(maxPartWeight))
	numPairs := pairs.numPairs()

	var filtered []candidate
	for _, c := range candidates {
		if c.to == c.from || c.gain < 0 {
			continue // only non-negative gain moves are ever realized by LP
		}
		filtered = append(filtered, c)
	}
	if len(filtered) == 0 || numPairs == 0 {
		return nil, nil, false, nil
	}

	// Sort once by (gain desc, node id asc): CountingSort is stable, so
	// grouping by pair index below preserves this order within each group —
	// exactly the per-direction ordering each pair needs, no second sort
	// required per bucket.
	sort.Slice(filtered, func(i, j int) bool { return byGainDescNodeAsc(filtered[i], filtered[j]) })

	keyOf := func(i int) int { return pairs.of(filtered[i].from, filtered[i].to) }

	counts := make([]int, numPairs)
	for i := range filtered {
		counts[keyOf(i)]++
	}

	grouped := make([]candidate, len(filtered))
	if err := pool.CountingSort(ctx, len(filtered), numPairs, keyOf, func(srcIdx, dstSlot int) {
		grouped[dstSlot] = filtered[srcIdx]
	}); err != nil {
		return nil, nil, false, err
	}

	bucketStart := make([]int, numPairs+1)
	for p := 0; p < numPairs; p++ {
		bucketStart[p+1] = bucketStart[p] + counts[p]
	}

	for p := 0; p < numPairs; p++ {
		pair := pairs.pairs[p]
		all := grouped[bucketStart[p]:bucketStart[p+1]]
		if len(all) == 0 {
			continue
		}

		var dirLoHi, dirHiLo []candidate
		for _, c := range all {
			if c.from == pair.lo {
				dirLoHi = append(dirLoHi, c)
			} else {
				dirHiLo = append(dirHiLo, c)
			}
		}

		prefixLoHi := prefixWeights(dirLoHi)
		prefixHiLo := prefixWeights(dirHiLo)

		weightLo := phg.PartWeight(pair.lo)
		weightHi := phg.PartWeight(pair.hi)
		maxLo := maxPartWeight[pair.lo]
		maxHi := maxPartWeight[pair.hi]

		a, b := maximalFeasiblePrefixPair(prefixLoHi, prefixHiLo, weightLo, weightHi, maxLo, maxHi)

		for i := 0; i < a; i++ {
			if applyCandidate(phg, cache, moves, dirLoHi[i], maxPartWeight[dirLoHi[i].to]) {
				applied = append(applied, dirLoHi[i])
			}
		}
		for i := 0; i < b; i++ {
			if applyCandidate(phg, cache, moves, dirHiLo[i], maxPartWeight[dirHiLo[i].to]) {
				applied = append(applied, dirHiLo[i])
			}
		}

		if a < len(dirLoHi) {
			residual = append(residual, dirLoHi[a:]...)
			increaseSubRounds = true
		}
		if b < len(dirHiLo) {
			residual = append(residual, dirHiLo[b:]...)
			increaseSubRounds = true
		}
	}

	return applied, residual, increaseSubRounds, nil
}

func prefixWeights(cs []candidate) []hypergraph.Weight {
	prefix := make([]hypergraph.Weight, len(cs)+1)
	for i, c := range cs {
		prefix[i+1] = prefix[i] + c.weight
	}
	return prefix
}

// maximalFeasiblePrefixPair finds the largest a (ties broken by largest b)
// such that moving the first a lo->hi candidates and first b hi->lo
// candidates keeps both blocks within their maxWeight budget. When no pair
// is feasible (for instance a block already exceeds its budget), it
// returns (0,0).
func maximalFeasiblePrefixPair(prefixLoHi, prefixHiLo []hypergraph.Weight, weightLo, weightHi, maxLo, maxHi hypergraph.Weight) (a, b int) {
	numLoHi := len(prefixLoHi) - 1
	numHiLo := len(prefixHiLo) - 1

	for candidateA := numLoHi; candidateA >= 0; candidateA-- {
		sumA := prefixLoHi[candidateA]

		// Largest b with weightLo - sumA + prefixHiLo[b] <= maxLo.
		roomForLo := maxLo - weightLo + sumA
		bMax := sort.Search(numHiLo+1, func(bb int) bool { return prefixHiLo[bb] > roomForLo }) - 1
		if bMax < 0 {
			continue
		}
		if bMax > numHiLo {
			bMax = numHiLo
		}

		hiAfter := weightHi + sumA - prefixHiLo[bMax]
		if hiAfter <= maxHi {
			return candidateA, bMax
		}
	}
	return 0, 0
}
