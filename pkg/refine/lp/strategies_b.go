package lp

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/concurrent"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/gaincache"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/movetracker"
)

const hugeBudget = hypergraph.Weight(1) << 62

func filterNonNegative(cs []candidate) []candidate {
	out := make([]candidate, 0, len(cs))
	for _, c := range cs {
		if c.to != c.from && c.gain >= 0 {
			out = append(out, c)
		}
	}
	return out
}

func revertCandidate(phg hypergraph.PartitionedHypergraph, cache *gaincache.Cache, c candidate) {
	phg.ChangeNodePart(c.node, c.to, c.from, hugeBudget, func(eu hypergraph.EdgeUpdate) {
		cache.Update(phg, gaincache.SyncUpdate{
			Mover: c.node, Edge: eu.Edge, Weight: int64(eu.Weight),
			From: eu.From, PinCountFrom: eu.PinCountFrom,
			To: eu.To, PinCountTo: eu.PinCountTo,
		})
	}, nil)
}

// applySortedByGainAndRevertUnbalanced is Strategy B1 (spec.md §4.5.3):
// sort all residual candidates by (gain desc, node id asc), repeatedly
// revert the tail-most move into any block that remains overloaded once
// every surviving move is accounted for, then commit what's left. If the
// realized attributed gain across the committed set is negative, undo
// everything.
func applySortedByGainAndRevertUnbalanced(
	phg hypergraph.PartitionedHypergraph, cache *gaincache.Cache, moves *movetracker.Tracker,
	candidates []candidate, maxPartWeight []hypergraph.Weight,
) []candidate {
	cs := filterNonNegative(candidates)
	sort.Slice(cs, func(i, j int) bool { return byGainDescNodeAsc(cs[i], cs[j]) })

	reverted := make([]bool, len(cs))
	delta := make(map[hypergraph.PartID]int64)
	for _, c := range cs {
		delta[c.from] -= int64(c.weight)
		delta[c.to] += int64(c.weight)
	}

	// Indexed over [0, k), never ranged over delta directly: which
	// overloaded block gets relieved first determines which tail moves
	// revert, so the traversal order here is part of what determinism
	// requires, not just the lookup.
	overloadedBlock := func() (hypergraph.PartID, bool) {
		for i := 0; i < len(maxPartWeight); i++ {
			p := hypergraph.PartID(i)
			if phg.PartWeight(p)+hypergraph.Weight(delta[p]) > maxPartWeight[i] {
				return p, true
			}
		}
		return 0, false
	}

	for {
		p, ok := overloadedBlock()
		if !ok {
			break
		}
		idx := -1
		for i := len(cs) - 1; i >= 0; i-- {
			if !reverted[i] && cs[i].to == p {
				idx = i
				break
			}
		}
		if idx == -1 {
			break // nothing left touching p; can't relieve it further here
		}
		reverted[idx] = true
		delta[cs[idx].from] += int64(cs[idx].weight)
		delta[cs[idx].to] -= int64(cs[idx].weight)
	}

	var committed []candidate
	var attributedGain hypergraph.Gain
	for i, c := range cs {
		if reverted[i] {
			continue
		}
		attributed := cache.Gain(c.node, c.to)
		if !applyCandidate(phg, cache, moves, c, maxPartWeight[c.to]) {
			continue
		}
		committed = append(committed, c)
		attributedGain += attributed
	}

	if attributedGain < 0 {
		for i := len(committed) - 1; i >= 0; i-- {
			revertCandidate(phg, cache, committed[i])
		}
		return nil
	}
	return committed
}

func countOverloaded(phg hypergraph.PartitionedHypergraph, maxPartWeight []hypergraph.Weight) int {
	n := 0
	for p := 0; p < len(maxPartWeight); p++ {
		if phg.PartWeight(hypergraph.PartID(p)) > maxPartWeight[p] {
			n++
		}
	}
	return n
}

func countOverloadedWithDelta(phg hypergraph.PartitionedHypergraph, maxPartWeight []hypergraph.Weight, delta map[hypergraph.PartID]int64) int {
	n := 0
	for p := 0; p < len(maxPartWeight); p++ {
		part := hypergraph.PartID(p)
		if phg.PartWeight(part)+hypergraph.Weight(delta[part]) > maxPartWeight[p] {
			n++
		}
	}
	return n
}

// applySortedByGainWithRecalculation is Strategy B2 (spec.md §4.5.4): number
// the sorted candidates 1..n, then for every hyperedge they touch (each
// processed by exactly one goroutine, CAS-guarded) determine which moves
// empty their source block or newly open their destination block for that
// edge, attributing +/-w(e) accordingly. The resulting per-move gains are
// prefix-summed along sorted order. Among the prefixes that do not increase
// the number of overloaded blocks relative to the start of the pass, the
// one with the largest summed gain (the longest one on ties) is committed.
func applySortedByGainWithRecalculation(
	ctx context.Context, pool *concurrent.Pool,
	phg hypergraph.PartitionedHypergraph, cache *gaincache.Cache, moves *movetracker.Tracker,
	candidates []candidate, maxPartWeight []hypergraph.Weight,
) ([]candidate, error) {
	cs := filterNonNegative(candidates)
	sort.Slice(cs, func(i, j int) bool { return byGainDescNodeAsc(cs[i], cs[j]) })
	if len(cs) == 0 {
		return nil, nil
	}

	moveOf := make(map[hypergraph.NodeID]int, len(cs)) // node -> 1-based move id
	for i, c := range cs {
		moveOf[c.node] = i + 1
	}

	touched := make(map[hypergraph.EdgeID]bool)
	for _, c := range cs {
		phg.IncidentEdges(c.node, func(e hypergraph.EdgeID) { touched[e] = true })
	}
	edgeList := make([]hypergraph.EdgeID, 0, len(touched))
	var processed []atomic.Bool
	for e := range touched {
		edgeList = append(edgeList, e)
	}
	processed = make([]atomic.Bool, len(edgeList))

	attributed := make([]atomic.Int64, len(cs)+1) // 1-indexed by move id

	err := pool.ParallelFor(ctx, len(edgeList), func(_ context.Context, i int) error {
		if !processed[i].CompareAndSwap(false, true) {
			return nil // already claimed; every index is only ever visited once, this documents the invariant
		}
		e := edgeList[i]

		firstIn := make(map[hypergraph.PartID]int)
		lastOut := make(map[hypergraph.PartID]int)
		remaining := make(map[hypergraph.PartID]int)
		var movesOnEdge []candidate

		phg.Pins(e, func(v hypergraph.NodeID) {
			id := moveOf[v]
			if id == 0 {
				remaining[phg.PartID(v)]++
				return
			}
			c := cs[id-1]
			movesOnEdge = append(movesOnEdge, c)
			if cur, ok := firstIn[c.to]; !ok || id < cur {
				firstIn[c.to] = id
			}
			if cur, ok := lastOut[c.from]; !ok || id > cur {
				lastOut[c.from] = id
			}
		})

		w := int64(phg.EdgeWeight(e))
		for _, c := range movesOnEdge {
			id := moveOf[c.node]
			// fi, ok form: a c.from with no incoming move on this edge has
			// first_in = infinity (spec.md §4.5.4), which a bare map lookup
			// would silently read back as 0 and wrongly fail the > id test.
			fi, hasIncoming := firstIn[c.from]
			emptiesFrom := lastOut[c.from] == id && (!hasIncoming || fi > id) && remaining[c.from] == 0
			opensTo := firstIn[c.to] == id && lastOut[c.to] < id && remaining[c.to] == 0

			var d int64
			if emptiesFrom {
				d += w
			}
			if opensTo {
				d -= w
			}
			if d != 0 {
				attributed[id].Add(d)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cum := make([]int64, len(cs)+1)
	for i, c := range cs {
		cum[i+1] = cum[i] + int64(c.gain) + attributed[i+1].Load()
	}

	startOverloaded := countOverloaded(phg, maxPartWeight)
	delta := make(map[hypergraph.PartID]int64)
	bestPrefix := 0
	bestGain := cum[0]
	for i, c := range cs {
		delta[c.from] -= int64(c.weight)
		delta[c.to] += int64(c.weight)
		if countOverloadedWithDelta(phg, maxPartWeight, delta) > startOverloaded {
			break
		}
		if cum[i+1] >= bestGain {
			bestGain = cum[i+1]
			bestPrefix = i + 1
		}
	}

	var applied []candidate
	for i := 0; i < bestPrefix; i++ {
		if applyCandidate(phg, cache, moves, cs[i], maxPartWeight[cs[i].to]) {
			applied = append(applied, cs[i])
		}
	}
	return applied, nil
}
