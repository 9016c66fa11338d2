package lp

import (
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/gaincache"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"
)

// bestMoveForNode computes v's best destination block against a frozen
// gain-cache snapshot, per spec.md §4.5.1 step 2a. It never mutates
// anything; the k=2 case needs no specialization here since the general
// k-way loop below already degenerates to a single comparison when k=2 —
// the spec's "specialized routine for k=2" refers to an optimization, not a
// semantic difference, so one implementation suffices.
func bestMoveForNode(phg hypergraph.PartitionedHypergraph, cache *gaincache.Cache, v hypergraph.NodeID, k int) candidate {
	from := phg.PartID(v)
	best := from
	var bestGain hypergraph.Gain
	first := true
	for p := 0; p < k; p++ {
		part := hypergraph.PartID(p)
		if part == from {
			continue
		}
		g := cache.Gain(v, part)
		if first || g > bestGain {
			bestGain, best, first = g, part, false
		}
	}
	return candidate{node: v, from: from, to: best, gain: bestGain, weight: phg.NodeWeight(v)}
}

// isBoundary reports whether v touches at least one cut hyperedge no
// larger than activationThreshold (0 disables the size cap). Hyperedges
// above the threshold are excluded from activity tracking so one giant
// hyperedge cannot force near-every vertex active every round (spec.md
// §6's hyperedgeSizeActivationThreshold knob).
func isBoundary(phg hypergraph.PartitionedHypergraph, v hypergraph.NodeID, activationThreshold int) bool {
	boundary := false
	phg.IncidentEdges(v, func(e hypergraph.EdgeID) {
		if boundary {
			return
		}
		if activationThreshold > 0 && phg.EdgeSize(e) > activationThreshold {
			return
		}
		if phg.Connectivity(e) > 1 {
			boundary = true
		}
	})
	return boundary
}
