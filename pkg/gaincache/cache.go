// Package gaincache maintains the per-vertex/per-block gain scalars the FM
// refiner's priority queues are keyed on (spec.md §3, §4.3).
package gaincache

import (
	"sync/atomic"

	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"
)

// Cache holds moveFromBenefit[v] and moveToPenalty[v,p] as atomic int64
// scalars. Every increment is a Go sync/atomic fetch-add, which is Go's
// only available memory-ordering mode (there is no separate "relaxed"
// knob to pick, unlike C++'s std::memory_order_relaxed); correctness here
// depends only on the sum of increments matching the sum of pin-count
// transitions, which atomic.Int64.Add guarantees regardless of ordering
// (spec.md §5).
type Cache struct {
	k int

	moveFromBenefit []atomic.Int64 // indexed by node
	moveToPenalty   []atomic.Int64 // indexed by node*k+part
}

// New allocates a cache sized to numNodes and k, per spec.md §3's
// lifecycle rule ("sized to |V|, |E|, k at initialization").
func New(numNodes, k int) *Cache {
	return &Cache{
		k:               k,
		moveFromBenefit: make([]atomic.Int64, numNodes),
		moveToPenalty:   make([]atomic.Int64, numNodes*k),
	}
}

// Initialize performs the O(Σ|e|) scan that seeds every scalar from the
// current partition, directly from the §3 formulas:
//
//	moveFromBenefit[v] = Σ_{e∋v} ω(e)·[pinCountInPart[e,π[v]] = 1]
//	moveToPenalty[v,p] = Σ_{e∋v} ω(e)·[pinCountInPart[e,p] = 0]
func Initialize(c *Cache, phg hypergraph.PartitionedHypergraph) {
	for e := 0; e < phg.NumEdges(); e++ {
		edge := hypergraph.EdgeID(e)
		w := int64(phg.EdgeWeight(edge))

		phg.Pins(edge, func(v hypergraph.NodeID) {
			if phg.PinCountInPart(edge, phg.PartID(v)) == 1 {
				c.moveFromBenefit[v].Add(w)
			}
			for p := 0; p < phg.K(); p++ {
				part := hypergraph.PartID(p)
				if part == phg.PartID(v) {
					continue
				}
				if phg.PinCountInPart(edge, part) == 0 {
					c.moveToPenalty[int(v)*c.k+p].Add(w)
				}
			}
		})
	}
}

// Gain returns moveFromBenefit[v] - moveToPenalty[v,p].
func (c *Cache) Gain(v hypergraph.NodeID, p hypergraph.PartID) hypergraph.Gain {
	return hypergraph.Gain(c.moveFromBenefit[v].Load() - c.moveToPenalty[int(v)*c.k+int(p)].Load())
}

// MoveFromBenefit exposes the raw scalar, mostly for tests.
func (c *Cache) MoveFromBenefit(v hypergraph.NodeID) int64 {
	return c.moveFromBenefit[v].Load()
}

// MoveToPenalty exposes the raw scalar, mostly for tests.
func (c *Cache) MoveToPenalty(v hypergraph.NodeID, p hypergraph.PartID) int64 {
	return c.moveToPenalty[int(v)*c.k+int(p)].Load()
}

// SyncUpdate is what ChangeNodePart's onEdgeUpdate callback hands to
// Update: one hyperedge's exact post-move pin counts, plus the moving
// vertex itself.
type SyncUpdate struct {
	Mover        hypergraph.NodeID
	Edge         hypergraph.EdgeID
	Weight       int64
	From         hypergraph.PartID
	PinCountFrom int // after the move
	To           hypergraph.PartID
	PinCountTo   int // after the move
}

// Update applies one hyperedge's pin-count transition to every affected
// (vertex, block) scalar (spec.md §4.3). The four pin-count transitions
// named there — pinCountTo 0→1, pinCountTo 1→2, pinCountFrom 1→0,
// pinCountFrom 2→1 — are re-derived here directly from the moveFromBenefit
// / moveToPenalty formulas in §3.
func (c *Cache) Update(phg hypergraph.PartitionedHypergraph, u SyncUpdate) {
	w := u.Weight

	// moveToPenalty only depends on whether a pin count is zero; it does
	// not matter whether the affected pin is the mover or not, because
	// Gain() never reads moveToPenalty[v, π[v]].
	if u.PinCountTo == 1 { // pinCountTo transitioned 0->1
		phg.Pins(u.Edge, func(v hypergraph.NodeID) {
			c.moveToPenalty[int(v)*c.k+int(u.To)].Add(-w)
		})
	}
	if u.PinCountFrom == 0 { // pinCountFrom transitioned 1->0
		phg.Pins(u.Edge, func(v hypergraph.NodeID) {
			c.moveToPenalty[int(v)*c.k+int(u.From)].Add(w)
		})
	}

	// moveFromBenefit depends on whether a pin is the sole occupant of e
	// within *its own* current part, so the mover must be excluded from
	// the "other pins" loops and handled on its own.
	if u.PinCountFrom == 1 { // transitioned 2->1: the one pin left in `from` becomes sole
		phg.Pins(u.Edge, func(v hypergraph.NodeID) {
			if v != u.Mover && phg.PartID(v) == u.From {
				c.moveFromBenefit[v].Add(w)
			}
		})
	}
	if u.PinCountTo == 2 { // transitioned 1->2: the pin already in `to` is no longer sole
		phg.Pins(u.Edge, func(v hypergraph.NodeID) {
			if v != u.Mover && phg.PartID(v) == u.To {
				c.moveFromBenefit[v].Add(-w)
			}
		})
	}
	if u.PinCountTo == 1 { // the mover is now sole in its new part for this edge
		c.moveFromBenefit[u.Mover].Add(w)
	}
	if u.PinCountFrom == 0 { // the mover was sole in its old part; that contribution is gone
		c.moveFromBenefit[u.Mover].Add(-w)
	}
}
