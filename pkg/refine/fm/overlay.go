package fm

import "github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"

type edgePart struct {
	e hypergraph.EdgeID
	p hypergraph.PartID
}

// deltaOverlay is the "DeltaPartitionedHypergraph overlay" of spec.md §4.4:
// a thread-local speculative view of part assignment, part weight, and
// pin-count state, layered over the shared hypergraph.PartitionedHypergraph
// without mutating it. A local search in delta mode reads and writes only
// through this overlay until it decides to replay its accepted prefix onto
// the real hypergraph.
type deltaOverlay struct {
	phg hypergraph.PartitionedHypergraph

	partOverride    map[hypergraph.NodeID]hypergraph.PartID
	partWeightDelta map[hypergraph.PartID]int64
	pinCountDelta   map[edgePart]int32
}

func newDeltaOverlay(phg hypergraph.PartitionedHypergraph) *deltaOverlay {
	return &deltaOverlay{
		phg:             phg,
		partOverride:    make(map[hypergraph.NodeID]hypergraph.PartID),
		partWeightDelta: make(map[hypergraph.PartID]int64),
		pinCountDelta:   make(map[edgePart]int32),
	}
}

func (o *deltaOverlay) PartID(v hypergraph.NodeID) hypergraph.PartID {
	if p, ok := o.partOverride[v]; ok {
		return p
	}
	return o.phg.PartID(v)
}

func (o *deltaOverlay) PartWeight(p hypergraph.PartID) hypergraph.Weight {
	return o.phg.PartWeight(p) + hypergraph.Weight(o.partWeightDelta[p])
}

func (o *deltaOverlay) PinCountInPart(e hypergraph.EdgeID, p hypergraph.PartID) int {
	return o.phg.PinCountInPart(e, p) + int(o.pinCountDelta[edgePart{e, p}])
}

// ApplyMove speculatively moves v from `from` to `to`, returning false
// without mutating anything if the balance budget would be exceeded.
// onEdgeUpdate is invoked once per incident hyperedge with the exact
// post-move speculative pin counts, same contract as
// hypergraph.PartitionedHypergraph.ChangeNodePart.
func (o *deltaOverlay) ApplyMove(
	v hypergraph.NodeID, from, to hypergraph.PartID, w hypergraph.Weight, balanceBudget hypergraph.Weight,
	onEdgeUpdate func(hypergraph.EdgeUpdate),
) bool {
	if o.PartWeight(to)+w > balanceBudget {
		return false
	}

	o.partOverride[v] = to
	o.partWeightDelta[from] -= int64(w)
	o.partWeightDelta[to] += int64(w)

	o.phg.IncidentEdges(v, func(e hypergraph.EdgeID) {
		o.pinCountDelta[edgePart{e, from}]--
		o.pinCountDelta[edgePart{e, to}]++
		pinFromAfter := o.PinCountInPart(e, from)
		pinToAfter := o.PinCountInPart(e, to)
		if onEdgeUpdate != nil {
			onEdgeUpdate(hypergraph.EdgeUpdate{
				Edge:         e,
				Weight:       o.phg.EdgeWeight(e),
				Size:         o.phg.EdgeSize(e),
				From:         from,
				To:           to,
				PinCountFrom: pinFromAfter,
				PinCountTo:   pinToAfter,
			})
		}
	})
	return true
}
