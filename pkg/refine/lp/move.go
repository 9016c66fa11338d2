package lp

import "github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"

// candidate is one thread-local best-move computation for a single vertex
// at a fixed snapshot of the partition (spec.md §4.5.1 step 2a): it is
// never applied directly, only ever realized through one of the
// deterministic apply-strategies.
type candidate struct {
	node   hypergraph.NodeID
	from   hypergraph.PartID
	to     hypergraph.PartID
	gain   hypergraph.Gain
	weight hypergraph.Weight
}

// byGainDescNodeAsc is the tie-break order every apply-strategy sorts by:
// gain descending, then node id ascending (spec.md §4.5.2-§4.5.4).
func byGainDescNodeAsc(a, b candidate) bool {
	if a.gain != b.gain {
		return a.gain > b.gain
	}
	return a.node < b.node
}
