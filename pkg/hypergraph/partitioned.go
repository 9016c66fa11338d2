package hypergraph

// PartitionedHypergraph is the contract the refiners consume (spec.md §6).
// Mutations go only through ChangeNodePart, which must atomically update
// pin counts and part weights and invoke onEdgeUpdate once per incident
// hyperedge, exactly reflecting post-state pin counts, before returning.
type PartitionedHypergraph interface {
	NumNodes() int
	NumEdges() int
	K() int

	PartID(v NodeID) PartID
	PartWeight(p PartID) Weight
	NodeWeight(v NodeID) Weight
	EdgeWeight(e EdgeID) Weight
	EdgeSize(e EdgeID) int
	PinCountInPart(e EdgeID, p PartID) int
	Connectivity(e EdgeID) int

	// IncidentEdges calls visit once per hyperedge incident to v.
	IncidentEdges(v NodeID, visit func(e EdgeID))
	// Pins calls visit once per pin (vertex) of e.
	Pins(e EdgeID, visit func(v NodeID))

	// ChangeNodePart attempts to move v from `from` to `to`. balanceBudget
	// is the maximum weight `to` may reach for the move to be accepted; if
	// accepted, onEdgeUpdate is invoked once per incident hyperedge with
	// its exact post-move pin counts, then onSuccess is invoked once the
	// move itself is fully published. Returns false (not an error) when
	// the balance budget would be exceeded (spec.md §7 kind 2).
	ChangeNodePart(
		v NodeID, from, to PartID, balanceBudget Weight,
		onEdgeUpdate func(EdgeUpdate),
		onSuccess func(),
	) bool
}
