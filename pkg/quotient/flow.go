package quotient

import (
	"context"

	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"
)

// Assignment is the result of solving one block-pair min-cut problem: which
// side of the cut each previously-cut vertex should end up on.
type Assignment struct {
	// MoveTo maps a node to the block it should move to, for nodes the
	// solver decided to reassign. Absent entries mean "leave in place".
	MoveTo      map[hypergraph.NodeID]hypergraph.PartID
	Improvement int64
}

// FlowSolver is the narrow contract a real max-flow/min-cut collaborator
// (Dinic, HyperFlowCutter) would implement to solve one scheduled block-pair
// refinement problem. Flow network construction and the max-flow algorithm
// itself are out of scope for this module (spec.md §1) — only scheduling
// problems onto a solver is. See NullFlowSolver for the no-op stand-in used
// so Scheduler is exercisable without a real one.
type FlowSolver interface {
	MinCut(ctx context.Context, cutHyperedges []hypergraph.EdgeID, blockA, blockB hypergraph.PartID) (Assignment, error)
}

// NullFlowSolver always reports "no improvement found", letting the
// scheduler's round bookkeeping (and its termination rule) be exercised in
// tests without a real flow collaborator.
type NullFlowSolver struct{}

// MinCut implements FlowSolver by declining to improve anything.
func (NullFlowSolver) MinCut(_ context.Context, _ []hypergraph.EdgeID, _, _ hypergraph.PartID) (Assignment, error) {
	return Assignment{Improvement: 0}, nil
}
