package hypergraph

import (
	"fmt"
	"sync/atomic"
)

// InMemoryHypergraph is a concrete PartitionedHypergraph. Pins are stored
// two ways in flat CSR-style arrays (adapted from the teacher's generic
// SparseMatrix in pkg/datastructure/compressed_sparse_row.go, which packs
// a sparse matrix's nonzeros into val/col_ind/row_ptr triples): node ->
// incident edges, and edge -> pins. Per-(edge,part) pin counts and per-part
// weights are atomic so ChangeNodePart is safe to call from many goroutines
// concurrently, as the refiners require.
type InMemoryHypergraph struct {
	k int

	nodeWeight []Weight
	edgeWeight []Weight

	// CSR: node -> incident edge ids.
	nodeEdgeOffsets []int32
	nodeEdges       []EdgeID

	// CSR: edge -> pins.
	edgeNodeOffsets []int32
	edgePins        []NodeID

	partID     []atomic.Int32
	partWeight []atomic.Int64

	// pinCount[e*k+p]
	pinCount []atomic.Int32
}

// Builder incrementally assembles an InMemoryHypergraph from an adjacency
// list before freezing it into CSR form, matching the teacher's two-phase
// "collect then compress" style (compressed_sparse_row.go's Set followed
// by an implicit finalize via row_ptr bookkeeping).
type Builder struct {
	k          int
	nodeWeight []Weight
	edgeWeight []Weight
	edgePins   [][]NodeID
}

// NewBuilder creates a builder for a hypergraph with the given number of
// blocks and per-node weights.
func NewBuilder(k int, nodeWeight []Weight) *Builder {
	return &Builder{k: k, nodeWeight: append([]Weight(nil), nodeWeight...)}
}

// AddEdge appends a hyperedge with the given weight and pin set.
func (b *Builder) AddEdge(weight Weight, pins []NodeID) EdgeID {
	id := EdgeID(len(b.edgeWeight))
	b.edgeWeight = append(b.edgeWeight, weight)
	b.edgePins = append(b.edgePins, append([]NodeID(nil), pins...))
	return id
}

// Build freezes the builder into an InMemoryHypergraph with the given
// initial partition assignment.
func (b *Builder) Build(initialPart []PartID) (*InMemoryHypergraph, error) {
	n := len(b.nodeWeight)
	if len(initialPart) != n {
		return nil, fmt.Errorf("hypergraph: initialPart has %d entries, want %d", len(initialPart), n)
	}

	h := &InMemoryHypergraph{
		k:          b.k,
		nodeWeight: b.nodeWeight,
		edgeWeight: b.edgeWeight,
	}

	// Build node -> edges CSR by counting incidences first.
	nodeDegree := make([]int32, n)
	for _, pins := range b.edgePins {
		for _, v := range pins {
			nodeDegree[v]++
		}
	}
	h.nodeEdgeOffsets = make([]int32, n+1)
	for v := 0; v < n; v++ {
		h.nodeEdgeOffsets[v+1] = h.nodeEdgeOffsets[v] + nodeDegree[v]
	}
	h.nodeEdges = make([]EdgeID, h.nodeEdgeOffsets[n])
	cursor := append([]int32(nil), h.nodeEdgeOffsets[:n]...)
	for e, pins := range b.edgePins {
		for _, v := range pins {
			h.nodeEdges[cursor[v]] = EdgeID(e)
			cursor[v]++
		}
	}

	// Edge -> pins CSR.
	h.edgeNodeOffsets = make([]int32, len(b.edgePins)+1)
	for e, pins := range b.edgePins {
		h.edgeNodeOffsets[e+1] = h.edgeNodeOffsets[e] + int32(len(pins))
	}
	h.edgePins = make([]NodeID, h.edgeNodeOffsets[len(b.edgePins)])
	for e, pins := range b.edgePins {
		copy(h.edgePins[h.edgeNodeOffsets[e]:h.edgeNodeOffsets[e+1]], pins)
	}

	h.partID = make([]atomic.Int32, n)
	h.partWeight = make([]atomic.Int64, b.k)
	h.pinCount = make([]atomic.Int32, len(b.edgePins)*b.k)

	for v, p := range initialPart {
		if p < 0 || int(p) >= b.k {
			return nil, fmt.Errorf("hypergraph: node %d assigned invalid part %d", v, p)
		}
		h.partID[v].Store(int32(p))
		h.partWeight[p].Add(int64(h.nodeWeight[v]))
	}
	for e := range b.edgePins {
		h.ForEachPinPart(EdgeID(e), func(p PartID) {
			h.pinCount[int(e)*b.k+int(p)].Add(1)
		})
	}

	return h, nil
}

// ForEachPinPart is an internal helper used only during Build, before the
// pin-count table exists yet.
func (h *InMemoryHypergraph) ForEachPinPart(e EdgeID, visit func(p PartID)) {
	for i := h.edgeNodeOffsets[e]; i < h.edgeNodeOffsets[e+1]; i++ {
		v := h.edgePins[i]
		visit(PartID(h.partID[v].Load()))
	}
}

func (h *InMemoryHypergraph) NumNodes() int { return len(h.nodeWeight) }
func (h *InMemoryHypergraph) NumEdges() int { return len(h.edgeWeight) }
func (h *InMemoryHypergraph) K() int        { return h.k }

func (h *InMemoryHypergraph) PartID(v NodeID) PartID { return PartID(h.partID[v].Load()) }
func (h *InMemoryHypergraph) PartWeight(p PartID) Weight {
	return Weight(h.partWeight[p].Load())
}
func (h *InMemoryHypergraph) NodeWeight(v NodeID) Weight { return h.nodeWeight[v] }
func (h *InMemoryHypergraph) EdgeWeight(e EdgeID) Weight { return h.edgeWeight[e] }
func (h *InMemoryHypergraph) EdgeSize(e EdgeID) int {
	return int(h.edgeNodeOffsets[e+1] - h.edgeNodeOffsets[e])
}

func (h *InMemoryHypergraph) PinCountInPart(e EdgeID, p PartID) int {
	return int(h.pinCount[int(e)*h.k+int(p)].Load())
}

func (h *InMemoryHypergraph) Connectivity(e EdgeID) int {
	c := 0
	base := int(e) * h.k
	for p := 0; p < h.k; p++ {
		if h.pinCount[base+p].Load() > 0 {
			c++
		}
	}
	return c
}

func (h *InMemoryHypergraph) IncidentEdges(v NodeID, visit func(e EdgeID)) {
	for i := h.nodeEdgeOffsets[v]; i < h.nodeEdgeOffsets[v+1]; i++ {
		visit(h.nodeEdges[i])
	}
}

func (h *InMemoryHypergraph) Pins(e EdgeID, visit func(v NodeID)) {
	for i := h.edgeNodeOffsets[e]; i < h.edgeNodeOffsets[e+1]; i++ {
		visit(h.edgePins[i])
	}
}

// ChangeNodePart implements the atomic-per-vertex mutation of spec.md §6.
// Callers (the FM node tracker's ownership CAS, or the LP apply strategies'
// exactly-once-per-node move set) are responsible for ensuring no two
// goroutines call this for the same v concurrently; pin-count and part-
// weight bookkeeping across different v's is safe to run concurrently
// because every counter touched is an atomic.
func (h *InMemoryHypergraph) ChangeNodePart(
	v NodeID, from, to PartID, balanceBudget Weight,
	onEdgeUpdate func(EdgeUpdate),
	onSuccess func(),
) bool {
	w := h.nodeWeight[v]
	if h.partWeight[to].Load()+int64(w) > int64(balanceBudget) {
		return false
	}

	h.partID[v].Store(int32(to))
	h.partWeight[from].Add(-int64(w))
	h.partWeight[to].Add(int64(w))

	h.IncidentEdges(v, func(e EdgeID) {
		base := int(e) * h.k
		pinFromAfter := int(h.pinCount[base+int(from)].Add(-1))
		pinToAfter := int(h.pinCount[base+int(to)].Add(1))
		if onEdgeUpdate != nil {
			onEdgeUpdate(EdgeUpdate{
				Edge:         e,
				Weight:       h.edgeWeight[e],
				Size:         h.EdgeSize(e),
				From:         from,
				To:           to,
				PinCountFrom: pinFromAfter,
				PinCountTo:   pinToAfter,
			})
		}
	})

	if onSuccess != nil {
		onSuccess()
	}
	return true
}

// Objective computes the current value of the given objective function.
func (h *InMemoryHypergraph) Objective(obj Objective) int64 {
	var total int64
	for e := 0; e < h.NumEdges(); e++ {
		c := h.Connectivity(EdgeID(e))
		if c <= 1 {
			continue
		}
		switch obj {
		case ObjectiveKm1:
			total += int64(h.EdgeWeight(EdgeID(e))) * int64(c-1)
		case ObjectiveCut:
			total += int64(h.EdgeWeight(EdgeID(e)))
		}
	}
	return total
}

// CheckInvariants recomputes I1 (weight conservation) and I2 (pin-count
// consistency) from scratch and compares against the live state. Called by
// tests and by the demo binary after refinement, never on a hot path:
// O(|V|+Σ|e|).
func (h *InMemoryHypergraph) CheckInvariants() error {
	sumWeight := make([]Weight, h.k)
	for v := 0; v < h.NumNodes(); v++ {
		sumWeight[h.PartID(NodeID(v))] += h.nodeWeight[v]
	}
	for p := 0; p < h.k; p++ {
		if sumWeight[p] != h.PartWeight(PartID(p)) {
			return fmt.Errorf("%w: partWeight[%d] = %d, recomputed %d", ErrInvariantViolation, p, h.PartWeight(PartID(p)), sumWeight[p])
		}
	}

	for e := 0; e < h.NumEdges(); e++ {
		fresh := make([]int, h.k)
		h.Pins(EdgeID(e), func(v NodeID) { fresh[h.PartID(v)]++ })
		for p := 0; p < h.k; p++ {
			if fresh[p] != h.PinCountInPart(EdgeID(e), PartID(p)) {
				return fmt.Errorf("%w: pinCountInPart[%d,%d] = %d, recomputed %d",
					ErrInvariantViolation, e, p, h.PinCountInPart(EdgeID(e), PartID(p)), fresh[p])
			}
		}
	}
	return nil
}
