package hypergraph

import "testing"

func buildTriangleGraph(t *testing.T) *InMemoryHypergraph {
	t.Helper()
	b := NewBuilder(2, []Weight{1, 1, 1, 1})
	b.AddEdge(1, []NodeID{0, 1, 2})
	b.AddEdge(1, []NodeID{1, 2, 3})
	h, err := b.Build([]PartID{0, 0, 1, 1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return h
}

func TestChangeNodePartUpdatesPinCounts(t *testing.T) {
	h := buildTriangleGraph(t)

	if err := h.CheckInvariants(); err != nil {
		t.Fatalf("invariants before move: %v", err)
	}
	if got := h.PinCountInPart(0, 0); got != 2 {
		t.Fatalf("PinCountInPart(0,0) = %d, want 2", got)
	}
	if got := h.Connectivity(0); got != 2 {
		t.Fatalf("Connectivity(0) = %d, want 2", got)
	}

	var updates []EdgeUpdate
	ok := h.ChangeNodePart(1, 0, 1, 1000, func(u EdgeUpdate) {
		updates = append(updates, u)
	}, nil)
	if !ok {
		t.Fatalf("expected move to be accepted")
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 edge updates, got %d", len(updates))
	}
	if err := h.CheckInvariants(); err != nil {
		t.Fatalf("invariants after move: %v", err)
	}
	if h.PartID(1) != 1 {
		t.Fatalf("node 1 should now be in part 1")
	}
	if h.Connectivity(1) != 1 {
		t.Fatalf("edge 1 should now be fully inside part 1")
	}
}

func TestChangeNodePartRejectsOverweight(t *testing.T) {
	h := buildTriangleGraph(t)
	ok := h.ChangeNodePart(1, 0, 1, 2, nil, nil)
	if ok {
		t.Fatalf("expected move to be declined by the balance budget")
	}
	if h.PartID(1) != 0 {
		t.Fatalf("declined move must not mutate state")
	}
}

func TestObjectiveKm1(t *testing.T) {
	h := buildTriangleGraph(t)
	// edge 0: {0,1,2} spans parts {0,0,1} -> connectivity 2 -> km1 += 1
	// edge 1: {1,2,3} spans parts {0,1,1} -> connectivity 2 -> km1 += 1
	if got := h.Objective(ObjectiveKm1); got != 2 {
		t.Fatalf("Objective(km1) = %d, want 2", got)
	}
	if got := h.Objective(ObjectiveCut); got != 2 {
		t.Fatalf("Objective(cut) = %d, want 2", got)
	}
}
