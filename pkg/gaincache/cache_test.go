package gaincache

import (
	"testing"

	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"
)

// freshGain recomputes gain(v,p) by scanning the live hypergraph, the
// reference definition I3 must agree with.
func freshGain(phg hypergraph.PartitionedHypergraph, v hypergraph.NodeID, p hypergraph.PartID) hypergraph.Gain {
	var benefit, penalty int64
	phg.IncidentEdges(v, func(e hypergraph.EdgeID) {
		w := int64(phg.EdgeWeight(e))
		if phg.PinCountInPart(e, phg.PartID(v)) == 1 {
			benefit += w
		}
		if phg.PinCountInPart(e, p) == 0 {
			penalty += w
		}
	})
	return hypergraph.Gain(benefit - penalty)
}

func checkAgreement(t *testing.T, phg hypergraph.PartitionedHypergraph, c *Cache) {
	t.Helper()
	for v := 0; v < phg.NumNodes(); v++ {
		for p := 0; p < phg.K(); p++ {
			if hypergraph.PartID(p) == phg.PartID(hypergraph.NodeID(v)) {
				continue
			}
			want := freshGain(phg, hypergraph.NodeID(v), hypergraph.PartID(p))
			got := c.Gain(hypergraph.NodeID(v), hypergraph.PartID(p))
			if want != got {
				t.Fatalf("Gain(%d,%d) = %d, want %d (fresh)", v, p, got, want)
			}
		}
	}
}

func buildStarHypergraph(t *testing.T) *hypergraph.InMemoryHypergraph {
	t.Helper()
	// 6 vertices, k=3, two overlapping hyperedges.
	b := hypergraph.NewBuilder(3, []hypergraph.Weight{1, 1, 1, 1, 1, 1})
	b.AddEdge(2, []hypergraph.NodeID{0, 1, 2, 3})
	b.AddEdge(3, []hypergraph.NodeID{1, 2, 4, 5})
	h, err := b.Build([]hypergraph.PartID{0, 0, 1, 1, 2, 2})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return h
}

func applyMove(h *hypergraph.InMemoryHypergraph, c *Cache, v hypergraph.NodeID, to hypergraph.PartID) bool {
	from := h.PartID(v)
	return h.ChangeNodePart(v, from, to, 1<<30, func(eu hypergraph.EdgeUpdate) {
		c.Update(h, SyncUpdate{
			Mover:        v,
			Edge:         eu.Edge,
			Weight:       int64(eu.Weight),
			From:         eu.From,
			PinCountFrom: eu.PinCountFrom,
			To:           eu.To,
			PinCountTo:   eu.PinCountTo,
		})
	}, nil)
}

func TestGainCacheAgreesAfterEachMove(t *testing.T) {
	h := buildStarHypergraph(t)
	c := New(h.NumNodes(), h.K())
	Initialize(c, h)
	checkAgreement(t, h, c)

	moves := []struct {
		v  hypergraph.NodeID
		to hypergraph.PartID
	}{
		{1, 2},
		{2, 0},
		{4, 1},
		{0, 1},
		{5, 0},
	}

	for _, m := range moves {
		if !applyMove(h, c, m.v, m.to) {
			t.Fatalf("move of %d to %d was declined", m.v, m.to)
		}
		checkAgreement(t, h, c)
	}
}
