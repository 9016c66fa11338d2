package fm

import (
	"testing"

	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/config"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/gaincache"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/movetracker"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/nodetracker"
)

// buildLineHypergraph creates 6 vertices over two blocks joined by three
// size-3 hyperedges. Only the middle hyperedge {2,3,4} is cut, so km1 starts
// at 1; the best single move (vertex 2 to block 1) has gain 0.
func buildLineHypergraph(t *testing.T) *hypergraph.InMemoryHypergraph {
	t.Helper()
	b := hypergraph.NewBuilder(2, []hypergraph.Weight{1, 1, 1, 1, 1, 1})
	b.AddEdge(1, []hypergraph.NodeID{0, 1, 2})
	b.AddEdge(1, []hypergraph.NodeID{2, 3, 4})
	b.AddEdge(1, []hypergraph.NodeID{3, 4, 5})
	h, err := b.Build([]hypergraph.PartID{0, 0, 0, 1, 1, 1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return h
}

func agreesWithFreshGain(t *testing.T, h *hypergraph.InMemoryHypergraph, c *gaincache.Cache) {
	t.Helper()
	for v := 0; v < h.NumNodes(); v++ {
		for p := 0; p < h.K(); p++ {
			if hypergraph.PartID(p) == h.PartID(hypergraph.NodeID(v)) {
				continue
			}
			var benefit, penalty int64
			h.IncidentEdges(hypergraph.NodeID(v), func(e hypergraph.EdgeID) {
				w := int64(h.EdgeWeight(e))
				if h.PinCountInPart(e, h.PartID(hypergraph.NodeID(v))) == 1 {
					benefit += w
				}
				if h.PinCountInPart(e, hypergraph.PartID(p)) == 0 {
					penalty += w
				}
			})
			want := hypergraph.Gain(benefit - penalty)
			got := c.Gain(hypergraph.NodeID(v), hypergraph.PartID(p))
			if want != got {
				t.Fatalf("gain(%d,%d) = %d, want %d", v, p, got, want)
			}
		}
	}
}

func TestLocalSearchImprovesObjectiveMonotonically(t *testing.T) { // I4
	h := buildLineHypergraph(t)
	cache := gaincache.New(h.NumNodes(), h.K())
	gaincache.Initialize(cache, h)
	before := h.Objective(hypergraph.ObjectiveKm1)

	nodes := nodetracker.New(h.NumNodes())
	moves := movetracker.New()
	cfg := config.FMConfig{NumSeedNodes: 6, AllowZeroGainMoves: false, PerformMovesGlobal: true}
	maxWeight := []hypergraph.Weight{10, 10}

	ls := NewLocalSearch(h, cache, nodes, moves, cfg, h.K(), maxWeight, 1, false)
	ls.Run([]hypergraph.NodeID{0, 1, 2, 3, 4, 5})

	after := h.Objective(hypergraph.ObjectiveKm1)
	if after > before {
		t.Fatalf("objective increased: before=%d after=%d", before, after)
	}
	if err := h.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated after local search: %v", err)
	}
	agreesWithFreshGain(t, h, cache)
}

// TestLocalSearchRollbackIntegrity pins the balance budget so tightly that
// no move can ever be accepted, forcing the search to discover no improving
// prefix at all — rollback must then restore (pi, gain cache) exactly to
// their starting values (S6).
func TestLocalSearchRollbackIntegrity(t *testing.T) {
	h := buildLineHypergraph(t)
	cache := gaincache.New(h.NumNodes(), h.K())
	gaincache.Initialize(cache, h)
	before := h.Objective(hypergraph.ObjectiveKm1)

	nodes := nodetracker.New(h.NumNodes())
	moves := movetracker.New()
	cfg := config.FMConfig{NumSeedNodes: 6, AllowZeroGainMoves: false, PerformMovesGlobal: true}
	maxWeight := []hypergraph.Weight{3, 3} // each block is already at weight 3: no move fits

	ls := NewLocalSearch(h, cache, nodes, moves, cfg, h.K(), maxWeight, 1, false)
	applied := ls.Run([]hypergraph.NodeID{0, 1, 2, 3, 4, 5})

	if len(applied) != 0 {
		t.Fatalf("expected no move to survive an infeasible balance budget, got %d", len(applied))
	}
	after := h.Objective(hypergraph.ObjectiveKm1)
	if after != before {
		t.Fatalf("objective changed despite an infeasible balance budget: before=%d after=%d", before, after)
	}
	if err := h.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated: %v", err)
	}
	agreesWithFreshGain(t, h, cache)
}

func TestLocalSearchDeltaModeReplaysOnlyBestPrefix(t *testing.T) {
	h := buildLineHypergraph(t)
	cache := gaincache.New(h.NumNodes(), h.K())
	gaincache.Initialize(cache, h)
	before := h.Objective(hypergraph.ObjectiveKm1)

	nodes := nodetracker.New(h.NumNodes())
	moves := movetracker.New()
	cfg := config.FMConfig{NumSeedNodes: 6, AllowZeroGainMoves: false, PerformMovesGlobal: false}
	maxWeight := []hypergraph.Weight{10, 10}

	ls := NewLocalSearch(h, cache, nodes, moves, cfg, h.K(), maxWeight, 1, true)
	ls.Run([]hypergraph.NodeID{0, 1, 2, 3, 4, 5})

	after := h.Objective(hypergraph.ObjectiveKm1)
	if after > before {
		t.Fatalf("objective increased under delta-mode replay: before=%d after=%d", before, after)
	}
	if err := h.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated after delta-mode replay: %v", err)
	}
	agreesWithFreshGain(t, h, cache)
}
