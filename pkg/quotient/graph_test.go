package quotient

import (
	"context"
	"testing"

	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/concurrent"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"
)

// TestCutHyperedgeBelongsToExactlyOnePair exercises I8: a hyperedge with
// connectivity >= 2 is tracked by exactly one pair's vector at a time, and
// moving it to a new pair tombstones its old entry rather than duplicating it.
func TestCutHyperedgeBelongsToExactlyOnePair(t *testing.T) {
	g := NewGraph(4)
	pair01 := PairKey{I: 0, J: 1}
	pair02 := PairKey{I: 0, J: 2}

	g.AddCutHyperedge(pair01, hypergraph.EdgeID(5), 3)
	if got := g.CutHeWeight(pair01); got != 3 {
		t.Fatalf("CutHeWeight(pair01) = %d, want 3", got)
	}
	if got := g.CutHeWeight(pair02); got != 0 {
		t.Fatalf("CutHeWeight(pair02) = %d, want 0 before the edge moves there", got)
	}

	// The hyperedge's block set changes from {0,1} to {0,2}: tombstone the
	// old pair's entry and add it to the new one.
	g.InvalidateCutHyperedge(pair01, 3)
	g.AddCutHyperedge(pair02, hypergraph.EdgeID(5), 3)

	if got := g.CutHeWeight(pair01); got != 0 {
		t.Fatalf("CutHeWeight(pair01) after move = %d, want 0", got)
	}
	if got := g.CutHeWeight(pair02); got != 3 {
		t.Fatalf("CutHeWeight(pair02) after move = %d, want 3", got)
	}

	drained := g.DrainCutHyperedges(pair02, 10)
	if len(drained) != 1 || drained[0] != hypergraph.EdgeID(5) {
		t.Fatalf("DrainCutHyperedges(pair02) = %v, want [5]", drained)
	}
}

func TestOwnershipCASIsExclusive(t *testing.T) {
	g := NewGraph(3)
	pair := PairKey{I: 0, J: 1}

	if !g.TryAcquire(pair, 1) {
		t.Fatalf("first acquisition should succeed")
	}
	if g.TryAcquire(pair, 2) {
		t.Fatalf("second acquisition must fail while pair is owned")
	}
	g.Release(pair)
	if !g.TryAcquire(pair, 2) {
		t.Fatalf("acquisition should succeed again after Release")
	}
}

func TestSchedulerRoundZeroSeededWithAllPairs(t *testing.T) {
	k := 4
	s := NewScheduler(k, NullFlowSolver{}, 1, 0.0, nil)

	seen := map[PairKey]bool{}
	for {
		sid, pair, err := s.RequestNewSearch()
		if err != nil {
			break
		}
		seen[pair] = true
		s.FinalizeSearch(sid, pair, 0)
	}

	want := k * (k - 1) / 2
	if len(seen) != want {
		t.Fatalf("scheduler visited %d distinct pairs, want %d", len(seen), want)
	}
}

func TestRunFlowRoundWithNullSolverNeverImproves(t *testing.T) {
	s := NewScheduler(3, NullFlowSolver{}, 2, 0.0, nil)
	pool := concurrent.NewPool(2)

	var applied int
	err := s.RunFlowRound(context.Background(), pool, func(_ PairKey, a Assignment) {
		applied++
		if a.Improvement != 0 {
			t.Fatalf("NullFlowSolver must report zero improvement, got %d", a.Improvement)
		}
	})
	if err != nil {
		t.Fatalf("RunFlowRound: %v", err)
	}
	if applied != 3 {
		t.Fatalf("expected 3 pairs to be visited (k=3), got %d", applied)
	}
}
