// Package quotient implements the quotient graph of cut hyperedges between
// block pairs and the active-block scheduler that drives flow-based
// refinement rounds over it (spec.md §3, §4.6).
package quotient

import (
	"sync/atomic"

	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/concurrent"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"
)

// SearchID identifies a flow search owning one quotient edge. Zero is
// INVALID (no owner).
type SearchID uint64

// InvalidSearchID marks "no owner" / "no search acquired".
const InvalidSearchID SearchID = 0

// PairKey is an unordered block pair (i,j), i<j by construction.
type PairKey struct {
	I, J hypergraph.PartID
}

func makePair(a, b hypergraph.PartID) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{I: a, J: b}
}

// edge is one Q[i,j]. Its cut-hyperedge vector reuses
// concurrent.WorkStealingQueue rather than a bespoke concurrent vector: one
// producer (whoever discovers the hyperedge newly spans i,j) pushes, and
// the flow search that acquires ownership drains it. firstValidEntry tracks
// how many leading entries are tombstones (hyperedges that moved out of
// this pair since being queued); see (g *Graph) AddCutHyperedge.
type edge struct {
	i, j hypergraph.PartID

	ownership atomic.Uint64
	inQueue   atomic.Bool

	cutHyperedges   *concurrent.WorkStealingQueue[hypergraph.EdgeID]
	firstValidEntry atomic.Int64
	cutHeWeight     atomic.Int64

	numImprovementsFound atomic.Int64
	totalImprovement     atomic.Int64
}

// Graph holds one edge per unordered block pair of a k-way partition.
type Graph struct {
	k     int
	edges []*edge // indexed i*k+j, i<j only
}

// NewGraph preallocates Q[i,j] for every i<j pair of a k-block partition.
func NewGraph(k int) *Graph {
	g := &Graph{k: k, edges: make([]*edge, k*k)}
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			g.edges[i*k+j] = &edge{
				i:             hypergraph.PartID(i),
				j:             hypergraph.PartID(j),
				cutHyperedges: concurrent.NewWorkStealingQueue[hypergraph.EdgeID](16),
			}
		}
	}
	return g
}

func (g *Graph) at(pair PairKey) *edge {
	return g.edges[int(pair.I)*g.k+int(pair.J)]
}

// AddCutHyperedge records that e (weight w) now spans the block pair.
// Called exactly once per hyperedge per pair it newly spans (I8: a
// hyperedge with connectivity >= 2 belongs to exactly one pair's vector at
// any time — callers are responsible for removing it from its old pair
// first via InvalidateCutHyperedge when a move changes its block set).
func (g *Graph) AddCutHyperedge(pair PairKey, e hypergraph.EdgeID, w hypergraph.Weight) {
	ed := g.at(pair)
	ed.cutHyperedges.PushBack(e)
	ed.cutHeWeight.Add(int64(w))
}

// InvalidateCutHyperedge tombstones one leading entry of pair's vector
// (spec.md §3: "entries before first_valid_entry are tombstones"). Callers
// invalidate from the front, matching the FIFO order hyperedges were added
// in a pure streaming consumer; this module does not need random-access
// invalidation since flow solving itself is out of scope (§1) and only the
// scheduling bookkeeping is exercised here.
func (g *Graph) InvalidateCutHyperedge(pair PairKey, w hypergraph.Weight) {
	ed := g.at(pair)
	ed.firstValidEntry.Add(1)
	ed.cutHeWeight.Add(-int64(w))
}

// DrainCutHyperedges pops up to limit live cut hyperedges for pair, for a
// flow search that has acquired ownership to consume. Leading tombstoned
// entries are popped and discarded, consuming firstValidEntry as they go.
func (g *Graph) DrainCutHyperedges(pair PairKey, limit int) []hypergraph.EdgeID {
	ed := g.at(pair)
	out := make([]hypergraph.EdgeID, 0, limit)
	for len(out) < limit {
		e, ok := ed.cutHyperedges.TryPop()
		if !ok {
			break
		}
		tombstone := false
		for {
			n := ed.firstValidEntry.Load()
			if n <= 0 {
				break
			}
			if ed.firstValidEntry.CompareAndSwap(n, n-1) {
				tombstone = true
				break
			}
		}
		if !tombstone {
			out = append(out, e)
		}
	}
	return out
}

// CutHeWeight returns the current aggregated cut-hyperedge weight for pair.
func (g *Graph) CutHeWeight(pair PairKey) hypergraph.Weight {
	return hypergraph.Weight(g.at(pair).cutHeWeight.Load())
}

// TryAcquire attempts the INVALID -> sid ownership CAS for pair.
func (g *Graph) TryAcquire(pair PairKey, sid SearchID) bool {
	return g.at(pair).ownership.CompareAndSwap(uint64(InvalidSearchID), uint64(sid))
}

// Release relinquishes ownership of pair, regardless of who holds it.
func (g *Graph) Release(pair PairKey) {
	g.at(pair).ownership.Store(uint64(InvalidSearchID))
}

// Owner returns pair's current owning search, InvalidSearchID if free.
func (g *Graph) Owner(pair PairKey) SearchID {
	return SearchID(g.at(pair).ownership.Load())
}

// RecordImprovement accumulates one flow search's outcome for pair.
func (g *Graph) RecordImprovement(pair PairKey, improvement int64) {
	ed := g.at(pair)
	if improvement > 0 {
		ed.numImprovementsFound.Add(1)
	}
	ed.totalImprovement.Add(improvement)
}

// TotalImprovement returns pair's cumulative recorded improvement.
func (g *Graph) TotalImprovement(pair PairKey) int64 {
	return g.at(pair).totalImprovement.Load()
}

// AllPairs returns every (i,j), i<j block pair of the k-way partition.
func (g *Graph) AllPairs() []PairKey {
	pairs := make([]PairKey, 0, g.k*(g.k-1)/2)
	for i := 0; i < g.k; i++ {
		for j := i + 1; j < g.k; j++ {
			pairs = append(pairs, PairKey{I: hypergraph.PartID(i), J: hypergraph.PartID(j)})
		}
	}
	return pairs
}
