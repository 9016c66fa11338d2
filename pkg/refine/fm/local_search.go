// Package fm implements the localized k-way FM refiner (spec.md §4.4).
package fm

import (
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/concurrent"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/config"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/gaincache"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/movetracker"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/nodetracker"
)

// hugeBudget is used for moves that are known to always be feasible
// (reverting to a previously valid state).
const hugeBudget = hypergraph.Weight(1) << 62

type placement struct {
	block hypergraph.PartID
	entry *concurrent.HeapEntry[hypergraph.NodeID]
}

// LocalSearch is one seed-driven search owned by a single SearchID. It is
// never called from more than one goroutine; the FM Refiner runs many of
// these concurrently, each over a disjoint set of vertices claimed through
// nodetracker's CAS.
type LocalSearch struct {
	phg   hypergraph.PartitionedHypergraph
	cache *gaincache.Cache
	nodes *nodetracker.Tracker
	moves *movetracker.Tracker
	cfg   config.FMConfig
	k     int
	maxPartWeight []hypergraph.Weight

	sid  nodetracker.SearchID
	stop *StopRule

	overlay *deltaOverlay       // non-nil in delta mode, nil in global mode
	delta   *gaincache.DeltaCache

	blockPQ    *concurrent.AddressableMaxHeap[hypergraph.PartID]
	blockEntry []*concurrent.HeapEntry[hypergraph.PartID]
	vertexPQ   []*concurrent.AddressableMaxHeap[hypergraph.NodeID]
	placed     map[hypergraph.NodeID]placement

	touched    []hypergraph.NodeID
	localMoves []hypergraph.Move
	moveIDs    []movetracker.MoveID

	estimatedImprovement hypergraph.Gain
	bestImprovement       hypergraph.Gain
	bestImprovementIndex  int
	heaviestAtBest        hypergraph.Weight
}

// NewLocalSearch creates a search owned by sid. deltaMode selects speculative
// (DeltaPartitionedHypergraph-overlay) moves versus immediately-published
// global moves (spec.md §4.4.1 step 2c).
func NewLocalSearch(
	phg hypergraph.PartitionedHypergraph,
	cache *gaincache.Cache,
	nodes *nodetracker.Tracker,
	moves *movetracker.Tracker,
	cfg config.FMConfig,
	k int,
	maxPartWeight []hypergraph.Weight,
	sid nodetracker.SearchID,
	deltaMode bool,
) *LocalSearch {
	s := &LocalSearch{
		phg: phg, cache: cache, nodes: nodes, moves: moves,
		cfg: cfg, k: k, maxPartWeight: maxPartWeight, sid: sid,
		stop:       NewStopRule(5.0, 0.5, max1(phg.NumNodes())),
		blockPQ:    concurrent.NewAddressableMaxHeap[hypergraph.PartID](),
		blockEntry: make([]*concurrent.HeapEntry[hypergraph.PartID], k),
		vertexPQ:   make([]*concurrent.AddressableMaxHeap[hypergraph.NodeID], k),
		placed:     make(map[hypergraph.NodeID]placement),
	}
	for b := range s.vertexPQ {
		s.vertexPQ[b] = concurrent.NewAddressableMaxHeap[hypergraph.NodeID]()
	}
	if deltaMode {
		s.overlay = newDeltaOverlay(phg)
		s.delta = gaincache.NewDelta(cache)
	}
	return s
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func (s *LocalSearch) partOf(v hypergraph.NodeID) hypergraph.PartID {
	if s.overlay != nil {
		return s.overlay.PartID(v)
	}
	return s.phg.PartID(v)
}

func (s *LocalSearch) partWeight(p hypergraph.PartID) hypergraph.Weight {
	if s.overlay != nil {
		return s.overlay.PartWeight(p)
	}
	return s.phg.PartWeight(p)
}

func (s *LocalSearch) gainOf(v hypergraph.NodeID, p hypergraph.PartID) hypergraph.Gain {
	if s.overlay != nil {
		return s.delta.Gain(v, p)
	}
	return s.cache.Gain(v, p)
}

func (s *LocalSearch) heaviestPartWeight() hypergraph.Weight {
	var heaviest hypergraph.Weight
	for p := 0; p < s.k; p++ {
		if w := s.partWeight(hypergraph.PartID(p)); w > heaviest {
			heaviest = w
		}
	}
	return heaviest
}

// balanceBudget implements spec.md §4.4.1 step 2c: "max(maxPartWeight[to],
// partWeight[from])" — tolerating temporary overweight of `to` only when
// `from` was already overweight by at least as much.
func (s *LocalSearch) balanceBudget(from, to hypergraph.PartID) hypergraph.Weight {
	budget := s.maxPartWeight[to]
	if fw := s.partWeight(from); fw > budget {
		budget = fw
	}
	return budget
}

func (s *LocalSearch) bestDestinationBlock(v hypergraph.NodeID) (hypergraph.PartID, hypergraph.Gain) {
	from := s.partOf(v)
	best := hypergraph.PartID(-1)
	var bestGain hypergraph.Gain
	first := true
	for p := 0; p < s.k; p++ {
		part := hypergraph.PartID(p)
		if part == from {
			continue
		}
		g := s.gainOf(v, part)
		if first || g > bestGain {
			bestGain, best, first = g, part, false
		}
	}
	return best, bestGain
}

func (s *LocalSearch) refreshBlockKey(b hypergraph.PartID) {
	top, ok := s.vertexPQ[b].Top()
	if !ok {
		if e := s.blockEntry[b]; e != nil {
			s.blockPQ.Remove(e)
			s.blockEntry[b] = nil
		}
		return
	}
	if e := s.blockEntry[b]; e != nil {
		s.blockPQ.UpdateKey(e, top.Key())
	} else {
		s.blockEntry[b] = s.blockPQ.Insert(top.Key(), b)
	}
}

// place inserts v into target's vertex-PQ with the given gain, removing it
// from wherever it was previously placed in this search's PQs.
func (s *LocalSearch) place(v hypergraph.NodeID, target hypergraph.PartID, gain hypergraph.Gain) {
	if p, ok := s.placed[v]; ok {
		s.vertexPQ[p.block].Remove(p.entry)
		s.refreshBlockKey(p.block)
	}
	e := s.vertexPQ[target].Insert(int64(gain), v)
	s.placed[v] = placement{block: target, entry: e}
	s.refreshBlockKey(target)
}

func (s *LocalSearch) unplace(v hypergraph.NodeID) {
	if p, ok := s.placed[v]; ok {
		s.vertexPQ[p.block].Remove(p.entry)
		delete(s.placed, v)
		s.refreshBlockKey(p.block)
	}
}

// Seed pulls seed vertices into this search per spec.md §4.4.1 step 1,
// claiming each via the node tracker's CAS and skipping ones already owned.
func (s *LocalSearch) Seed(seeds []hypergraph.NodeID) {
	for _, v := range seeds {
		if !s.nodes.TryAcquire(v, s.sid) {
			continue
		}
		to, gain := s.bestDestinationBlock(v)
		if to < 0 {
			s.nodes.Deactivate(v, s.sid)
			continue
		}
		s.place(v, to, gain)
		s.touched = append(s.touched, v)
	}
}

// findNextMove implements spec.md §4.4.1 step 2a.
func (s *LocalSearch) findNextMove() (hypergraph.Move, bool) {
	for {
		be, ok := s.blockPQ.Top()
		if !ok {
			return hypergraph.Move{}, false
		}
		b := be.Item()
		ve, ok := s.vertexPQ[b].Top()
		if !ok {
			s.blockPQ.Remove(be)
			s.blockEntry[b] = nil
			continue
		}
		u := ve.Item()
		staleKey := ve.Key()

		to, gain := s.bestDestinationBlock(u)
		if to < 0 {
			s.unplace(u)
			continue
		}
		if int64(gain) >= staleKey {
			s.unplace(u)
			return hypergraph.Move{Node: u, From: s.partOf(u), To: to, Gain: gain}, true
		}
		s.place(u, to, gain)
	}
}

// reevaluateNeighbors implements spec.md §4.4.1 step e: every pin of every
// edge touched by the move is re-evaluated (or newly acquired) exactly once.
func (s *LocalSearch) reevaluateNeighbors(touchedEdges []hypergraph.EdgeID) {
	seen := make(map[hypergraph.NodeID]bool)
	for _, e := range touchedEdges {
		s.phg.Pins(e, func(v hypergraph.NodeID) {
			if seen[v] {
				return
			}
			seen[v] = true

			if state, owner := s.nodes.State(v); owner == s.sid && state == nodetracker.ActiveInSearch {
				to, gain := s.bestDestinationBlock(v)
				if to < 0 {
					s.unplace(v)
					return
				}
				s.place(v, to, gain)
				return
			}
			if s.nodes.TryAcquire(v, s.sid) {
				to, gain := s.bestDestinationBlock(v)
				if to < 0 {
					s.nodes.Deactivate(v, s.sid)
					return
				}
				s.place(v, to, gain)
				s.touched = append(s.touched, v)
			}
		})
	}
}

func (s *LocalSearch) isNewBestPrefix(m hypergraph.Move) bool {
	if s.estimatedImprovement > s.bestImprovement {
		return true
	}
	if s.estimatedImprovement == s.bestImprovement {
		toWeightAfter := s.partWeight(m.To)
		return toWeightAfter < s.heaviestAtBest
	}
	return false
}

// Run drives the search loop of spec.md §4.4.1 step 2 to completion and
// returns the best-prefix move sequence actually committed to the shared
// hypergraph, after performing whichever rollback mode (global or delta)
// this search was constructed with.
func (s *LocalSearch) Run(seeds []hypergraph.NodeID) []hypergraph.Move {
	s.Seed(seeds)
	s.heaviestAtBest = s.heaviestPartWeight()

	for {
		m, ok := s.findNextMove()
		if !ok {
			break
		}
		if m.Gain == 0 && !s.cfg.AllowZeroGainMoves {
			break
		}

		s.nodes.Deactivate(m.Node, s.sid)

		var touchedEdges []hypergraph.EdgeID
		accepted := s.applyMove(m, &touchedEdges)
		if !accepted {
			continue
		}

		s.localMoves = append(s.localMoves, m)
		s.estimatedImprovement += m.Gain
		s.stop.Update(int64(m.Gain))

		if s.isNewBestPrefix(m) {
			s.bestImprovement = s.estimatedImprovement
			s.bestImprovementIndex = len(s.localMoves)
			s.heaviestAtBest = s.heaviestPartWeight()
			s.stop.Reset()
		}

		s.reevaluateNeighbors(touchedEdges)

		if s.stop.ShouldStop(float64(s.estimatedImprovement)) {
			break
		}
	}

	var applied []hypergraph.Move
	if s.overlay != nil {
		applied = s.replayDeltaPrefix()
	} else {
		applied = s.revertGlobalSuffix()
	}
	s.release()
	return applied
}

// applyMove performs step 2c: apply m either through the delta overlay or
// directly (and globally visibly) through the shared hypergraph and gain
// cache, collecting the hyperedges whose pin counts changed.
func (s *LocalSearch) applyMove(m hypergraph.Move, touchedEdges *[]hypergraph.EdgeID) bool {
	budget := s.balanceBudget(m.From, m.To)
	w := s.phg.NodeWeight(m.Node)

	if s.overlay != nil {
		return s.overlay.ApplyMove(m.Node, m.From, m.To, w, budget, func(eu hypergraph.EdgeUpdate) {
			s.delta.Update(
				func(visit func(hypergraph.NodeID)) { s.phg.Pins(eu.Edge, visit) },
				s.overlay.PartID,
				gaincache.SyncUpdate{
					Mover: m.Node, Edge: eu.Edge, Weight: int64(eu.Weight),
					From: eu.From, PinCountFrom: eu.PinCountFrom,
					To: eu.To, PinCountTo: eu.PinCountTo,
				},
			)
			*touchedEdges = append(*touchedEdges, eu.Edge)
		})
	}

	return s.phg.ChangeNodePart(m.Node, m.From, m.To, budget, func(eu hypergraph.EdgeUpdate) {
		s.cache.Update(s.phg, gaincache.SyncUpdate{
			Mover: m.Node, Edge: eu.Edge, Weight: int64(eu.Weight),
			From: eu.From, PinCountFrom: eu.PinCountFrom,
			To: eu.To, PinCountTo: eu.PinCountTo,
		})
		*touchedEdges = append(*touchedEdges, eu.Edge)
	}, func() {
		id := s.moves.InsertMove(m)
		s.moveIDs = append(s.moveIDs, id)
	})
}

// revertGlobalSuffix implements the global-mode rollback of spec.md §4.4.1
// step 3: truncate the local move log back to bestImprovementIndex,
// reverting each move in reverse by applying its inverse directly.
func (s *LocalSearch) revertGlobalSuffix() []hypergraph.Move {
	for i := len(s.localMoves) - 1; i >= s.bestImprovementIndex; i-- {
		m := s.localMoves[i]
		s.phg.ChangeNodePart(m.Node, m.To, m.From, hugeBudget, func(eu hypergraph.EdgeUpdate) {
			s.cache.Update(s.phg, gaincache.SyncUpdate{
				Mover: m.Node, Edge: eu.Edge, Weight: int64(eu.Weight),
				From: eu.From, PinCountFrom: eu.PinCountFrom,
				To: eu.To, PinCountTo: eu.PinCountTo,
			})
		}, nil)
		s.moves.InvalidateMove(s.moveIDs[i])
	}
	return s.localMoves[:s.bestImprovementIndex]
}

// replayDeltaPrefix implements the delta-mode rollback of spec.md §4.4.1
// step 3: replay only the prefix [0, bestImprovementIndex) to the real
// hypergraph, attributing exact gains via the update callback, and compute
// a second best prefix on the replayed sequence (the speculative prefix may
// no longer be entirely feasible or optimal once interleaved with whatever
// other concurrent searches committed in the meantime).
func (s *LocalSearch) replayDeltaPrefix() []hypergraph.Move {
	type committed struct {
		move hypergraph.Move
		id   movetracker.MoveID
	}
	var applied []committed
	var cumulative hypergraph.Gain
	var best hypergraph.Gain
	bestIdx := 0
	heaviestAtBest := s.heaviestRealPartWeight()

	for i := 0; i < s.bestImprovementIndex; i++ {
		m := s.localMoves[i]
		budget := s.maxPartWeight[m.To]
		if fw := s.phg.PartWeight(m.From); fw > budget {
			budget = fw
		}

		var id movetracker.MoveID
		ok := s.phg.ChangeNodePart(m.Node, m.From, m.To, budget, func(eu hypergraph.EdgeUpdate) {
			s.cache.Update(s.phg, gaincache.SyncUpdate{
				Mover: m.Node, Edge: eu.Edge, Weight: int64(eu.Weight),
				From: eu.From, PinCountFrom: eu.PinCountFrom,
				To: eu.To, PinCountTo: eu.PinCountTo,
			})
		}, func() { id = s.moves.InsertMove(m) })
		if !ok {
			continue
		}

		applied = append(applied, committed{move: m, id: id})
		cumulative += m.Gain
		if cumulative > best || (cumulative == best && s.phg.PartWeight(m.To) < heaviestAtBest) {
			best = cumulative
			bestIdx = len(applied)
			heaviestAtBest = s.heaviestRealPartWeight()
		}
	}

	for i := len(applied) - 1; i >= bestIdx; i-- {
		m := applied[i].move
		s.phg.ChangeNodePart(m.Node, m.To, m.From, hugeBudget, func(eu hypergraph.EdgeUpdate) {
			s.cache.Update(s.phg, gaincache.SyncUpdate{
				Mover: m.Node, Edge: eu.Edge, Weight: int64(eu.Weight),
				From: eu.From, PinCountFrom: eu.PinCountFrom,
				To: eu.To, PinCountTo: eu.PinCountTo,
			})
		}, nil)
		s.moves.InvalidateMove(applied[i].id)
	}

	out := make([]hypergraph.Move, bestIdx)
	for i := 0; i < bestIdx; i++ {
		out[i] = applied[i].move
	}
	return out
}

func (s *LocalSearch) heaviestRealPartWeight() hypergraph.Weight {
	var heaviest hypergraph.Weight
	for p := 0; p < s.k; p++ {
		if w := s.phg.PartWeight(hypergraph.PartID(p)); w > heaviest {
			heaviest = w
		}
	}
	return heaviest
}

// release implements spec.md §4.4.1 step 4: release held PQ nodes in the
// node tracker. The touched vertices stay available through Touched so the
// Refiner can re-enqueue them to the shared work container for subsequent
// local searches.
func (s *LocalSearch) release() {
	for v := range s.placed {
		s.unplace(v)
	}
	for _, v := range s.touched {
		state, owner := s.nodes.State(v)
		if owner != s.sid {
			continue
		}
		if state == nodetracker.ActiveInSearch {
			s.nodes.Deactivate(v, s.sid)
		}
		s.nodes.Release(v, s.sid)
	}
}

// Touched returns every vertex this search claimed, for the Refiner to
// re-enqueue to the shared work container.
func (s *LocalSearch) Touched() []hypergraph.NodeID { return s.touched }
