// Package refine wires the three refinement stages spec.md §2 names — the
// deterministic LP refiner, the localized FM refiner, and flow-based
// refinement scheduled through the quotient graph — into one top-level
// entry point.
package refine

import (
	"context"

	"go.uber.org/zap"

	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/concurrent"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/config"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/gaincache"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/movetracker"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/nodetracker"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/quotient"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/refine/fm"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/refine/lp"
)

// Engine is the polymorphic refiner dispatcher of spec.md §9: one
// construction-time choice of FlowSolver, re-used across every Refine call,
// rather than a virtual-dispatch table re-resolved per call.
type Engine struct {
	cfg    config.Config
	pool   *concurrent.Pool
	solver quotient.FlowSolver
	logger *zap.Logger
}

// NewEngine builds an Engine. A nil solver defaults to
// quotient.NullFlowSolver, which lets the scheduler's bookkeeping run
// without a real max-flow collaborator (spec.md §1).
func NewEngine(cfg config.Config, solver quotient.FlowSolver, logger *zap.Logger) *Engine {
	if solver == nil {
		solver = quotient.NullFlowSolver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg,
		pool:   concurrent.NewPool(cfg.SharedMemory.NumThreads),
		solver: solver,
		logger: logger,
	}
}

func (e *Engine) maxPartWeight() []hypergraph.Weight {
	out := make([]hypergraph.Weight, len(e.cfg.Partition.MaxPartWeight))
	for i, w := range e.cfg.Partition.MaxPartWeight {
		out[i] = hypergraph.Weight(w)
	}
	return out
}

func objectiveOf(name string) hypergraph.Objective {
	if name == "cut" {
		return hypergraph.ObjectiveCut
	}
	return hypergraph.ObjectiveKm1
}

// computeObjective mirrors hypergraph.InMemoryHypergraph.Objective, but
// against the PartitionedHypergraph interface so the engine never needs a
// concrete type assertion.
func computeObjective(phg hypergraph.PartitionedHypergraph, obj hypergraph.Objective) int64 {
	var total int64
	for e := 0; e < phg.NumEdges(); e++ {
		edge := hypergraph.EdgeID(e)
		c := phg.Connectivity(edge)
		if c <= 1 {
			continue
		}
		switch obj {
		case hypergraph.ObjectiveKm1:
			total += int64(phg.EdgeWeight(edge)) * int64(c-1)
		case hypergraph.ObjectiveCut:
			total += int64(phg.EdgeWeight(edge))
		}
	}
	return total
}

// seedQuotientGraph populates g with every currently-cut hyperedge (spec.md
// §3: "every hyperedge with connectivity >= 2 is present in Q[i,j] for
// exactly one pair (i,j)"). For connectivity > 2 edges there is no unique
// pair, so this assigns the edge to the pair formed by its two
// lowest-numbered occupied blocks — an arbitrary but stable tie-break,
// since flow solving itself (the only consumer of this bucketing) is out of
// scope (spec.md §1).
func seedQuotientGraph(phg hypergraph.PartitionedHypergraph, g *quotient.Graph) {
	for e := 0; e < phg.NumEdges(); e++ {
		edge := hypergraph.EdgeID(e)
		if phg.Connectivity(edge) < 2 {
			continue
		}
		var blocks []hypergraph.PartID
		seen := map[hypergraph.PartID]bool{}
		phg.Pins(edge, func(v hypergraph.NodeID) {
			p := phg.PartID(v)
			if !seen[p] {
				seen[p] = true
				blocks = append(blocks, p)
			}
		})
		if len(blocks) < 2 {
			continue
		}
		lo, hi := blocks[0], blocks[1]
		if lo > hi {
			lo, hi = hi, lo
		}
		for _, b := range blocks[2:] {
			if b < lo {
				lo, hi = b, lo
			} else if b < hi {
				hi = b
			}
		}
		g.AddCutHyperedge(quotient.PairKey{I: lo, J: hi}, edge, phg.EdgeWeight(edge))
	}
}

// applyFlowAssignment realizes a solved Assignment's moves against the
// shared hypergraph and gain cache, mirroring every other apply path's
// onEdgeUpdate wiring (gaincache.SyncUpdate).
func applyFlowAssignment(
	phg hypergraph.PartitionedHypergraph, cache *gaincache.Cache, moves *movetracker.Tracker,
	maxPartWeight []hypergraph.Weight, a quotient.Assignment,
) {
	for v, to := range a.MoveTo {
		from := phg.PartID(v)
		if from == to {
			continue
		}
		phg.ChangeNodePart(v, from, to, maxPartWeight[to], func(eu hypergraph.EdgeUpdate) {
			cache.Update(phg, gaincache.SyncUpdate{
				Mover: v, Edge: eu.Edge, Weight: int64(eu.Weight),
				From: eu.From, PinCountFrom: eu.PinCountFrom,
				To: eu.To, PinCountTo: eu.PinCountTo,
			})
		}, func() {
			moves.InsertMove(hypergraph.Move{Node: v, From: from, To: to})
		})
	}
}

// runFlowPhase drives the quotient-graph scheduler through every round it
// is willing to open (spec.md §4.6), returning the total improvement found.
func (e *Engine) runFlowPhase(
	ctx context.Context, phg hypergraph.PartitionedHypergraph, cache *gaincache.Cache, moves *movetracker.Tracker, maxPartWeight []hypergraph.Weight,
) (int64, error) {
	scheduler := quotient.NewScheduler(e.cfg.Partition.K, e.solver, e.cfg.Advanced.NumThreadsPerSearch, e.cfg.Advanced.MinRelativeImprovementPerRound, e.logger)
	seedQuotientGraph(phg, scheduler.Graph())

	var total int64
	obj := objectiveOf(e.cfg.Partition.Objective)

	for {
		if err := scheduler.RunFlowRound(ctx, e.pool, func(_ quotient.PairKey, a quotient.Assignment) {
			applyFlowAssignment(phg, cache, moves, maxPartWeight, a)
			total += a.Improvement
		}); err != nil {
			return total, err
		}
		if !scheduler.AdvanceRound(computeObjective(phg, obj)) {
			break
		}
	}
	return total, nil
}

// Refine runs the top-level control flow of spec.md §2: the LP refiner,
// then the FM refiner, then an optional flow-based round scheduled through
// the quotient graph, repeated until no stage improves the objective by at
// least cfg.Advanced.MinRelativeImprovementPerRound. It reports whether the
// objective value changed at all.
func (e *Engine) Refine(ctx context.Context, phg hypergraph.PartitionedHypergraph, seedNodes []hypergraph.NodeID) (bool, error) {
	k := e.cfg.Partition.K
	maxPartWeight := e.maxPartWeight()
	obj := objectiveOf(e.cfg.Partition.Objective)

	cache := gaincache.New(phg.NumNodes(), phg.K())
	gaincache.Initialize(cache, phg)
	moves := movetracker.New()
	nodes := nodetracker.New(phg.NumNodes())

	anyImproved := false
	current := computeObjective(phg, obj)

	for {
		before := current

		lpRefiner := lp.NewRefiner(phg, cache, moves, e.pool, e.cfg.LP, k, maxPartWeight, e.cfg.Partition.Seed, e.logger)
		if _, err := lpRefiner.Refine(ctx, seedNodes); err != nil {
			return anyImproved, err
		}

		fmRefiner := fm.NewRefiner(phg, cache, nodes, moves, e.pool.NumThreads(), e.cfg.FM, k, maxPartWeight, e.logger)
		fmRefiner.Seed(seedNodes)
		if _, err := fmRefiner.Refine(ctx, e.pool); err != nil {
			return anyImproved, err
		}

		if _, err := e.runFlowPhase(ctx, phg, cache, moves, maxPartWeight); err != nil {
			return anyImproved, err
		}

		current = computeObjective(phg, obj)
		if before != current {
			anyImproved = true
		}

		relativeImprovement := 0.0
		if before != 0 {
			relativeImprovement = float64(before-current) / float64(before)
		}
		if relativeImprovement < e.cfg.Advanced.MinRelativeImprovementPerRound {
			break
		}

		e.logger.Debug("engine round complete",
			zap.Int64("before", before), zap.Int64("after", current), zap.Float64("relativeImprovement", relativeImprovement))
	}

	return anyImproved, nil
}
