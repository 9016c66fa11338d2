package fm

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/concurrent"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/config"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/gaincache"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/movetracker"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/nodetracker"
)

// Refiner orchestrates config.FMConfig.NumSeedNodes-per-search seeding from
// the shared work-stealing pool, launched as numWorkers concurrent
// LocalSearch instances (spec.md §4.4.1).
type Refiner struct {
	phg   hypergraph.PartitionedHypergraph
	cache *gaincache.Cache
	nodes *nodetracker.Tracker
	moves *movetracker.Tracker
	pool  *concurrent.WorkStealingPool[hypergraph.NodeID]

	cfg           config.FMConfig
	k             int
	maxPartWeight []hypergraph.Weight

	numWorkers int
	nextSID    atomic.Uint64
	logger     *zap.Logger
}

// NewRefiner creates an FM refiner with numWorkers worker-local queues.
func NewRefiner(
	phg hypergraph.PartitionedHypergraph,
	cache *gaincache.Cache,
	nodes *nodetracker.Tracker,
	moves *movetracker.Tracker,
	numWorkers int,
	cfg config.FMConfig,
	k int,
	maxPartWeight []hypergraph.Weight,
	logger *zap.Logger,
) *Refiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	r := &Refiner{
		phg: phg, cache: cache, nodes: nodes, moves: moves,
		pool:          concurrent.NewWorkStealingPool[hypergraph.NodeID](numWorkers, 64),
		cfg:           cfg,
		k:             k,
		maxPartWeight: maxPartWeight,
		numWorkers:    numWorkers,
		logger:        logger,
	}
	r.pool.EnsureTimestamps(phg.NumNodes())
	return r
}

// Seed distributes the initial boundary vertex set round-robin across the
// worker queues.
func (r *Refiner) Seed(initial []hypergraph.NodeID) {
	for i, v := range initial {
		r.pool.PushBack(i%r.numWorkers, v)
	}
}

func (r *Refiner) pullSeeds(worker int) []hypergraph.NodeID {
	seeds := make([]hypergraph.NodeID, 0, r.cfg.NumSeedNodes)
	for len(seeds) < r.cfg.NumSeedNodes {
		v, ok := r.pool.TryPop(worker)
		if !ok {
			break
		}
		seeds = append(seeds, v)
	}
	return seeds
}

// Refine runs local searches until every worker's queue (and every other
// worker's, via stealing) drains. It returns the total gain realized
// (I4: the objective after refinement is <= the objective at entry).
func (r *Refiner) Refine(ctx context.Context, pool *concurrent.Pool) (hypergraph.Gain, error) {
	var totalImprovement atomic.Int64

	err := pool.ParallelFor(ctx, pool.NumThreads(), func(_ context.Context, w int) error {
		for {
			seeds := r.pullSeeds(w)
			if len(seeds) == 0 {
				return nil
			}

			sid := nodetracker.SearchID(r.nextSID.Add(1))
			ls := NewLocalSearch(r.phg, r.cache, r.nodes, r.moves, r.cfg, r.k, r.maxPartWeight, sid, !r.cfg.PerformMovesGlobal)
			applied := ls.Run(seeds)

			var gain hypergraph.Gain
			for _, m := range applied {
				gain += m.Gain
			}
			totalImprovement.Add(int64(gain))

			if len(applied) > 0 {
				for _, v := range ls.Touched() {
					r.pool.PushBack(w, v)
				}
			}
		}
	})
	if err != nil {
		return 0, err
	}

	r.logger.Debug("fm refiner converged", zap.Int64("total_gain", totalImprovement.Load()))
	return hypergraph.Gain(totalImprovement.Load()), nil
}
