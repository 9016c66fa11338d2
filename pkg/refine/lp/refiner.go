package lp

import (
	"context"

	"go.uber.org/zap"

	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/concurrent"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/config"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/gaincache"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/movetracker"
)

// numBuckets bounds how finely a round's permutation can be split into
// sub-rounds; spec.md §4.5.1 doubles num_sub_rounds whenever a block pair
// left moves on the table, capped here rather than at an unbounded
// fraction of n.
const numBuckets = 64

// Refiner drives the deterministic synchronous label-propagation rounds of
// spec.md §4.5.
type Refiner struct {
	phg           hypergraph.PartitionedHypergraph
	cache         *gaincache.Cache
	moves         *movetracker.Tracker
	pool          *concurrent.Pool
	cfg           config.LPConfig
	k             int
	maxPartWeight []hypergraph.Weight
	seed          int64
	logger        *zap.Logger
}

func NewRefiner(
	phg hypergraph.PartitionedHypergraph, cache *gaincache.Cache, moves *movetracker.Tracker,
	pool *concurrent.Pool, cfg config.LPConfig, k int, maxPartWeight []hypergraph.Weight, seed int64, logger *zap.Logger,
) *Refiner {
	return &Refiner{
		phg: phg, cache: cache, moves: moves, pool: pool,
		cfg: cfg, k: k, maxPartWeight: maxPartWeight, seed: seed, logger: logger,
	}
}

// Refine runs up to cfg.MaxIter rounds of label propagation seeded from
// seedNodes (pass nil/empty to re-permute every node on round 0, per
// spec.md §4.5.1's "uniform re-permute if the active set is empty").
// It returns the total number of moves applied across every round.
func (r *Refiner) Refine(ctx context.Context, seedNodes []hypergraph.NodeID) (int, error) {
	active := append([]hypergraph.NodeID(nil), seedNodes...)
	if len(active) == 0 {
		n := r.phg.NumNodes()
		active = make([]hypergraph.NodeID, n)
		for i := 0; i < n; i++ {
			active[i] = hypergraph.NodeID(i)
		}
	}

	totalApplied := 0

	for iter := 0; iter < r.cfg.MaxIter; iter++ {
		if len(active) == 0 {
			break
		}

		roundApplied, touchedNext, err := r.runRound(ctx, active, iter)
		if err != nil {
			return totalApplied, err
		}
		totalApplied += roundApplied

		if r.logger != nil {
			r.logger.Debug("lp round complete",
				zap.Int("iter", iter), zap.Int("applied", roundApplied), zap.Int("activeNext", len(touchedNext)))
		}

		if roundApplied == 0 {
			break
		}

		if r.cfg.UseActiveNodeSet {
			active = active[:0]
			for v := range touchedNext {
				if isBoundary(r.phg, v, r.cfg.HyperedgeSizeActivationThreshold) {
					active = append(active, v)
				}
			}
		} else {
			n := r.phg.NumNodes()
			active = make([]hypergraph.NodeID, n)
			for i := 0; i < n; i++ {
				active[i] = hypergraph.NodeID(i)
			}
		}
	}

	return totalApplied, nil
}

// runRound executes one round's sub-round loop: sub-rounds start at
// cfg.NumSubRounds and double (capped at numBuckets) every time a block
// pair had to leave candidates for the residual strategy, per spec.md
// §4.5.1 step 3.
func (r *Refiner) runRound(ctx context.Context, active []hypergraph.NodeID, iter int) (int, map[hypergraph.NodeID]bool, error) {
	perm, err := NewPermutation(ctx, r.pool, active, numBuckets, r.seed+int64(iter))
	if err != nil {
		return 0, nil, err
	}
	order := perm.Order()
	bounds := perm.Bounds()

	subRounds := r.cfg.NumSubRounds
	if subRounds < 1 {
		subRounds = 1
	}
	if subRounds > numBuckets {
		subRounds = numBuckets
	}

	roundApplied := 0
	touchedNext := make(map[hypergraph.NodeID]bool)

	for {
		anyResidual := false

		for sr := 0; sr < subRounds; sr++ {
			bucketLo := sr * numBuckets / subRounds
			bucketHi := (sr + 1) * numBuckets / subRounds
			chunkLo, chunkHi := bounds[bucketLo], bounds[bucketHi]
			if chunkLo >= chunkHi {
				continue
			}
			slice := order[chunkLo:chunkHi]

			candidates := make([]candidate, len(slice))
			err := r.pool.ParallelFor(ctx, len(slice), func(_ context.Context, i int) error {
				candidates[i] = bestMoveForNode(r.phg, r.cache, slice[i], r.k)
				return nil
			})
			if err != nil {
				return roundApplied, touchedNext, err
			}

			applied, residual, increaseSubRounds, err := applyMaximalPrefixesInBlockPairs(
				ctx, r.pool, r.phg, r.cache, r.moves, candidates, r.maxPartWeight)
			if err != nil {
				return roundApplied, touchedNext, err
			}
			if increaseSubRounds {
				anyResidual = true
			}

			var secondWave []candidate
			if len(residual) > 0 {
				if r.cfg.RecalculateGainsOnSecondApply {
					secondWave, err = applySortedByGainWithRecalculation(
						ctx, r.pool, r.phg, r.cache, r.moves, residual, r.maxPartWeight)
					if err != nil {
						return roundApplied, touchedNext, err
					}
				} else {
					secondWave = applySortedByGainAndRevertUnbalanced(
						r.phg, r.cache, r.moves, residual, r.maxPartWeight)
				}
			}

			roundApplied += len(applied) + len(secondWave)
			for _, c := range applied {
				markTouched(r.phg, c.node, touchedNext)
			}
			for _, c := range secondWave {
				markTouched(r.phg, c.node, touchedNext)
			}
		}

		if !anyResidual || subRounds >= numBuckets {
			break
		}
		subRounds *= 2
		if subRounds > numBuckets {
			subRounds = numBuckets
		}
	}

	return roundApplied, touchedNext, nil
}

// markTouched adds v and its hyperedge neighborhood to the activation set
// considered for the next round (spec.md §4.5.1's "newly touched" rule).
func markTouched(phg hypergraph.PartitionedHypergraph, v hypergraph.NodeID, touched map[hypergraph.NodeID]bool) {
	touched[v] = true
	phg.IncidentEdges(v, func(e hypergraph.EdgeID) {
		phg.Pins(e, func(u hypergraph.NodeID) {
			touched[u] = true
		})
	})
}
