package quotient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/concurrent"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"
)

// ErrNoSchedulablePair is returned by RequestNewSearch when the current
// round's queue is drained without finding a pair whose ownership CAS
// succeeded within the per-block concurrency limit (spec.md §7 kind 3,
// contention starvation).
var ErrNoSchedulablePair = errors.New("quotient: no schedulable block pair available")

// round is one active-block-scheduler round: a FIFO of pairs still to be
// scheduled this round, and the set of blocks that became active for the
// next round. The teacher reaches for a buffered channel as its bounded
// concurrent queue (pkg/concurrent/worker_pool.go's jobQueue); round-queue
// contention is far lower than the FM work container's, so a channel
// suffices here without a bespoke lock-free structure.
type round struct {
	queue chan PairKey

	mu           concurrent.SpinLock // guards becameActive; held only long enough to set two map entries
	becameActive map[hypergraph.PartID]bool

	totalImprovement atomic.Int64
}

func newRound(capacity int) *round {
	return &round{
		queue:        make(chan PairKey, capacity),
		becameActive: make(map[hypergraph.PartID]bool),
	}
}

// Scheduler pairs up blocks for flow-based refinement across successive
// rounds, seeding round 0 with every block pair and re-queuing only pairs
// touching a block that became active in the previous round (spec.md §4.6).
type Scheduler struct {
	k      int
	graph  *Graph
	solver FlowSolver
	logger *zap.Logger

	numThreadsPerSearch    int
	minRelativeImprovement float64

	activeSearchesOnBlock []atomic.Int32

	registerSearchLock sync.Mutex
	roundMu            sync.Mutex // the "_round_lock": O(1) round-advance bookkeeping only

	rounds     []*round
	currentRnd atomic.Int64

	nextSearchID atomic.Uint64
}

// NewScheduler creates a scheduler over a k-block partition, seeded with
// round 0 containing every block pair.
func NewScheduler(k int, solver FlowSolver, numThreadsPerSearch int, minRelativeImprovement float64, logger *zap.Logger) *Scheduler {
	if numThreadsPerSearch <= 0 {
		numThreadsPerSearch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		k:                      k,
		graph:                  NewGraph(k),
		solver:                 solver,
		logger:                 logger,
		numThreadsPerSearch:    numThreadsPerSearch,
		minRelativeImprovement: minRelativeImprovement,
		activeSearchesOnBlock:  make([]atomic.Int32, k),
	}
	r0 := newRound(k * k)
	for _, p := range s.graph.AllPairs() {
		r0.queue <- p
	}
	s.rounds = append(s.rounds, r0)
	return s
}

// Graph exposes the underlying quotient graph, e.g. for cut-hyperedge
// bookkeeping performed by the caller that scans the partitioned hypergraph.
func (s *Scheduler) Graph() *Graph { return s.graph }

func (s *Scheduler) current() *round {
	s.roundMu.Lock()
	defer s.roundMu.Unlock()
	return s.rounds[s.currentRnd.Load()]
}

// RequestNewSearch pops block pairs from the current round's queue until
// one whose ownership CAS succeeds and whose per-block active-search count
// remains within numThreadsPerSearch; it marks both blocks busy and returns
// a fresh SearchID for the winning pair (spec.md §4.6).
func (s *Scheduler) RequestNewSearch() (SearchID, PairKey, error) {
	s.registerSearchLock.Lock()
	defer s.registerSearchLock.Unlock()

	r := s.current()
	for {
		var pair PairKey
		select {
		case pair = <-r.queue:
		default:
			return InvalidSearchID, PairKey{}, ErrNoSchedulablePair
		}

		if int(s.activeSearchesOnBlock[pair.I].Load()) >= s.numThreadsPerSearch ||
			int(s.activeSearchesOnBlock[pair.J].Load()) >= s.numThreadsPerSearch {
			// Too busy right now; put it back for a later poll.
			r.queue <- pair
			continue
		}

		sid := SearchID(s.nextSearchID.Add(1))
		if !s.graph.TryAcquire(pair, sid) {
			continue // owned by a racing search; try the next pair
		}

		s.activeSearchesOnBlock[pair.I].Add(1)
		s.activeSearchesOnBlock[pair.J].Add(1)
		return sid, pair, nil
	}
}

// FinalizeSearch releases ownership of pair, records its improvement, and
// if improvement > 0 marks both blocks active for the next round so the
// pair (and any other pair touching them) gets rescheduled.
func (s *Scheduler) FinalizeSearch(sid SearchID, pair PairKey, improvement int64) {
	if s.graph.Owner(pair) == sid {
		s.graph.Release(pair)
	}
	s.activeSearchesOnBlock[pair.I].Add(-1)
	s.activeSearchesOnBlock[pair.J].Add(-1)
	s.graph.RecordImprovement(pair, improvement)

	r := s.current()
	r.totalImprovement.Add(improvement)

	if improvement <= 0 {
		return
	}
	r.mu.Lock()
	r.becameActive[pair.I] = true
	r.becameActive[pair.J] = true
	r.mu.Unlock()
}

// AdvanceRound closes out the current round and opens the next one, seeded
// with every pair touching a block that became active this round (spec.md
// §4.6: "a pair (i,j) is in round r's queue iff at least one of i,j was
// active at the end of round r-1"). It returns false, terminating the
// schedule, once the round's total improvement falls below
// minRelativeImprovement * currentObjective.
func (s *Scheduler) AdvanceRound(currentObjective int64) bool {
	s.roundMu.Lock()
	defer s.roundMu.Unlock()

	r := s.rounds[s.currentRnd.Load()]
	threshold := s.minRelativeImprovement * float64(currentObjective)
	if float64(r.totalImprovement.Load()) < threshold {
		s.logger.Debug("quotient scheduler terminating",
			zap.Int64("round_improvement", r.totalImprovement.Load()),
			zap.Float64("threshold", threshold))
		return false
	}

	next := newRound(s.k * s.k)
	for _, p := range s.graph.AllPairs() {
		if r.becameActive[p.I] || r.becameActive[p.J] {
			next.queue <- p
		}
	}
	s.rounds = append(s.rounds, next)
	s.currentRnd.Add(1)
	return true
}

// RunFlowRound drains the current round's schedulable pairs through pool,
// dispatching each acquired pair to solver.MinCut and applying the returned
// Assignment via apply. This is the thin orchestration spec.md §4.6 assigns
// to the scheduler; flow problem construction and solving live behind
// FlowSolver, out of scope here (§1).
func (s *Scheduler) RunFlowRound(ctx context.Context, pool *concurrent.Pool, apply func(PairKey, Assignment)) error {
	return pool.ParallelFor(ctx, pool.NumThreads(), func(ctx context.Context, _ int) error {
		for {
			sid, pair, err := s.RequestNewSearch()
			if errors.Is(err, ErrNoSchedulablePair) {
				return nil
			}
			if err != nil {
				return err
			}

			cutHEs := s.graph.DrainCutHyperedges(pair, 1<<20)
			assignment, err := s.solver.MinCut(ctx, cutHEs, pair.I, pair.J)
			if err != nil {
				s.FinalizeSearch(sid, pair, 0)
				return err
			}

			if apply != nil {
				apply(pair, assignment)
			}
			s.FinalizeSearch(sid, pair, assignment.Improvement)
		}
	})
}
