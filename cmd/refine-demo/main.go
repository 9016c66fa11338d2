// Command refine-demo wires config, logging, and a synthetic hypergraph
// through one refine.Engine.Refine call. It is not a general-purpose CLI —
// the engine itself has none (spec.md §6) — just a demonstration harness.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"

	"go.uber.org/zap"

	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/config"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/logging"
	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/refine"
)

func buildSyntheticHypergraph(numNodes, numEdges, edgeSize, k int, seed int64) (*hypergraph.InMemoryHypergraph, error) {
	rng := rand.New(rand.NewSource(seed))

	weights := make([]hypergraph.Weight, numNodes)
	for i := range weights {
		weights[i] = 1
	}
	b := hypergraph.NewBuilder(k, weights)
	for e := 0; e < numEdges; e++ {
		pins := make([]hypergraph.NodeID, 0, edgeSize)
		seen := make(map[hypergraph.NodeID]bool, edgeSize)
		for len(pins) < edgeSize {
			v := hypergraph.NodeID(rng.Intn(numNodes))
			if seen[v] {
				continue
			}
			seen[v] = true
			pins = append(pins, v)
		}
		b.AddEdge(1, pins)
	}

	initial := make([]hypergraph.PartID, numNodes)
	for v := range initial {
		initial[v] = hypergraph.PartID(rng.Intn(k))
	}
	return b.Build(initial)
}

func main() {
	logger, err := logging.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	const numNodes, numEdges, edgeSize, k = 5000, 8000, 4, 32
	maxPartWeight := make([]int64, k)
	for p := range maxPartWeight {
		maxPartWeight[p] = int64(numNodes)/int64(k) + int64(numNodes)/10
	}
	cfg := config.Default(k, maxPartWeight)

	h, err := buildSyntheticHypergraph(numNodes, numEdges, edgeSize, k, cfg.Partition.Seed)
	if err != nil {
		logger.Fatal("build synthetic hypergraph", zap.Error(err))
	}

	before := h.Objective(hypergraph.ObjectiveKm1)
	logger.Info("starting refinement", zap.Int64("objectiveBefore", before))

	engine := refine.NewEngine(cfg, nil, logger)

	all := make([]hypergraph.NodeID, numNodes)
	for v := range all {
		all[v] = hypergraph.NodeID(v)
	}

	improved, err := engine.Refine(context.Background(), h, all)
	if err != nil {
		logger.Fatal("refine", zap.Error(err))
	}

	after := h.Objective(hypergraph.ObjectiveKm1)
	logger.Info("refinement complete",
		zap.Bool("improved", improved),
		zap.Int64("objectiveBefore", before),
		zap.Int64("objectiveAfter", after))

	if err := h.CheckInvariants(); err != nil {
		logger.Fatal("post-refine invariant check failed", zap.Error(err))
	}
}
