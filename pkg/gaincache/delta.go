package gaincache

import "github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"

type nodeBlock struct {
	v hypergraph.NodeID
	p hypergraph.PartID
}

// DeltaCache overlays Cache with thread-local adjustments so one local FM
// search can speculate without publishing intermediate state into the
// shared Cache (spec.md §3 "Delta gain cache"). Created per local search,
// destroyed at its end.
type DeltaCache struct {
	shared *Cache

	benefitDelta map[hypergraph.NodeID]int64
	penaltyDelta map[nodeBlock]int64
}

// NewDelta creates a delta overlay on top of the given shared cache.
func NewDelta(shared *Cache) *DeltaCache {
	return &DeltaCache{
		shared:       shared,
		benefitDelta: make(map[hypergraph.NodeID]int64),
		penaltyDelta: make(map[nodeBlock]int64),
	}
}

// Gain returns the speculative gain, shared cache plus any local delta.
func (d *DeltaCache) Gain(v hypergraph.NodeID, p hypergraph.PartID) hypergraph.Gain {
	benefit := d.shared.moveFromBenefit[v].Load() + d.benefitDelta[v]
	penalty := d.shared.moveToPenalty[int(v)*d.shared.k+int(p)].Load() + d.penaltyDelta[nodeBlock{v, p}]
	return hypergraph.Gain(benefit - penalty)
}

// Update mirrors Cache.Update but writes into the thread-local overlay
// instead of the shared atomics, consulting phg for pin membership (the
// speculative pin-count state the caller passes in SyncUpdate already
// reflects the delta-hypergraph's view, not the shared PHG's).
func (d *DeltaCache) Update(pins func(visit func(v hypergraph.NodeID)), partOf func(v hypergraph.NodeID) hypergraph.PartID, u SyncUpdate) {
	w := u.Weight

	if u.PinCountTo == 1 {
		pins(func(v hypergraph.NodeID) {
			d.penaltyDelta[nodeBlock{v, u.To}] -= w
		})
	}
	if u.PinCountFrom == 0 {
		pins(func(v hypergraph.NodeID) {
			d.penaltyDelta[nodeBlock{v, u.From}] += w
		})
	}
	if u.PinCountFrom == 1 {
		pins(func(v hypergraph.NodeID) {
			if v != u.Mover && partOf(v) == u.From {
				d.benefitDelta[v] += w
			}
		})
	}
	if u.PinCountTo == 2 {
		pins(func(v hypergraph.NodeID) {
			if v != u.Mover && partOf(v) == u.To {
				d.benefitDelta[v] -= w
			}
		})
	}
	if u.PinCountTo == 1 {
		d.benefitDelta[u.Mover] += w
	}
	if u.PinCountFrom == 0 {
		d.benefitDelta[u.Mover] -= w
	}
}

// Reset clears the overlay so the delta cache can be reused by a new
// local search without reallocating its backing maps.
func (d *DeltaCache) Reset() {
	for k := range d.benefitDelta {
		delete(d.benefitDelta, k)
	}
	for k := range d.penaltyDelta {
		delete(d.penaltyDelta, k)
	}
}
