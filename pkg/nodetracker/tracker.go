// Package nodetracker implements the per-vertex ownership state machine
// the FM local search uses to claim and release vertices (spec.md §4.4.3).
package nodetracker

import (
	"sync/atomic"

	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"
)

// SearchID identifies a running local search. Zero is reserved for
// "no search" (a vertex in state Inactive or Deactivated has no owner).
type SearchID uint64

// State is the coarse phase of a vertex's lifecycle within one refinement
// pass. A vertex starts Inactive, is claimed into ActiveInSearch by exactly
// one search's CAS, and moves to Deactivated once that search is done
// with it; releaseNode returns it to Inactive for the next pass.
type State uint8

const (
	Inactive State = iota
	ActiveInSearch
	Deactivated
)

// packed encodes (state, owner) into a single uint64 so the whole
// transition is one CAS: state in the low 2 bits, SearchID shifted up.
func pack(s State, sid SearchID) uint64 {
	return uint64(sid)<<2 | uint64(s)
}

func unpack(v uint64) (State, SearchID) {
	return State(v & 0x3), SearchID(v >> 2)
}

// Tracker holds one CAS-guarded word per vertex. Only the owning search may
// transition its own ActiveInSearch vertices to Deactivated; any search may
// attempt the initial Inactive->ActiveInSearch acquisition, and any search
// may releaseNode a Deactivated vertex it owns back to Inactive.
type Tracker struct {
	word []atomic.Uint64
}

// New allocates a tracker with every vertex Inactive.
func New(numNodes int) *Tracker {
	return &Tracker{word: make([]atomic.Uint64, numNodes)}
}

// TryAcquire attempts the Inactive -> ActiveInSearch(sid) transition for v.
// Returns false if v was not Inactive (already owned by some search).
func (t *Tracker) TryAcquire(v hypergraph.NodeID, sid SearchID) bool {
	want := pack(Inactive, 0)
	next := pack(ActiveInSearch, sid)
	return t.word[v].CompareAndSwap(want, next)
}

// Deactivate transitions v from ActiveInSearch(sid) to Deactivated(sid).
// Only the search that currently owns v may do this; returns false
// otherwise (a stale call after another search already released it).
func (t *Tracker) Deactivate(v hypergraph.NodeID, sid SearchID) bool {
	want := pack(ActiveInSearch, sid)
	next := pack(Deactivated, sid)
	return t.word[v].CompareAndSwap(want, next)
}

// Release returns v from Deactivated(sid) to Inactive, relinquishing
// ownership so a later search may acquire it again (spec.md §4.4.1 step 4,
// "release held PQ nodes in the node tracker").
func (t *Tracker) Release(v hypergraph.NodeID, sid SearchID) bool {
	want := pack(Deactivated, sid)
	next := pack(Inactive, 0)
	return t.word[v].CompareAndSwap(want, next)
}

// State returns v's current (state, owner) pair.
func (t *Tracker) State(v hypergraph.NodeID) (State, SearchID) {
	return unpack(t.word[v].Load())
}

// IsOwnedBy reports whether v is currently ActiveInSearch or Deactivated
// under sid — i.e. whether sid may still act on it.
func (t *Tracker) IsOwnedBy(v hypergraph.NodeID, sid SearchID) bool {
	s, owner := t.State(v)
	return owner == sid && (s == ActiveInSearch || s == Deactivated)
}

// Reset forces every vertex back to Inactive, for reuse of one tracker
// across independent refinement calls.
func (t *Tracker) Reset() {
	for i := range t.word {
		t.word[i].Store(pack(Inactive, 0))
	}
}
