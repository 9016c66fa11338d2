// Package movetracker implements the global append-only move log with
// tombstone-based rollback (spec.md §3 "Move tracker").
package movetracker

import (
	"sync"

	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"
)

// MoveID identifies a committed move in the global log.
type MoveID int64

// InvalidMoveID marks "no move".
const InvalidMoveID MoveID = -1

type entry struct {
	move       hypergraph.Move
	invalidated bool
}

// Tracker is the global append-only sequence of committed moves.
type Tracker struct {
	mu      sync.Mutex
	entries []entry
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{}
}

// InsertMove atomically appends m and returns its MoveID.
func (t *Tracker) InsertMove(m hypergraph.Move) MoveID {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := MoveID(len(t.entries))
	t.entries = append(t.entries, entry{move: m})
	return id
}

// GetMove returns the move stored at id.
func (t *Tracker) GetMove(id MoveID) hypergraph.Move {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[id].move
}

// InvalidateMove tombstones id for rollback, without physically removing
// it (so ids remain stable for any concurrent reader holding one).
func (t *Tracker) InvalidateMove(id MoveID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id].invalidated = true
}

// IsInvalidated reports whether id has been tombstoned. An id dropped by
// Truncate reads as tombstoned.
func (t *Tracker) IsInvalidated(id MoveID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(id) >= len(t.entries) {
		return true
	}
	return t.entries[id].invalidated
}

// Len returns the number of moves currently in the log, including ones
// tombstoned by InvalidateMove; moves dropped by Truncate are not counted.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Truncate drops every move from index cut onward, tombstoning them first,
// and returns the dropped moves in log order. Reverting them on the PHG
// (re-applying each inverse move) is the caller's job; Truncate only
// retires the bookkeeping. The FM refiner's rollback does not use it: it
// tombstones its reverted moves one by one with InvalidateMove.
func (t *Tracker) Truncate(cut int) []hypergraph.Move {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cut >= len(t.entries) {
		return nil
	}
	reverted := make([]hypergraph.Move, len(t.entries)-cut)
	for i := cut; i < len(t.entries); i++ {
		reverted[i-cut] = t.entries[i].move
		t.entries[i].invalidated = true
	}
	t.entries = t.entries[:cut]
	return reverted
}

// Reset clears the tracker entirely, as required between top-level
// refinement calls (spec.md §3 lifecycle).
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = t.entries[:0]
}
