package movetracker

import (
	"testing"

	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"
)

func TestInsertAndTruncateRollback(t *testing.T) {
	tr := New()

	id0 := tr.InsertMove(hypergraph.Move{Node: 0, From: 0, To: 1, Gain: 3})
	id1 := tr.InsertMove(hypergraph.Move{Node: 1, From: 1, To: 0, Gain: -1})
	id2 := tr.InsertMove(hypergraph.Move{Node: 2, From: 0, To: 1, Gain: 2})

	if tr.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", tr.Len())
	}
	if tr.IsInvalidated(id0) || tr.IsInvalidated(id1) || tr.IsInvalidated(id2) {
		t.Fatalf("freshly inserted moves must not be invalidated")
	}

	reverted := tr.Truncate(1)
	if len(reverted) != 2 {
		t.Fatalf("Truncate(1) returned %d moves, want 2", len(reverted))
	}
	if reverted[0].Node != 1 || reverted[1].Node != 2 {
		t.Fatalf("Truncate returned moves out of order: %+v", reverted)
	}
	if tr.Len() != 1 {
		t.Fatalf("Len() after Truncate(1) = %d, want 1", tr.Len())
	}
	if !tr.IsInvalidated(id1) || !tr.IsInvalidated(id2) {
		t.Fatalf("truncated moves must be tombstoned")
	}
	if tr.IsInvalidated(id0) {
		t.Fatalf("move before the truncation cut must survive")
	}
}

func TestReset(t *testing.T) {
	tr := New()
	tr.InsertMove(hypergraph.Move{Node: 0, From: 0, To: 1})
	tr.Reset()
	if tr.Len() != 0 {
		t.Fatalf("Len() after Reset = %d, want 0", tr.Len())
	}
}
