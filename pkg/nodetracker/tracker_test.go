package nodetracker

import (
	"testing"

	"github.com/uulm-janbaudisch/mt-kahypar-go/pkg/hypergraph"
)

func TestAcquireDeactivateRelease(t *testing.T) {
	tr := New(4)
	v := hypergraph.NodeID(1)

	if s, _ := tr.State(v); s != Inactive {
		t.Fatalf("new vertex should start Inactive, got %v", s)
	}
	if !tr.TryAcquire(v, 7) {
		t.Fatalf("expected acquisition of an inactive vertex to succeed")
	}
	if tr.TryAcquire(v, 8) {
		t.Fatalf("a second search must not acquire an already-active vertex")
	}
	if !tr.IsOwnedBy(v, 7) {
		t.Fatalf("vertex should be owned by search 7")
	}
	if tr.Deactivate(v, 8) {
		t.Fatalf("a non-owning search must not be able to deactivate")
	}
	if !tr.Deactivate(v, 7) {
		t.Fatalf("owning search should be able to deactivate")
	}
	if s, owner := tr.State(v); s != Deactivated || owner != 7 {
		t.Fatalf("state = (%v,%d), want (Deactivated,7)", s, owner)
	}
	if !tr.Release(v, 7) {
		t.Fatalf("owning search should be able to release")
	}
	if s, _ := tr.State(v); s != Inactive {
		t.Fatalf("released vertex should be Inactive again, got %v", s)
	}
}

func TestResetClearsOwnership(t *testing.T) {
	tr := New(2)
	tr.TryAcquire(0, 42)
	tr.Reset()
	if s, _ := tr.State(0); s != Inactive {
		t.Fatalf("Reset should force Inactive, got %v", s)
	}
	if !tr.TryAcquire(0, 1) {
		t.Fatalf("vertex should be acquirable again after Reset")
	}
}
