package concurrent

import "testing"

func TestAddressableMaxHeapOrdering(t *testing.T) {
	h := NewAddressableMaxHeap[string]()
	a := h.Insert(5, "a")
	h.Insert(1, "b")
	c := h.Insert(9, "c")
	h.Insert(3, "d")

	top, ok := h.Top()
	if !ok || top != c {
		t.Fatalf("expected c to be top")
	}

	h.UpdateKey(a, 20)
	top, _ = h.Top()
	if top != a {
		t.Fatalf("expected a to be top after UpdateKey raised its key")
	}

	h.Remove(c)

	var order []int64
	for !h.Empty() {
		e, _ := h.ExtractMax()
		order = append(order, e.Key())
	}
	want := []int64{20, 3, 1}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
