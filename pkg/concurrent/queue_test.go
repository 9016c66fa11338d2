package concurrent

import "testing"

func TestWorkStealingQueuePushPop(t *testing.T) {
	q := NewWorkStealingQueue[int](2)
	q.EnsureTimestamps(16)

	for i := 0; i < 10; i++ {
		q.PushBack(i)
	}

	seen := make(map[int]bool)
	for i := 0; i < 10; i++ {
		v, ok := q.TryPop()
		if !ok {
			t.Fatalf("expected a value at pop %d", i)
		}
		seen[v] = true
	}
	if len(seen) != 10 {
		t.Fatalf("got %d distinct values, want 10", len(seen))
	}
	if _, ok := q.TryPop(); ok {
		t.Fatalf("expected empty queue")
	}
	if !q.Empty() {
		t.Fatalf("Empty() should be true once drained")
	}
}

func TestWorkStealingQueueTimestamps(t *testing.T) {
	q := NewWorkStealingQueue[int](4)
	q.EnsureTimestamps(4)

	q.PushBack(7)
	slot := 0 // first push lands at slot 0
	if q.WasPushedAndRemoved(slot) {
		t.Fatalf("should not be marked removed before pop")
	}
	if _, ok := q.TryPop(); !ok {
		t.Fatalf("expected pop to succeed")
	}
	if !q.WasPushedAndRemoved(slot) {
		t.Fatalf("should be marked removed after pop")
	}

	q.Clear(nil)
	if q.WasPushedAndRemoved(slot) {
		t.Fatalf("Clear should invalidate prior timestamps")
	}
}

func TestWorkStealingPoolSteal(t *testing.T) {
	pool := NewWorkStealingPool[int](4, 4)
	pool.EnsureTimestamps(16)

	pool.PushBack(0, 1)
	pool.PushBack(0, 2)
	pool.PushBack(0, 3)

	total := 0
	for worker := 0; worker < 4; worker++ {
		for {
			v, ok := pool.TryPop(worker)
			if !ok {
				break
			}
			total += v
		}
	}
	if total != 6 {
		t.Fatalf("total = %d, want 6", total)
	}
}
