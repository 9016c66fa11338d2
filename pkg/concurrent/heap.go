package concurrent

// AddressableMaxHeap is a binary max-heap whose entries remember their own
// position, so a caller holding an *Entry can update its key (up or down)
// or remove it in O(log n) without a linear search.
//
// Adapted from the teacher's addressable d-ary MinHeap
// (pkg/datastructure/d_ary_heap.go: PriorityQueueNode.itemPos,
// MinHeap.DecreaseKey), generalized from decrease-only to update-in-either-
// direction because FM gains move both ways as neighbors' pin counts
// change (§4.4.1 step 2e), and flipped to a max-heap since gains are
// maximized rather than path weights minimized.
type AddressableMaxHeap[T any] struct {
	entries []*HeapEntry[T]
}

// HeapEntry is one item tracked by an AddressableMaxHeap.
type HeapEntry[T any] struct {
	key  int64
	item T
	pos  int
}

// Item returns the payload carried by this entry.
func (e *HeapEntry[T]) Item() T { return e.item }

// Key returns the entry's current priority.
func (e *HeapEntry[T]) Key() int64 { return e.key }

// NewAddressableMaxHeap creates an empty heap.
func NewAddressableMaxHeap[T any]() *AddressableMaxHeap[T] {
	return &AddressableMaxHeap[T]{entries: make([]*HeapEntry[T], 0)}
}

// Len returns the number of entries currently in the heap.
func (h *AddressableMaxHeap[T]) Len() int { return len(h.entries) }

// Empty reports whether the heap holds no entries.
func (h *AddressableMaxHeap[T]) Empty() bool { return len(h.entries) == 0 }

func (h *AddressableMaxHeap[T]) parent(i int) int { return (i - 1) / 2 }
func (h *AddressableMaxHeap[T]) left(i int) int   { return 2*i + 1 }
func (h *AddressableMaxHeap[T]) right(i int) int  { return 2*i + 2 }

func (h *AddressableMaxHeap[T]) swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].pos = i
	h.entries[j].pos = j
}

func (h *AddressableMaxHeap[T]) siftUp(i int) {
	for i != 0 && h.entries[i].key > h.entries[h.parent(i)].key {
		h.swap(i, h.parent(i))
		i = h.parent(i)
	}
}

func (h *AddressableMaxHeap[T]) siftDown(i int) {
	for {
		l, r := h.left(i), h.right(i)
		largest := i
		if l < len(h.entries) && h.entries[l].key > h.entries[largest].key {
			largest = l
		}
		if r < len(h.entries) && h.entries[r].key > h.entries[largest].key {
			largest = r
		}
		if largest == i {
			return
		}
		h.swap(i, largest)
		i = largest
	}
}

// Insert adds item with the given key and returns the entry handle.
func (h *AddressableMaxHeap[T]) Insert(key int64, item T) *HeapEntry[T] {
	e := &HeapEntry[T]{key: key, item: item, pos: len(h.entries)}
	h.entries = append(h.entries, e)
	h.siftUp(e.pos)
	return e
}

// Top returns the max-key entry without removing it.
func (h *AddressableMaxHeap[T]) Top() (*HeapEntry[T], bool) {
	if len(h.entries) == 0 {
		return nil, false
	}
	return h.entries[0], true
}

// ExtractMax removes and returns the max-key entry.
func (h *AddressableMaxHeap[T]) ExtractMax() (*HeapEntry[T], bool) {
	if len(h.entries) == 0 {
		return nil, false
	}
	top := h.entries[0]
	last := len(h.entries) - 1
	h.swap(0, last)
	h.entries = h.entries[:last]
	top.pos = -1
	if len(h.entries) > 0 {
		h.siftDown(0)
	}
	return top, true
}

// UpdateKey changes e's key and restores the heap property.
func (h *AddressableMaxHeap[T]) UpdateKey(e *HeapEntry[T], key int64) {
	old := e.key
	e.key = key
	if key > old {
		h.siftUp(e.pos)
	} else if key < old {
		h.siftDown(e.pos)
	}
}

// Remove deletes e from the heap regardless of its position.
func (h *AddressableMaxHeap[T]) Remove(e *HeapEntry[T]) {
	last := len(h.entries) - 1
	i := e.pos
	if i < 0 || i > last {
		return
	}
	if i != last {
		h.swap(i, last)
		h.entries = h.entries[:last]
		e.pos = -1
		if i <= len(h.entries)-1 {
			h.siftDown(i)
			h.siftUp(i)
		}
		return
	}
	h.entries = h.entries[:last]
	e.pos = -1
}
