package ch

import "container/heap"

// pqItem is one entry in the contraction priority queue.
type pqItem struct {
	node     int64
	priority int
	index    int // index in the heap, maintained by heap.Fix/Push/Pop
}

// pqHeap implements heap.Interface: a min-heap on priority, with
// tie-breaking by node id for deterministic contraction order.
type pqHeap []*pqItem

func (h pqHeap) Len() int { return len(h) }

func (h pqHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].node < h[j].node
}

func (h pqHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *pqHeap) Push(x any) {
	n := len(*h)
	item := x.(*pqItem)
	item.index = n
	*h = append(*h, item)
}

func (h *pqHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// PrioQueue is the contraction order priority queue: a min-heap of
// (node, priority) supporting insert, poll-min, peek-min, and an
// update of a node's priority once it is already present.
type PrioQueue struct {
	h     pqHeap
	items map[int64]*pqItem
}

// NewPrioQueue returns an empty queue sized for n nodes.
func NewPrioQueue(n int) *PrioQueue {
	return &PrioQueue{
		h:     make(pqHeap, 0, n),
		items: make(map[int64]*pqItem, n),
	}
}

// Insert adds node with the given priority. Inserting a node already
// present is treated as a priority update.
func (q *PrioQueue) Insert(node int64, priority int) {
	if item, ok := q.items[node]; ok {
		item.priority = priority
		heap.Fix(&q.h, item.index)
		return
	}
	item := &pqItem{node: node, priority: priority}
	heap.Push(&q.h, item)
	q.items[node] = item
}

// Update sets node's priority to newPriority. oldPriority is accepted for
// API fidelity with the literature's "supply the old key" update
// signature but is not required to locate the entry: the queue keeps its
// own index. Returns false if node is not present.
func (q *PrioQueue) Update(node int64, oldPriority, newPriority int) bool {
	item, ok := q.items[node]
	if !ok {
		return false
	}
	_ = oldPriority
	item.priority = newPriority
	heap.Fix(&q.h, item.index)
	return true
}

// PollMin removes and returns the node with the smallest priority, along
// with that priority. ok is false if the queue is empty.
func (q *PrioQueue) PollMin() (node int64, priority int, ok bool) {
	if len(q.h) == 0 {
		return 0, 0, false
	}
	item := heap.Pop(&q.h).(*pqItem)
	delete(q.items, item.node)
	return item.node, item.priority, true
}

// PeekValue returns the smallest priority currently in the queue without
// removing it.
func (q *PrioQueue) PeekValue() (int, bool) {
	if len(q.h) == 0 {
		return 0, false
	}
	return q.h[0].priority, true
}

// Size returns the number of entries in the queue.
func (q *PrioQueue) Size() int { return len(q.h) }

// IsEmpty reports whether the queue has no entries.
func (q *PrioQueue) IsEmpty() bool { return len(q.h) == 0 }
