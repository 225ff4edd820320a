package pipeline

import "container/heap"

// Queue is the ready-to-run side of the pipeline: tasks whose scheduled
// time has already arrived. It orders by priority band (high first),
// and preserves submission order within a band.
type Queue interface {
	// Push admits a task. It returns false without enqueuing when the
	// queue is already at capacity.
	Push(t *Task) bool
	// Pop removes and returns the highest-priority, oldest task. ok is
	// false if the queue is empty.
	Pop() (t *Task, ok bool)
	Len() int
	// Cap returns the queue's capacity, or 0 if unbounded.
	Cap() int
}

// priorityHeap is a container/heap backing store ordered by
// (priority desc, seq asc).
type priorityHeap []*Task

func (h priorityHeap) Len() int { return len(h) }

func (h priorityHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *priorityHeap) Push(x interface{}) {
	*h = append(*h, x.(*Task))
}

func (h *priorityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// memQueue is the default in-process ready queue implementation, bounded
// at capacity (0 means unbounded).
type memQueue struct {
	h        priorityHeap
	nextSeq  uint64
	capacity int
}

// NewMemQueue creates an in-memory, heap-backed ready queue bounded at
// capacity entries. A capacity of 0 or less means unbounded.
func NewMemQueue(capacity int) Queue {
	q := &memQueue{h: make(priorityHeap, 0), capacity: capacity}
	heap.Init(&q.h)
	return q
}

func (q *memQueue) Push(t *Task) bool {
	if q.capacity > 0 && q.h.Len() >= q.capacity {
		return false
	}
	t.seq = q.nextSeq
	q.nextSeq++
	heap.Push(&q.h, t)
	return true
}

func (q *memQueue) Pop() (*Task, bool) {
	if q.h.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&q.h).(*Task), true
}

func (q *memQueue) Len() int { return q.h.Len() }

func (q *memQueue) Cap() int { return q.capacity }
