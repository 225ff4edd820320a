package pipeline

import (
	"container/heap"
	"time"
)

// DelayedSet holds tasks whose scheduled time has not yet arrived: both
// future-submitted jobs and jobs waiting out a retry backoff. It mirrors
// the original pipeline's sorted scheduled_jobs list, kept here as a
// min-heap ordered by ScheduledAt for O(log n) insert and peek.
type DelayedSet struct {
	h delayedHeap
}

// NewDelayedSet creates an empty delayed set.
func NewDelayedSet() *DelayedSet {
	ds := &DelayedSet{h: make(delayedHeap, 0)}
	heap.Init(&ds.h)
	return ds
}

// Add inserts a task to be promoted once it becomes ready.
func (ds *DelayedSet) Add(t *Task) {
	heap.Push(&ds.h, t)
}

func (ds *DelayedSet) Len() int { return ds.h.Len() }

// PromoteReady pops every task whose ScheduledAt has arrived, in
// ScheduledAt order.
func (ds *DelayedSet) PromoteReady(now time.Time) []*Task {
	var out []*Task
	for ds.h.Len() > 0 && !ds.h[0].ScheduledAt.After(now) {
		out = append(out, heap.Pop(&ds.h).(*Task))
	}
	return out
}

// Peek returns the earliest ScheduledAt in the set, if any.
func (ds *DelayedSet) Peek() (time.Time, bool) {
	if ds.h.Len() == 0 {
		return time.Time{}, false
	}
	return ds.h[0].ScheduledAt, true
}

type delayedHeap []*Task

func (h delayedHeap) Len() int { return len(h) }
func (h delayedHeap) Less(i, j int) bool {
	return h[i].ScheduledAt.Before(h[j].ScheduledAt)
}
func (h delayedHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *delayedHeap) Push(x interface{}) {
	*h = append(*h, x.(*Task))
}

func (h *delayedHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
