package sim

import "container/heap"

// queueEntry is an event scheduled for processing at a simulated time.
type queueEntry struct {
	at  Time
	seq uint64
	ev  *event
}

// EventQueue is a min-heap of pending entries ordered by (time, seq).
// Entries at the same time pop in the order they were scheduled, so ordering
// never depends on the heap layout.
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type EventQueue []queueEntry

func (q EventQueue) Len() int { return len(q) }

func (q EventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}

func (q EventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *EventQueue) Push(x any) {
	*q = append(*q, x.(queueEntry))
}

func (q *EventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = queueEntry{}
	*q = old[:n-1]
	return item
}

// peek returns the next entry without removing it. The queue must not be empty.
func (q EventQueue) peek() queueEntry { return q[0] }

func (q *EventQueue) push(e queueEntry) { heap.Push(q, e) }

func (q *EventQueue) pop() queueEntry { return heap.Pop(q).(queueEntry) }
