package hnsw

import "container/heap"

var _ heap.Interface = (*queue)(nil)

type candidate struct {
	node     uint32
	distance float64
}

// queue is a min-heap by distance, or a max-heap when max is set.
type queue struct {
	max   bool
	items []candidate
}

func (q *queue) Len() int { return len(q.items) }

func (q *queue) Less(i, j int) bool {
	if q.max {
		return q.items[i].distance > q.items[j].distance
	}
	return q.items[i].distance < q.items[j].distance
}

func (q *queue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *queue) Push(x any) { q.items = append(q.items, x.(candidate)) }

func (q *queue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item
}

func (q *queue) top() candidate { return q.items[0] }

func (q *queue) push(c candidate) { heap.Push(q, c) }

func (q *queue) pop() candidate { return heap.Pop(q).(candidate) }
