// Package queue provides the crawl frontier.
package queue

import (
	"container/heap"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueClosed is returned after Close.
	ErrQueueClosed = errors.New("queue is closed")
	// ErrDrained is returned once no work is queued or in progress.
	ErrDrained = errors.New("queue is drained")
)

// priorityQueue orders items by depth, then by insertion.
type priorityQueue []*Item

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].Depth != pq[j].Depth {
		return pq[i].Depth < pq[j].Depth
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
}

func (pq *priorityQueue) Push(x interface{}) {
	*pq = append(*pq, x.(*Item))
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[0 : n-1]
	return item
}

// Frontier is a blocking work queue that knows when the crawl is finished.
// Every item handed out by Pop must be acknowledged with Done; when nothing
// is queued and nothing is in progress, Pop returns ErrDrained.
type Frontier struct {
	mu          sync.Mutex
	cond        *sync.Cond
	pq          priorityQueue
	outstanding int
	seq         uint64
	closed      bool
}

// NewFrontier creates an empty frontier.
func NewFrontier() *Frontier {
	f := &Frontier{pq: make(priorityQueue, 0)}
	f.cond = sync.NewCond(&f.mu)
	heap.Init(&f.pq)
	return f
}

// Push adds an item. Admission (dedup, scope) is the caller's job.
func (f *Frontier) Push(item *Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrQueueClosed
	}

	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}
	f.seq++
	item.seq = f.seq
	f.outstanding++
	heap.Push(&f.pq, item)
	f.cond.Signal()
	return nil
}

// Pop removes the next item, blocking while the queue is empty but work is
// still in progress elsewhere.
func (f *Frontier) Pop() (*Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.pq) == 0 && f.outstanding > 0 && !f.closed {
		f.cond.Wait()
	}

	if f.closed {
		return nil, ErrQueueClosed
	}
	if len(f.pq) == 0 {
		return nil, ErrDrained
	}

	return heap.Pop(&f.pq).(*Item), nil
}

// Done acknowledges an item returned by Pop. Call it after any follow-up
// items have been pushed.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.outstanding > 0 {
		f.outstanding--
	}
	if f.outstanding == 0 {
		f.cond.Broadcast()
	}
}

// Close wakes all waiters; later Push and Pop calls fail.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.cond.Broadcast()
}

// Len returns the number of queued items.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pq)
}

// Outstanding returns queued plus in-progress items.
func (f *Frontier) Outstanding() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outstanding
}
