package fetch

import (
	"container/heap"
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is the number of requests a Scheduler runs at once when
// none is configured.
const DefaultConcurrency = 16

// Scheduler wraps a Client, bounds the number of requests in flight and
// starts waiting requests by descending priority, first come first served
// within one priority.
type Scheduler struct {
	client Client
	slots  *semaphore.Weighted

	mu      sync.Mutex
	queue   waitQueue
	nextSeq uint64
}

// NewScheduler returns a Scheduler running at most concurrency requests.
func NewScheduler(client Client, concurrency int) *Scheduler {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Scheduler{
		client: client,
		slots:  semaphore.NewWeighted(int64(concurrency)),
	}
}

// Waiting returns the number of requests queued for a slot.
func (s *Scheduler) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Do waits for a slot and runs req on the wrapped client.
func (s *Scheduler) Do(ctx context.Context, req *Request) (*Response, error) {
	w := &waiter{priority: req.Priority, ready: make(chan struct{})}

	s.mu.Lock()
	w.seq = s.nextSeq
	s.nextSeq++
	heap.Push(&s.queue, w)
	s.dispatchLocked()
	s.mu.Unlock()

	select {
	case <-w.ready:
	case <-ctx.Done():
		s.mu.Lock()
		if !w.granted {
			heap.Remove(&s.queue, w.index)
			s.mu.Unlock()
			return nil, ctx.Err()
		}
		s.mu.Unlock()
		s.release()
		return nil, ctx.Err()
	}

	defer s.release()
	return s.client.Do(ctx, req)
}

func (s *Scheduler) release() {
	s.slots.Release(1)
	s.mu.Lock()
	s.dispatchLocked()
	s.mu.Unlock()
}

func (s *Scheduler) dispatchLocked() {
	for s.queue.Len() > 0 && s.slots.TryAcquire(1) {
		w := heap.Pop(&s.queue).(*waiter)
		w.granted = true
		close(w.ready)
	}
}

type waiter struct {
	priority int
	seq      uint64
	index    int
	granted  bool
	ready    chan struct{}
}

type waitQueue []*waiter

func (q waitQueue) Len() int { return len(q) }

func (q waitQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q waitQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *waitQueue) Push(x any) {
	w := x.(*waiter)
	w.index = len(*q)
	*q = append(*q, w)
}

func (q *waitQueue) Pop() any {
	old := *q
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	w.index = -1
	*q = old[:n-1]
	return w
}
