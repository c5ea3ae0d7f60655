// Package taskqueue implements the bounded producer/consumer queue the
// query executor uses when multi-threaded mode is enabled (spec.md §4.H,
// §5).
package taskqueue

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Submit once Shutdown has been called, and by
// Process once the queue is also drained. TrySubmit reports false instead.
var ErrClosed = errors.New("taskqueue: closed")

// Task is one unit of work the queue carries; the executor's tile
// payloads are wrapped as Tasks.
type Task func()

// Queue is a bounded FIFO guarded by a single mutex and two condition
// variables — notEmpty (consumers wait on it) and notFull (producers
// wait on it) — grounded on the teacher's mutex-protected shared-state
// style in lock.go, generalized here from a reader-slot table to a
// plain task ring.
type Queue struct {
	mu      sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	tasks  []Task
	cap    int
	closed bool
}

// New creates a queue with the given bounded capacity.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue{cap: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Submit blocks until there is room for t, or the queue is closed.
func (q *Queue) Submit(t Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.tasks) >= q.cap && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return ErrClosed
	}
	q.tasks = append(q.tasks, t)
	q.notEmpty.Signal()
	return nil
}

// TrySubmit enqueues t without blocking, reporting false if the queue is
// full or closed.
func (q *Queue) TrySubmit(t Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || len(q.tasks) >= q.cap {
		return false
	}
	q.tasks = append(q.tasks, t)
	q.notEmpty.Signal()
	return true
}

// Fill submits as many of ts as fit without blocking, returning the
// number actually enqueued.
func (q *Queue) Fill(ts []Task) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, t := range ts {
		if q.closed || len(q.tasks) >= q.cap {
			break
		}
		q.tasks = append(q.tasks, t)
		n++
	}
	if n > 0 {
		q.notEmpty.Broadcast()
	}
	return n
}

// Process waits for and removes one task, or returns ErrClosed once the
// queue is closed and drained.
func (q *Queue) Process() (Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.tasks) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.tasks) == 0 {
		return nil, ErrClosed
	}
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	q.notFull.Signal()
	return t, nil
}

// AwaitCompletion blocks until the queue has drained to empty, that is
// until Process has removed every submitted task. It does not wait for a
// removed task to finish running.
func (q *Queue) AwaitCompletion() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.tasks) > 0 {
		q.notFull.Wait()
	}
}

// Shutdown marks the queue closed, waking every blocked producer and
// consumer so they observe ErrClosed.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// minimumRemainingCapacity reports how many more tasks fit before Submit
// would block. This keeps the lock for its whole body even though the
// read alone would be safe lock-free under the Go memory model, per
// spec.md §9's instruction to keep it synchronized like the rest of the
// queue's state.
func (q *Queue) minimumRemainingCapacity() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cap - len(q.tasks)
}

// Len reports the current queue depth, for diagnostics and tests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
