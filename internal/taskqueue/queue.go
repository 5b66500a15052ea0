// Package taskqueue implements the single-threaded cooperative scheduler
// all pub/sub and connection work runs on (spec §5 "Scheduling model",
// §9 "Global mutable singleton queue" — modelled as an explicitly
// constructed object, never process-wide state).
//
// Grounded on Resin's internal/state/flush.go CacheFlushWorker: a
// stopCh+sync.WaitGroup+sync.Once shutdown idiom wrapped around a single
// worker goroutine.
package taskqueue

import "sync"

// Queue runs posted closures one at a time, in the order they were posted.
// An implementer may run multiple worker goroutines draining the same
// Queue (spec §5 allows it, provided shared state is guarded); NewPool
// gives that option explicitly.
type Queue struct {
	tasks  chan func()
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// New constructs a Queue with the given pending-task buffer size and starts
// one worker goroutine draining it.
func New(capacity int) *Queue {
	return NewPool(capacity, 1)
}

// NewPool is like New but starts workerCount goroutines draining the same
// channel. The queue stays logically single-threaded from a correctness
// standpoint only if callers avoid mutating unguarded shared state from
// posted tasks; internal/pubsub's Root and Node do guard their state, so
// this is safe to use with workerCount > 1.
func NewPool(capacity, workerCount int) *Queue {
	if workerCount < 1 {
		workerCount = 1
	}
	q := &Queue{
		tasks:  make(chan func(), capacity),
		stopCh: make(chan struct{}),
	}
	q.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go q.run()
	}
	return q
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case t := <-q.tasks:
			t()
		case <-q.stopCh:
			return
		}
	}
}

// Post enqueues fn to run on the queue's worker(s). It blocks if the queue
// is full. Posting after Stop is a silent no-op — matches "connection-level
// errors never propagate beyond the connection" for work posted during
// shutdown races.
func (q *Queue) Post(fn func()) {
	select {
	case q.tasks <- fn:
	case <-q.stopCh:
	}
}

// Stop halts the queue's workers once their current task (if any) finishes
// and any already-posted tasks remaining in the buffer are NOT guaranteed
// to run. Safe to call more than once.
func (q *Queue) Stop() {
	q.once.Do(func() {
		close(q.stopCh)
	})
	q.wg.Wait()
}
