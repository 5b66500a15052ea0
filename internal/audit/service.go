package audit

import (
	"log"
	"sync"
	"time"
)

// Service is an async audit writer: Emit is a non-blocking channel send
// (dropped on overflow, matching the teacher's EmitRequestLog), and a
// background goroutine batches entries to the Repo by size or interval,
// whichever comes first. Grounded on internal/requestlog.Service.
type Service struct {
	repo      *Repo
	queue     chan Event
	batchSize int
	interval  time.Duration
	flushReq  chan chan struct{}

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// ServiceConfig configures Service. Zero values fall back to the same
// defaults internal/requestlog.Service uses.
type ServiceConfig struct {
	Repo          *Repo
	QueueSize     int
	FlushBatch    int
	FlushInterval time.Duration
}

// NewService builds a Service. Call Start to launch the flush goroutine.
func NewService(cfg ServiceConfig) *Service {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 4096
	}
	batchSize := cfg.FlushBatch
	if batchSize <= 0 {
		batchSize = 512
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Service{
		repo:      cfg.Repo,
		queue:     make(chan Event, queueSize),
		batchSize: batchSize,
		interval:  interval,
		flushReq:  make(chan chan struct{}, 64),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the background flush goroutine.
func (s *Service) Start() {
	s.wg.Add(1)
	go s.flushLoop()
}

// Stop signals the flush loop to drain and stop, and waits for it to
// finish.
func (s *Service) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// Emit enqueues e. Non-blocking; drops the event if the queue is full
// rather than stalling whatever task-queue worker produced it.
func (s *Service) Emit(e Event) {
	select {
	case s.queue <- e:
	default:
		log.Printf("[audit] queue full, dropping %s event for %q", e.Kind, e.NodeName)
	}
}

// FlushNow asks the background writer to flush buffered entries, then
// blocks until that flush attempt completes.
func (s *Service) FlushNow() {
	done := make(chan struct{})
	select {
	case s.flushReq <- done:
	case <-s.stopCh:
		return
	}
	select {
	case <-done:
	case <-s.stopCh:
	}
}

func (s *Service) flushLoop() {
	defer s.wg.Done()

	batch := make([]Event, 0, s.batchSize)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case e := <-s.queue:
			batch = append(batch, e)
			if len(batch) >= s.batchSize {
				s.flush(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = batch[:0]
			}

		case done := <-s.flushReq:
			batch = s.flushOnBarrier(batch, done)

		case <-s.stopCh:
			s.drainAndFlush(batch)
			return
		}
	}
}

func (s *Service) flushOnBarrier(batch []Event, firstWaiter chan struct{}) []Event {
	waiters := []chan struct{}{firstWaiter}
	for {
		select {
		case done := <-s.flushReq:
			waiters = append(waiters, done)
		default:
			goto flushed
		}
	}

flushed:
	pending := len(s.queue)
	for i := 0; i < pending; i++ {
		select {
		case e := <-s.queue:
			batch = append(batch, e)
			if len(batch) >= s.batchSize {
				s.flush(batch)
				batch = batch[:0]
			}
		default:
			goto done
		}
	}
done:
	if len(batch) > 0 {
		s.flush(batch)
		batch = batch[:0]
	}
	for _, done := range waiters {
		close(done)
	}
	return batch
}

func (s *Service) drainAndFlush(batch []Event) {
	for {
		select {
		case e := <-s.queue:
			batch = append(batch, e)
			if len(batch) >= s.batchSize {
				s.flush(batch)
				batch = batch[:0]
			}
		default:
			if len(batch) > 0 {
				s.flush(batch)
			}
			return
		}
	}
}

func (s *Service) flush(entries []Event) {
	if n, err := s.repo.InsertBatch(entries); err != nil {
		log.Printf("[audit] flush %d entries failed: %v", len(entries), err)
	} else if n > 0 {
		log.Printf("[audit] flushed %d entries", n)
	}
}

// Repo returns the underlying repository, for read access.
func (s *Service) Repo() *Repo {
	return s.repo
}
