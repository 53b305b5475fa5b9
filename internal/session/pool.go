package session

import (
	"context"
	"sync"

	"kvsd/internal/logging"
)

var log = logging.For("session")

// Handler runs one admitted session to completion. Implemented by the
// acceptor package, which understands the wire protocol; kept as an
// interface here so the worker pool has no dependency on internal/wire or
// internal/ipc.
type Handler interface {
	Handle(ctx context.Context, s *Session)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, s *Session)

func (f HandlerFunc) Handle(ctx context.Context, s *Session) { f(ctx, s) }

// WorkerPool runs a fixed number of workers (spec.md §4.4's MAX_THREADS),
// each pulling one session at a time from an AdmissionQueue and running it
// to completion before pulling the next: every worker handles exactly one
// active session at a time.
type WorkerPool struct {
	queue   *AdmissionQueue
	handler Handler
	size    int
	wg      sync.WaitGroup
}

// NewWorkerPool builds a pool of size workers pulling from queue.
func NewWorkerPool(size int, queue *AdmissionQueue, handler Handler) *WorkerPool {
	return &WorkerPool{queue: queue, handler: handler, size: size}
}

// Run starts every worker goroutine and returns immediately.
func (p *WorkerPool) Run(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	wlog := log.With("worker", id)
	for {
		s, err := p.queue.Take(ctx)
		if err != nil {
			wlog.Debug("worker stopping", "error", err)
			return
		}
		s.SetState(Active)
		p.handler.Handle(ctx, s)
		s.Close()
	}
}

// Wait blocks until every worker goroutine has returned, which happens once
// the queue is closed or ctx is cancelled.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
