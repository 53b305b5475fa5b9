package session

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Offer and Take once Close has been called.
var ErrQueueClosed = errors.New("session: admission queue closed")

type admissionItem struct {
	session *Session
	claimed chan struct{}
}

// AdmissionQueue is the bounded handoff between the acceptor (producer) and
// the fixed worker pool (consumers). It mirrors the reference
// implementation's semaphore-guarded client_server_buffer: capacity many
// sessions may be queued before a worker catches up, but each individual
// Offer additionally blocks until some worker has actually claimed that
// specific session (spec.md §4.3's rendezvous requirement) — other
// producers may still fill the remaining buffer slots while one Offer call
// is blocked waiting on its own claim.
type AdmissionQueue struct {
	ch     chan *admissionItem
	closed chan struct{}
	once   sync.Once
}

// NewAdmissionQueue creates a queue with capacity equal to the worker pool
// size, per spec.md §4.3.
func NewAdmissionQueue(capacity int) *AdmissionQueue {
	return &AdmissionQueue{
		ch:     make(chan *admissionItem, capacity),
		closed: make(chan struct{}),
	}
}

// Offer enqueues s and blocks until a worker claims it, the queue is
// closed, or ctx is done.
func (q *AdmissionQueue) Offer(ctx context.Context, s *Session) error {
	item := &admissionItem{session: s, claimed: make(chan struct{})}
	select {
	case q.ch <- item:
	case <-q.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-item.claimed:
		return nil
	case <-q.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Take claims the next queued session, unblocking whichever Offer produced
// it. It blocks until a session is available, the queue is closed, or ctx
// is done.
func (q *AdmissionQueue) Take(ctx context.Context) (*Session, error) {
	select {
	case item := <-q.ch:
		close(item.claimed)
		return item.session, nil
	case <-q.closed:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close unblocks every pending and future Offer/Take with ErrQueueClosed.
// Safe to call more than once.
func (q *AdmissionQueue) Close() {
	q.once.Do(func() { close(q.closed) })
}
