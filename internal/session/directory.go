package session

import (
	"kvsd/internal/store"
	"kvsd/internal/subscription"
)

// Directory is the live-sessions table (spec.md §4.4's "the live-sessions
// directory is shared" resource). Following the reference server hub's
// channel-owned style, a single goroutine owns the session map; Put,
// Remove, Lookup and All are just message sends to that goroutine, so no
// mutex guards the map itself.
type Directory struct {
	put    chan *Session
	remove chan store.SessionID
	lookup chan lookupReq
	all    chan chan []*Session
	stop   chan struct{}
}

type lookupReq struct {
	id     store.SessionID
	result chan lookupResult
}

type lookupResult struct {
	session *Session
	ok      bool
}

// NewDirectory creates a directory. Call Run in a goroutine before using it.
func NewDirectory() *Directory {
	return &Directory{
		put:    make(chan *Session),
		remove: make(chan store.SessionID),
		lookup: make(chan lookupReq),
		all:    make(chan chan []*Session),
		stop:   make(chan struct{}),
	}
}

// Run is the directory's main loop. It blocks until Stop is called.
func (d *Directory) Run() {
	sessions := make(map[store.SessionID]*Session)
	for {
		select {
		case s := <-d.put:
			sessions[s.ID()] = s
		case id := <-d.remove:
			delete(sessions, id)
		case req := <-d.lookup:
			s, ok := sessions[req.id]
			req.result <- lookupResult{session: s, ok: ok}
		case resultCh := <-d.all:
			list := make([]*Session, 0, len(sessions))
			for _, s := range sessions {
				list = append(list, s)
			}
			resultCh <- list
		case <-d.stop:
			return
		}
	}
}

// Stop shuts the directory's goroutine down.
func (d *Directory) Stop() {
	close(d.stop)
}

// Put registers s as live.
func (d *Directory) Put(s *Session) {
	d.put <- s
}

// Remove drops id from the live table.
func (d *Directory) Remove(id store.SessionID) {
	d.remove <- id
}

// Lookup satisfies subscription.Directory, resolving id to its Session.
func (d *Directory) Lookup(id store.SessionID) (subscription.Sink, bool) {
	result := make(chan lookupResult, 1)
	d.lookup <- lookupReq{id: id, result: result}
	r := <-result
	if !r.ok {
		return nil, false
	}
	return r.session, true
}

// All returns a snapshot of every live session, used by the acceptor's
// reset-signal handler to force-disconnect every session at once
// (spec.md §5).
func (d *Directory) All() []*Session {
	result := make(chan []*Session, 1)
	d.all <- result
	return <-result
}
