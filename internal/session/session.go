// Package session implements the per-connection session state machine and
// its supporting admission queue and worker pool (components C3 and C4 in
// spec.md §4.3 and §4.4).
package session

import (
	"fmt"
	"io"
	"sync"

	"kvsd/internal/store"
)

// State is a session's position in the Pending -> Active -> Draining ->
// Closed lifecycle (spec.md §4.3).
type State int32

const (
	Pending State = iota
	Active
	Draining
	Closed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Active:
		return "active"
	case Draining:
		return "draining"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// LineWriter writes one newline-terminated protocol frame. Implemented by
// internal/ipc's pipe writer; kept as a narrow interface here so this
// package has no dependency on how a frame reaches the wire.
type LineWriter interface {
	WriteLine(line string) error
}

// LineReader reads one newline-terminated protocol frame at a time.
// Implemented by internal/ipc's pipe reader.
type LineReader interface {
	ReadLine() (string, error)
}

// Session tracks one client connection: its request, response and
// notification pipes, its lifecycle state, and the set of keys it
// currently subscribes to (kept here in addition to internal/store's
// per-key subscriber sets as the session-side half of the index; disconnect
// cleanup does not read it, it runs PurgeSession's scan of the whole store,
// which is the authoritative cleanup). A Deleted
// notification also untracks the key here, so SubscribedKeys stays
// accurate for a session that outlives a key it was subscribed to
// (spec.md §4.2/L5: deletion implicitly ends the subscription).
type Session struct {
	id     store.SessionID
	req    LineReader
	resp   LineWriter
	notif  LineWriter
	closer io.Closer

	mu    sync.Mutex
	state State
	keys  map[string]struct{}
}

// New wraps a session id and its three pipes. closer, if non-nil, is
// invoked by Close to release the underlying FIFO file descriptors.
func New(id store.SessionID, req LineReader, resp, notif LineWriter, closer io.Closer) *Session {
	return &Session{
		id:     id,
		req:    req,
		resp:   resp,
		notif:  notif,
		closer: closer,
		state:  Pending,
		keys:   make(map[string]struct{}),
	}
}

// ID satisfies subscription.Sink.
func (s *Session) ID() store.SessionID { return s.id }

// Notify satisfies subscription.Sink, writing a formatted change line to the
// session's notification pipe.
func (s *Session) Notify(line string) error {
	return s.notif.WriteLine(line)
}

// MarkDraining satisfies subscription.Sink. It is called when a
// notification write fails; the session worker checks State on its next
// loop iteration and tears the session down rather than continuing to
// serve requests it can no longer notify correctly.
func (s *Session) MarkDraining() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Pending || s.state == Active {
		s.state = Draining
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState transitions the session to st.
func (s *Session) SetState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// Respond writes a response frame to the session's response pipe.
func (s *Session) Respond(line string) error {
	return s.resp.WriteLine(line)
}

// ReadRequest reads the next frame from the session's request pipe.
func (s *Session) ReadRequest() (string, error) {
	return s.req.ReadLine()
}

// TrackSubscription records that this session has subscribed to key.
func (s *Session) TrackSubscription(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = struct{}{}
}

// UntrackSubscription removes key from this session's local record.
func (s *Session) UntrackSubscription(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
}

// SubscribedKeys returns a snapshot of the keys this session believes it is
// subscribed to, for diagnostics. DISCONNECT does not use it; it purges the
// session with a store-wide scan.
func (s *Session) SubscribedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	return keys
}

// Close transitions the session to Closed and releases its pipes.
func (s *Session) Close() error {
	s.mu.Lock()
	s.state = Closed
	s.mu.Unlock()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
