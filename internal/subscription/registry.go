// Package subscription implements the notification registry (component C2 in
// spec.md §4.2). It never stores subscriber state itself — that lives inside
// internal/store's per-key subscriber-id sets, guarded by the same bucket
// lock as the value (spec.md §4.1's "notify while still holding the write
// lock" invariant). Registry only resolves a store.SessionID to a live sink
// and formats the wire text for delivery.
package subscription

import (
	"kvsd/internal/logging"
	"kvsd/internal/store"
	"kvsd/internal/wire"
)

var log = logging.For("subscription")

// Result reports the outcome of a subscribe/unsubscribe request, matching
// spec.md §4.2's response contract.
type Result int

const (
	Subscribed Result = iota
	KeyNotFound
	Unsubscribed
	NotSubscribed
)

// Sink is a live notification target. internal/session.Session implements
// this so a delivered change can reach the session's notification pipe.
type Sink interface {
	ID() store.SessionID
	Notify(line string) error
	MarkDraining()
	UntrackSubscription(key string)
}

// Directory resolves a subscriber id to its live Sink. A session that has
// disconnected is simply absent — Lookup returning false is not an error,
// it means the change fires no notification for that id.
type Directory interface {
	Lookup(id store.SessionID) (Sink, bool)
}

// Registry wires a store's change hook to a session directory, delivering
// (key,value) and (key,DELETED) notification lines to every subscriber still
// resolvable at delivery time.
type Registry struct {
	store *store.Store
	dir   Directory
}

// New installs the delivery hook on s. s must not already have a change hook
// installed by another caller.
func New(s *store.Store, dir Directory) *Registry {
	r := &Registry{store: s, dir: dir}
	s.SetChangeHook(r.deliver)
	return r
}

func (r *Registry) deliver(e store.Event, ids []store.SessionID) {
	if len(ids) == 0 {
		return
	}
	line := formatNotification(e)
	for _, id := range ids {
		sink, ok := r.dir.Lookup(id)
		if !ok {
			continue
		}
		if e.Deleted {
			// The store already dropped this key's subscriber set (spec.md
			// §4.2/L5: deletion implicitly ends the subscription); mirror
			// that on the session's own index so SubscribedKeys stays
			// accurate for a session that outlives the key.
			sink.UntrackSubscription(e.Key)
		}
		if err := sink.Notify(line); err != nil {
			log.Warn("notification delivery failed, draining session", "session", id, "key", e.Key, "error", err)
			sink.MarkDraining()
		}
	}
}

func formatNotification(e store.Event) string {
	if e.Deleted {
		return wire.EncodeDeleted(e.Key)
	}
	return wire.EncodeChanged(e.Key, e.Value)
}

// Subscribe registers sink for notifications on key. KeyNotFound is returned
// when key does not currently hold a value — per spec.md §4.2, subscribing
// to an absent key is rejected rather than queued for a future write.
func (r *Registry) Subscribe(sink Sink, key string) Result {
	if r.store.Subscribe(key, sink.ID()) {
		return Subscribed
	}
	return KeyNotFound
}

// Unsubscribe removes sink's subscription to key.
func (r *Registry) Unsubscribe(sink Sink, key string) Result {
	if r.store.Unsubscribe(key, sink.ID()) {
		return Unsubscribed
	}
	return NotSubscribed
}

// PurgeSession removes sink's id from every key's subscriber set. Called on
// session disconnect so a closed session can never be handed a stale
// notification (spec.md §4.2 invariant I5).
func (r *Registry) PurgeSession(sink Sink) {
	r.store.PurgeSession(sink.ID())
}
