package acceptor

import (
	"context"

	"kvsd/internal/session"
	"kvsd/internal/subscription"
	"kvsd/internal/wire"
)

// Dispatcher implements session.Handler, running the C4 per-session loop
// described in spec.md §4.4: read one request frame, decode its opcode,
// dispatch to the subscription registry, and reply. It is stateless across
// sessions — one Dispatcher is handed to session.NewWorkerPool and shared
// across every worker goroutine.
type Dispatcher struct {
	registry  *subscription.Registry
	directory *session.Directory
}

// NewDispatcher builds a Dispatcher bound to the subscription registry and
// live-sessions directory it operates on.
func NewDispatcher(registry *subscription.Registry, directory *session.Directory) *Dispatcher {
	return &Dispatcher{registry: registry, directory: directory}
}

// Handle runs s to completion: register it in the live-sessions directory,
// service requests until disconnect (explicit or sudden), then remove it.
func (d *Dispatcher) Handle(ctx context.Context, s *session.Session) {
	d.directory.Put(s)
	defer d.directory.Remove(s.ID())

	for {
		if ctx.Err() != nil {
			d.suddenDisconnect(s)
			return
		}
		if s.State() == session.Draining {
			// MarkDraining was called by a failed notification delivery
			// racing with this loop; treat exactly like a peer that went away.
			d.suddenDisconnect(s)
			return
		}

		frame, err := s.ReadRequest()
		if err != nil {
			d.suddenDisconnect(s)
			return
		}

		req, err := wire.ParseRequest(frame)
		if err != nil {
			log.Warn("dropping request frame", "session", s.ID(), "frame", frame, "error", err)
			continue
		}

		switch req.Opcode {
		case wire.OpDisconnect:
			d.explicitDisconnect(s)
			return
		case wire.OpSubscribe:
			if !d.reply(s, d.handleSubscribe(s, req.Key)) {
				return
			}
		case wire.OpUnsubscribe:
			if !d.reply(s, d.handleUnsubscribe(s, req.Key)) {
				return
			}
		default:
			log.Warn("unknown opcode on request channel", "session", s.ID(), "opcode", req.Opcode)
		}
	}
}

func (d *Dispatcher) handleSubscribe(s *session.Session, key string) string {
	code := wire.SubscribeKeyMissing
	if d.registry.Subscribe(s, key) == subscription.Subscribed {
		code = wire.SubscribeOK
		s.TrackSubscription(key)
	}
	return wire.EncodeResponse(wire.OpSubscribe, code)
}

func (d *Dispatcher) handleUnsubscribe(s *session.Session, key string) string {
	code := wire.UnsubscribeNotSubscribed
	if d.registry.Unsubscribe(s, key) == subscription.Unsubscribed {
		code = wire.UnsubscribeOK
		s.UntrackSubscription(key)
	}
	return wire.EncodeResponse(wire.OpUnsubscribe, code)
}

// reply writes a response frame. A write failure means the peer is gone
// mid-session (spec.md §4.4 step 3); it drives sudden-disconnect and
// reports false so Handle's loop returns.
func (d *Dispatcher) reply(s *session.Session, line string) bool {
	if err := s.Respond(line); err != nil {
		d.suddenDisconnect(s)
		return false
	}
	return true
}

func (d *Dispatcher) suddenDisconnect(s *session.Session) {
	d.registry.PurgeSession(s)
}

func (d *Dispatcher) explicitDisconnect(s *session.Session) {
	d.registry.PurgeSession(s)
	if err := s.Respond(wire.EncodeResponse(wire.OpDisconnect, wire.DisconnectOK)); err != nil {
		log.Debug("disconnect response failed, peer likely already gone", "session", s.ID(), "error", err)
	}
}
