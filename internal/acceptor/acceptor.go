// Package acceptor implements the registration-channel acceptor (component
// C5, spec.md §4.5) and the per-session request dispatcher that a worker
// pool runs for each admitted session (component C4, spec.md §4.4).
package acceptor

import (
	"context"
	"os"

	"github.com/google/uuid"

	"kvsd/internal/ipc"
	"kvsd/internal/logging"
	"kvsd/internal/session"
	"kvsd/internal/store"
	"kvsd/internal/wire"
)

var log = logging.For("acceptor")

// Acceptor owns the well-known registration channel. It is single-threaded
// by construction — Run's loop never handles two connect records
// concurrently — which serializes the FIFO-order-sensitive dance of opening
// a new session's three pipes (spec.md §4.5, "Acceptor is single-threaded").
type Acceptor struct {
	registerPath string
	fifoMode     os.FileMode
	queue        *session.AdmissionQueue
	directory    *session.Directory
}

// New builds an Acceptor bound to a registration FIFO path and the
// admission queue it feeds.
func New(registerPath string, fifoMode os.FileMode, queue *session.AdmissionQueue, directory *session.Directory) *Acceptor {
	return &Acceptor{registerPath: registerPath, fifoMode: fifoMode, queue: queue, directory: directory}
}

// Run creates the registration FIFO if needed and services connect records
// until ctx is done. A client closing its write end of the registration
// pipe surfaces as EOF; Run reopens the pipe and keeps listening rather
// than treating that as fatal, since named pipes see a fresh EOF every time
// the last writer disappears.
func (a *Acceptor) Run(ctx context.Context) error {
	if err := ipc.CreateFIFO(a.registerPath, a.fifoMode); err != nil {
		return err
	}
	for ctx.Err() == nil {
		f, err := ipc.OpenReadFIFO(ctx, a.registerPath)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("failed to open registration channel", "error", err)
			continue
		}
		a.serveRegistrations(ctx, f)
		f.Close()
	}
	return ctx.Err()
}

func (a *Acceptor) serveRegistrations(ctx context.Context, f *os.File) {
	reader := ipc.NewFrameReader(f)
	for {
		if ctx.Err() != nil {
			return
		}
		line, err := reader.ReadLine()
		if err != nil {
			return
		}
		a.handleConnect(ctx, line)
	}
}

// handleConnect runs steps 2-6 of spec.md §4.5: parse the connect record,
// open the three per-session pipes, construct the Session, offer it to the
// admission queue, and reply on its response channel.
func (a *Acceptor) handleConnect(ctx context.Context, frame string) {
	req, err := wire.ParseConnectRequest(frame)
	if err != nil {
		log.Warn("malformed connect frame", "frame", frame, "error", err)
		return
	}

	reqFile, err := ipc.OpenReadFIFO(ctx, req.ReqPath)
	if err != nil {
		log.Warn("failed to open request channel", "path", req.ReqPath, "error", err)
		return
	}
	respFile, err := ipc.OpenWriteFIFO(ctx, req.RespPath)
	if err != nil {
		log.Warn("failed to open response channel", "path", req.RespPath, "error", err)
		reqFile.Close()
		return
	}
	notifFile, err := ipc.OpenWriteFIFO(ctx, req.NotifPath)
	if err != nil {
		log.Warn("failed to open notification channel", "path", req.NotifPath, "error", err)
		respWriter := ipc.NewFrameWriter(respFile)
		_ = respWriter.WriteLine(wire.EncodeResponse(wire.OpConnect, wire.ConnectFail))
		reqFile.Close()
		respWriter.Close()
		return
	}

	id := store.SessionID(uuid.NewString())
	reqReader := ipc.NewFrameReader(reqFile)
	respWriter := ipc.NewFrameWriter(respFile)
	notifWriter := ipc.NewFrameWriter(notifFile)
	closer := multiCloser{reqReader, respWriter, notifWriter}

	sess := session.New(id, reqReader, respWriter, notifWriter, closer)

	if err := a.queue.Offer(ctx, sess); err != nil {
		log.Warn("admission queue offer failed", "session", id, "error", err)
		sess.Close()
		return
	}

	if err := sess.Respond(wire.EncodeResponse(wire.OpConnect, wire.ConnectOK)); err != nil {
		log.Warn("failed to write connect response", "session", id, "error", err)
	}
}

// ResetAll implements spec.md §4.5 step 7: on the process reset signal,
// force every live session into sudden-disconnect. Closing a session's
// pipes makes its worker observe EOF (or a write failure) on its next loop
// iteration and unwind normally through the dispatcher's disconnect path.
func (a *Acceptor) ResetAll() {
	for _, s := range a.directory.All() {
		s.Close()
	}
}
