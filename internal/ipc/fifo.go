// Package ipc provides the named-pipe transport underneath the wire
// protocol (spec.md §6): FIFO creation, non-blocking open with
// cancellation, and newline-framed readers/writers that turn EPIPE and
// closed-pipe conditions into the PeerGone error kind (spec.md §7).
package ipc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ErrPeerGone reports that the far end of a session pipe is gone: a write
// hit EPIPE, or a read hit EOF mid-session.
var ErrPeerGone = errors.New("ipc: peer gone")

const openPollInterval = 5 * time.Millisecond

// CreateFIFO makes a named pipe at path with the given permissions if one
// doesn't already exist. Idempotent, matching spec.md §6's "the client
// creates three named pipes" contract where the server must tolerate a
// stale FIFO left over from a prior run.
func CreateFIFO(path string, mode os.FileMode) error {
	if err := unix.Mkfifo(path, uint32(mode)); err != nil && !errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("ipc: mkfifo %s: %w", path, err)
	}
	return nil
}

// OpenReadFIFO opens path for reading, polling with O_NONBLOCK until a
// writer opens the other end or ctx is done. A plain blocking open here
// would deadlock a caller that also owns the write end of the same pipe;
// polling with O_NONBLOCK lets the acceptor bound how long it waits for a
// slow or dead client (spec.md §7's Resource error kind).
func OpenReadFIFO(ctx context.Context, path string) (*os.File, error) {
	return openFIFO(ctx, path, os.O_RDONLY)
}

// OpenWriteFIFO opens path for writing under the same non-blocking-poll
// discipline as OpenReadFIFO.
func OpenWriteFIFO(ctx context.Context, path string) (*os.File, error) {
	return openFIFO(ctx, path, os.O_WRONLY)
}

func openFIFO(ctx context.Context, path string, flag int) (*os.File, error) {
	for {
		f, err := os.OpenFile(path, flag|unix.O_NONBLOCK, 0)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, unix.ENXIO) {
			return nil, fmt.Errorf("ipc: open %s: %w", path, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(openPollInterval):
		}
	}
}
