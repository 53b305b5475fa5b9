package acceptor

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"kvsd/internal/ipc"
	"kvsd/internal/session"
	"kvsd/internal/wire"
)

func TestAcceptorConnectHandshake(t *testing.T) {
	dir := t.TempDir()
	registerPath := filepath.Join(dir, "register")
	reqPath := filepath.Join(dir, "req")
	respPath := filepath.Join(dir, "resp")
	notifPath := filepath.Join(dir, "notif")

	for _, p := range []string{reqPath, respPath, notifPath} {
		if err := ipc.CreateFIFO(p, 0640); err != nil {
			t.Fatalf("CreateFIFO(%s): %v", p, err)
		}
	}

	queue := session.NewAdmissionQueue(1)
	sessDir := session.NewDirectory()
	go sessDir.Run()
	defer sessDir.Stop()

	a := New(registerPath, 0640, queue, sessDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	claimed := make(chan *session.Session, 1)
	go func() {
		s, err := queue.Take(context.Background())
		if err == nil {
			claimed <- s
		}
	}()

	clientDone := make(chan error, 1)
	go func() {
		clientDone <- runClient(registerPath, reqPath, respPath, notifPath)
	}()

	select {
	case <-claimed:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never claimed the session offered by the acceptor")
	}

	select {
	case err := <-clientDone:
		if err != nil {
			t.Fatalf("client handshake: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client did not complete the connect handshake")
	}
}

// runClient plays the client side of one connect handshake: send the
// connect record on the registration channel, then open the three
// per-session pipes in the same order the acceptor opens its ends, so
// neither side's sequential opens deadlock waiting on the other.
func runClient(registerPath, reqPath, respPath, notifPath string) error {
	ctx := context.Background()

	registerW, err := ipc.OpenWriteFIFO(ctx, registerPath)
	if err != nil {
		return fmt.Errorf("open register: %w", err)
	}
	defer registerW.Close()

	frame := wire.EncodeConnectRequest(wire.ConnectRequest{ReqPath: reqPath, RespPath: respPath, NotifPath: notifPath})
	if err := ipc.NewFrameWriter(registerW).WriteLine(frame); err != nil {
		return fmt.Errorf("write connect record: %w", err)
	}

	reqW, err := ipc.OpenWriteFIFO(ctx, reqPath)
	if err != nil {
		return fmt.Errorf("open req: %w", err)
	}
	defer reqW.Close()

	respR, err := ipc.OpenReadFIFO(ctx, respPath)
	if err != nil {
		return fmt.Errorf("open resp: %w", err)
	}
	defer respR.Close()

	notifR, err := ipc.OpenReadFIFO(ctx, notifPath)
	if err != nil {
		return fmt.Errorf("open notif: %w", err)
	}
	defer notifR.Close()

	line, err := ipc.NewFrameReader(respR).ReadLine()
	if err != nil {
		return fmt.Errorf("read connect response: %w", err)
	}
	if line != "1|0" {
		return fmt.Errorf("connect response = %q, want 1|0", line)
	}
	return nil
}
