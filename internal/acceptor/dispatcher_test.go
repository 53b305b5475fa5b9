package acceptor

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"kvsd/internal/logging"
	"kvsd/internal/session"
	"kvsd/internal/store"
	"kvsd/internal/subscription"
)

type scriptedReader struct {
	frames []string
	i      int
}

func (r *scriptedReader) ReadLine() (string, error) {
	if r.i >= len(r.frames) {
		return "", errors.New("no more frames")
	}
	f := r.frames[r.i]
	r.i++
	return f, nil
}

type capturingWriter struct {
	lines []string
}

func (w *capturingWriter) WriteLine(line string) error {
	w.lines = append(w.lines, line)
	return nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *store.Store) {
	t.Helper()
	s := store.New()
	dir := session.NewDirectory()
	go dir.Run()
	t.Cleanup(dir.Stop)
	registry := subscription.New(s, dir)
	return NewDispatcher(registry, dir), s
}

func TestDispatcherSubscribeThenDisconnect(t *testing.T) {
	d, s := newTestDispatcher(t)
	_ = s.Put("apple", []byte("red"))

	resp := &capturingWriter{}
	sess := session.New("sess-1", &scriptedReader{frames: []string{"3|apple", "2"}}, resp, &capturingWriter{}, nil)

	d.Handle(context.Background(), sess)

	want := []string{"3|1", "2|0"}
	if len(resp.lines) != len(want) {
		t.Fatalf("resp.lines = %v, want %v", resp.lines, want)
	}
	for i := range want {
		if resp.lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, resp.lines[i], want[i])
		}
	}
}

func TestDispatcherSubscribeMissingKey(t *testing.T) {
	d, _ := newTestDispatcher(t)
	resp := &capturingWriter{}
	sess := session.New("sess-1", &scriptedReader{frames: []string{"3|ghost", "2"}}, resp, &capturingWriter{}, nil)

	d.Handle(context.Background(), sess)

	if len(resp.lines) < 1 || resp.lines[0] != "3|0" {
		t.Fatalf("resp.lines = %v, want first line 3|0", resp.lines)
	}
}

func TestDispatcherUnsubscribeNotSubscribed(t *testing.T) {
	d, s := newTestDispatcher(t)
	_ = s.Put("apple", []byte("red"))
	resp := &capturingWriter{}
	sess := session.New("sess-1", &scriptedReader{frames: []string{"4|apple", "2"}}, resp, &capturingWriter{}, nil)

	d.Handle(context.Background(), sess)

	if resp.lines[0] != "4|1" {
		t.Fatalf("resp.lines[0] = %q, want 4|1 (not subscribed)", resp.lines[0])
	}
}

func TestDispatcherSuddenDisconnectPurgesSubscriptions(t *testing.T) {
	d, s := newTestDispatcher(t)
	_ = s.Put("apple", []byte("red"))
	resp := &capturingWriter{}
	// No DISCONNECT frame; the scripted reader runs dry and reports an
	// error, which Handle must treat as a sudden disconnect.
	sess := session.New("sess-1", &scriptedReader{frames: []string{"3|apple"}}, resp, &capturingWriter{}, nil)

	d.Handle(context.Background(), sess)

	if len(s.Subscribers("apple")) != 0 {
		t.Fatal("sudden disconnect should purge the session from every key")
	}
	if len(resp.lines) != 1 {
		t.Fatalf("resp.lines = %v, sudden disconnect should not write a DISCONNECT response", resp.lines)
	}
}

func TestDispatcherUnknownOpcodeIsDropped(t *testing.T) {
	capture := logging.CaptureForTest()
	defer capture.Restore()

	d, _ := newTestDispatcher(t)
	resp := &capturingWriter{}
	sess := session.New("sess-1", &scriptedReader{frames: []string{"9|whatever", "2"}}, resp, &capturingWriter{}, nil)

	d.Handle(context.Background(), sess)

	// The unknown opcode gets no reply; only DISCONNECT's does.
	if len(resp.lines) != 1 || resp.lines[0] != "2|0" {
		t.Fatalf("resp.lines = %v, want only [2|0]", resp.lines)
	}
	if !capture.Has(slog.LevelWarn, "dropping request frame") {
		t.Fatalf("expected an unknown-opcode warning to be logged, got %+v", capture.Records())
	}
}
