package listener

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/coregx/chat/internal/bus"
	"github.com/coregx/chat/internal/store"
	"github.com/coregx/chat/internal/wire"
)

func TestListener_AcceptsAndServesConnections(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "chat.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	defer st.Close()

	b := bus.New()
	go b.Run()
	defer b.Close()

	l := &Listener{Addr: "127.0.0.1:0", Store: st, Bus: b, Log: zerolog.Nop()}

	// Bind to an ephemeral port to discover the actual address.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	l.Addr = addr

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- l.ListenAndServe(ctx) }()

	// Give the listener a moment to bind before dialing.
	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("net.Dial() error = %v", err)
	}
	defer conn.Close()

	cc := wire.NewCodec(conn)
	if err := cc.Send(wire.Signup{Username: "alice", Password: "pw"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	msg, err := cc.ReadNext()
	if err != nil {
		t.Fatalf("ReadNext() error = %v", err)
	}
	txt, ok := msg.(wire.Text)
	if !ok || txt.Text != "Welcome, alice" {
		t.Errorf("ReadNext() = %#v, want Text(Welcome, alice)", msg)
	}

	cancel()
	select {
	case err := <-serveErr:
		if err != nil {
			t.Errorf("ListenAndServe() error = %v, want nil after cancel", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ListenAndServe() did not return after context cancellation")
	}
}
