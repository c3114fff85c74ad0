// Package listener accepts TCP connections and spins up one independent
// Session per connection.
package listener

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/coregx/chat/internal/bus"
	"github.com/coregx/chat/internal/session"
	"github.com/coregx/chat/internal/store"
)

// Listener binds a TCP address and dispatches each accepted connection to
// its own Session. It keeps no registry of live sessions — a session is
// self-terminating and reachable only through its bus subscription, per
// the single-writer/no-hidden-singleton design this server follows.
type Listener struct {
	Addr  string
	Store store.UserStore
	Bus   *bus.Bus
	Log   zerolog.Logger
}

// ListenAndServe binds Addr and accepts connections until ctx is canceled
// or a fatal accept error occurs.
func (l *Listener) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", l.Addr)
	if err != nil {
		return fmt.Errorf("listener: listen %s: %w", l.Addr, err)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	l.Log.Info().Str("addr", l.Addr).Msg("listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil // closed by context cancellation, not a failure.
			}
			return fmt.Errorf("listener: accept: %w", err)
		}

		go l.serve(conn)
	}
}

func (l *Listener) serve(conn net.Conn) {
	sess, err := session.New(conn, conn.RemoteAddr().String(), l.Store, l.Bus, l.Log)
	if err != nil {
		l.Log.Error().Err(err).Str("addr", conn.RemoteAddr().String()).Msg("failed to start session")
		conn.Close()
		return
	}
	sess.Run() // closes conn before returning.
}
