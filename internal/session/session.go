// Package session implements the per-connection state machine: the
// Unauthenticated/Authenticated protocol, the single-writer socket
// discipline, and the fan-in of socket and broadcast events.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/rs/zerolog"

	"github.com/coregx/chat/internal/bus"
	"github.com/coregx/chat/internal/store"
	"github.com/coregx/chat/internal/wire"
)

// state is the session's position in the Unauthenticated/Authenticated
// state machine.
type state int

const (
	stateUnauthenticated state = iota
	stateAuthenticated
)

// Session owns one accepted connection end to end: it multiplexes inbound
// frames and broadcast envelopes, and is the sole writer of its socket.
type Session struct {
	conn  net.Conn
	codec *wire.Codec
	sub   *bus.Subscription
	store store.UserStore
	bus   *bus.Bus
	addr  string
	log   zerolog.Logger

	state state
	user  store.User
}

// New builds a Session bound to conn. addr identifies the peer for
// broadcast self-filtering and logging; callers pass it explicitly
// (typically conn.RemoteAddr().String()) rather than have Session derive
// it, since two distinct connections can otherwise share an address (as
// net.Pipe's endpoints do in tests).
func New(conn net.Conn, addr string, st store.UserStore, b *bus.Bus, log zerolog.Logger) (*Session, error) {
	sub, err := b.Subscribe(addr)
	if err != nil {
		return nil, fmt.Errorf("session: subscribe: %w", err)
	}
	return &Session{
		conn:  conn,
		codec: wire.NewCodec(conn),
		sub:   sub,
		store: st,
		bus:   b,
		addr:  addr,
		log:   log.With().Str("addr", addr).Logger(),
		state: stateUnauthenticated,
	}, nil
}

type frameResult struct {
	msg wire.Message
	err error
}

// Run drives the session until it ends: clean Quit, end-of-stream, or a
// fatal IO error. It always releases the broadcast subscription and closes
// the connection before returning, which also unblocks the reader
// goroutine if it is parked in a socket read.
func (s *Session) Run() {
	done := make(chan struct{})
	defer close(done)
	defer s.sub.Close()
	defer s.conn.Close()

	frames := make(chan frameResult)
	go s.readLoop(frames, done)

	for {
		select {
		case fr, ok := <-frames:
			if !ok {
				return
			}
			if fr.err != nil {
				s.logTermination(fr.err)
				return
			}
			if fr.msg == nil {
				continue // zero-length heartbeat frame; no-op.
			}
			if !s.handleInbound(fr.msg) {
				return
			}

		case env, ok := <-s.sub.C():
			if !ok {
				return
			}
			s.handleBroadcast(env)
		}
	}
}

// readLoop feeds frames from the socket to the main select loop so the
// socket reader never has to also be the broadcast consumer — the two
// event sources stay independently ready. It selects its send against done
// so that once Run has returned (and closed the connection), a blocked
// reader goroutine unblocks and exits instead of leaking forever.
func (s *Session) readLoop(out chan<- frameResult, done <-chan struct{}) {
	defer close(out)
	for {
		msg, err := s.codec.ReadNext()
		select {
		case out <- frameResult{msg: msg, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) logTermination(err error) {
	if errors.Is(err, io.EOF) {
		s.log.Info().Msg("client disconnected")
		return
	}
	if wire.IsConnReset(err) {
		s.log.Info().Err(err).Msg("client disconnected")
		return
	}
	s.log.Error().Err(err).Msg("session ended with error")
}

// handleInbound reacts to one inbound frame per the state-specific
// reaction table. It returns false when the session must end.
func (s *Session) handleInbound(msg wire.Message) bool {
	if s.state == stateUnauthenticated {
		return s.handleUnauthenticated(msg)
	}
	return s.handleAuthenticated(msg)
}

func (s *Session) handleUnauthenticated(msg wire.Message) bool {
	switch m := msg.(type) {
	case wire.Login:
		u, err := s.store.Authenticate(context.Background(), m.Username, m.Password)
		switch {
		case err == nil:
			s.state = stateAuthenticated
			s.user = u
			s.send(wire.Text{Text: "Welcome, " + u.Name})
		case errors.Is(err, store.ErrAuthFailed):
			s.send(wire.Text{Text: "Authentication failure"})
		default:
			s.log.Error().Err(err).Msg("authenticate failed")
			s.send(wire.Text{Text: "Server error"})
		}
		return true

	case wire.Signup:
		u, err := s.store.Signup(context.Background(), m.Username, m.Password)
		switch {
		case err == nil:
			s.state = stateAuthenticated
			s.user = u
			s.send(wire.Text{Text: "Welcome, " + u.Name})
		case errors.Is(err, store.ErrAlreadyExists):
			s.send(wire.Text{Text: "Username " + m.Username + " already exists!"})
		default:
			s.log.Error().Err(err).Msg("signup failed")
		}
		return true

	default:
		s.send(wire.Text{Text: "Permission denied, login first using .login <username> <password>"})
		return true
	}
}

func (s *Session) handleAuthenticated(msg wire.Message) bool {
	switch m := msg.(type) {
	case wire.Login, wire.Signup:
		s.send(wire.Text{Text: "Already logged in!"})
		return true

	case wire.Passwd:
		if err := s.store.ChangePassword(context.Background(), s.user, m.NewPassword); err != nil {
			s.log.Error().Err(err).Msg("change password failed")
			s.send(wire.Text{Text: "Server error"})
			return true
		}
		s.send(wire.Text{Text: "Password updated successfully"})
		return true

	case wire.Quit:
		return false

	default:
		if err := s.store.SaveMessage(context.Background(), s.user, msg); err != nil {
			s.log.Error().Err(err).Msg("save message failed")
			s.send(wire.Text{Text: "Server error"})
			return false
		}
		if err := s.bus.Publish(bus.Envelope{FromAddr: s.addr, Payload: msg}); err != nil {
			s.log.Warn().Err(err).Msg("publish failed")
		}
		return true
	}
}

func (s *Session) handleBroadcast(env bus.Envelope) {
	if s.state != stateAuthenticated {
		return // unauthenticated sessions never observe broadcast traffic.
	}
	if env.FromAddr == s.addr {
		return // never echo a session's own message back to it.
	}
	msg, ok := env.Payload.(wire.Message)
	if !ok {
		return
	}
	s.send(msg)
}

func (s *Session) send(msg wire.Message) {
	if err := s.codec.Send(msg); err != nil {
		s.log.Warn().Err(err).Msg("send failed")
	}
}
