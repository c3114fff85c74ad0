// Package client implements the interactive chat client: it reads typed
// command lines from stdin, forwards them to the server, and renders (or
// saves to disk) whatever the server sends back.
package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/coregx/chat/internal/wire"
)

const (
	filesDir  = "files"
	imagesDir = "images"
)

// Client drives one connection's worth of interactive chat: a goroutine
// reading stdin lines feeds parsed commands to the connection, while the
// main loop renders whatever the server pushes back.
type Client struct {
	codec *wire.Codec
	log   zerolog.Logger
}

// Dial connects to addr and ensures the download directories exist,
// mirroring the original client's startup sequence.
func Dial(addr string, log zerolog.Logger) (*Client, error) {
	if err := os.MkdirAll(filesDir, 0o755); err != nil {
		return nil, fmt.Errorf("client: create %s: %w", filesDir, err)
	}
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return nil, fmt.Errorf("client: create %s: %w", imagesDir, err)
	}

	log.Info().Str("addr", addr).Msg("connecting")
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: connect to %s: %w", addr, err)
	}
	return &Client{codec: wire.NewCodec(conn), log: log}, nil
}

type serverEvent struct {
	msg wire.Message
	err error
}

// Run reads commands from in (typically os.Stdin) and renders server
// traffic to out (typically os.Stdout) until the user issues .quit, the
// server sends Quit, reading in fails, or the connection closes or fails.
// When in reaches end of input, Run stops reading commands but keeps
// rendering server traffic. Two goroutines feed the select loop —
// one scanning stdin, one reading frames — so neither direction can
// starve the other, the same fan-in shape internal/session uses for the
// server side of the same protocol.
func (c *Client) Run(in io.Reader, out io.Writer) error {
	parser := wire.NewParser()
	commands := make(chan wire.Message)
	scanErrs := make(chan error, 1)
	server := make(chan serverEvent)

	go func() {
		defer close(commands)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			msg, err := parser.Parse(scanner.Text())
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			commands <- msg
		}
		scanErrs <- scanner.Err()
	}()

	go func() {
		defer close(server)
		for {
			msg, err := c.codec.ReadNext()
			server <- serverEvent{msg: msg, err: err}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-commands:
			if !ok {
				if err := <-scanErrs; err != nil {
					return err
				}
				commands = nil // stdin is exhausted; keep rendering server traffic.
				continue
			}
			if err := c.codec.Send(msg); err != nil {
				return fmt.Errorf("client: send: %w", err)
			}
			if _, isQuit := msg.(wire.Quit); isQuit {
				return nil
			}

		case ev, ok := <-server:
			if !ok {
				return nil
			}
			switch {
			case ev.err != nil:
				if errors.Is(ev.err, io.EOF) {
					return nil
				}
				return fmt.Errorf("client: receive: %w", ev.err)
			case ev.msg == nil:
				// zero-length heartbeat frame; nothing to render.
			case ev.msg.Kind() == wire.KindQuit:
				return nil
			default:
				if err := c.render(ev.msg, out); err != nil {
					fmt.Fprintln(out, err)
				}
			}
		}
	}
}

func (c *Client) render(msg wire.Message, out io.Writer) error {
	switch m := msg.(type) {
	case wire.Text:
		fmt.Fprintln(out, m.Text)
		return nil
	case wire.File:
		return saveToFile(filepath.Join(filesDir, filepath.Base(m.Name)), m.Bytes)
	case wire.Image:
		name := strconv.FormatInt(time.Now().UnixMilli(), 10)
		return saveToFile(filepath.Join(imagesDir, name), m.Bytes)
	default:
		return fmt.Errorf("client: unexpected message type %T from server", msg)
	}
}

func saveToFile(path string, content []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("client: open %s: %w", path, err)
	}
	defer f.Close()

	n, err := f.Write(content)
	if err != nil {
		return fmt.Errorf("client: write %s: %w", path, err)
	}
	if n != len(content) {
		return fmt.Errorf("client: wrote %d of %d bytes to %s", n, len(content), path)
	}
	return nil
}
