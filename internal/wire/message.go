// Package wire implements the length-prefixed binary framing and the
// Message payload variants exchanged between chat clients and the server.
//
// Wire format:
//
//	┌────────────┬───────────────────────────────┐
//	│ len: u32LE │ payload: len bytes             │
//	└────────────┴───────────────────────────────┘
//
// A frame with len == 0 carries no payload and is a no-op heartbeat. The
// payload is a little-endian, discriminator-tagged encoding of one Message
// variant: a u32LE kind tag in declaration order below, followed by the
// variant's fields in declaration order. Strings and byte slices are
// encoded as a u64LE length followed by the raw bytes.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
)

// Kind identifies which Message variant a frame carries. The numeric value
// is part of the wire format and must never change for an existing variant.
type Kind uint32

const (
	KindText Kind = iota
	KindFile
	KindImage
	KindLogin
	KindSignup
	KindPasswd
	KindQuit
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "Text"
	case KindFile:
		return "File"
	case KindImage:
		return "Image"
	case KindLogin:
		return "Login"
	case KindSignup:
		return "Signup"
	case KindPasswd:
		return "Passwd"
	case KindQuit:
		return "Quit"
	default:
		return fmt.Sprintf("Kind(%d)", uint32(k))
	}
}

// ErrUnknownKind is returned by Decode when a frame's discriminator tag
// does not match any known Message variant.
var ErrUnknownKind = errors.New("wire: unknown message kind")

// ErrTruncated is returned by Decode when a frame's payload ends before a
// length-prefixed field can be fully read.
var ErrTruncated = errors.New("wire: truncated message payload")

// Message is the payload carried by a single frame. Every concrete type in
// this package implements it; callers type-switch on the concrete type to
// react to a specific variant (see internal/session for the canonical
// dispatch).
type Message interface {
	Kind() Kind
	encode(*bytes.Buffer)

	// Display renders the variant as persisted/broadcast chat history text.
	// persist is false for control variants (Login, Signup, Passwd, Quit)
	// that never become a row in chat history.
	Display() (text string, persist bool)
}

// Text carries UTF-8 chat text.
type Text struct {
	Text string
}

// Kind implements Message.
func (Text) Kind() Kind { return KindText }

func (m Text) encode(buf *bytes.Buffer) { putString(buf, m.Text) }

// Display implements Message.
func (m Text) Display() (string, bool) { return m.Text, true }

// File carries a named binary attachment. Name is the sender's originating
// path, unmodified.
type File struct {
	Name  string
	Bytes []byte
}

// Kind implements Message.
func (File) Kind() Kind { return KindFile }

func (m File) encode(buf *bytes.Buffer) {
	putString(buf, m.Name)
	putBytes(buf, m.Bytes)
}

// Display implements Message.
func (m File) Display() (string, bool) {
	return fmt.Sprintf("[Shared file %s]", filepath.Base(m.Name)), true
}

// Image carries an unnamed binary image; the recipient assigns a name.
type Image struct {
	Bytes []byte
}

// Kind implements Message.
func (Image) Kind() Kind { return KindImage }

func (m Image) encode(buf *bytes.Buffer) { putBytes(buf, m.Bytes) }

// Display implements Message.
func (Image) Display() (string, bool) { return "[Shared an image]", true }

// Login requests authentication with an existing account.
type Login struct {
	Username string
	Password string
}

// Kind implements Message.
func (Login) Kind() Kind { return KindLogin }

func (m Login) encode(buf *bytes.Buffer) {
	putString(buf, m.Username)
	putString(buf, m.Password)
}

// Display implements Message.
func (Login) Display() (string, bool) { return "", false }

// Signup requests creation of a new account.
type Signup struct {
	Username string
	Password string
}

// Kind implements Message.
func (Signup) Kind() Kind { return KindSignup }

func (m Signup) encode(buf *bytes.Buffer) {
	putString(buf, m.Username)
	putString(buf, m.Password)
}

// Display implements Message.
func (Signup) Display() (string, bool) { return "", false }

// Passwd requests the caller's own password be changed.
type Passwd struct {
	NewPassword string
}

// Kind implements Message.
func (Passwd) Kind() Kind { return KindPasswd }

func (m Passwd) encode(buf *bytes.Buffer) { putString(buf, m.NewPassword) }

// Display implements Message.
func (Passwd) Display() (string, bool) { return "", false }

// Quit requests clean session termination.
type Quit struct{}

// Kind implements Message.
func (Quit) Kind() Kind { return KindQuit }

func (Quit) encode(*bytes.Buffer) {}

// Display implements Message.
func (Quit) Display() (string, bool) { return "", false }

// Encode serializes m to its wire payload (everything after the u32LE
// length prefix — Codec.Send adds that separately).
func Encode(m Message) []byte {
	var buf bytes.Buffer
	var tag [4]byte
	binary.LittleEndian.PutUint32(tag[:], uint32(m.Kind()))
	buf.Write(tag[:])
	m.encode(&buf)
	return buf.Bytes()
}

// Decode parses a wire payload (the bytes following the u32LE length
// prefix) into a Message. It returns ErrUnknownKind for an unrecognized
// discriminator and ErrTruncated if a length-prefixed field runs past the
// end of data.
func Decode(data []byte) (Message, error) {
	d := &decoder{buf: data}
	tag, err := d.u32()
	if err != nil {
		return nil, err
	}
	switch Kind(tag) {
	case KindText:
		s, err := d.string()
		if err != nil {
			return nil, err
		}
		return Text{Text: s}, nil
	case KindFile:
		name, err := d.string()
		if err != nil {
			return nil, err
		}
		b, err := d.bytes()
		if err != nil {
			return nil, err
		}
		return File{Name: name, Bytes: b}, nil
	case KindImage:
		b, err := d.bytes()
		if err != nil {
			return nil, err
		}
		return Image{Bytes: b}, nil
	case KindLogin:
		u, err := d.string()
		if err != nil {
			return nil, err
		}
		p, err := d.string()
		if err != nil {
			return nil, err
		}
		return Login{Username: u, Password: p}, nil
	case KindSignup:
		u, err := d.string()
		if err != nil {
			return nil, err
		}
		p, err := d.string()
		if err != nil {
			return nil, err
		}
		return Signup{Username: u, Password: p}, nil
	case KindPasswd:
		p, err := d.string()
		if err != nil {
			return nil, err
		}
		return Passwd{NewPassword: p}, nil
	case KindQuit:
		return Quit{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, tag)
	}
}

// decoder walks a payload buffer field by field.
type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) u32() (uint32, error) {
	if len(d.buf)-d.pos < 4 {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if len(d.buf)-d.pos < 8 {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *decoder) bytes() ([]byte, error) {
	n, err := d.u64()
	if err != nil {
		return nil, err
	}
	if uint64(len(d.buf)-d.pos) < n {
		return nil, ErrTruncated
	}
	b := make([]byte, n)
	copy(b, d.buf[d.pos:d.pos+int(n)])
	d.pos += int(n)
	return b, nil
}

func (d *decoder) string() (string, error) {
	b, err := d.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func putString(buf *bytes.Buffer, s string) {
	putBytes(buf, []byte(s))
}

func putBytes(buf *bytes.Buffer, b []byte) {
	var length [8]byte
	binary.LittleEndian.PutUint64(length[:], uint64(len(b)))
	buf.Write(length[:])
	buf.Write(b)
}
