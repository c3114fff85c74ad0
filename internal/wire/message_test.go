package wire

import (
	"bytes"
	"reflect"
	"testing"
)

// TestMessage_RoundTrip verifies decode(encode(m)) == m for every variant,
// including zero-length byte slices (spec.md §8).
func TestMessage_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"text", Text{Text: "hello world"}},
		{"text empty", Text{Text: ""}},
		{"file", File{Name: "/tmp/x.bin", Bytes: []byte{1, 2, 3, 4, 5}}},
		{"file empty bytes", File{Name: "empty.bin", Bytes: []byte{}}},
		{"image", Image{Bytes: []byte{0xDE, 0xAD, 0xBE, 0xEF}}},
		{"image empty", Image{Bytes: nil}},
		{"login", Login{Username: "alice", Password: "secret"}},
		{"signup", Signup{Username: "bob", Password: "hunter2"}},
		{"passwd", Passwd{NewPassword: "new-password"}},
		{"quit", Quit{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := Encode(tt.msg)
			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !reflect.DeepEqual(normalize(decoded), normalize(tt.msg)) {
				t.Errorf("round-trip mismatch: got %#v, want %#v", decoded, tt.msg)
			}
		})
	}
}

// normalize maps a nil byte slice and an empty byte slice to the same
// representation so the round-trip comparison isn't sensitive to which
// one a given constructor happened to produce.
func normalize(m Message) Message {
	switch v := m.(type) {
	case File:
		if len(v.Bytes) == 0 {
			v.Bytes = []byte{}
		}
		return v
	case Image:
		if len(v.Bytes) == 0 {
			v.Bytes = []byte{}
		}
		return v
	default:
		return m
	}
}

func TestMessage_KindTags(t *testing.T) {
	tests := []struct {
		msg  Message
		kind Kind
	}{
		{Text{}, KindText},
		{File{}, KindFile},
		{Image{}, KindImage},
		{Login{}, KindLogin},
		{Signup{}, KindSignup},
		{Passwd{}, KindPasswd},
		{Quit{}, KindQuit},
	}
	for _, tt := range tests {
		if tt.msg.Kind() != tt.kind {
			t.Errorf("%T.Kind() = %v, want %v", tt.msg, tt.msg.Kind(), tt.kind)
		}
	}
}

func TestDecode_UnknownKind(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if _, err := Decode(buf.Bytes()); err == nil {
		t.Fatal("expected error for unknown kind tag")
	}
}

func TestDecode_Truncated(t *testing.T) {
	full := Encode(Login{Username: "alice", Password: "secret"})
	if _, err := Decode(full[:len(full)-2]); err == nil {
		t.Fatal("expected error decoding truncated payload")
	}
}
