package main

import (
	"crypto/rand"
	"encoding/hex"
)

// randomHex returns n random bytes hex-encoded, used to derive a
// process-lifetime admin cookie secret when none is configured.
func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err) // crypto/rand failing means the OS entropy source is broken.
	}
	return hex.EncodeToString(b)
}
