// Package token generates per-view capability tokens.
//
// A token is 16 bytes of cryptographic entropy, hex-encoded to 32 characters.
// Tokens authorize script-to-host calls: a page script must present its own
// view's exact token with every bridge invocation. Comparison is constant
// time so a script cannot measure its way toward a match.
package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
)

// Size is the token entropy in bytes (128 bits).
const Size = 16

// EncodedLen is the length of a hex-encoded token string.
const EncodedLen = Size * 2

// Token is a per-view capability secret.
type Token string

// Generator produces tokens from an entropy source.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate returns a fresh token.
func (g *Generator) Generate() (Token, error) {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	var buf [Size]byte
	if _, err := io.ReadFull(g.entropy, buf[:]); err != nil {
		return "", fmt.Errorf("token entropy read: %w", err)
	}
	return Token(hex.EncodeToString(buf[:])), nil
}

// Matches compares a presented secret against the token in constant time.
func (t Token) Matches(presented string) bool {
	if len(t) != EncodedLen || len(presented) != len(t) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(t), []byte(presented)) == 1
}

// String returns the hex-encoded token.
func (t Token) String() string { return string(t) }

// IsZero reports whether the token is unset.
func (t Token) IsZero() bool { return t == "" }
