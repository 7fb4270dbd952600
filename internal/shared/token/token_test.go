package token

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLengthAndFormat(t *testing.T) {
	g := NewGenerator()

	tok, err := g.Generate()
	require.NoError(t, err)
	assert.Len(t, string(tok), EncodedLen)

	for _, c := range tok {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			t.Fatalf("token contains non-hex character %q", c)
		}
	}
}

func TestGenerateUniqueness(t *testing.T) {
	g := NewGenerator()

	seen := make(map[Token]bool)
	for i := 0; i < 1000; i++ {
		tok, err := g.Generate()
		require.NoError(t, err)
		assert.False(t, seen[tok], "duplicate token generated")
		seen[tok] = true
	}
}

func TestDeterministicEntropy(t *testing.T) {
	g := NewGeneratorWithEntropy(bytes.NewReader(bytes.Repeat([]byte{0xab}, Size)))

	tok, err := g.Generate()
	require.NoError(t, err)
	assert.Equal(t, Token("abababababababababababababababab"), tok)
}

func TestEntropyExhausted(t *testing.T) {
	g := NewGeneratorWithEntropy(bytes.NewReader([]byte{0x01}))

	_, err := g.Generate()
	assert.Error(t, err)
}

type failReader struct{}

func (failReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestEntropyFailure(t *testing.T) {
	g := NewGeneratorWithEntropy(failReader{})

	_, err := g.Generate()
	assert.Error(t, err)
}

func TestMatches(t *testing.T) {
	g := NewGenerator()
	tok, err := g.Generate()
	require.NoError(t, err)

	tests := []struct {
		name      string
		presented string
		want      bool
	}{
		{"exact match", tok.String(), true},
		{"empty", "", false},
		{"truncated", tok.String()[:EncodedLen-1], false},
		{"one char off", tok.String()[:EncodedLen-1] + "x", false},
		{"different token", "00000000000000000000000000000000", false},
		{"overlong", tok.String() + "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tok.Matches(tt.presented))
		})
	}
}

func TestZeroTokenNeverMatches(t *testing.T) {
	var zero Token
	assert.True(t, zero.IsZero())
	assert.False(t, zero.Matches(""))
	assert.False(t, zero.Matches("anything"))
}
