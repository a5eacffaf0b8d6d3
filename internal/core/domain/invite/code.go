package invite

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
)

const (
	// Alphabet omits 0/O, 1/I/L so codes survive being read aloud or typed from print.
	Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	// CodeLength gives len(Alphabet)^8 ≈ 8.5e11 possible codes.
	CodeLength = 8
)

var ErrMalformedCode = errors.New("invite code must be 8 letters or digits")

// Generator produces random invite codes from Alphabet.
type Generator struct {
	rand io.Reader
}

// NewGenerator returns a Generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{rand: rand.Reader}
}

// NewGeneratorWithSource is used by tests to make generation deterministic.
func NewGeneratorWithSource(r io.Reader) *Generator {
	return &Generator{rand: r}
}

func (g *Generator) Generate() (string, error) {
	size := big.NewInt(int64(len(Alphabet)))
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(g.rand, size)
		if err != nil {
			return "", fmt.Errorf("failed to read randomness: %w", err)
		}
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Normalize canonicalises user input: surrounding space, dashes and inner spaces are
// dropped and letters upper-cased. Codes compare case-insensitively through this.
func Normalize(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r == '-' || r == ' ':
			continue
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			return "", ErrMalformedCode
		}
	}
	if b.Len() != CodeLength {
		return "", ErrMalformedCode
	}
	return b.String(), nil
}
