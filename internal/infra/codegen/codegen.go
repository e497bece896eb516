// Package codegen generates referral and agent codes.
package codegen

import (
	"crypto/rand"
	"math/big"
	"strings"

	"clubinex/internal/domain/service"
	"clubinex/internal/errors"
)

// Crockford-style alphabet without 0/O and 1/I/L so codes survive being read aloud.
const (
	alphabet   = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"
	codeLength = 6
)

type randomGenerator struct {
	length int
}

// New returns a generator producing prefix + 6 random characters.
func New() service.CodeGenerator {
	return &randomGenerator{length: codeLength}
}

func (g *randomGenerator) Generate(prefix string) (string, error) {
	var b strings.Builder
	b.Grow(len(prefix) + g.length)
	b.WriteString(strings.ToUpper(prefix))

	max := big.NewInt(int64(len(alphabet)))
	for range g.length {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "failed to read random bytes")
		}
		b.WriteByte(alphabet[n.Int64()])
	}

	return b.String(), nil
}
