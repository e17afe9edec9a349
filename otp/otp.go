// Package otp generates the short numeric one-time codes used for email
// verification and password recovery. Codes come from crypto/rand and carry
// an expiry timestamp; their bounded entropy is compensated by the attempt
// ceiling enforced at the credential store.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Code is a one-time numeric code with its expiry instant.
type Code struct {
	Value     string
	ExpiresAt time.Time
}

// Generator mints fixed-width numeric codes.
type Generator struct {
	digits int
	ttl    time.Duration
	span   *big.Int
	floor  int64
}

// NewGenerator returns a generator for codes of the given width and
// validity. Width is clamped to [4, 9] so codes always fit an int64 and keep
// a leading non-zero digit.
func NewGenerator(digits int, ttl time.Duration) *Generator {
	if digits < 4 {
		digits = 4
	}
	if digits > 9 {
		digits = 9
	}

	floor := int64(1)
	for i := 1; i < digits; i++ {
		floor *= 10
	}

	return &Generator{
		digits: digits,
		ttl:    ttl,
		span:   big.NewInt(floor * 9),
		floor:  floor,
	}
}

// Generate mints a fresh code expiring ttl from now.
func (g *Generator) Generate() (Code, error) {
	n, err := rand.Int(rand.Reader, g.span)
	if err != nil {
		return Code{}, err
	}

	return Code{
		Value:     fmt.Sprintf("%0*d", g.digits, g.floor+n.Int64()),
		ExpiresAt: time.Now().Add(g.ttl),
	}, nil
}
