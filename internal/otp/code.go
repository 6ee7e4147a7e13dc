// Package otp generates, hashes and compares six-digit one-time passcodes.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"math/big"
	"strconv"
)

const (
	codeMin = 100000
	codeMax = 999999
)

var codeSpan = big.NewInt(codeMax - codeMin + 1)

// Generator produces fresh one-time codes.
type Generator interface {
	Generate() (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate() (string, error) { return f() }

// RandomGenerator draws codes uniformly from [100000, 999999] using the given reader.
type RandomGenerator struct {
	Reader io.Reader
}

// NewRandomGenerator returns a Generator backed by crypto/rand.
func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{Reader: rand.Reader}
}

// Generate returns a 6-digit numeric code (e.g. "482913").
func (g *RandomGenerator) Generate() (string, error) {
	r := g.Reader
	if r == nil {
		r = rand.Reader
	}
	n, err := rand.Int(r, codeSpan)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}

// GenerateCode returns a 6-digit code from crypto/rand.
func GenerateCode() (string, error) {
	return NewRandomGenerator().Generate()
}

// WellFormed reports whether code is exactly six ASCII digits.
func WellFormed(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// HashCode returns the hex-encoded SHA-256 of code.
func HashCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// CodeEqual compares the hash of providedCode with storedHash in constant time.
func CodeEqual(providedCode, storedHash string) bool {
	if providedCode == "" || storedHash == "" {
		return false
	}
	providedHash := HashCode(providedCode)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
