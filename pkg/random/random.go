// Package random generates short codes from a URL-safe alphabet.
package random

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alphabet is the code alphabet: letters and digits, URL-safe as-is.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewRandomString returns a uniformly random string of the given length.
// It consults no external state; uniqueness is the caller's concern.
func NewRandomString(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid code length: %d", length)
	}

	max := big.NewInt(int64(len(Alphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		buf[i] = Alphabet[n.Int64()]
	}

	return string(buf), nil
}
