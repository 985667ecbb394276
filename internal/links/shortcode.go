package links

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	shortCodeLength  = 8
	shortCodeCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// newShortCode generates a random 8-character alphanumeric short code.
func newShortCode() (string, error) {
	code := make([]byte, shortCodeLength)
	max := big.NewInt(int64(len(shortCodeCharset)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate short code: %w", err)
		}
		code[i] = shortCodeCharset[n.Int64()]
	}
	return string(code), nil
}
