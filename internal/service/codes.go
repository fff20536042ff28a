package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// generateCode produces an n-digit numeric code, each digit drawn
// independently from a cryptographically secure source.
func generateCode(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits), nil
}
