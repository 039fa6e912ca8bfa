package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var ten = big.NewInt(10)

// GenerateCode returns a random digit code of the configured length, suitable
// for email verification passcodes.
func (t *Throttle) GenerateCode() (string, error) {
	digits := make([]byte, t.cfg.CodeLength)
	for i := range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to generate random digit: %w", err)
		}
		digits[i] = '0' + byte(n.Int64())
	}
	return string(digits), nil
}
