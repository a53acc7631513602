package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

// phonePattern matches canonical subscriber numbers: a leading 09 followed by
// nine digits, e.g. 09123456789.
var phonePattern = regexp.MustCompile(`^09\d{9}$`)

// codePattern matches well-formed submitted codes of any supported length.
var codePattern = regexp.MustCompile(`^\d{4,10}$`)

// ValidPhone reports whether phone is a canonical subscriber number.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// ValidCode reports whether code is well-formed (not whether it is correct).
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// GenerateCode produces a uniformly distributed fixed-length decimal code.
// Leading zeros are permitted. crypto/rand is the only randomness source.
func GenerateCode(length int) (string, error) {
	if length < 1 {
		return "", fmt.Errorf("invalid code length: %d", length)
	}

	digits := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate random digit: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}

	return string(digits), nil
}
