package utils

import (
	"crypto/rand"
	"math/big"
)

// GetRandomCode returns size random decimal digits.
func GetRandomCode(size int) (string, error) {
	r := make([]byte, size)
	ten := big.NewInt(10)
	for i := 0; i < size; i += 1 {
		offset, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		r[i] = byte('0' + offset.Int64())
	}
	return string(r), nil
}
