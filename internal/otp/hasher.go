package otp

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Hasher produces deterministic one-way digests of plaintext codes. The
// server-side pepper keeps the short keyspace of a 6-digit code from being
// brute-forced offline if the store leaks.
type Hasher struct {
	pepper []byte
}

func NewHasher(pepper string) *Hasher {
	return &Hasher{pepper: []byte(pepper)}
}

// Hash returns the hex digest of the code. Equal inputs always produce equal
// digests; the plaintext is discarded by callers immediately after hashing.
func (h *Hasher) Hash(code string) string {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// Compare checks a submitted code against a stored digest in constant time.
func (h *Hasher) Compare(code, storedHash string) bool {
	computed := h.Hash(code)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

// HashPhone returns a deterministic digest of a normalized phone number,
// used for lookups and audit records so raw numbers never leave the service.
func HashPhone(phone string) string {
	sum := sha256.Sum256([]byte(phone))
	return hex.EncodeToString(sum[:])
}
