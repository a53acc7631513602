package otp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasher_Deterministic(t *testing.T) {
	h := NewHasher("test-pepper")

	assert.Equal(t, h.Hash("123456"), h.Hash("123456"))
	assert.NotEqual(t, h.Hash("123456"), h.Hash("123457"))
}

func TestHasher_PepperChangesDigest(t *testing.T) {
	a := NewHasher("pepper-a")
	b := NewHasher("pepper-b")

	assert.NotEqual(t, a.Hash("123456"), b.Hash("123456"))
}

func TestHasher_Compare(t *testing.T) {
	h := NewHasher("test-pepper")
	stored := h.Hash("654321")

	assert.True(t, h.Compare("654321", stored))
	assert.False(t, h.Compare("654320", stored))
	assert.False(t, h.Compare("", stored))
}

func TestHasher_NoCollisionsInSample(t *testing.T) {
	h := NewHasher("test-pepper")

	seen := make(map[string]string, 10000)
	for i := 0; i < 10000; i++ {
		code := fmt.Sprintf("%06d", i)
		digest := h.Hash(code)
		if prev, ok := seen[digest]; ok {
			t.Fatalf("collision between %s and %s", prev, code)
		}
		seen[digest] = code
	}
}

func TestHashPhone_Deterministic(t *testing.T) {
	assert.Equal(t, HashPhone("09123456789"), HashPhone("09123456789"))
	assert.NotEqual(t, HashPhone("09123456789"), HashPhone("09123456780"))
	assert.Len(t, HashPhone("09123456789"), 64)
}
