package hashing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventsite-service/internal/config"
)

func testHasher() *PasswordHasher {
	cfg := &config.Config{}
	cfg.Hashing.Argon2MemoryCost = 8192 // keep tests fast
	cfg.Hashing.Argon2TimeCost = 1
	cfg.Hashing.Argon2Parallelism = 1
	return NewPasswordHasher(cfg)
}

func TestPasswordHasher_RoundTrip(t *testing.T) {
	h := testHasher()

	encoded, err := h.Hash("admin-secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	ok, err := h.Verify("admin-secret", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong-password", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordHasher_UniqueSalts(t *testing.T) {
	h := testHasher()

	first, err := h.Hash("same-password")
	require.NoError(t, err)
	second, err := h.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestPasswordHasher_MalformedHash(t *testing.T) {
	h := testHasher()

	_, err := h.Verify("password", "not-a-hash")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = h.Verify("password", "$argon2i$v=19$m=8,t=1,p=1$c2FsdA$aGFzaA")
	assert.ErrorIs(t, err, ErrInvalidHash)
}
