package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventsite-service/internal/config"
	"eventsite-service/internal/model"
)

func newTestService() *JWTService {
	return NewJWTService(&config.Config{
		JWT: config.JWTConfig{
			Secret:   "test-secret",
			Issuer:   "eventsite-service",
			UserTTL:  168 * time.Hour,
			AdminTTL: 2 * time.Hour,
		},
	})
}

func TestMintAndVerify(t *testing.T) {
	svc := newTestService()

	signed, minted, err := svc.Mint("user-1", "phash-1", model.RoleUser)
	require.NoError(t, err)
	require.NotEmpty(t, signed)
	require.NotEmpty(t, minted.SessionID)

	claims, err := svc.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "phash-1", claims.PhoneHash)
	assert.Equal(t, model.RoleUser, claims.Role)
	assert.Equal(t, minted.SessionID, claims.SessionID)
}

func TestAdminSessionsExpireSooner(t *testing.T) {
	svc := newTestService()
	now := time.Now()

	_, userClaims, err := svc.Mint("user-1", "phash-1", model.RoleUser)
	require.NoError(t, err)
	_, adminClaims, err := svc.Mint("admin-1", "phash-2", model.RoleAdmin)
	require.NoError(t, err)

	assert.WithinDuration(t, now.Add(168*time.Hour), userClaims.ExpiresAt, time.Minute)
	assert.WithinDuration(t, now.Add(2*time.Hour), adminClaims.ExpiresAt, time.Minute)
}

func TestVerify_WrongSecret(t *testing.T) {
	svc := newTestService()
	other := NewJWTService(&config.Config{
		JWT: config.JWTConfig{
			Secret:  "different-secret",
			Issuer:  "eventsite-service",
			UserTTL: time.Hour,
		},
	})

	signed, _, err := other.Mint("user-1", "phash-1", model.RoleUser)
	require.NoError(t, err)

	_, err = svc.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongIssuer(t *testing.T) {
	svc := newTestService()
	other := NewJWTService(&config.Config{
		JWT: config.JWTConfig{
			Secret:  "test-secret",
			Issuer:  "someone-else",
			UserTTL: time.Hour,
		},
	})

	signed, _, err := other.Mint("user-1", "phash-1", model.RoleUser)
	require.NoError(t, err)

	_, err = svc.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Garbage(t *testing.T) {
	svc := newTestService()

	_, err := svc.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Verify("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	expired := NewJWTService(&config.Config{
		JWT: config.JWTConfig{
			Secret:  "test-secret",
			Issuer:  "eventsite-service",
			UserTTL: -time.Hour,
		},
	})

	signed, _, err := expired.Mint("user-1", "phash-1", model.RoleUser)
	require.NoError(t, err)

	svc := newTestService()
	_, err = svc.Verify(signed)
	assert.ErrorIs(t, err, ErrTokenExpired)
}
