package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"eventsite-service/internal/client"
)

// ErrHandoffNotFound is returned when a handoff token is unknown, expired,
// or already redeemed.
var ErrHandoffNotFound = errors.New("handoff token not found")

// HandoffClaim is what a verified admin OTP buys: a short-lived, one-time
// token that the session exchange endpoint redeems for a JWT.
type HandoffClaim struct {
	OTPRecordID string    `json:"otp_record_id"`
	PhoneHash   string    `json:"phone_hash"`
	UserID      string    `json:"user_id"`
	Role        string    `json:"role"`
	IssuedAt    time.Time `json:"issued_at"`
}

// SessionCache stores handoff tokens and revocation markers in Redis.
type SessionCache struct {
	redis      *client.RedisClient
	handoffTTL time.Duration
}

func NewSessionCache(redisClient *client.RedisClient, handoffTTL time.Duration) *SessionCache {
	if handoffTTL <= 0 || handoffTTL > 5*time.Minute {
		handoffTTL = 5 * time.Minute
	}
	return &SessionCache{
		redis:      redisClient,
		handoffTTL: handoffTTL,
	}
}

func handoffKey(token string) string {
	return fmt.Sprintf("session:handoff:%s", token)
}

func revokedKey(jti string) string {
	return fmt.Sprintf("session:revoked:%s", jti)
}

// CreateHandoff mints an opaque token and stores the claim behind it.
func (c *SessionCache) CreateHandoff(ctx context.Context, claim *HandoffClaim) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate handoff token: %w", err)
	}
	token := hex.EncodeToString(buf)

	claim.IssuedAt = time.Now().UTC()
	payload, err := json.Marshal(claim)
	if err != nil {
		return "", fmt.Errorf("failed to marshal handoff claim: %w", err)
	}

	if err := c.redis.Set(ctx, handoffKey(token), payload, c.handoffTTL); err != nil {
		return "", fmt.Errorf("failed to store handoff token: %w", err)
	}
	return token, nil
}

// RedeemHandoff consumes the token. GETDEL makes redemption atomic: exactly
// one caller gets the claim, everyone else sees ErrHandoffNotFound.
func (c *SessionCache) RedeemHandoff(ctx context.Context, token string) (*HandoffClaim, error) {
	payload, err := c.redis.GetDel(ctx, handoffKey(token))
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return nil, ErrHandoffNotFound
		}
		return nil, fmt.Errorf("failed to redeem handoff token: %w", err)
	}

	claim := &HandoffClaim{}
	if err := json.Unmarshal([]byte(payload), claim); err != nil {
		return nil, fmt.Errorf("failed to unmarshal handoff claim: %w", err)
	}
	return claim, nil
}

// RevokeSession marks a JWT id as revoked until its natural expiry.
func (c *SessionCache) RevokeSession(ctx context.Context, jti string, until time.Duration) error {
	if until <= 0 {
		return nil
	}
	if err := c.redis.Set(ctx, revokedKey(jti), "1", until); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// IsRevoked reports whether a JWT id has been revoked.
func (c *SessionCache) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := c.redis.Exists(ctx, revokedKey(jti))
	if err != nil {
		return false, fmt.Errorf("failed to check session revocation: %w", err)
	}
	return exists, nil
}
