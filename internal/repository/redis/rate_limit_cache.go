package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventsite-service/internal/client"
)

// RateLimitCache throttles OTP issuance per phone. A short-lived marker key
// set with SETNX wins or loses the resend window race atomically.
type RateLimitCache struct {
	redis        *client.RedisClient
	resendWindow time.Duration
}

func NewRateLimitCache(redisClient *client.RedisClient, resendWindow time.Duration) *RateLimitCache {
	return &RateLimitCache{
		redis:        redisClient,
		resendWindow: resendWindow,
	}
}

func (c *RateLimitCache) resendKey(phoneHash string) string {
	return fmt.Sprintf("otp:resend:%s", phoneHash)
}

func (c *RateLimitCache) attemptKey(phoneHash string) string {
	return fmt.Sprintf("otp:issue_count:%s", phoneHash)
}

// AllowResend claims the resend window for the phone. It returns false with
// the remaining wait when a code was issued inside the window.
func (c *RateLimitCache) AllowResend(ctx context.Context, phoneHash string) (bool, time.Duration, error) {
	key := c.resendKey(phoneHash)

	acquired, err := c.redis.SetNX(ctx, key, "1", c.resendWindow)
	if err != nil {
		return false, 0, fmt.Errorf("failed to claim resend window: %w", err)
	}
	if acquired {
		return true, 0, nil
	}

	retryAfter, err := c.redis.TTL(ctx, key)
	if err != nil {
		// The marker may have expired between SETNX and TTL; treat the
		// window as the safe upper bound.
		retryAfter = c.resendWindow
	}
	return false, retryAfter, nil
}

// ReleaseResend drops the resend marker so a failed dispatch does not lock
// the phone out for the full window.
func (c *RateLimitCache) ReleaseResend(ctx context.Context, phoneHash string) error {
	return c.redis.Del(ctx, c.resendKey(phoneHash))
}

// CountIssue increments the hourly issuance counter for the phone.
func (c *RateLimitCache) CountIssue(ctx context.Context, phoneHash string) (int64, error) {
	count, err := c.redis.IncrWithExpire(ctx, c.attemptKey(phoneHash), time.Hour)
	if err != nil {
		return 0, fmt.Errorf("failed to count otp issuance: %w", err)
	}
	return count, nil
}

// IssueCount reads the hourly issuance counter without touching it.
func (c *RateLimitCache) IssueCount(ctx context.Context, phoneHash string) (int64, error) {
	val, err := c.redis.Get(ctx, c.attemptKey(phoneHash))
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read otp issue count: %w", err)
	}
	var count int64
	if _, err := fmt.Sscanf(val, "%d", &count); err != nil {
		return 0, fmt.Errorf("failed to parse otp issue count: %w", err)
	}
	return count, nil
}
