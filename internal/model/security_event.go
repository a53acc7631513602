package model

import "time"

// SecurityEventType names the auditable moments in the auth flow.
type SecurityEventType string

const (
	EventOTPIssued       SecurityEventType = "otp_issued"
	EventOTPVerified     SecurityEventType = "otp_verified"
	EventOTPFailed       SecurityEventType = "otp_failed"
	EventOTPExpired      SecurityEventType = "otp_expired"
	EventSessionMinted   SecurityEventType = "session_minted"
	EventSessionRevoked  SecurityEventType = "session_revoked"
	EventAdminLogin      SecurityEventType = "admin_login"
	EventAdminDenied     SecurityEventType = "admin_denied"
	EventDispatchFailure SecurityEventType = "dispatch_failure"
)

// SecurityEvent is published to Kafka and sunk into ClickHouse for audit.
// Phone numbers appear only as hashes.
type SecurityEvent struct {
	EventID     string            `json:"event_id"`
	EventType   SecurityEventType `json:"event_type"`
	PhoneHash   string            `json:"phone_hash,omitempty"`
	UserID      string            `json:"user_id,omitempty"`
	EventBucket int               `json:"event_bucket"`
	Detail      string            `json:"detail,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}
