package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"eventsite-service/internal/config"
	"eventsite-service/internal/encryption"
	"eventsite-service/internal/model"
	"eventsite-service/internal/otp"
	"eventsite-service/internal/repository/postgres"
	redisrepo "eventsite-service/internal/repository/redis"
	"eventsite-service/internal/sms"
	"eventsite-service/internal/token"
	"eventsite-service/internal/util"
)

// RateLimiter is the issuance throttle surface the auth flow needs.
type RateLimiter interface {
	AllowResend(ctx context.Context, phoneHash string) (bool, time.Duration, error)
	ReleaseResend(ctx context.Context, phoneHash string) error
	CountIssue(ctx context.Context, phoneHash string) (int64, error)
	IssueCount(ctx context.Context, phoneHash string) (int64, error)
}

// SessionStore holds one-time admin handoff tokens and session revocation
// markers.
type SessionStore interface {
	CreateHandoff(ctx context.Context, claim *redisrepo.HandoffClaim) (string, error)
	RedeemHandoff(ctx context.Context, token string) (*redisrepo.HandoffClaim, error)
	RevokeSession(ctx context.Context, jti string, until time.Duration) error
}

// TokenMinter mints signed session tokens.
type TokenMinter interface {
	Mint(userID, phoneHash string, role model.Role) (string, *token.Claims, error)
}

// PasswordVerifier checks an admin password against its stored hash.
type PasswordVerifier interface {
	Verify(password, encodedHash string) (bool, error)
}

// EventRecorder receives security events; implementations must be
// best-effort and never fail the caller.
type EventRecorder interface {
	Publish(ctx context.Context, eventType model.SecurityEventType, phoneHash, userID, detail string)
}

// IssueResult reports a successful code dispatch.
type IssueResult struct {
	ExpiresAt   time.Time     `json:"expires_at"`
	ResendAfter time.Duration `json:"resend_after"`
	// RetryAfter is set only when issuance was throttled.
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// VerifyResult reports a successful login.
type VerifyResult struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	IsNewUser   bool      `json:"is_new_user"`
	User        *model.User
}

// AdminChallengeResult carries the one-time handoff token minted after a
// successful admin second factor.
type AdminChallengeResult struct {
	HandoffToken string        `json:"handoff_token"`
	ExpiresIn    time.Duration `json:"expires_in"`
}

// AuthService implements the phone-OTP login flow: issue, verify, and the
// two-step admin session exchange.
type AuthService struct {
	otps      model.OTPRepository
	users     model.UserRepository
	limiter   RateLimiter
	sessions  SessionStore
	tokens    TokenMinter
	passwords PasswordVerifier
	smsSender sms.Provider
	events    EventRecorder
	hasher    *otp.Hasher
	encryptor *encryption.Manager

	codeLength   int
	codeTTL      time.Duration
	maxAttempts  int
	maxPerHour   int
	resendWindow time.Duration
	handoffTTL   time.Duration
}

func NewAuthService(
	cfg *config.Config,
	otps model.OTPRepository,
	users model.UserRepository,
	limiter RateLimiter,
	sessions SessionStore,
	tokens TokenMinter,
	passwords PasswordVerifier,
	smsSender sms.Provider,
	events EventRecorder,
	encryptor *encryption.Manager,
) *AuthService {
	return &AuthService{
		otps:         otps,
		users:        users,
		limiter:      limiter,
		sessions:     sessions,
		tokens:       tokens,
		passwords:    passwords,
		smsSender:    smsSender,
		events:       events,
		hasher:       otp.NewHasher(cfg.OTP.Pepper),
		encryptor:    encryptor,
		codeLength:   cfg.OTP.Length,
		codeTTL:      cfg.OTP.TTL,
		maxAttempts:  cfg.OTP.MaxAttempts,
		maxPerHour:   cfg.OTP.MaxPerHour,
		resendWindow: cfg.OTP.ResendWindow,
		handoffTTL:   cfg.OTP.HandoffTTL,
	}
}

// RequestOTP validates the phone, claims the resend window, persists a new
// pending code (expiring any previous pending code in the same transaction),
// and dispatches it. On dispatch failure the record stays pending and the
// resend window is released; a retrying request re-invalidates it.
func (s *AuthService) RequestOTP(ctx context.Context, phone string) (*IssueResult, error) {
	phone = util.SanitizeInput(phone)
	if !otp.ValidPhone(phone) {
		return nil, ErrInvalidPhone
	}
	phoneHash := otp.HashPhone(phone)

	allowed, retryAfter, err := s.limiter.AllowResend(ctx, phoneHash)
	if err != nil {
		util.Error("resend throttle check failed", util.ErrorField(err))
		return nil, ErrServer
	}
	if !allowed {
		return &IssueResult{RetryAfter: retryAfter}, ErrRateLimited
	}

	if s.maxPerHour > 0 {
		issued, cerr := s.limiter.IssueCount(ctx, phoneHash)
		if cerr != nil {
			util.Warn("failed to read issuance counter", util.ErrorField(cerr))
		} else if issued >= int64(s.maxPerHour) {
			if rerr := s.limiter.ReleaseResend(ctx, phoneHash); rerr != nil {
				util.Warn("failed to release resend window", util.ErrorField(rerr))
			}
			return nil, ErrRateLimited
		}
	}

	code, err := otp.GenerateCode(s.codeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	rec := &model.OTPRecord{
		Phone:       phone,
		CodeHash:    s.hasher.Hash(code),
		MaxAttempts: s.maxAttempts,
		ExpiresAt:   time.Now().UTC().Add(s.codeTTL),
	}
	if err := s.otps.CreateInvalidatingPrevious(ctx, rec); err != nil {
		util.Error("failed to persist otp record", util.ErrorField(err))
		return nil, ErrServer
	}

	message := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.",
		code, int(s.codeTTL.Minutes()))
	if err := s.smsSender.Send(ctx, phone, message); err != nil {
		// The record stays pending; the next request expires it through the
		// usual invalidate-then-insert. Only the window is released so the
		// retry is not locked out.
		if rerr := s.limiter.ReleaseResend(ctx, phoneHash); rerr != nil {
			util.Warn("failed to release resend window", util.ErrorField(rerr))
		}
		s.events.Publish(ctx, model.EventDispatchFailure, phoneHash, "", err.Error())
		util.Error("sms dispatch failed", zap.String("phone_hash", phoneHash), util.ErrorField(err))
		return nil, ErrDispatchFailed
	}

	if _, err := s.limiter.CountIssue(ctx, phoneHash); err != nil {
		util.Warn("failed to count issuance", util.ErrorField(err))
	}
	s.events.Publish(ctx, model.EventOTPIssued, phoneHash, "", "")

	return &IssueResult{
		ExpiresAt:   rec.ExpiresAt,
		ResendAfter: s.resendWindow,
	}, nil
}

// VerifyOTP checks a submitted code against the pending record, consumes the
// record, provisions a user on first login, and mints a session token.
func (s *AuthService) VerifyOTP(ctx context.Context, phone, code string) (*VerifyResult, error) {
	phone = util.SanitizeInput(phone)
	if !otp.ValidPhone(phone) {
		return nil, ErrInvalidPhone
	}
	if !otp.ValidCode(code) {
		return nil, ErrInvalidCode
	}
	phoneHash := otp.HashPhone(phone)

	rec, err := s.checkCode(ctx, phone, phoneHash, code)
	if err != nil {
		return nil, err
	}

	// Code matched; consume the record. The guard catches a concurrent
	// verify winning the race.
	if err := s.otps.UpdateStatus(ctx, rec.ID, model.OTPStatusPending, model.OTPStatusUsed); err != nil {
		util.Warn("pending record moved before consume", zap.String("otp_id", rec.ID), util.ErrorField(err))
		return nil, ErrConflict
	}
	s.events.Publish(ctx, model.EventOTPVerified, phoneHash, "", "")

	user, isNew, err := s.provisionUser(ctx, phone, phoneHash)
	if err != nil {
		util.Error("failed to provision user", util.ErrorField(err))
		return nil, ErrServer
	}

	signed, claims, err := s.tokens.Mint(user.ID, phoneHash, user.Role)
	if err != nil {
		util.Error("failed to mint session token", util.ErrorField(err))
		return nil, ErrServer
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		util.Warn("failed to update last login", util.ErrorField(err))
	}
	s.events.Publish(ctx, model.EventSessionMinted, phoneHash, user.ID, "")

	return &VerifyResult{
		AccessToken: signed,
		ExpiresAt:   claims.ExpiresAt,
		IsNewUser:   isNew,
		User:        user,
	}, nil
}

// AdminVerifyOTP is the admin second factor: a valid code AND the account
// password AND the admin role, all required. OTP failures surface the usual
// code errors; every other failure collapses into ErrForbidden so the
// endpoint does not reveal which factor was wrong or whether the phone is
// known.
func (s *AuthService) AdminVerifyOTP(ctx context.Context, phone, code, password string) (*AdminChallengeResult, error) {
	phone = util.SanitizeInput(phone)
	if !otp.ValidPhone(phone) {
		return nil, ErrInvalidPhone
	}
	if !otp.ValidCode(code) {
		return nil, ErrInvalidCode
	}
	phoneHash := otp.HashPhone(phone)

	rec, err := s.checkCode(ctx, phone, phoneHash, code)
	if err != nil {
		return nil, err
	}

	deny := func(detail string) (*AdminChallengeResult, error) {
		// Consume the code either way; a denied challenge must not leave a
		// verifiable record behind.
		if uerr := s.otps.UpdateStatus(ctx, rec.ID, model.OTPStatusPending, model.OTPStatusExpired); uerr != nil {
			util.Warn("failed to consume denied admin code", util.ErrorField(uerr))
		}
		s.events.Publish(ctx, model.EventAdminDenied, phoneHash, "", detail)
		return nil, ErrForbidden
	}

	user, err := s.users.GetByPhoneHash(ctx, phoneHash)
	if err != nil {
		return deny("unknown phone")
	}

	isAdmin, err := s.users.HasRole(ctx, user.ID, model.RoleAdmin)
	if err != nil || !isAdmin {
		return deny("missing admin role")
	}

	ok, err := s.passwords.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		return deny("password mismatch")
	}

	// Park the record until the handoff token is redeemed.
	if err := s.otps.UpdateStatus(ctx, rec.ID, model.OTPStatusPending, model.OTPStatusSessionPending); err != nil {
		return nil, ErrConflict
	}

	handoff, err := s.sessions.CreateHandoff(ctx, &redisrepo.HandoffClaim{
		OTPRecordID: rec.ID,
		PhoneHash:   phoneHash,
		UserID:      user.ID,
		Role:        string(model.RoleAdmin),
	})
	if err != nil {
		util.Error("failed to create handoff token", util.ErrorField(err))
		return nil, ErrServer
	}

	return &AdminChallengeResult{
		HandoffToken: handoff,
		ExpiresIn:    s.handoffTTL,
	}, nil
}

// ExchangeSession redeems a one-time handoff token for an admin session.
// Redemption is atomic: a token can mint exactly one session.
func (s *AuthService) ExchangeSession(ctx context.Context, handoffToken string) (*VerifyResult, error) {
	if handoffToken == "" {
		return nil, ErrInvalidToken
	}

	claim, err := s.sessions.RedeemHandoff(ctx, handoffToken)
	if err != nil {
		if errors.Is(err, redisrepo.ErrHandoffNotFound) {
			return nil, ErrInvalidToken
		}
		util.Error("failed to redeem handoff token", util.ErrorField(err))
		return nil, ErrServer
	}

	user, err := s.users.GetByID(ctx, claim.UserID)
	if err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return nil, ErrUnauthorized
		}
		util.Error("failed to load user for session exchange", util.ErrorField(err))
		return nil, ErrServer
	}

	// The parked record completes its lifecycle here. A conflict means the
	// record was swept or invalidated; the redeemed claim still stands.
	if err := s.otps.UpdateStatus(ctx, claim.OTPRecordID, model.OTPStatusSessionPending, model.OTPStatusUsed); err != nil {
		util.Warn("parked record not in session_pending", zap.String("otp_id", claim.OTPRecordID), util.ErrorField(err))
	}

	signed, claims, err := s.tokens.Mint(user.ID, claim.PhoneHash, model.RoleAdmin)
	if err != nil {
		util.Error("failed to mint admin token", util.ErrorField(err))
		return nil, ErrServer
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		util.Warn("failed to update last login", util.ErrorField(err))
	}
	s.events.Publish(ctx, model.EventAdminLogin, claim.PhoneHash, user.ID, "")
	s.events.Publish(ctx, model.EventSessionMinted, claim.PhoneHash, user.ID, "")

	return &VerifyResult{
		AccessToken: signed,
		ExpiresAt:   claims.ExpiresAt,
		User:        user,
	}, nil
}

// Logout revokes the calling session. The revocation marker lives until the
// token's natural expiry, after which the signature check rejects it anyway.
func (s *AuthService) Logout(ctx context.Context, claims *token.Claims) error {
	if claims == nil || claims.SessionID == "" {
		return ErrUnauthorized
	}
	if err := s.sessions.RevokeSession(ctx, claims.SessionID, time.Until(claims.ExpiresAt)); err != nil {
		util.Error("failed to revoke session", util.ErrorField(err))
		return ErrServer
	}
	s.events.Publish(ctx, model.EventSessionRevoked, claims.PhoneHash, claims.UserID, "")
	return nil
}

// Profile returns the account with the stored phone decrypted for display.
func (s *AuthService) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return nil, ErrNotFound
		}
		util.Error("failed to load profile", util.ErrorField(err))
		return nil, ErrServer
	}

	if user.Phone == "" && len(user.PhoneEncrypted) > 0 && s.encryptor != nil {
		var envelope encryption.EncryptedData
		if jerr := json.Unmarshal(user.PhoneEncrypted, &envelope); jerr != nil {
			util.Warn("stored phone envelope is malformed", util.ErrorField(jerr))
		} else if phone, derr := s.encryptor.DecryptField(ctx, &envelope); derr != nil {
			util.Warn("failed to decrypt stored phone", util.ErrorField(derr))
		} else {
			user.Phone = phone
		}
	}
	return user, nil
}

// checkCode runs the shared verification state machine: find the pending
// record, enforce expiry, count the attempt, and compare digests. The
// attempt is counted before the comparison so a crash between the two never
// grants a free guess.
func (s *AuthService) checkCode(ctx context.Context, phone, phoneHash, code string) (*model.OTPRecord, error) {
	rec, err := s.otps.GetLatestPending(ctx, phone)
	if err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return nil, ErrNotFound
		}
		util.Error("failed to load pending code", util.ErrorField(err))
		return nil, ErrServer
	}

	if rec.Expired(time.Now().UTC()) {
		if uerr := s.otps.UpdateStatus(ctx, rec.ID, model.OTPStatusPending, model.OTPStatusExpired); uerr != nil {
			util.Warn("failed to expire stale code", util.ErrorField(uerr))
		}
		s.events.Publish(ctx, model.EventOTPExpired, phoneHash, "", "")
		return nil, ErrExpired
	}

	attempts, err := s.otps.IncrementAttempts(ctx, rec.ID)
	if err != nil {
		util.Error("failed to count attempt", util.ErrorField(err))
		return nil, ErrServer
	}
	if attempts > rec.MaxAttempts {
		if uerr := s.otps.UpdateStatus(ctx, rec.ID, model.OTPStatusPending, model.OTPStatusExpired); uerr != nil {
			util.Warn("failed to lock out exhausted code", util.ErrorField(uerr))
		}
		s.events.Publish(ctx, model.EventOTPFailed, phoneHash, "", "attempts exhausted")
		return nil, ErrTooManyAttempts
	}

	if !s.hasher.Compare(code, rec.CodeHash) {
		if attempts >= rec.MaxAttempts {
			if uerr := s.otps.UpdateStatus(ctx, rec.ID, model.OTPStatusPending, model.OTPStatusExpired); uerr != nil {
				util.Warn("failed to lock out exhausted code", util.ErrorField(uerr))
			}
			s.events.Publish(ctx, model.EventOTPFailed, phoneHash, "", "attempts exhausted")
			return nil, ErrTooManyAttempts
		}
		remaining := rec.MaxAttempts - attempts
		s.events.Publish(ctx, model.EventOTPFailed, phoneHash, "", fmt.Sprintf("attempt %d of %d", attempts, rec.MaxAttempts))
		return nil, fmt.Errorf("%w: %d attempts remaining", ErrCodeMismatch, remaining)
	}

	return rec, nil
}

// provisionUser returns the account for the phone, creating one with the
// user role on first login. The phone is stored encrypted; lookups go
// through the deterministic hash.
func (s *AuthService) provisionUser(ctx context.Context, phone, phoneHash string) (*model.User, bool, error) {
	user, err := s.users.GetByPhoneHash(ctx, phoneHash)
	if err == nil {
		user.Phone = phone
		return user, false, nil
	}
	if !errors.Is(err, postgres.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to look up user: %w", err)
	}

	// The plaintext phone is never persisted; the row carries the hash and
	// the encrypted envelope only.
	user = &model.User{
		PhoneHash: phoneHash,
		Role:      model.RoleUser,
		IsActive:  true,
	}
	if s.encryptor != nil {
		enc, encErr := s.encryptor.EncryptField(ctx, phone)
		if encErr != nil {
			return nil, false, fmt.Errorf("failed to encrypt phone: %w", encErr)
		}
		envelope, encErr := json.Marshal(enc)
		if encErr != nil {
			return nil, false, fmt.Errorf("failed to encode phone envelope: %w", encErr)
		}
		user.PhoneEncrypted = envelope
		user.PhoneKeyID = enc.KeyID
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}
	user.Phone = phone
	return user, true, nil
}
