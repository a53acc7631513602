package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventsite-service/internal/config"
	"eventsite-service/internal/encryption"
	"eventsite-service/internal/model"
	"eventsite-service/internal/otp"
	"eventsite-service/internal/repository/postgres"
	redisrepo "eventsite-service/internal/repository/redis"
	"eventsite-service/internal/sms"
	"eventsite-service/internal/token"
)

const testPhone = "09123456789"

// fakeOTPRepo is an in-memory model.OTPRepository with the same transition
// guarantees as the postgres implementation.
type fakeOTPRepo struct {
	mu      sync.Mutex
	records map[string]*model.OTPRecord
	seq     int
	listErr error
}

func newFakeOTPRepo() *fakeOTPRepo {
	return &fakeOTPRepo{records: make(map[string]*model.OTPRecord)}
}

func (f *fakeOTPRepo) CreateInvalidatingPrevious(_ context.Context, rec *model.OTPRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.Phone == rec.Phone && r.Status == model.OTPStatusPending {
			r.Status = model.OTPStatusExpired
		}
	}
	f.seq++
	rec.ID = fmt.Sprintf("otp-%d", f.seq)
	rec.Status = model.OTPStatusPending
	// strictly increasing so latest() never ties
	rec.CreatedAt = time.Now().UTC().Add(time.Duration(f.seq) * time.Millisecond)
	clone := *rec
	f.records[rec.ID] = &clone
	return nil
}

func (f *fakeOTPRepo) GetLatestPending(_ context.Context, phone string) (*model.OTPRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var pending []*model.OTPRecord
	for _, r := range f.records {
		if r.Phone == phone && r.Status == model.OTPStatusPending {
			pending = append(pending, r)
		}
	}
	if len(pending) == 0 {
		return nil, postgres.ErrNoRows
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.After(pending[j].CreatedAt) })
	clone := *pending[0]
	return &clone, nil
}

func (f *fakeOTPRepo) IncrementAttempts(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return 0, postgres.ErrNoRows
	}
	r.Attempts++
	return r.Attempts, nil
}

func (f *fakeOTPRepo) UpdateStatus(_ context.Context, id string, from, to model.OTPStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok || r.Status != from {
		return postgres.ErrConflict
	}
	r.Status = to
	return nil
}

func (f *fakeOTPRepo) CountPending(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.records {
		if r.Status == model.OTPStatusPending {
			n++
		}
	}
	return n, nil
}

func (f *fakeOTPRepo) DeleteTerminal(_ context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for id, r := range f.records {
		if r.Status.IsTerminal() && r.CreatedAt.Before(olderThan) {
			delete(f.records, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeOTPRepo) status(id string) model.OTPStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[id].Status
}

func (f *fakeOTPRepo) latest(phone string) *model.OTPRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var newest *model.OTPRecord
	for _, r := range f.records {
		if r.Phone == phone && (newest == nil || r.CreatedAt.After(newest.CreatedAt)) {
			newest = r
		}
	}
	return newest
}

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	getErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		u.ID = "user-" + u.PhoneHash[:8]
	}
	clone := *u
	f.users[u.ID] = &clone
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, postgres.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUserRepo) GetByPhoneHash(_ context.Context, phoneHash string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.PhoneHash == phoneHash {
			clone := *u
			return &clone, nil
		}
	}
	return nil, postgres.ErrNoRows
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, id, fullName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return postgres.ErrNoRows
	}
	u.FullName = fullName
	return nil
}

func (f *fakeUserRepo) UpdateLastLogin(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return postgres.ErrNoRows
	}
	now := time.Now().UTC()
	u.LastLoginAt = &now
	return nil
}

func (f *fakeUserRepo) HasRole(_ context.Context, id string, role model.Role) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return false, nil
	}
	return u.IsActive && u.Role == role, nil
}

func (f *fakeUserRepo) List(_ context.Context, _, _ int) ([]*model.User, error) {
	return nil, nil
}

func (f *fakeUserRepo) Count(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users), nil
}

type fakeLimiter struct {
	mu       sync.Mutex
	windows  map[string]bool
	counts   map[string]int64
	denyNext bool
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{
		windows: make(map[string]bool),
		counts:  make(map[string]int64),
	}
}

func (f *fakeLimiter) AllowResend(_ context.Context, phoneHash string) (bool, time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denyNext || f.windows[phoneHash] {
		return false, 30 * time.Second, nil
	}
	f.windows[phoneHash] = true
	return true, 0, nil
}

func (f *fakeLimiter) ReleaseResend(_ context.Context, phoneHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.windows, phoneHash)
	return nil
}

func (f *fakeLimiter) CountIssue(_ context.Context, phoneHash string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[phoneHash]++
	return f.counts[phoneHash], nil
}

func (f *fakeLimiter) IssueCount(_ context.Context, phoneHash string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[phoneHash], nil
}

type fakeSessionStore struct {
	mu      sync.Mutex
	claims  map[string]*redisrepo.HandoffClaim
	revoked map[string]bool
	seq     int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		claims:  make(map[string]*redisrepo.HandoffClaim),
		revoked: make(map[string]bool),
	}
}

func (f *fakeSessionStore) CreateHandoff(_ context.Context, claim *redisrepo.HandoffClaim) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	tok := strings.Repeat("ab", 16) + string(rune('a'+f.seq))
	f.claims[tok] = claim
	return tok, nil
}

func (f *fakeSessionStore) RedeemHandoff(_ context.Context, tok string) (*redisrepo.HandoffClaim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claim, ok := f.claims[tok]
	if !ok {
		return nil, redisrepo.ErrHandoffNotFound
	}
	delete(f.claims, tok)
	return claim, nil
}

func (f *fakeSessionStore) RevokeSession(_ context.Context, jti string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = true
	return nil
}

func (f *fakeSessionStore) isRevoked(jti string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[jti]
}

type fakePasswords struct{ valid string }

func (f *fakePasswords) Verify(password, _ string) (bool, error) {
	return password == f.valid, nil
}

type nopEvents struct{}

func (nopEvents) Publish(_ context.Context, _ model.SecurityEventType, _, _, _ string) {}

type authFixture struct {
	svc      *AuthService
	otps     *fakeOTPRepo
	users    *fakeUserRepo
	limiter  *fakeLimiter
	sessions *fakeSessionStore
	sender   *sms.MockProvider
	hasher   *otp.Hasher
}

func newTestConfig() *config.Config {
	return &config.Config{
		OTP: config.OTPConfig{
			Length:       6,
			TTL:          5 * time.Minute,
			MaxAttempts:  5,
			MaxPerHour:   10,
			ResendWindow: 60 * time.Second,
			HandoffTTL:   5 * time.Minute,
			Pepper:       "test-pepper",
		},
		JWT: config.JWTConfig{
			Secret:   "test-secret",
			Issuer:   "eventsite-service",
			UserTTL:  168 * time.Hour,
			AdminTTL: 2 * time.Hour,
		},
	}
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	cfg := newTestConfig()

	fx := &authFixture{
		otps:     newFakeOTPRepo(),
		users:    newFakeUserRepo(),
		limiter:  newFakeLimiter(),
		sessions: newFakeSessionStore(),
		sender:   sms.NewMockProvider(),
		hasher:   otp.NewHasher(cfg.OTP.Pepper),
	}
	// KMS disabled -> local data keys, so phone encryption round-trips
	// without AWS.
	fx.svc = NewAuthService(cfg, fx.otps, fx.users, fx.limiter, fx.sessions,
		token.NewJWTService(cfg), &fakePasswords{valid: "hunter22"}, fx.sender, nopEvents{},
		encryption.NewManager(cfg, nil))
	return fx
}

// issue requests a code and digs the plaintext out of the dispatched SMS.
func (fx *authFixture) issue(t *testing.T, phone string) string {
	t.Helper()
	_, err := fx.svc.RequestOTP(context.Background(), phone)
	require.NoError(t, err)
	sent := fx.sender.Sent()
	require.NotEmpty(t, sent)
	msg := sent[len(sent)-1].Message
	fields := strings.Fields(msg)
	for _, f := range fields {
		f = strings.TrimSuffix(f, ".")
		if len(f) == 6 && otp.ValidCode(f) {
			return f
		}
	}
	t.Fatalf("no code found in message %q", msg)
	return ""
}

func TestRequestOTP_InvalidPhone(t *testing.T) {
	fx := newAuthFixture(t)

	for _, phone := range []string{"", "1234", "0812345678", "0912345678", "091234567890", "+989123456789"} {
		_, err := fx.svc.RequestOTP(context.Background(), phone)
		assert.ErrorIs(t, err, ErrInvalidPhone, "phone %q", phone)
	}
	assert.Empty(t, fx.sender.Sent())
}

func TestRequestOTP_IssueAndThrottle(t *testing.T) {
	fx := newAuthFixture(t)

	res, err := fx.svc.RequestOTP(context.Background(), testPhone)
	require.NoError(t, err)
	assert.False(t, res.ExpiresAt.IsZero())
	assert.Len(t, fx.sender.Sent(), 1)

	// Second request inside the window is throttled and sends nothing.
	res, err = fx.svc.RequestOTP(context.Background(), testPhone)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.Len(t, fx.sender.Sent(), 1)
}

func TestRequestOTP_ReissueInvalidatesPrevious(t *testing.T) {
	fx := newAuthFixture(t)

	first := fx.issue(t, testPhone)
	firstID := fx.otps.latest(testPhone).ID

	fx.limiter.ReleaseResend(context.Background(), otp.HashPhone(testPhone))
	second := fx.issue(t, testPhone)

	// Old record is expired, only the newest code verifies.
	assert.Equal(t, model.OTPStatusExpired, fx.otps.status(firstID))
	_, err := fx.svc.VerifyOTP(context.Background(), testPhone, first)
	if first != second {
		assert.Error(t, err)
	}

	res, err := fx.svc.VerifyOTP(context.Background(), testPhone, second)
	if first != second {
		require.NoError(t, err)
		assert.NotEmpty(t, res.AccessToken)
	}
}

func TestRequestOTP_DispatchFailureKeepsRecordPending(t *testing.T) {
	fx := newAuthFixture(t)
	fx.sender.FailNext = errors.New("carrier timeout")

	_, err := fx.svc.RequestOTP(context.Background(), testPhone)
	assert.ErrorIs(t, err, ErrDispatchFailed)

	// The undelivered record stays pending and the window reopens, so the
	// immediate retry succeeds and expires it through the usual path.
	rec := fx.otps.latest(testPhone)
	require.NotNil(t, rec)
	assert.Equal(t, model.OTPStatusPending, rec.Status)

	_, err = fx.svc.RequestOTP(context.Background(), testPhone)
	assert.NoError(t, err)
	assert.Equal(t, model.OTPStatusExpired, fx.otps.status(rec.ID))
}

func TestRequestOTP_HourlyCap(t *testing.T) {
	fx := newAuthFixture(t)
	fx.limiter.counts[otp.HashPhone(testPhone)] = 10

	_, err := fx.svc.RequestOTP(context.Background(), testPhone)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Nil(t, fx.otps.latest(testPhone))
}

func TestVerifyOTP_HappyPathProvisionsUser(t *testing.T) {
	fx := newAuthFixture(t)
	code := fx.issue(t, testPhone)

	res, err := fx.svc.VerifyOTP(context.Background(), testPhone, code)
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.True(t, res.IsNewUser)
	assert.Equal(t, model.RoleUser, res.User.Role)

	// Record is terminal; replaying the same code fails.
	assert.Equal(t, model.OTPStatusUsed, fx.otps.status(fx.otps.latest(testPhone).ID))
	_, err = fx.svc.VerifyOTP(context.Background(), testPhone, code)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyOTP_SecondLoginIsNotNew(t *testing.T) {
	fx := newAuthFixture(t)

	code := fx.issue(t, testPhone)
	res, err := fx.svc.VerifyOTP(context.Background(), testPhone, code)
	require.NoError(t, err)
	require.True(t, res.IsNewUser)

	fx.limiter.ReleaseResend(context.Background(), otp.HashPhone(testPhone))
	code = fx.issue(t, testPhone)
	res, err = fx.svc.VerifyOTP(context.Background(), testPhone, code)
	require.NoError(t, err)
	assert.False(t, res.IsNewUser)
}

func TestVerifyOTP_WrongCodeCountsAttempts(t *testing.T) {
	fx := newAuthFixture(t)
	code := fx.issue(t, testPhone)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	// Four mismatches leave the record pending, each reporting one fewer
	// remaining attempt.
	for i := 0; i < 4; i++ {
		_, err := fx.svc.VerifyOTP(context.Background(), testPhone, wrong)
		assert.ErrorIs(t, err, ErrCodeMismatch)
		assert.Contains(t, err.Error(), fmt.Sprintf("%d attempts remaining", 4-i))
	}

	// Fifth attempt exhausts the allowance and locks the record out, even
	// though the correct code arrives afterwards.
	_, err := fx.svc.VerifyOTP(context.Background(), testPhone, wrong)
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	_, err = fx.svc.VerifyOTP(context.Background(), testPhone, code)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyOTP_Expired(t *testing.T) {
	fx := newAuthFixture(t)
	code := fx.issue(t, testPhone)

	rec := fx.otps.latest(testPhone)
	fx.otps.mu.Lock()
	fx.otps.records[rec.ID].ExpiresAt = time.Now().UTC().Add(-time.Second)
	fx.otps.mu.Unlock()

	_, err := fx.svc.VerifyOTP(context.Background(), testPhone, code)
	assert.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, model.OTPStatusExpired, fx.otps.status(rec.ID))
}

func TestVerifyOTP_NoPendingCode(t *testing.T) {
	fx := newAuthFixture(t)

	_, err := fx.svc.VerifyOTP(context.Background(), testPhone, "123456")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyOTP_ValidatesCodeFormat(t *testing.T) {
	fx := newAuthFixture(t)
	fx.issue(t, testPhone)

	for _, code := range []string{"", "abc", "12", "12345678901"} {
		_, err := fx.svc.VerifyOTP(context.Background(), testPhone, code)
		assert.ErrorIs(t, err, ErrInvalidCode, "code %q", code)
	}
}

func seedAdmin(fx *authFixture) *model.User {
	admin := &model.User{
		ID:           "admin-1",
		PhoneHash:    otp.HashPhone(testPhone),
		Role:         model.RoleAdmin,
		PasswordHash: "stored-hash",
		IsActive:     true,
	}
	fx.users.Create(context.Background(), admin)
	return admin
}

func TestAdminVerifyOTP_FullExchange(t *testing.T) {
	fx := newAuthFixture(t)
	seedAdmin(fx)
	code := fx.issue(t, testPhone)

	challenge, err := fx.svc.AdminVerifyOTP(context.Background(), testPhone, code, "hunter22")
	require.NoError(t, err)
	require.NotEmpty(t, challenge.HandoffToken)

	// Record parks in session_pending until the token is redeemed.
	recID := fx.otps.latest(testPhone).ID
	assert.Equal(t, model.OTPStatusSessionPending, fx.otps.status(recID))

	res, err := fx.svc.ExchangeSession(context.Background(), challenge.HandoffToken)
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, model.OTPStatusUsed, fx.otps.status(recID))

	// Handoff tokens are single use.
	_, err = fx.svc.ExchangeSession(context.Background(), challenge.HandoffToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAdminVerifyOTP_WrongPassword(t *testing.T) {
	fx := newAuthFixture(t)
	seedAdmin(fx)
	code := fx.issue(t, testPhone)

	_, err := fx.svc.AdminVerifyOTP(context.Background(), testPhone, code, "wrong")
	assert.ErrorIs(t, err, ErrForbidden)

	// The code is consumed by the denial.
	assert.Equal(t, model.OTPStatusExpired, fx.otps.status(fx.otps.latest(testPhone).ID))
}

func TestAdminVerifyOTP_NotAdmin(t *testing.T) {
	fx := newAuthFixture(t)
	fx.users.Create(context.Background(), &model.User{
		ID:        "user-1",
		PhoneHash: otp.HashPhone(testPhone),
		Role:      model.RoleUser,
		IsActive:  true,
	})
	code := fx.issue(t, testPhone)

	_, err := fx.svc.AdminVerifyOTP(context.Background(), testPhone, code, "hunter22")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAdminVerifyOTP_UnknownPhoneSameDenial(t *testing.T) {
	fx := newAuthFixture(t)
	code := fx.issue(t, testPhone)

	_, err := fx.svc.AdminVerifyOTP(context.Background(), testPhone, code, "hunter22")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAdminVerifyOTP_WrongCodeStillCodeError(t *testing.T) {
	fx := newAuthFixture(t)
	seedAdmin(fx)
	code := fx.issue(t, testPhone)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	_, err := fx.svc.AdminVerifyOTP(context.Background(), testPhone, wrong, "hunter22")
	assert.ErrorIs(t, err, ErrCodeMismatch)
}

func TestExchangeSession_UnknownToken(t *testing.T) {
	fx := newAuthFixture(t)

	_, err := fx.svc.ExchangeSession(context.Background(), "bogus")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = fx.svc.ExchangeSession(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyOTP_StoreOutageIsServerError(t *testing.T) {
	fx := newAuthFixture(t)
	code := fx.issue(t, testPhone)

	fx.otps.listErr = errors.New("connection refused")
	_, err := fx.svc.VerifyOTP(context.Background(), testPhone, code)
	assert.ErrorIs(t, err, ErrServer)
	assert.NotErrorIs(t, err, ErrNotFound)

	// The record is untouched; verification succeeds once the store is back.
	fx.otps.listErr = nil
	_, err = fx.svc.VerifyOTP(context.Background(), testPhone, code)
	assert.NoError(t, err)
}

func TestExchangeSession_UserLookupOutageIsServerError(t *testing.T) {
	fx := newAuthFixture(t)
	seedAdmin(fx)
	code := fx.issue(t, testPhone)

	challenge, err := fx.svc.AdminVerifyOTP(context.Background(), testPhone, code, "hunter22")
	require.NoError(t, err)

	fx.users.getErr = errors.New("connection refused")
	_, err = fx.svc.ExchangeSession(context.Background(), challenge.HandoffToken)
	assert.ErrorIs(t, err, ErrServer)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestLogout_RevokesSession(t *testing.T) {
	fx := newAuthFixture(t)
	code := fx.issue(t, testPhone)

	res, err := fx.svc.VerifyOTP(context.Background(), testPhone, code)
	require.NoError(t, err)

	claims, err := token.NewJWTService(newTestConfig()).Verify(res.AccessToken)
	require.NoError(t, err)

	require.NoError(t, fx.svc.Logout(context.Background(), claims))
	assert.True(t, fx.sessions.isRevoked(claims.SessionID))

	assert.ErrorIs(t, fx.svc.Logout(context.Background(), nil), ErrUnauthorized)
}

func TestProfile_DecryptsStoredPhone(t *testing.T) {
	fx := newAuthFixture(t)
	code := fx.issue(t, testPhone)

	res, err := fx.svc.VerifyOTP(context.Background(), testPhone, code)
	require.NoError(t, err)

	// The stored row carries only the encrypted envelope.
	stored, err := fx.users.GetByID(context.Background(), res.User.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Phone)
	assert.NotEmpty(t, stored.PhoneEncrypted)

	user, err := fx.svc.Profile(context.Background(), res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, testPhone, user.Phone)

	_, err = fx.svc.Profile(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
