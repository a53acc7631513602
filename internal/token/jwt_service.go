package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"eventsite-service/internal/config"
	"eventsite-service/internal/model"
)

var (
	// ErrInvalidToken covers malformed tokens, bad signatures, and wrong
	// signing methods.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for structurally valid but expired tokens.
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the decoded payload of a session token.
type Claims struct {
	UserID    string
	PhoneHash string
	Role      model.Role
	SessionID string
	ExpiresAt time.Time
}

// JWTService mints and verifies HS256 session tokens. Admin sessions get a
// much shorter lifetime than ordinary user sessions.
type JWTService struct {
	secret   []byte
	issuer   string
	userTTL  time.Duration
	adminTTL time.Duration
}

func NewJWTService(cfg *config.Config) *JWTService {
	return &JWTService{
		secret:   []byte(cfg.JWT.Secret),
		issuer:   cfg.JWT.Issuer,
		userTTL:  cfg.JWT.UserTTL,
		adminTTL: cfg.JWT.AdminTTL,
	}
}

// Mint creates a signed session token for the user. The jti doubles as the
// session id so individual sessions can be revoked.
func (s *JWTService) Mint(userID, phoneHash string, role model.Role) (string, *Claims, error) {
	ttl := s.userTTL
	if role == model.RoleAdmin {
		ttl = s.adminTTL
	}

	now := time.Now().UTC()
	sessionID := uuid.New().String()
	claims := jwt.MapClaims{
		"sub":        userID,
		"phone_hash": phoneHash,
		"role":       string(role),
		"iss":        s.issuer,
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
		"jti":        sessionID,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, &Claims{
		UserID:    userID,
		PhoneHash: phoneHash,
		Role:      role,
		SessionID: sessionID,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// Verify parses and validates a token and returns its claims.
func (s *JWTService) Verify(tokenString string) (*Claims, error) {
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}

	userID, _ := claims["sub"].(string)
	phoneHash, _ := claims["phone_hash"].(string)
	roleStr, _ := claims["role"].(string)
	sessionID, _ := claims["jti"].(string)
	if userID == "" || roleStr == "" {
		return nil, ErrInvalidToken
	}

	role := model.Role(roleStr)
	if role != model.RoleUser && role != model.RoleAdmin {
		return nil, ErrInvalidToken
	}

	out := &Claims{
		UserID:    userID,
		PhoneHash: phoneHash,
		Role:      role,
		SessionID: sessionID,
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}
