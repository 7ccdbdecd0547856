package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token validation errors
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

// AccessClaims are the JWT claims the engine relies on. Authentication itself
// is owned by the account-management service; this service only validates the
// tenant-scoped identity it is handed.
type AccessClaims struct {
	TenantID uint `json:"tenant_id"`
	UserID   uint `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenService validates (and, for tests and tooling, issues) access tokens
type TokenService interface {
	GenerateToken(tenantID, userID uint) (string, error)
	ValidateToken(token string) (*AccessClaims, error)
}

// TokenServiceImpl implements TokenService with an HMAC secret
type TokenServiceImpl struct {
	secretKey []byte
	issuer    string
	audience  string
	tokenTTL  time.Duration
}

// NewTokenService creates a token service instance
func NewTokenService(secretKey, issuer, audience string, tokenTTL time.Duration) (TokenService, error) {
	if secretKey == "" {
		return nil, errors.New("token secret key is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}

	return &TokenServiceImpl{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		audience:  audience,
		tokenTTL:  tokenTTL,
	}, nil
}

// GenerateToken issues a signed access token for a tenant user
func (s *TokenServiceImpl) GenerateToken(tenantID, userID uint) (string, error) {
	now := time.Now().UTC()
	claims := AccessClaims{
		TenantID: tenantID,
		UserID:   userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// ValidateToken parses and verifies an access token
func (s *TokenServiceImpl) ValidateToken(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithAudience(s.audience))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TenantID == 0 {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
