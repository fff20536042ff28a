package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned for malformed, expired, or mistyped tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked is returned when a refresh token has been blacklisted.
	ErrTokenRevoked = errors.New("token revoked")
)

// Blacklist tracks revoked refresh tokens by their jti claim.
type Blacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsTokenBlacklisted(ctx context.Context, jti string) (bool, error)
}

// TokenPair is an issued access/refresh pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Claims are the resolved identity carried by a token.
type Claims struct {
	UserID int64
	Email  string
	JTI    string
	Expiry time.Time
}

// TokenManager issues and validates HS256 JWT pairs. Refresh tokens carry
// a jti so logout can revoke exactly one token via the blacklist.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	blacklist  Blacklist
}

// NewTokenManager creates a new token manager
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration, blacklist Blacklist) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		blacklist:  blacklist,
	}
}

// IssuePair issues a fresh access/refresh token pair for a user.
func (tm *TokenManager) IssuePair(userID int64, email string) (*TokenPair, error) {
	now := time.Now()

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"typ":   "access",
		"iat":   now.Unix(),
		"exp":   now.Add(tm.accessTTL).Unix(),
	})
	accessToken, err := access.SignedString(tm.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"jti": uuid.New().String(),
		"typ": "refresh",
		"iat": now.Unix(),
		"exp": now.Add(tm.refreshTTL).Unix(),
	})
	refreshToken, err := refresh.SignedString(tm.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// ParseAccess validates an access token and returns its claims.
func (tm *TokenManager) ParseAccess(tokenStr string) (*Claims, error) {
	return tm.parse(tokenStr, "access")
}

// ParseRefresh validates a refresh token and checks it against the
// blacklist.
func (tm *TokenManager) ParseRefresh(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := tm.parse(tokenStr, "refresh")
	if err != nil {
		return nil, err
	}

	revoked, err := tm.blacklist.IsTokenBlacklisted(ctx, claims.JTI)
	if err != nil {
		return nil, fmt.Errorf("failed to check blacklist: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke blacklists a refresh token for its remaining lifetime.
func (tm *TokenManager) Revoke(ctx context.Context, tokenStr string) error {
	claims, err := tm.parse(tokenStr, "refresh")
	if err != nil {
		return err
	}
	return tm.blacklist.BlacklistToken(ctx, claims.JTI, time.Until(claims.Expiry))
}

func (tm *TokenManager) parse(tokenStr, wantTyp string) (*Claims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	typ, _ := mapClaims["typ"].(string)
	if typ != wantTyp {
		return nil, ErrInvalidToken
	}

	sub, ok := mapClaims["sub"].(float64)
	if !ok {
		return nil, ErrInvalidToken
	}

	claims := &Claims{UserID: int64(sub)}
	claims.Email, _ = mapClaims["email"].(string)
	claims.JTI, _ = mapClaims["jti"].(string)
	if exp, ok := mapClaims["exp"].(float64); ok {
		claims.Expiry = time.Unix(int64(exp), 0)
	}
	return claims, nil
}
