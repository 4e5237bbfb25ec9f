package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// TokenClaims carries the dispatch context the host platform vouches for.
type TokenClaims struct {
	ProjectID  int64  `json:"project_id"`
	RecordID   string `json:"record_id,omitempty"`
	EventID    int64  `json:"event_id,omitempty"`
	Instance   int    `json:"instance,omitempty"`
	Privileged bool   `json:"privileged,omitempty"`
	Scope      string `json:"scope"`
	jwt.RegisteredClaims
}

// ConfirmClaims is the short-lived token handed out by the cancel confirmation page.
type ConfirmClaims struct {
	ConfigKey string `json:"config_key"`
	Scope     string `json:"scope"`
	jwt.RegisteredClaims
}

func GenerateToken(secret string, claims *TokenClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return sign(secret, claims)
}

func ValidateAndParseToken(secret, tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	if err := parse(secret, tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// GenerateConfirmToken issues a confirmation token for configKey issued at now.
func GenerateConfirmToken(secret, configKey, scope string, now time.Time, ttl time.Duration) (string, error) {
	claims := &ConfirmClaims{
		ConfigKey: configKey,
		Scope:     scope,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return sign(secret, claims)
}

// ParseConfirmToken validates a confirmation token against now.
func ParseConfirmToken(secret, tokenString string, now time.Time) (*ConfirmClaims, error) {
	claims := &ConfirmClaims{}
	if err := parse(secret, tokenString, claims, jwt.WithTimeFunc(func() time.Time { return now })); err != nil {
		return nil, err
	}
	return claims, nil
}

// GetTokenFromHeader strips the Bearer prefix.
func GetTokenFromHeader(header string) (string, error) {
	if header == "" {
		return "", ErrTokenInvalid
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrTokenInvalid
	}
	return strings.TrimSpace(parts[1]), nil
}

func sign(secret string, claims jwt.Claims) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("token secret is not configured")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parse(secret, tokenString string, claims jwt.Claims, opts ...jwt.ParserOption) error {
	if secret == "" {
		return fmt.Errorf("token secret is not configured")
	}
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuedAt())
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return nil
}
