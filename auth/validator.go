package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/upb/arp-template-pdp/middleware"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidIssuer is returned when the token issuer is invalid
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrInvalidAudience is returned when the token audience is invalid
	ErrInvalidAudience = errors.New("invalid audience")

	// ErrMissingSecret is returned when the validator has no signing key
	ErrMissingSecret = errors.New("hmac secret is required")
)

// Claims represents the claims carried by PDP bearer tokens.
// Scope follows the OAuth convention of a space separated list.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// Config holds configuration for HMACValidator
type Config struct {
	Secret   string
	Issuer   string        // optional; enforced when set
	Audience string        // optional; enforced when set
	Leeway   time.Duration // clock skew tolerance
}

// HMACValidator validates HS256/384/512 signed bearer tokens
type HMACValidator struct {
	secret []byte
	opts   []jwt.ParserOption
}

// NewHMACValidator creates a new shared-secret JWT validator
func NewHMACValidator(config Config) (*HMACValidator, error) {
	if config.Secret == "" {
		return nil, ErrMissingSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}
	if config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(config.Leeway))
	}

	return &HMACValidator{
		secret: []byte(config.Secret),
		opts:   opts,
	}, nil
}

// ValidateToken validates a JWT token and returns the middleware claims
func (v *HMACValidator) ValidateToken(_ context.Context, tokenString string) (*middleware.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, v.opts...)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, ErrInvalidIssuer
		case errors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, ErrInvalidAudience
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return toMiddlewareClaims(claims), nil
}

func toMiddlewareClaims(c *Claims) *middleware.Claims {
	out := &middleware.Claims{
		Sub:    c.Subject,
		Iss:    c.Issuer,
		Aud:    []string(c.Audience),
		Scopes: strings.Fields(c.Scope),
	}
	if c.ExpiresAt != nil {
		out.Exp = c.ExpiresAt.Unix()
	}
	if c.IssuedAt != nil {
		out.Iat = c.IssuedAt.Unix()
	}
	return out
}

// IssueToken signs an HS256 token for subject. It is intended for local
// tooling and tests; production callers get tokens from their issuer.
func IssueToken(config Config, subject string, scopes []string, ttl time.Duration) (string, error) {
	if config.Secret == "" {
		return "", ErrMissingSecret
	}

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Scope: strings.Join(scopes, " "),
	}
	if config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
