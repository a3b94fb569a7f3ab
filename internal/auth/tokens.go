// Package auth verifies the bearer tokens presented by REST callers and
// websocket handshakes. Tokens are HS256 JWTs; verification walks an ordered
// chain of secrets (access first, then refresh) and accepts the first match.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "collabhub.io/realtime/internal/pkg/errors"
)

// Errors returned by verification.
var (
	ErrNoVerifiers   = errors.New("no token verifiers configured")
	ErrMissingToken  = errors.New("no credential presented")
	ErrMissingUserID = errors.New("token carries no user id")
)

// Claims are the JWT claims issued to users.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenConfig holds token signing configuration.
type TokenConfig struct {
	SigningKey []byte
	Issuer     string
	ExpiresIn  time.Duration
}

// GenerateToken creates a signed JWT for userID.
func GenerateToken(cfg TokenConfig, userID string) (string, time.Time, error) {
	if len(cfg.SigningKey) == 0 {
		return "", time.Time{}, errors.New("signing key is empty")
	}
	now := time.Now()
	expiresAt := now.Add(cfg.ExpiresIn)

	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    cfg.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verifier checks one token.
type Verifier interface {
	Name() string
	Verify(token string) (*Claims, error)
}

// HMACVerifier verifies HS256 tokens against a single secret.
type HMACVerifier struct {
	name   string
	key    []byte
	issuer string
}

// NewHMACVerifier creates a verifier. An empty issuer skips the issuer check.
func NewHMACVerifier(name string, key []byte, issuer string) *HMACVerifier {
	return &HMACVerifier{name: name, key: key, issuer: issuer}
}

// Name identifies the verifier in aggregated errors.
func (v *HMACVerifier) Name() string { return v.name }

// Verify parses and validates token.
func (v *HMACVerifier) Verify(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.key, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, ErrMissingUserID
	}
	return claims, nil
}

// Chain tries verifiers in order and returns the first success. When every
// verifier rejects the token the individual failures are joined.
type Chain []Verifier

// NewChain builds the access-then-refresh chain.
func NewChain(accessSecret, refreshSecret, issuer string) Chain {
	chain := Chain{NewHMACVerifier("access", []byte(accessSecret), issuer)}
	if refreshSecret != "" {
		chain = append(chain, NewHMACVerifier("refresh", []byte(refreshSecret), issuer))
	}
	return chain
}

// Verify runs the chain.
func (c Chain) Verify(token string) (*Claims, error) {
	if len(c) == 0 {
		return nil, ErrNoVerifiers
	}
	errs := make([]error, 0, len(c))
	for _, v := range c {
		claims, err := v.Verify(token)
		if err == nil {
			return claims, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", v.Name(), err))
	}
	return nil, errors.Join(errs...)
}

// AsAppError maps a verification failure to an authentication AppError.
func AsAppError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, ErrMissingToken):
		return apperrors.ErrAuthentication(apperrors.CodeAuthFailed, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.ErrAuthentication(apperrors.CodeTokenExpired, err)
	default:
		return apperrors.ErrAuthentication(apperrors.CodeTokenInvalid, err)
	}
}
