// Package auth - jwt.go handles session token issuance and verification using a
// server-held HMAC secret. Tokens are stateless: nothing is stored server-side.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the recommended minimum length of the signing secret
const MinSecretLength = 32

// Token verification failures. Callers match these with errors.Is.
var (
	ErrMissingToken     = errors.New("missing token")
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
)

// Claims represents the session token claims
type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller resolved from verified claims
type Identity struct {
	UserID int64
	Email  string
}

// TokenIssuer signs and verifies HS256 session tokens
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. A zero ttl issues tokens without an expiry claim.
func NewTokenIssuer(secret string, ttl time.Duration, issuer string) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// Issue creates a signed token for an authenticated user
func (t *TokenIssuer) Issue(userID int64, email string) (string, error) {
	now := t.now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   t.issuer,
			Subject:  strconv.FormatInt(userID, 10),
		},
	}
	if t.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// TTL is the lifetime given to issued tokens; zero means they do not expire
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// Verify parses and validates a token. Only HS256 is accepted so a token cannot
// choose its own verification algorithm (alg=none, RS256 with the secret as a key, ...).
func (t *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			// Bad signature, unexpected algorithm, or claims we never issue.
			return nil, ErrInvalidSignature
		}
	}
	if !token.Valid {
		return nil, ErrInvalidSignature
	}
	if claims.UserID <= 0 || claims.Email == "" {
		return nil, ErrMalformedToken
	}
	if t.issuer != "" && claims.Issuer != t.issuer {
		return nil, ErrInvalidSignature
	}

	return claims, nil
}

// Identity converts verified claims into the caller identity
func (c *Claims) Identity() *Identity {
	return &Identity{UserID: c.UserID, Email: c.Email}
}

// isDevMode checks if we're in development mode
func isDevMode() bool {
	devMode := os.Getenv("DEV_MODE")
	ginMode := os.Getenv("GIN_MODE")

	return devMode == "true" || devMode == "1" || ginMode == "debug"
}

// generateRandomSecret creates a cryptographically secure random secret
func generateRandomSecret() (string, error) {
	b := make([]byte, MinSecretLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ResolveSecret returns the signing secret to use. In production an empty secret
// is an error; in dev mode a random secret is generated and sessions do not
// survive restarts.
func ResolveSecret(configured string) (string, error) {
	if configured == "" {
		if !isDevMode() {
			return "", errors.New("auth.jwt.secret (NCAI_AUTH_JWT_SECRET) is required in production; " +
				"generate one with: go run ./scripts/generate-key.go")
		}
		secret, err := generateRandomSecret()
		if err != nil {
			return "", fmt.Errorf("failed to generate development secret: %w", err)
		}
		slog.Warn("NCAI_AUTH_JWT_SECRET not set, using an auto-generated secret; sessions will not persist across restarts")
		return secret, nil
	}

	if len(configured) < MinSecretLength {
		slog.Warn("NCAI_AUTH_JWT_SECRET is shorter than the recommended length", "min_length", MinSecretLength)
	}
	return configured, nil
}
