// Package middleware provides Gin HTTP middleware for authentication, rate limiting,
// security headers, request correlation, metrics, and audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Recovery → RequestID → Metrics → Logger → CORS → Security → RateLimit → Auth → Audit → Handler
//
// Security headers run early so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attacks before any token work.
// Auth resolves the caller identity; handlers only ever run with a complete identity.
// Audit logging runs after auth so only authenticated mutations are recorded.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/next-cloud-ai/console/internal/api/apierr"
	"github.com/next-cloud-ai/console/internal/auth"
)

// Context keys set by AuthMiddleware
const (
	IdentityKey = "identity"
	UserIDKey   = "user_id"
)

// TokenVerifier verifies a session token. *auth.TokenIssuer satisfies it.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Authenticate resolves the caller identity from a raw Authorization header value.
// The error is one of auth.ErrMissingToken, auth.ErrMalformedToken,
// auth.ErrInvalidSignature, or auth.ErrTokenExpired.
func Authenticate(verifier TokenVerifier, rawHeader string) (*auth.Identity, error) {
	token, err := auth.ExtractBearerToken(rawHeader)
	if err != nil {
		return nil, err
	}

	claims, err := verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	return claims.Identity(), nil
}

// AuthMiddleware rejects the request with 401 unless it carries a valid bearer token.
// Identity comes from the verified claims alone; no database lookup is made.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := Authenticate(verifier, c.GetHeader("Authorization"))
		if err != nil {
			apierr.Unauthorized(c, err)
			return
		}

		c.Set(IdentityKey, identity)
		c.Set(UserIDKey, identity.UserID)
		c.Next()
	}
}

// GetIdentity returns the identity stored by AuthMiddleware
func GetIdentity(c *gin.Context) (*auth.Identity, bool) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return nil, false
	}
	identity, ok := v.(*auth.Identity)
	return identity, ok && identity != nil
}
