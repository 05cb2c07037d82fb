// Package auth provides the authentication primitives for the console: password
// hashing, session token issuance/verification, and deployment API key generation.
// See internal/middleware/auth.go for the request-time logic that uses these primitives.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	// DeploymentKeyLength is the length of the random part of a deployment key in bytes
	DeploymentKeyLength = 32

	// DefaultKeyPrefix is used when no prefix is configured
	DefaultKeyPrefix = "ncai"
)

// GenerateDeploymentKey creates a new random deployment API key: prefix_randomPart.
// Uniqueness is enforced by the deployments.api_key index; 256 bits of entropy make
// a collision practically impossible.
func GenerateDeploymentKey(prefix string) (string, error) {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	randomBytes := make([]byte, DeploymentKeyLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return fmt.Sprintf("%s_%s", prefix, base64.RawURLEncoding.EncodeToString(randomBytes)), nil
}

// ExtractBearerToken extracts the token from an Authorization header.
// Expected format: "Bearer <token>". The scheme is matched case-insensitively.
func ExtractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMalformedToken
	}

	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrMalformedToken
	}
	return token, nil
}
