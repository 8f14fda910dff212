package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HashToken returns the hex SHA-256 of a bearer token. Logs and the shared
// session mirror only ever see this hash.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// shortHash is the log-friendly prefix of HashToken
func shortHash(token string) string {
	return HashToken(token)[:12]
}

// ExtractBearerToken pulls the token out of an Authorization header value
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}

	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", fmt.Errorf("%w: authorization header must use the Bearer scheme", ErrUnauthenticated)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// TokenExpiry decodes the exp claim of a JWT without checking its signature.
// Signature checks belong to the identity provider; the cache only needs to
// know when to forget a token.
func TokenExpiry(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to decode token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}
