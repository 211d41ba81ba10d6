package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry extracts the expiry claim from a JWT bearer token without
// verifying the signature. Verification is the server's job; the claim is
// used for display and scheduling only, never to grant or deny access.
func TokenExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()

	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
