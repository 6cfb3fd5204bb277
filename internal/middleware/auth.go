package middleware

import (
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// SetBearer attaches token as a bearer credential.
func SetBearer(r *http.Request, token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	r.Header.Set("Authorization", "Bearer "+token)
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The device cannot verify server tokens; it only uses exp to skip calls that
// are certain to be rejected. Opaque tokens report false.
func TokenExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// TokenExpired reports whether token is a JWT whose exp is not after now.
func TokenExpired(token string, now time.Time) bool {
	exp, ok := TokenExpiry(token)
	return ok && !exp.After(now)
}
