package content

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CredentialUsable reports whether a gateway credential is worth sending.
// Signed tokens are only inspected for an exp claim in the past; opaque keys
// that are not JWTs are assumed usable. The signature is not verified since
// the gateway does that.
func CredentialUsable(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return now.Before(exp.Time)
}
