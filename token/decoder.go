package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned by [Decode] when the input is not a parseable JWT.
var ErrMalformed = errors.New("malformed token")

// Claims is the subset of registered and portal claims the client reads.
//
// Claims instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

var parser = jwt.NewParser(jwt.WithoutClaimsValidation())

// Decode parses the token payload without signature verification and returns
// the claims the client cares about. A token without an exp claim decodes
// with a zero ExpiresAt.
//
// Decode may return an error when input validation, dependency calls, or security checks fail.
// Decode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func Decode(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrMalformed
	}

	raw := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tokenStr, raw); err != nil {
		return nil, errors.Join(ErrMalformed, err)
	}

	out := &Claims{}
	if sub, err := raw.GetSubject(); err == nil {
		out.Subject = sub
	}
	if email, ok := raw["email"].(string); ok {
		out.Email = email
	}
	if exp, err := raw.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if iat, err := raw.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	return out, nil
}

// ExpiresAt returns the token's expiry instant. The second result is false
// when the token is malformed or carries no exp claim.
//
// ExpiresAt does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func ExpiresAt(tokenStr string) (time.Time, bool) {
	claims, err := Decode(tokenStr)
	if err != nil || claims.ExpiresAt.IsZero() {
		return time.Time{}, false
	}
	return claims.ExpiresAt, true
}

// TimeRemaining returns the validity left on the token at the given instant,
// floored at zero. A missing, malformed, or exp-less token counts as already
// expired; this function never fails.
//
// TimeRemaining does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func TimeRemaining(tokenStr string, now time.Time) time.Duration {
	exp, ok := ExpiresAt(tokenStr)
	if !ok {
		return 0
	}
	remaining := exp.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
