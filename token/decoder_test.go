package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testNow = time.Unix(1700000000, 0).UTC()

func mint(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestDecode(t *testing.T) {
	exp := testNow.Add(time.Hour)
	iat := testNow.Add(-time.Minute)
	signed := mint(t, jwt.MapClaims{
		"sub":   "42",
		"email": "a@b.com",
		"exp":   exp.Unix(),
		"iat":   iat.Unix(),
	})

	claims, err := Decode(signed)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.Subject != "42" {
		t.Fatalf("subject = %q, want 42", claims.Subject)
	}
	if claims.Email != "a@b.com" {
		t.Fatalf("email = %q, want a@b.com", claims.Email)
	}
	if !claims.ExpiresAt.Equal(exp) {
		t.Fatalf("exp = %v, want %v", claims.ExpiresAt, exp)
	}
	if !claims.IssuedAt.Equal(iat) {
		t.Fatalf("iat = %v, want %v", claims.IssuedAt, iat)
	}
}

func TestDecodeExpiredTokenStillDecodes(t *testing.T) {
	// Expiry is the caller's business; decoding must not validate.
	signed := mint(t, jwt.MapClaims{"sub": "1", "exp": testNow.Add(-time.Hour).Unix()})
	claims, err := Decode(signed)
	if err != nil {
		t.Fatalf("decode expired: %v", err)
	}
	if claims.ExpiresAt.After(testNow) {
		t.Fatal("expected an expiry in the past")
	}
}

func TestDecodeWithoutExp(t *testing.T) {
	signed := mint(t, jwt.MapClaims{"sub": "1"})
	claims, err := Decode(signed)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !claims.ExpiresAt.IsZero() {
		t.Fatalf("exp = %v, want zero", claims.ExpiresAt)
	}
	if _, ok := ExpiresAt(signed); ok {
		t.Fatal("ExpiresAt must report false without an exp claim")
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, input := range []string{"", "not-a-jwt", "a.b", "a.!!!.c"} {
		if _, err := Decode(input); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Decode(%q) err = %v, want ErrMalformed", input, err)
		}
	}
}

func TestTimeRemaining(t *testing.T) {
	signed := mint(t, jwt.MapClaims{"exp": testNow.Add(time.Hour).Unix()})

	if got := TimeRemaining(signed, testNow); got != time.Hour {
		t.Fatalf("remaining = %v, want %v", got, time.Hour)
	}
	if got := TimeRemaining(signed, testNow.Add(time.Hour)); got != 0 {
		t.Fatalf("remaining at exp = %v, want 0", got)
	}
	if got := TimeRemaining(signed, testNow.Add(2*time.Hour)); got != 0 {
		t.Fatalf("remaining past exp = %v, want 0 (floored)", got)
	}
	if got := TimeRemaining("garbage", testNow); got != 0 {
		t.Fatalf("remaining for garbage = %v, want 0", got)
	}
	if got := TimeRemaining("", testNow); got != 0 {
		t.Fatalf("remaining for empty = %v, want 0", got)
	}
}
