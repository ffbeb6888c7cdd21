package identity

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": subject}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestVerifyReturnsSubject(t *testing.T) {
	v := NewVerifier("shared-secret")

	principal, err := v.Verify(signToken(t, "shared-secret", "ops-1"))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if principal != "ops-1" {
		t.Fatalf("principal = %q, want ops-1", principal)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v := NewVerifier("shared-secret")

	if _, err := v.Verify(signToken(t, "other-secret", "ops-1")); err == nil {
		t.Fatal("expected error for token signed with a different secret")
	}
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	v := NewVerifier("shared-secret")

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{}).SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := v.Verify(token); err == nil {
		t.Fatal("expected error for token without subject claim")
	}
}
