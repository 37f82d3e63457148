package auth

import (
	"testing"
	"time"
)

func testSecret() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func TestGenerateAndValidateToken(t *testing.T) {
	secret := testSecret()
	claims := &HorosClaims{UserID: "u1", Username: "alice", Role: "member"}

	tok, err := GenerateToken(secret, claims, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	got, err := ValidateToken(secret, tok)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if got.UserID != "u1" || got.Username != "alice" {
		t.Errorf("unexpected claims: %+v", got)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	tok, err := GenerateToken(testSecret(), &HorosClaims{UserID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ValidateToken([]byte("different-secret-different-secret"), tok); err == nil {
		t.Error("expected validation to fail with the wrong secret")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	secret := testSecret()
	tok, err := GenerateToken(secret, &HorosClaims{UserID: "u1"}, -time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ValidateToken(secret, tok); err == nil {
		t.Error("expected validation to fail for an expired token")
	}
}

func TestValidateToken_Malformed(t *testing.T) {
	if _, err := ValidateToken(testSecret(), "not-a-jwt"); err == nil {
		t.Error("expected an error for a malformed token string")
	}
}
