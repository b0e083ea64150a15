package security

import (
	"testing"
	"time"

	"github.com/username/pinigine/backend/src/config"
)

func testConfig(t *testing.T) {
	t.Helper()
	prev := config.Cfg
	config.Cfg = &config.AppConfig{AccessTokenExpiry: 15 * time.Minute}
	t.Cleanup(func() { config.Cfg = prev })
}

func TestHashAndComparePassword(t *testing.T) {
	svc := NewAuthService("test-secret-key-that-is-long-enough")

	hash, err := svc.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("password stored in plain text")
	}
	if err := svc.CompareHashAndPassword(hash, "correct horse battery staple"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := svc.CompareHashAndPassword(hash, "wrong password"); err == nil {
		t.Error("wrong password accepted")
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	testConfig(t)
	svc := NewAuthService("test-secret-key-that-is-long-enough")

	token, err := svc.GenerateToken("42")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	sub, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if sub != "42" {
		t.Errorf("sub = %q, want 42", sub)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	testConfig(t)
	svc := NewAuthService("test-secret-key-that-is-long-enough")

	token, err := svc.GenerateToken("42")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	other := NewAuthService("a-completely-different-secret-key!!")
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("token signed with another secret accepted")
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	svc := NewAuthService("test-secret-key-that-is-long-enough")
	if _, err := svc.ValidateToken("not.a.jwt"); err == nil {
		t.Error("garbage token accepted")
	}
}

func TestGenerateRefreshTokenUnique(t *testing.T) {
	svc := NewAuthService("test-secret-key-that-is-long-enough")

	a, err := svc.GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	b, err := svc.GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	if a == b {
		t.Error("two refresh tokens are identical")
	}
	if len(a) < 40 {
		t.Errorf("refresh token too short: %d chars", len(a))
	}
}
