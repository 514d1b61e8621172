package auth

import (
	"os"
	"testing"
	"time"
)

func TestNewServiceFromEnv(t *testing.T) {
	os.Unsetenv("JWT_SECRET")
	if _, err := NewServiceFromEnv(); err == nil {
		t.Error("Expected error when JWT_SECRET is not set")
	}

	os.Setenv("JWT_SECRET", "test-secret")
	defer os.Unsetenv("JWT_SECRET")

	service, err := NewServiceFromEnv()
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	if string(service.secret) != "test-secret" {
		t.Errorf("Expected secret from env, got %q", service.secret)
	}
}

func TestGenerateAndValidateUserToken(t *testing.T) {
	service := NewService("test-secret", time.Hour)

	token, err := service.GenerateUserToken(42)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	claims, err := service.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.UserID != "42" {
		t.Errorf("Expected user id 42, got %q", claims.UserID)
	}
	if claims.Role != "user" {
		t.Errorf("Expected role user, got %q", claims.Role)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := NewService("secret-a", time.Hour).GenerateUserToken(1)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := NewService("secret-b", time.Hour).ValidateToken(token); err == nil {
		t.Error("Expected validation to fail with the wrong secret")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	service := NewService("test-secret", -time.Minute)
	token, err := service.GenerateUserToken(1)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := service.ValidateToken(token); err == nil {
		t.Error("Expected validation to fail for an expired token")
	}
}

func TestTokenAuthenticator(t *testing.T) {
	service := NewService("test-secret", time.Hour)
	authenticator := NewTokenAuthenticator(service)

	if authenticator.IsAuthenticated() {
		t.Error("Fresh authenticator should not be authenticated")
	}
	if authenticator.UserID() != nil {
		t.Error("Fresh authenticator should have no user id")
	}

	token, err := service.GenerateUserToken(7)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if err := authenticator.SetToken(token); err != nil {
		t.Fatalf("SetToken failed: %v", err)
	}

	if !authenticator.IsAuthenticated() {
		t.Error("Expected authenticated after SetToken")
	}
	if authenticator.Token() != token {
		t.Error("Token should round-trip")
	}
	if id := authenticator.UserID(); id == nil || *id != 7 {
		t.Errorf("Expected user id 7, got %v", id)
	}

	authenticator.Clear()
	if authenticator.IsAuthenticated() {
		t.Error("Expected unauthenticated after Clear")
	}
}

func TestTokenAuthenticatorRejectsInvalidToken(t *testing.T) {
	service := NewService("test-secret", time.Hour)
	authenticator := NewTokenAuthenticator(service)

	token, err := service.GenerateUserToken(7)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if err := authenticator.SetToken(token); err != nil {
		t.Fatalf("SetToken failed: %v", err)
	}

	if err := authenticator.SetToken("not-a-token"); err == nil {
		t.Error("Expected error for a malformed token")
	}
	// A failed SetToken clears the previous credential
	if authenticator.IsAuthenticated() {
		t.Error("Expected credential cleared after invalid token")
	}
}
