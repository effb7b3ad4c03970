package security

import (
	"testing"
	"time"
)

func TestSignAndParseAdminToken(t *testing.T) {
	token, errSign := SignAdminToken("test-secret", 7, "admin", time.Hour)
	if errSign != nil {
		t.Fatalf("sign token: %v", errSign)
	}

	claims, errParse := ParseAdminToken("test-secret", token)
	if errParse != nil {
		t.Fatalf("parse token: %v", errParse)
	}
	if claims.AdminID != 7 || claims.Username != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseAdminTokenWrongSecret(t *testing.T) {
	token, errSign := SignAdminToken("secret-a", 1, "admin", time.Hour)
	if errSign != nil {
		t.Fatalf("sign token: %v", errSign)
	}
	if _, errParse := ParseAdminToken("secret-b", token); errParse == nil {
		t.Fatal("expected parse error for wrong secret")
	}
}

func TestParseAdminTokenExpired(t *testing.T) {
	token, errSign := SignAdminToken("test-secret", 1, "admin", -time.Minute)
	if errSign != nil {
		t.Fatalf("sign token: %v", errSign)
	}
	if _, errParse := ParseAdminToken("test-secret", token); errParse == nil {
		t.Fatal("expected parse error for expired token")
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, errHash := HashPassword("hunter2")
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	if !VerifyPassword(hash, "hunter2") {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword(hash, "wrong") {
		t.Fatal("expected wrong password to fail")
	}
}
