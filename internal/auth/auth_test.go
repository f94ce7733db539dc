package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueAndVerify(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, "wiki-server", "wiki-server", time.Hour)

	token, expires, err := issuer.Issue("user-1", "admin", []string{"Admin"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}
	if time.Until(expires) <= 0 {
		t.Errorf("expected expiry in the future, got %s", expires)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.UserID != "user-1" || claims.Name != "admin" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "Admin" {
		t.Errorf("unexpected roles %v", claims.Roles)
	}
}

func TestVerifyRejects(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, "wiki-server", "wiki-server", time.Hour)
	token, _, err := issuer.Issue("user-1", "admin", nil)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	expired := NewTokenIssuer(testSecret, "wiki-server", "wiki-server", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, _, err := expired.Issue("user-1", "admin", nil)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	tests := []struct {
		name     string
		verifier *TokenIssuer
		token    string
	}{
		{"wrong secret", NewTokenIssuer(strings.Repeat("x", 32), "wiki-server", "wiki-server", time.Hour), token},
		{"wrong issuer", NewTokenIssuer(testSecret, "someone-else", "wiki-server", time.Hour), token},
		{"wrong audience", NewTokenIssuer(testSecret, "wiki-server", "other-api", time.Hour), token},
		{"expired", issuer, expiredToken},
		{"garbage", issuer, "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.verifier.Verify(tt.token); err == nil {
				t.Error("expected verification to fail")
			}
		})
	}
}

func TestReadClaims(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, "wiki-server", "wiki-server", 30*time.Minute)
	token, expires, err := issuer.Issue("user-2", "testuser", []string{"User"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := ReadClaims(token)
	if err != nil {
		t.Fatalf("ReadClaims failed: %v", err)
	}
	if claims.UserID != "user-2" {
		t.Errorf("expected subject user-2, got %s", claims.UserID)
	}
	if !claims.ExpiresAt.Equal(expires) {
		t.Errorf("expected expiry %s, got %s", expires, claims.ExpiresAt)
	}

	if _, err := ReadClaims("a.b"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("testpass", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if err := CheckPassword(hash, "testpass"); err != nil {
		t.Errorf("expected match, got %v", err)
	}
	if err := CheckPassword(hash, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("expected ErrPasswordMismatch, got %v", err)
	}

	if _, err := HashPassword("abc", bcrypt.MinCost); err == nil {
		t.Error("expected short password to be rejected")
	}
	if _, err := HashPassword(strings.Repeat("p", MaxPasswordLength+1), bcrypt.MinCost); err == nil {
		t.Error("expected long password to be rejected")
	}
}
