package security

import (
	"errors"
	"testing"
	"time"

	"github.com/igifu/campus-meals/internal/models"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "s3cret-pass") {
		t.Fatalf("expected password to match")
	}
	if CheckPassword(hash, "wrong-pass") {
		t.Fatalf("expected mismatch")
	}
	if _, errWeak := HashPassword("123"); !errors.Is(errWeak, ErrWeakPassword) {
		t.Fatalf("expected weak password error, got %v", errWeak)
	}
}

func TestIssueAndParseToken(t *testing.T) {
	now := time.Now().UTC()
	user := models.User{ID: 7, Role: models.RoleRestaurant}

	token, err := IssueToken("secret", user, time.Hour, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 7 || claims.Role != models.RoleRestaurant {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, errParse := ParseToken("other-secret", token); errParse == nil {
		t.Fatalf("expected signature mismatch")
	}
	expired, err := IssueToken("secret", user, time.Minute, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("issue expired: %v", err)
	}
	if _, errParse := ParseToken("secret", expired); errParse == nil {
		t.Fatalf("expected expired token to fail")
	}
	if _, errIssue := IssueToken("", user, time.Hour, now); !errors.Is(errIssue, ErrMissingSecret) {
		t.Fatalf("expected missing secret error, got %v", errIssue)
	}
}

func TestGenerateRandomString(t *testing.T) {
	first, err := GenerateRandomString(16)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(first) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(first))
	}
	second, err := GenerateRandomString(16)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct values")
	}
	if _, err := GenerateRandomString(0); err == nil {
		t.Fatalf("expected error for zero length")
	}
}
