package utils

import (
	"testing"
	"time"
)

func TestGenerateAndExtractToken(t *testing.T) {
	token, err := GenerateToken("user-42", "user@plancosmique.fr", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	userID, err := ExtractIDFromToken(token)
	if err != nil {
		t.Fatalf("ExtractIDFromToken: %v", err)
	}
	if userID != "user-42" {
		t.Errorf("expected subject user-42, got %q", userID)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := GenerateToken("user-42", "user@plancosmique.fr", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ExtractIDFromToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestHashTokenIsStable(t *testing.T) {
	a := HashToken("tok")
	b := HashToken("tok")
	if a != b {
		t.Errorf("hash not stable: %q vs %q", a, b)
	}
	if a == HashToken("tok2") {
		t.Error("distinct tokens hashed identically")
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	if _, err := ExtractIDFromToken("not-a-jwt"); err == nil {
		t.Fatal("expected parse failure")
	}
}
