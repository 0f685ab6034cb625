package passwords

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndMatches(t *testing.T) {
	Cost = bcrypt.MinCost
	defer func() { Cost = bcrypt.DefaultCost }()

	h1, err := Hash("abc123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, _ := Hash("abc123")
	if h1 == h2 {
		t.Error("expected distinct salts for the same password")
	}
	if !Matches(h1, "abc123") {
		t.Error("expected correct password to match")
	}
	if Matches(h1, "abc124") {
		t.Error("expected wrong password not to match")
	}
	if Matches("", "abc123") {
		t.Error("empty hash must never match")
	}
	if Matches("not-a-hash", "abc123") {
		t.Error("malformed hash must never match")
	}
}

func TestHash_Length(t *testing.T) {
	Cost = bcrypt.MinCost
	defer func() { Cost = bcrypt.DefaultCost }()

	for _, p := range []string{"", "abc", strings.Repeat("x", 73)} {
		if _, err := Hash(p); err != ErrLength {
			t.Errorf("Hash(len=%d) err = %v, want ErrLength", len(p), err)
		}
	}
}
