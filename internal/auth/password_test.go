package auth

import (
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	// Minimum cost keeps the test fast
	p := NewPasswordManager(4, 8)

	hash, err := p.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash must not equal the plaintext")
	}

	if !p.Verify("correct horse", hash) {
		t.Error("correct credential should verify")
	}
	if p.Verify("wrong horse", hash) {
		t.Error("wrong credential should not verify")
	}
}

func TestHashShortPin(t *testing.T) {
	p := NewPasswordManager(4, 8)

	// Device pins are short and skip strength validation
	hash, err := p.Hash("1234")
	if err != nil {
		t.Fatalf("Hash failed for short pin: %v", err)
	}
	if !p.Verify("1234", hash) {
		t.Error("pin should verify against its own hash")
	}
}

func TestHashRejectsOverlongInput(t *testing.T) {
	p := NewPasswordManager(4, 8)

	if _, err := p.Hash(strings.Repeat("a", MaxPasswordLength+1)); err == nil {
		t.Error("expected error for credential over the length cap")
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	p := NewPasswordManager(4, 8)

	tests := []struct {
		password string
		wantErr  bool
	}{
		{"Str0ng-pass", false},
		{"lettersONLY123", false},
		{"short1A", true},
		{"alllowercase", true},
		{"12345678", true},
	}

	for _, tt := range tests {
		err := p.ValidatePasswordStrength(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePasswordStrength(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}
