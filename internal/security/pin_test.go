package security

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasherRoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("1234")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "1234" {
		t.Fatalf("hash must not equal the plaintext pin")
	}

	if err := h.Compare(hash, "1234"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := h.Compare(hash, "9999"); !errors.Is(err, ErrPINMismatch) {
		t.Fatalf("expected ErrPINMismatch, got %v", err)
	}
}

func TestNewHasherClampsCost(t *testing.T) {
	if got := NewHasher(1).cost; got != bcrypt.DefaultCost {
		t.Fatalf("expected cost raised to %d, got %d", bcrypt.DefaultCost, got)
	}
	if got := NewHasher(99).cost; got != bcrypt.MaxCost {
		t.Fatalf("expected cost capped at %d, got %d", bcrypt.MaxCost, got)
	}
}

func TestIsDigits(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want bool
	}{
		{"1234", 4, true},
		{"12", 4, false},
		{"12a4", 4, false},
		{"9876543210", 10, true},
		{"987654321", 10, false},
		{"-123", 4, false},
		{"", 0, true},
	}

	for _, tt := range tests {
		if got := IsDigits(tt.in, tt.n); got != tt.want {
			t.Fatalf("IsDigits(%q, %d) = %v, want %v", tt.in, tt.n, got, tt.want)
		}
	}
}
