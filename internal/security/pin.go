package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// PlaceholderPIN is assigned to accounts provisioned on first OTP login.
// Holders are expected to change it before the account counts as secured.
const PlaceholderPIN = "0000"

var ErrPINMismatch = errors.New("pin mismatch")

// Hasher hashes PINs with bcrypt at a fixed cost. A 4-digit PIN has only
// 10,000 values, so cost alone cannot protect it; attempts are throttled too.
type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.DefaultCost {
		cost = bcrypt.DefaultCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Hash(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), h.cost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// Compare checks a plaintext PIN against a stored bcrypt hash.
func (h *Hasher) Compare(hash, pin string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPINMismatch
	}
	return err
}

// IsDigits reports whether s is exactly n ASCII digits.
func IsDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
