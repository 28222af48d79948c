package authn

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrMissingInput      = errors.New("missing input")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrExpired           = errors.New("credential expired")
	ErrTooManyAttempts   = errors.New("too many attempts")
)

// LockoutError is returned while a PIN lockout window is open.
type LockoutError struct {
	RetryAfter time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("too many attempts, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *LockoutError) Unwrap() error {
	return ErrTooManyAttempts
}
