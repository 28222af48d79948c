package authn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/casehub/internal/domain/user"
	"github.com/geocoder89/casehub/internal/security"
	"github.com/google/uuid"
)

type LoginResult struct {
	Token string
	User  user.Projection
}

func pinKey(userID string) string {
	return "pin:" + userID
}

// PINLogin checks pin for the user named by a verification token and mints a
// session token. Repeated failures lock the user out for the lockout window.
func (s *Service) PINLogin(ctx context.Context, userID, pin string) (LoginResult, error) {
	if !security.IsDigits(pin, 4) {
		s.events.AuthEvent("pin_login", "invalid")
		return LoginResult{}, fmt.Errorf("%w: pin must be exactly 4 digits", ErrValidation)
	}

	if err := s.reservePINAttempt(ctx, userID); err != nil {
		s.events.AuthEvent("pin_login", "locked")
		return LoginResult{}, err
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.events.AuthEvent("pin_login", "rejected")
			return LoginResult{}, ErrInvalidCredential
		}
		return LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}
	if !u.IsActive {
		s.events.AuthEvent("pin_login", "inactive")
		return LoginResult{}, ErrInvalidCredential
	}

	if err := s.comparePIN(ctx, u, pin); err != nil {
		s.events.AuthEvent("pin_login", "rejected")
		return LoginResult{}, err
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		return LoginResult{}, fmt.Errorf("update last login: %w", err)
	}
	u.LastLogin = &now

	token, err := s.tokens.GenerateSessionToken(u.ID, u.Mobile, u.Role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign session token: %w", err)
	}

	s.events.AuthEvent("pin_login", "ok")
	return LoginResult{Token: token, User: u.Project()}, nil
}

// ChangePIN replaces the caller's PIN after checking the current one. Wrong
// current PINs count toward the same lockout as PIN login.
func (s *Service) ChangePIN(ctx context.Context, userID, currentPIN, newPIN string) error {
	if !security.IsDigits(currentPIN, 4) || !security.IsDigits(newPIN, 4) {
		return fmt.Errorf("%w: pin must be exactly 4 digits", ErrValidation)
	}
	if newPIN == security.PlaceholderPIN {
		return fmt.Errorf("%w: choose a pin other than the default", ErrValidation)
	}

	if err := s.reservePINAttempt(ctx, userID); err != nil {
		s.events.AuthEvent("change_pin", "locked")
		return err
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.comparePIN(ctx, u, currentPIN); err != nil {
		s.events.AuthEvent("change_pin", "rejected")
		return err
	}

	hash, err := s.hasher.Hash(newPIN)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}
	if err := s.users.UpdatePIN(ctx, u.ID, hash, s.now().UTC()); err != nil {
		return err
	}

	s.events.AuthEvent("change_pin", "ok")
	return nil
}

// RegisterUser creates a user with an explicit PIN and role. Used by the admin
// endpoint and the startup seed.
func (s *Service) RegisterUser(ctx context.Context, name, mobile, pin, role string) (user.User, error) {
	name = strings.TrimSpace(name)
	mobile = strings.TrimSpace(mobile)
	if role == "" {
		role = user.RoleAdvocate
	}
	if name == "" || !security.IsDigits(mobile, 10) || !security.IsDigits(pin, 4) || !user.ValidRole(role) {
		return user.User{}, ErrValidation
	}

	hash, err := s.hasher.Hash(pin)
	if err != nil {
		return user.User{}, fmt.Errorf("hash pin: %w", err)
	}

	now := s.now().UTC()
	u := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Mobile:    mobile,
		PINHash:   hash,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return user.User{}, err
	}
	return u, nil
}

// EnsureAdmin creates an admin for mobile unless some user already owns it.
func (s *Service) EnsureAdmin(ctx context.Context, name, mobile, pin string) (bool, error) {
	if mobile == "" || pin == "" {
		return false, nil
	}

	_, err := s.users.GetByMobile(ctx, mobile)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return false, err
	}

	_, err = s.RegisterUser(ctx, name, mobile, pin, user.RoleAdmin)
	if errors.Is(err, user.ErrMobileAlreadyUsed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// reservePINAttempt counts the attempt before any hash comparison so that
// concurrent requests cannot all pass the check while the count is still low.
// A correct PIN clears the counter afterwards.
func (s *Service) reservePINAttempt(ctx context.Context, userID string) error {
	res, err := s.limiter.Hit(ctx, pinKey(userID), s.opts.PINMaxFailures, s.opts.PINLockout)
	if err != nil {
		// fail open: the limiter backs up bcrypt, it does not replace it
		s.log.WarnContext(ctx, "pin_lockout_hit_failed", "err", err)
		return nil
	}
	if res.Allowed {
		return nil
	}
	if res.Count == s.opts.PINMaxFailures+1 {
		s.log.WarnContext(ctx, "pin_locked", "locked_user", userID, "window", s.opts.PINLockout.String())
	}
	return &LockoutError{RetryAfter: res.RetryAfter}
}

func (s *Service) comparePIN(ctx context.Context, u user.User, pin string) error {
	err := s.hasher.Compare(u.PINHash, pin)
	if errors.Is(err, security.ErrPINMismatch) {
		return ErrInvalidCredential
	}
	if err != nil {
		return fmt.Errorf("compare pin: %w", err)
	}

	if rerr := s.limiter.Reset(ctx, pinKey(u.ID)); rerr != nil {
		s.log.WarnContext(ctx, "pin_lockout_reset_failed", "err", rerr)
	}
	return nil
}
