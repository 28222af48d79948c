package authn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/casehub/internal/domain/otp"
	"github.com/geocoder89/casehub/internal/domain/user"
	"github.com/geocoder89/casehub/internal/notifications"
	"github.com/geocoder89/casehub/internal/security"
	"github.com/google/uuid"
)

type IssueResult struct {
	ExpiresAt time.Time
	// Code is only set when the service reveals codes (non-production).
	Code string
}

type VerifyResult struct {
	TempToken   string
	User        user.Projection
	Provisioned bool
}

// IssueOTP stores a fresh code for mobile, replacing any earlier one, and
// hands it to the sender. A failed delivery is logged; the code stays valid.
func (s *Service) IssueOTP(ctx context.Context, mobile string) (IssueResult, error) {
	mobile = strings.TrimSpace(mobile)
	if !security.IsDigits(mobile, 10) {
		s.events.AuthEvent("send_otp", "invalid")
		return IssueResult{}, fmt.Errorf("%w: mobile must be exactly 10 digits", ErrValidation)
	}

	code, err := s.newCode()
	if err != nil {
		return IssueResult{}, fmt.Errorf("generate otp: %w", err)
	}

	now := s.now().UTC()
	rec := otp.Record{
		Mobile:    mobile,
		Code:      code,
		ExpiresAt: now.Add(s.opts.OTPTTL),
		CreatedAt: now,
	}
	if err := s.otps.Upsert(ctx, rec); err != nil {
		return IssueResult{}, fmt.Errorf("store otp: %w", err)
	}

	if s.sender != nil {
		msg := notifications.OTPMessage{Mobile: mobile, Code: code, ExpiresIn: s.opts.OTPTTL}
		if err := s.sender.SendOTP(ctx, msg); err != nil {
			s.log.WarnContext(ctx, "otp_delivery_failed", "err", err)
		}
	}

	s.events.AuthEvent("send_otp", "ok")

	res := IssueResult{ExpiresAt: rec.ExpiresAt}
	if s.opts.RevealOTP {
		res.Code = code
	}
	return res, nil
}

// VerifyOTP consumes the code for mobile and returns a verification token.
// An unknown mobile is provisioned as a new advocate with the placeholder PIN.
func (s *Service) VerifyOTP(ctx context.Context, mobile, code string) (VerifyResult, error) {
	mobile = strings.TrimSpace(mobile)
	code = strings.TrimSpace(code)
	if mobile == "" || code == "" {
		s.events.AuthEvent("verify_otp", "invalid")
		return VerifyResult{}, fmt.Errorf("%w: mobile and otp are required", ErrMissingInput)
	}

	rec, err := s.otps.Consume(ctx, mobile, code)
	if err != nil {
		if errors.Is(err, otp.ErrNotFound) {
			if ferr := s.otps.RecordFailure(ctx, mobile, s.opts.OTPMaxAttempts); ferr != nil {
				s.log.WarnContext(ctx, "otp_record_failure_failed", "err", ferr)
			}
			s.events.AuthEvent("verify_otp", "rejected")
			return VerifyResult{}, ErrInvalidCredential
		}
		return VerifyResult{}, fmt.Errorf("consume otp: %w", err)
	}

	if rec.Expired(s.now()) {
		s.events.AuthEvent("verify_otp", "expired")
		return VerifyResult{}, ErrExpired
	}

	u, provisioned, err := s.findOrProvision(ctx, mobile)
	if err != nil {
		return VerifyResult{}, err
	}
	if !u.IsActive {
		s.events.AuthEvent("verify_otp", "inactive")
		return VerifyResult{}, ErrInvalidCredential
	}

	token, err := s.tokens.GenerateVerificationToken(u.ID, u.Mobile)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("sign verification token: %w", err)
	}

	s.events.AuthEvent("verify_otp", "ok")
	return VerifyResult{TempToken: token, User: u.Project(), Provisioned: provisioned}, nil
}

func (s *Service) findOrProvision(ctx context.Context, mobile string) (user.User, bool, error) {
	u, err := s.users.GetByMobile(ctx, mobile)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return user.User{}, false, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(security.PlaceholderPIN)
	if err != nil {
		return user.User{}, false, fmt.Errorf("hash placeholder pin: %w", err)
	}

	now := s.now().UTC()
	u = user.User{
		ID:        uuid.NewString(),
		Name:      "User_" + mobile,
		Mobile:    mobile,
		PINHash:   hash,
		Role:      user.RoleAdvocate,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.users.Create(ctx, u)
	switch {
	case err == nil:
		s.log.InfoContext(ctx, "user_provisioned", "user_id", u.ID)
		return u, true, nil
	case errors.Is(err, user.ErrMobileAlreadyUsed):
		// lost a race with a concurrent first login for the same mobile
		existing, gerr := s.users.GetByMobile(ctx, mobile)
		if gerr != nil {
			return user.User{}, false, fmt.Errorf("lookup user: %w", gerr)
		}
		return existing, false, nil
	default:
		return user.User{}, false, fmt.Errorf("create user: %w", err)
	}
}
