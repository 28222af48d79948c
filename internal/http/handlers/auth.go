package handlers

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/geocoder89/casehub/internal/authn"
	"github.com/geocoder89/casehub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type AuthService interface {
	IssueOTP(ctx context.Context, mobile string) (authn.IssueResult, error)
	VerifyOTP(ctx context.Context, mobile, code string) (authn.VerifyResult, error)
	PINLogin(ctx context.Context, userID, pin string) (authn.LoginResult, error)
}

type AuthHandler struct {
	svc AuthService
	log *slog.Logger
}

func NewAuthHandler(svc AuthService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log}
}

// Field checks live in the service so every entry point reports the same
// errors, hence no binding tags here.
type SendOTPRequest struct {
	Mobile string `json:"mobile"`
}

type LoginRequest struct {
	Mobile string `json:"mobile"`
	OTP    string `json:"otp"`
}

type PINLoginRequest struct {
	PIN string `json:"pin"`
}

// requestContext bounds store work by d while keeping the request's trace.
func requestContext(ctx *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), d)
}

func (h *AuthHandler) SendOTP(ctx *gin.Context) {
	var req SendOTPRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	res, err := h.svc.IssueOTP(cctx, req.Mobile)
	if err != nil {
		if errors.Is(err, authn.ErrValidation) {
			RespondValidation(ctx, "Please provide a valid 10-digit mobile number")
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "send_otp_failed", "err", err)
		RespondInternal(ctx, "Could not send OTP")
		return
	}

	body := gin.H{
		"success": true,
		"message": "OTP sent successfully",
	}
	if res.Code != "" {
		body["otp"] = res.Code
	}
	ctx.JSON(http.StatusOK, body)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	res, err := h.svc.VerifyOTP(cctx, req.Mobile, req.OTP)
	if err != nil {
		switch {
		case errors.Is(err, authn.ErrMissingInput):
			RespondValidation(ctx, "Mobile number and OTP are required")
		case errors.Is(err, authn.ErrExpired):
			RespondError(ctx, http.StatusBadRequest, "otp_expired", "OTP has expired", nil)
		case errors.Is(err, authn.ErrInvalidCredential):
			RespondInvalidCredential(ctx, "Invalid OTP")
		default:
			h.log.ErrorContext(ctx.Request.Context(), "verify_otp_failed", "err", err)
			RespondInternal(ctx, "Could not verify OTP")
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "OTP verified successfully",
		"tempToken": res.TempToken,
		"user":      res.User,
	})
}

// PINLogin runs behind RequireVerification; the user comes from the
// verification token's subject.
func (h *AuthHandler) PINLogin(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Missing verification token")
		return
	}

	var req PINLoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	res, err := h.svc.PINLogin(cctx, userID, req.PIN)
	if err != nil {
		h.respondPINError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"token":   res.Token,
		"user":    res.User,
	})
}

func (h *AuthHandler) respondPINError(ctx *gin.Context, err error) {
	var lockout *authn.LockoutError
	switch {
	case errors.As(err, &lockout):
		ctx.Header("Retry-After", strconv.Itoa(int(math.Ceil(lockout.RetryAfter.Seconds()))))
		RespondTooManyAttempts(ctx, "Too many failed PIN attempts. Please try again later.")
	case errors.Is(err, authn.ErrValidation):
		RespondValidation(ctx, "PIN must be exactly 4 digits")
	case errors.Is(err, authn.ErrInvalidCredential):
		RespondInvalidCredential(ctx, "Invalid PIN")
	default:
		h.log.ErrorContext(ctx.Request.Context(), "pin_login_failed", "err", err)
		RespondInternal(ctx, "Could not log in")
	}
}
