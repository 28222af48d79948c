package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/casehub/internal/authn"
	"github.com/geocoder89/casehub/internal/domain/user"
	"github.com/geocoder89/casehub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type UserStore interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	UpdateName(ctx context.Context, id, name string) (user.User, error)
	SetActive(ctx context.Context, id string, active bool) (user.User, error)
}

type CredentialService interface {
	ChangePIN(ctx context.Context, userID, currentPIN, newPIN string) error
	RegisterUser(ctx context.Context, name, mobile, pin, role string) (user.User, error)
}

type UsersHandler struct {
	users UserStore
	creds CredentialService
	log   *slog.Logger
	// onStatusChange lets the session middleware drop cached state.
	onStatusChange func(userID string)
}

func NewUsersHandler(users UserStore, creds CredentialService, log *slog.Logger, onStatusChange func(string)) *UsersHandler {
	if onStatusChange == nil {
		onStatusChange = func(string) {}
	}
	return &UsersHandler{users: users, creds: creds, log: log, onStatusChange: onStatusChange}
}

func (h *UsersHandler) GetProfile(ctx *gin.Context) {
	userID, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "get_profile_failed", "err", err)
		RespondInternal(ctx, "Could not load profile")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}

func (h *UsersHandler) UpdateProfile(ctx *gin.Context) {
	userID, _ := middlewares.UserIDFromContext(ctx)

	var req user.UpdateProfileRequest
	if !BindJSON(ctx, &req) {
		return
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		RespondValidation(ctx, "Nothing to update")
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	u, err := h.users.UpdateName(cctx, userID, strings.TrimSpace(*req.Name))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "update_profile_failed", "err", err)
		RespondInternal(ctx, "Could not update profile")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Profile updated successfully", "user": u})
}

func (h *UsersHandler) ChangePIN(ctx *gin.Context) {
	userID, _ := middlewares.UserIDFromContext(ctx)

	var req user.ChangePINRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	err := h.creds.ChangePIN(cctx, userID, req.CurrentPIN, req.NewPIN)
	if err != nil {
		var lockout *authn.LockoutError
		switch {
		case errors.As(err, &lockout):
			RespondTooManyAttempts(ctx, "Too many failed PIN attempts. Please try again later.")
		case errors.Is(err, authn.ErrValidation):
			RespondValidation(ctx, "New PIN must be 4 digits and differ from the default PIN")
		case errors.Is(err, authn.ErrInvalidCredential):
			RespondInvalidCredential(ctx, "Current PIN is incorrect")
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, "User not found")
		default:
			h.log.ErrorContext(ctx.Request.Context(), "change_pin_failed", "err", err)
			RespondInternal(ctx, "Could not change PIN")
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "PIN changed successfully"})
}

func (h *UsersHandler) CreateUser(ctx *gin.Context) {
	var req user.CreateUserRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	u, err := h.creds.RegisterUser(cctx, req.Name, req.Mobile, req.PIN, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrMobileAlreadyUsed):
			RespondConflict(ctx, "mobile_taken", "Mobile number is already registered")
		case errors.Is(err, authn.ErrValidation):
			RespondValidation(ctx, "Invalid user details")
		default:
			h.log.ErrorContext(ctx.Request.Context(), "create_user_failed", "err", err)
			RespondInternal(ctx, "Could not create user")
		}
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"success": true, "message": "User created successfully", "user": u})
}

func (h *UsersHandler) UpdateStatus(ctx *gin.Context) {
	id := ctx.Param("id")

	var req user.UpdateStatusRequest
	if !BindJSON(ctx, &req) {
		return
	}

	if caller, _ := middlewares.UserIDFromContext(ctx); caller == id && !*req.IsActive {
		RespondValidation(ctx, "You cannot deactivate your own account")
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	u, err := h.users.SetActive(cctx, id, *req.IsActive)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "update_status_failed", "err", err)
		RespondInternal(ctx, "Could not update user status")
		return
	}
	h.onStatusChange(id)

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "User status updated", "user": u})
}
