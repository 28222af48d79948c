package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/casehub/internal/actorctx"
	"github.com/geocoder89/casehub/internal/auth"
	"github.com/geocoder89/casehub/internal/cache"
	"github.com/geocoder89/casehub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifySessionToken(token string) (*auth.Claims, error)
	VerifyVerificationToken(token string) (*auth.Claims, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type AuthMiddleware struct {
	jwt    TokenVerifier
	users  UserLookup
	active *cache.Cache[bool]
}

// NewAuthMiddleware verifies bearer tokens. When users is set, session
// requests from deactivated or deleted accounts are also rejected; the answer
// is cached for activeTTL.
func NewAuthMiddleware(jwt TokenVerifier, users UserLookup, activeTTL time.Duration) *AuthMiddleware {
	return &AuthMiddleware{
		jwt:    jwt,
		users:  users,
		active: cache.New[bool](activeTTL),
	}
}

// Forget drops the cached active flag for a user, e.g. after a status change.
func (m *AuthMiddleware) Forget(userID string) {
	m.active.Delete(userID)
}

// RequireSession accepts only session tokens minted by PIN login.
func (m *AuthMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
			return
		}

		claims, err := m.jwt.VerifySessionToken(raw)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
			return
		}

		active, err := m.isActive(c.Request.Context(), claims.UserID)
		if err != nil {
			slog.Default().ErrorContext(c.Request.Context(), "auth_user_lookup_failed", "err", err)
			abort(c, http.StatusInternalServerError, "internal_error", "Could not verify session")
			return
		}
		if !active {
			abort(c, http.StatusUnauthorized, "unauthorized", "Account is not active")
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// RequireVerification accepts only the short-lived token issued after OTP
// verification. It guards the PIN step.
func (m *AuthMiddleware) RequireVerification() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthorized", "Missing verification token")
			return
		}

		claims, err := m.jwt.VerifyVerificationToken(raw)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "Invalid or expired verification token")
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

func (m *AuthMiddleware) isActive(ctx context.Context, userID string) (bool, error) {
	if m.users == nil {
		return true, nil
	}
	if v, ok := m.active.Get(userID); ok {
		return v, nil
	}

	u, err := m.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			m.active.Set(userID, false)
			return false, nil
		}
		return false, err
	}

	m.active.Set(userID, u.IsActive)
	return u.IsActive, nil
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}

	raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	return raw, raw != ""
}

// Stash useful bits of identity on the context
func setIdentity(c *gin.Context, claims *auth.Claims) {
	c.Set(ctxUserIDKey, claims.UserID)
	c.Set(ctxMobileKey, claims.Mobile)
	c.Set(ctxRoleKey, claims.Role)

	c.Request = c.Request.WithContext(actorctx.With(c.Request.Context(), actorctx.Actor{
		UserID: claims.UserID,
		Mobile: claims.Mobile,
		Role:   claims.Role,
	}))
}

// Optional helpers so handlers don’t need to know the magic keys.

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func RoleFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxRoleKey)
	if !ok {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}
