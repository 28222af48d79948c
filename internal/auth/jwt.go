package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	PurposeOTPVerification = "otp_verification"
	PurposeSession         = "session"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongPurpose = errors.New("token purpose not accepted here")
)

type Claims struct {
	UserID  string `json:"userId"`
	Mobile  string `json:"mobile"`
	Role    string `json:"role,omitempty"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret     []byte
	verifyTTL  time.Duration
	sessionTTL time.Duration
	now        func() time.Time
}

func NewManager(secret string, verifyTTL time.Duration, sessionTTL time.Duration) *Manager {
	return &Manager{
		secret:     []byte(secret),
		verifyTTL:  verifyTTL,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// GenerateVerificationToken mints the short-lived credential handed out after
// a successful OTP check. It only unlocks the PIN step.
func (m *Manager) GenerateVerificationToken(userID, mobile string) (string, error) {
	return m.sign(userID, mobile, "", PurposeOTPVerification, m.verifyTTL)
}

// GenerateSessionToken mints the long-lived credential accepted by protected routes.
func (m *Manager) GenerateSessionToken(userID, mobile, role string) (string, error) {
	return m.sign(userID, mobile, role, PurposeSession, m.sessionTTL)
}

func (m *Manager) sign(userID, mobile, role, purpose string, ttl time.Duration) (string, error) {
	now := m.now().UTC()

	claims := Claims{
		UserID:  userID,
		Mobile:  mobile,
		Role:    role,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   userID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) ParseAndValidate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *Manager) VerifySessionToken(tokenStr string) (*Claims, error) {
	return m.verifyPurpose(tokenStr, PurposeSession)
}

func (m *Manager) VerifyVerificationToken(tokenStr string) (*Claims, error) {
	return m.verifyPurpose(tokenStr, PurposeOTPVerification)
}

func (m *Manager) verifyPurpose(tokenStr, purpose string) (*Claims, error) {
	claims, err := m.ParseAndValidate(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}
