package authn

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/geocoder89/casehub/internal/domain/otp"
	"github.com/geocoder89/casehub/internal/domain/user"
	"github.com/geocoder89/casehub/internal/notifications"
	"github.com/geocoder89/casehub/internal/throttle"
)

type UserStore interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByMobile(ctx context.Context, mobile string) (user.User, error)
	Create(ctx context.Context, u user.User) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePIN(ctx context.Context, id, pinHash string, at time.Time) error
}

// OTPStore holds at most one record per mobile number.
type OTPStore interface {
	// Upsert replaces whatever record the mobile had.
	Upsert(ctx context.Context, rec otp.Record) error
	// Consume atomically deletes and returns the record only if its code
	// matches; otherwise it returns otp.ErrNotFound and leaves the store alone.
	Consume(ctx context.Context, mobile, code string) (otp.Record, error)
	// RecordFailure bumps the attempt counter and drops the record once it
	// reaches maxAttempts.
	RecordFailure(ctx context.Context, mobile string, maxAttempts int) error
}

type TokenIssuer interface {
	GenerateVerificationToken(userID, mobile string) (string, error)
	GenerateSessionToken(userID, mobile, role string) (string, error)
}

type PINHasher interface {
	Hash(pin string) (string, error)
	Compare(hash, pin string) error
}

// Events receives one call per auth step outcome, for metrics.
type Events interface {
	AuthEvent(step, outcome string)
}

type Options struct {
	OTPTTL         time.Duration
	OTPMaxAttempts int
	PINMaxFailures int
	PINLockout     time.Duration
	// RevealOTP returns the raw code to the caller. Non-production only.
	RevealOTP bool
}

type Deps struct {
	Users   UserStore
	OTPs    OTPStore
	Tokens  TokenIssuer
	Hasher  PINHasher
	Sender  notifications.Sender
	Limiter throttle.Limiter
	Events  Events
	Log     *slog.Logger
}

type Service struct {
	users   UserStore
	otps    OTPStore
	tokens  TokenIssuer
	hasher  PINHasher
	sender  notifications.Sender
	limiter throttle.Limiter
	events  Events
	log     *slog.Logger
	opts    Options

	now     func() time.Time
	newCode func() (string, error)
}

func NewService(d Deps, opts Options) *Service {
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = 10 * time.Minute
	}
	if opts.OTPMaxAttempts <= 0 {
		opts.OTPMaxAttempts = 5
	}
	if opts.PINMaxFailures <= 0 {
		opts.PINMaxFailures = 5
	}
	if opts.PINLockout <= 0 {
		opts.PINLockout = 15 * time.Minute
	}
	if d.Limiter == nil {
		d.Limiter = throttle.NewMemoryLimiter()
	}
	if d.Events == nil {
		d.Events = noopEvents{}
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}

	return &Service{
		users:   d.Users,
		otps:    d.OTPs,
		tokens:  d.Tokens,
		hasher:  d.Hasher,
		sender:  d.Sender,
		limiter: d.Limiter,
		events:  d.Events,
		log:     d.Log,
		opts:    opts,
		now:     time.Now,
		newCode: randomCode,
	}
}

type noopEvents struct{}

func (noopEvents) AuthEvent(string, string) {}

// randomCode returns a 6-digit code in [100000, 999999].
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
