package notifications

import (
	"context"
	"time"
)

type OTPMessage struct {
	Mobile    string
	Code      string
	ExpiresIn time.Duration
}

// Sender delivers one-time codes to a phone. The only implementation today is
// a log-backed mock; a real SMS gateway plugs in behind the same interface.
type Sender interface {
	SendOTP(ctx context.Context, msg OTPMessage) error
}
