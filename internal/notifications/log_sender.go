package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrSimulatedOutage = errors.New("sms provider down (simulated)")

type LogSenderConfig struct {
	// Delay simulates a slow provider.
	Delay time.Duration
	// Fail simulates a provider outage.
	Fail bool
	// RevealCode logs the code itself; never enable in prod.
	RevealCode bool
}

type LogSender struct {
	log *slog.Logger
	cfg LogSenderConfig
}

func NewLogSender(log *slog.Logger, cfg LogSenderConfig) *LogSender {
	return &LogSender{log: log, cfg: cfg}
}

func (s *LogSender) SendOTP(ctx context.Context, msg OTPMessage) error {
	if s.cfg.Delay > 0 {
		select {
		case <-time.After(s.cfg.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if s.cfg.Fail {
		return ErrSimulatedOutage
	}

	attrs := []any{"mobile", maskMobile(msg.Mobile), "expires_in", msg.ExpiresIn.String()}
	if s.cfg.RevealCode {
		attrs = append(attrs, "dev_code", msg.Code)
	}
	s.log.InfoContext(ctx, "notification.sms_otp", attrs...)
	return nil
}

func maskMobile(m string) string {
	if len(m) <= 4 {
		return m
	}
	masked := make([]byte, len(m))
	for i := range masked {
		if i < len(m)-4 {
			masked[i] = '*'
		} else {
			masked[i] = m[i]
		}
	}
	return string(masked)
}
