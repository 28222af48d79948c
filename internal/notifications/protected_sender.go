package notifications

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type circuitState string

const (
	stateClosed   circuitState = "closed"
	stateOpen     circuitState = "open"
	stateHalfOpen circuitState = "half_open"
)

type ProtectedSenderConfig struct {
	Timeout          time.Duration // hard timeout per send
	FailureThreshold int           // consecutive failures to open circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls int           // allow N trial calls in half-open
}

// ProtectedSender wraps a Sender with a per-call timeout and a circuit breaker
// so a dead gateway fails fast instead of holding request goroutines.
type ProtectedSender struct {
	inner Sender
	cfg   ProtectedSenderConfig
	mu    sync.Mutex
	now   func() time.Time

	state               circuitState
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func NewProtectedSender(inner Sender, cfg ProtectedSenderConfig) *ProtectedSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &ProtectedSender{
		inner: inner,
		cfg:   cfg,
		now:   time.Now,
		state: stateClosed,
	}
}

func (s *ProtectedSender) SendOTP(ctx context.Context, msg OTPMessage) error {
	if !s.allowRequest() {
		return ErrCircuitOpen
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	err := s.inner.SendOTP(sendCtx, msg)

	s.afterRequest(err)

	return err
}

func (s *ProtectedSender) allowRequest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateOpen:
		if s.now().Sub(s.openedAt) >= s.cfg.Cooldown {
			s.state = stateHalfOpen
			s.halfOpenInFlight = 1
			return true
		}
		return false
	case stateHalfOpen:
		if s.halfOpenInFlight >= s.cfg.HalfOpenMaxCalls {
			return false
		}
		s.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (s *ProtectedSender) afterRequest(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateHalfOpen && s.halfOpenInFlight > 0 {
		s.halfOpenInFlight--
	}

	if err == nil {
		s.consecutiveFailures = 0
		s.state = stateClosed
		return
	}

	s.consecutiveFailures++

	// a failed trial call reopens immediately
	if s.state == stateHalfOpen || s.consecutiveFailures >= s.cfg.FailureThreshold {
		s.state = stateOpen
		s.openedAt = s.now()
	}
}
