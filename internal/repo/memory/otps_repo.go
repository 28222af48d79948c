package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/casehub/internal/domain/otp"
)

// OTPsRepo mirrors the Mongo collection: one record per mobile, and records
// vanish evictAfter past their expiry like a TTL index would drop them.
type OTPsRepo struct {
	mu         sync.Mutex
	items      map[string]otp.Record
	evictAfter time.Duration
	now        func() time.Time
}

func NewOTPsRepo() *OTPsRepo {
	return &OTPsRepo{
		items:      make(map[string]otp.Record),
		evictAfter: 10 * time.Minute,
		now:        time.Now,
	}
}

func (r *OTPsRepo) Upsert(_ context.Context, rec otp.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec.Attempts = 0
	r.items[rec.Mobile] = rec
	return nil
}

func (r *OTPsRepo) Consume(_ context.Context, mobile, code string) (otp.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.live(mobile)
	if !ok || rec.Code != code {
		return otp.Record{}, otp.ErrNotFound
	}
	delete(r.items, mobile)
	return rec, nil
}

func (r *OTPsRepo) RecordFailure(_ context.Context, mobile string, maxAttempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.live(mobile)
	if !ok {
		return nil
	}
	rec.Attempts++
	if rec.Attempts >= maxAttempts {
		delete(r.items, mobile)
		return nil
	}
	r.items[mobile] = rec
	return nil
}

// Get is used by tests to inspect the stored record.
func (r *OTPsRepo) Get(_ context.Context, mobile string) (otp.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.live(mobile)
	if !ok {
		return otp.Record{}, otp.ErrNotFound
	}
	return rec, nil
}

// SetClock replaces the eviction clock.
func (r *OTPsRepo) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// caller holds mu
func (r *OTPsRepo) live(mobile string) (otp.Record, bool) {
	rec, ok := r.items[mobile]
	if !ok {
		return otp.Record{}, false
	}
	if r.now().After(rec.ExpiresAt.Add(r.evictAfter)) {
		delete(r.items, mobile)
		return otp.Record{}, false
	}
	return rec, true
}
