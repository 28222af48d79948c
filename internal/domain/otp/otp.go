package otp

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("otp not found")

// Record is the single live code for a mobile number. Issuing a new code
// replaces it; consuming or expiring it deletes it.
type Record struct {
	Mobile    string    `bson:"mobile"`
	Code      string    `bson:"otp"`
	ExpiresAt time.Time `bson:"expiresAt"`
	Attempts  int       `bson:"attempts"`
	CreatedAt time.Time `bson:"createdAt"`
}

func (r Record) Expired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}
