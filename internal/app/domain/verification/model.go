package verification

import "time"

// Code is a short-lived verification code bound to a phone number.
// At most one live code exists per phone; issuing a new one replaces
// the previous record.
type Code struct {
	PhoneNumber string
	Code        string
	ExpiresAt   time.Time
	Used        bool
	CreatedAt   time.Time
}

// Expired reports whether the code is past its expiry at the given time.
func (c Code) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
