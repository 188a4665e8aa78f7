package token

import "time"

// DefaultClockSkew is how long past its exp a token is still accepted.
const DefaultClockSkew = 30 * time.Second

// Expired reports whether now is more than skew past exp. Sub saturates, so
// an exp far in the future never wraps round into the past.
func Expired(exp, now time.Time, skew time.Duration) bool {
	return now.Sub(exp) > skew
}

// Usable decodes rawToken and reports whether it can still restore a
// session. A decode failure returns false with the error.
func Usable(rawToken string, now time.Time, skew time.Duration) (bool, error) {
	exp, err := Expiry(rawToken)
	if err != nil {
		return false, err
	}
	return !Expired(exp, now, skew), nil
}
