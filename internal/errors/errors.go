package errors

import "errors"

// Common error types for the session client
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrUserNotFound       = errors.New("user not found")

	// Token errors
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrNoTokenStored  = errors.New("no token stored")
	ErrInvalidMFACode = errors.New("invalid mfa code")

	// Session errors
	ErrNoMFAPending = errors.New("no mfa challenge pending")

	// Storage errors
	ErrNotFound          = errors.New("not found")
	ErrStoreCorrupt      = errors.New("credential store corrupt")
	ErrInvalidPassphrase = errors.New("invalid store passphrase")

	// Device errors
	ErrBiometryUnavailable = errors.New("biometry unavailable")
)

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
