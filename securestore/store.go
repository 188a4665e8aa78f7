package securestore

import (
	"context"

	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
)

// Keys held in the store.
const (
	KeyUser            = "user"
	KeyToken           = "token"
	KeyBiometryEnabled = "biometryEnabled"
	KeyPin             = "biometryPin"
)

// ErrNotFound is returned by Get for a key that holds no value.
var ErrNotFound = apperrors.ErrNotFound

// Store is an encrypted-at-rest key/value store for small secrets.
type Store interface {
	// Get returns the value for key or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set creates or replaces the value for key
	Set(ctx context.Context, key, value string) error

	// Delete removes every listed key in one operation. Missing keys are
	// ignored.
	Delete(ctx context.Context, keys ...string) error
}
