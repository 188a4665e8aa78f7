package auth_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-session/auth"
	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestValidator_ValidateCredentials(t *testing.T) {
	v := auth.NewValidator()

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, v.ValidateCredentials("a@b.com", "pw"))
	})

	t.Run("bad email", func(t *testing.T) {
		err := v.ValidateCredentials("a@", "pw")
		require.ErrorIs(t, err, auth.InvalidEmailErr)
		require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("missing password", func(t *testing.T) {
		require.ErrorIs(t, v.ValidateCredentials("a@b.com", ""), auth.InvalidPasswordErr)
	})
}

func TestValidator_ValidateRegistration(t *testing.T) {
	v := auth.NewValidator()

	require.NoError(t, v.ValidateRegistration("a@b.com", "pw", "Ada"))
	require.ErrorIs(t, v.ValidateRegistration("", "pw", "Ada"), auth.InvalidEmailErr)
	require.ErrorIs(t, v.ValidateRegistration("a@b.com", "pw", ""), auth.InvalidNameErr)
}

func TestValidator_ValidateMFACode(t *testing.T) {
	v := auth.NewValidator()

	require.NoError(t, v.ValidateMFACode("000123"))
	for _, code := range []string{"", "12345", "1234567", "12 456", "+12345", "12.456"} {
		require.ErrorIs(t, v.ValidateMFACode(code), auth.InvalidMFACodeErr, code)
	}
}

func TestValidator_ValidatePin(t *testing.T) {
	v := auth.NewValidator()

	require.NoError(t, v.ValidatePin("1234"))
	require.NoError(t, v.ValidatePin("12345678"))
	for _, pin := range []string{"", "123", "12a4", "-123", "1 34"} {
		require.ErrorIs(t, v.ValidatePin(pin), auth.InvalidPinErr, pin)
	}
}
