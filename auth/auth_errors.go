package auth

import (
	"fmt"

	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
)

var (
	InvalidEmailErr         = fmt.Errorf("%w: email address is not valid", apperrors.ErrInvalidInput)
	InvalidPasswordErr      = fmt.Errorf("%w: password is required", apperrors.ErrInvalidInput)
	InvalidNameErr          = fmt.Errorf("%w: name is required", apperrors.ErrInvalidInput)
	InvalidMFACodeErr       = fmt.Errorf("%w: code must be 6 digits", apperrors.ErrInvalidMFACode)
	InvalidMFAIdentifierErr = fmt.Errorf("%w: mfa identifier must carry a temp token or user id", apperrors.ErrInvalidInput)
	InvalidPinErr           = fmt.Errorf("%w: pin must be at least %d digits", apperrors.ErrInvalidInput, minPinLength)
)
