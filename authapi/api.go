package authapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
)

// Service is the remote auth service. Implementations own persisting the
// issued session token; callers only see the profile.
type Service interface {
	Login(ctx context.Context, credentials Credentials) (*LoginResponse, error)
	VerifyMFA(ctx context.Context, request MFAVerifyRequest) (*MFAVerifyResponse, error)
	Register(ctx context.Context, request RegisterRequest) (*RegisterResponse, error)
	// Logout revokes the stored token remotely. Callers treat failures as
	// best-effort and continue local cleanup.
	Logout(ctx context.Context) error
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries either a token and user, or an MFA challenge.
type LoginResponse struct {
	Token       string           `json:"token,omitempty"`
	User        *users.User      `json:"user,omitempty"`
	MFARequired bool             `json:"mfaRequired,omitempty"`
	TempToken   string           `json:"tempToken,omitempty"`
	UserID      json.Number      `json:"userId,omitempty"`
	UserInfo    *users.User      `json:"userInfo,omitempty"`
	FirstLogin  bool             `json:"firstLogin,omitempty"`
	MFAType     users.MFAuthType `json:"mfaType,omitempty"`
}

// MFAVerifyRequest sends exactly one of TempToken or UserID.
type MFAVerifyRequest struct {
	Code      string `json:"code"`
	TempToken string `json:"tempToken,omitempty"`
	UserID    *int64 `json:"userId,omitempty"`
}

type MFAVerifyResponse struct {
	Token string      `json:"token,omitempty"`
	User  *users.User `json:"user,omitempty"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type RegisterResponse struct {
	Token string `json:"token,omitempty"`
}

// APIError is a non-2xx reply from a remote service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote service returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("remote service returned %d: %s", e.Status, e.Message)
}

// Unwrap maps well-known statuses onto the shared sentinel errors.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.ErrInvalidCredentials
	case http.StatusConflict:
		return apperrors.ErrConflict
	case http.StatusNotFound:
		return apperrors.ErrUserNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperrors.ErrInvalidInput
	}
	return nil
}

// Transient reports whether the request may succeed if retried.
func (e *APIError) Transient() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}
