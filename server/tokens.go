package server

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
)

// SessionClaims are the claims carried by issued session tokens.
type SessionClaims struct {
	Email string         `json:"email,omitempty"`
	Name  string         `json:"name,omitempty"`
	Role  users.RoleType `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (s *Server) issueToken(user users.User) (string, error) {
	now := s.nowTime()
	claims := SessionClaims{
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return s.keys.Sign(claims)
}

// parseToken verifies a bearer token issued by this server and rejects
// revoked ones.
func (s *Server) parseToken(raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return s.keys.PublicKey, nil },
		jwt.WithValidMethods([]string{s.keys.Algorithm}),
		jwt.WithTimeFunc(s.nowTime),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.Wrap(apperrors.ErrInvalidToken, err.Error())
	}
	if s.accounts.isRevoked(claims.ID, s.nowTime()) {
		return nil, errors.Wrap(apperrors.ErrInvalidToken, "token has been revoked")
	}
	return claims, nil
}
