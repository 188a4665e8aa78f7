package server

import (
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// InitialiseSystem seeds the configured demo account, if any.
func (s *Server) InitialiseSystem(c config.ServerConfig) error {
	if c.GetSeedEmail() == "" {
		return nil
	}

	user, err := s.AddAccount(Account{
		Email:    c.GetSeedEmail(),
		Password: c.GetSeedPassword(),
		Name:     c.GetSeedName(),
		Role:     users.RoleAdmin,
		MFACode:  c.GetSeedMFACode(),
	})
	if err != nil {
		return errors.Wrap(err, "[Server.InitialiseSystem] seed account")
	}

	log.Info().Str("email", user.Email).Bool("mfa", user.MFAEnabled).Msg("seeded account")
	return nil
}

// AddAccount creates an account directly, bypassing the register route.
func (s *Server) AddAccount(a Account) (*users.User, error) {
	return s.accounts.create(a)
}
