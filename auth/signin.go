package auth

import (
	"context"
	"strings"

	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
)

// SignIn authenticates with email and password. The result carries either
// the signed-in user or, when the account has a second factor, the MFA
// challenge to answer with VerifyMFA. On error the session is unchanged.
func (m *SessionManager) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	email = strings.TrimSpace(email)
	if err := m.validator.ValidateCredentials(email, password); err != nil {
		return nil, errors.Wrap(err, "[SessionManager.SignIn]")
	}

	resp, err := m.collab.API.Login(ctx, authapi.Credentials{Email: email, Password: password})
	if err != nil {
		m.logger.Info().Err(err).Msg("sign in failed")
		return nil, errors.Wrap(err, "[SessionManager.SignIn]")
	}

	if resp.MFARequired {
		challenge, err := challengeFromLogin(resp)
		if err != nil {
			return nil, errors.Wrap(err, "[SessionManager.SignIn]")
		}
		m.mu.Lock()
		m.pending = challenge
		m.setStateLocked(sessions.MFAPending)
		m.mu.Unlock()

		m.logger.Info().Str("identifier", challenge.Identifier.String()).Msg("mfa challenge issued")
		c := *challenge
		return &SignInResult{Challenge: &c}, nil
	}

	if resp.User == nil {
		return nil, errors.New("[SessionManager.SignIn] login response carried no user")
	}
	if err := m.setUser(ctx, resp.User); err != nil {
		return nil, err
	}

	m.logger.Info().Str("userID", resp.User.ID).Msg("signed in")
	return &SignInResult{User: copyUser(resp.User)}, nil
}

// VerifyMFA exchanges a six digit code for the session. When the service
// returns no profile, emailHint is looked up in the user directory. With
// neither, it succeeds with a nil user and the session stays signed out.
// Service errors are returned with their cause intact and leave the
// session unchanged.
func (m *SessionManager) VerifyMFA(ctx context.Context, code string, id MFAIdentifier, emailHint string) (*users.User, error) {
	if err := m.validator.ValidateMFACode(code); err != nil {
		return nil, errors.Wrap(err, "[SessionManager.VerifyMFA]")
	}
	request, err := id.request(code)
	if err != nil {
		return nil, errors.Wrap(err, "[SessionManager.VerifyMFA]")
	}

	resp, err := m.collab.API.VerifyMFA(ctx, request)
	if err != nil {
		m.logger.Info().Err(err).Str("identifier", id.String()).Msg("mfa verification failed")
		return nil, errors.Wrap(err, "[SessionManager.VerifyMFA]")
	}

	user := resp.User
	if user == nil {
		user = m.lookupProfile(ctx, emailHint)
	}

	if user == nil {
		m.mu.Lock()
		m.dropPendingLocked()
		m.mu.Unlock()
		m.logger.Warn().Msg("mfa verified but no profile was returned")
		return nil, nil
	}

	if err := m.setUser(ctx, user); err != nil {
		return nil, err
	}
	m.logger.Info().Str("userID", user.ID).Msg("mfa verified")
	return copyUser(user), nil
}

// CancelMFA drops a pending challenge.
func (m *SessionManager) CancelMFA() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return
	}
	m.dropPendingLocked()
}

// dropPendingLocked clears the challenge and falls back to whatever session
// was live before it was issued.
func (m *SessionManager) dropPendingLocked() {
	m.pending = nil
	if m.user != nil {
		m.setStateLocked(sessions.Authenticated)
		return
	}
	m.setStateLocked(sessions.Unauthenticated)
}

// SignUp registers an account. It never signs the user in.
func (m *SessionManager) SignUp(ctx context.Context, email, password, name string) error {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if err := m.validator.ValidateRegistration(email, password, name); err != nil {
		return errors.Wrap(err, "[SessionManager.SignUp]")
	}

	if _, err := m.collab.API.Register(ctx, authapi.RegisterRequest{Email: email, Password: password, Name: name}); err != nil {
		m.logger.Info().Err(err).Msg("sign up failed")
		return errors.Wrap(err, "[SessionManager.SignUp]")
	}
	return nil
}

// SignOut revokes the token remotely (best effort), then removes the
// profile and token locally. The biometry preference and PIN survive.
// Calling it again is harmless.
func (m *SessionManager) SignOut(ctx context.Context) error {
	if err := m.collab.API.Logout(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("remote logout failed, clearing local session")
	}
	if err := m.clearCredentials(ctx); err != nil {
		return errors.Wrap(err, "[SessionManager.SignOut]")
	}
	m.logger.Info().Msg("signed out")
	return nil
}

func (m *SessionManager) lookupProfile(ctx context.Context, email string) *users.User {
	email = strings.TrimSpace(email)
	if email == "" || m.collab.Directory == nil {
		return nil
	}
	user, err := m.collab.Directory.GetByEmail(ctx, email)
	if err != nil {
		m.logger.Warn().Err(err).Msg("profile lookup failed")
		return nil
	}
	return user
}
