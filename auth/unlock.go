package auth

import (
	"context"

	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/securestore"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
)

// EnableBiometry turns biometric unlock on or off. Turning it on needs
// hardware and a passed challenge; on any failure it returns false and the
// stored preference keeps its previous value. Turning it off always
// reports true.
func (m *SessionManager) EnableBiometry(ctx context.Context, enabled bool) bool {
	if !enabled {
		if err := m.collab.Store.Set(ctx, securestore.KeyBiometryEnabled, "false"); err != nil {
			m.logger.Warn().Err(err).Msg("persist biometry preference failed")
		}
		m.mu.Lock()
		m.biometryEnabled = false
		m.mu.Unlock()
		return true
	}

	if err := m.hardwareReady(ctx); err != nil {
		m.logger.Info().Err(err).Msg("cannot enable biometry")
		return false
	}
	if !m.challenge(ctx) {
		return false
	}
	if err := m.collab.Store.Set(ctx, securestore.KeyBiometryEnabled, "true"); err != nil {
		m.logger.Warn().Err(err).Msg("persist biometry preference failed")
		return false
	}

	m.mu.Lock()
	m.biometryEnabled = true
	m.biometryAvailable = true
	m.mu.Unlock()
	return true
}

// TryBiometricUnlock restores the stored session after a passed biometric
// challenge. A stored token past its expiry (plus clock skew) is purged
// together with the profile and the unlock fails.
func (m *SessionManager) TryBiometricUnlock(ctx context.Context) bool {
	if !m.readFlag(ctx, securestore.KeyBiometryEnabled) {
		return false
	}
	if !m.challenge(ctx) {
		return false
	}

	raw, err := m.unlockToken(ctx)
	switch {
	case errors.Is(err, apperrors.ErrTokenExpired):
		m.logger.Info().Err(err).Msg("clearing session")
		if err := m.clearCredentials(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("clear expired credentials failed")
		}
		return false
	case err != nil:
		m.logger.Info().Err(err).Msg("stored token unusable")
		return false
	}
	if m.verifier != nil {
		if err := m.verifier.Verify(ctx, raw); err != nil {
			m.logger.Warn().Err(err).Msg("stored token failed verification")
			return false
		}
	}

	user := m.readProfile(ctx)
	if user == nil {
		return false
	}
	m.restore(user)
	return true
}

func (m *SessionManager) hardwareReady(ctx context.Context) error {
	hardware, err := m.collab.Sensor.HasHardware(ctx)
	if err != nil {
		return errors.Wrapf(apperrors.ErrBiometryUnavailable, "[SessionManager.hardwareReady] %v", err)
	}
	if !hardware {
		return errors.Wrap(apperrors.ErrBiometryUnavailable, "[SessionManager.hardwareReady] no sensor")
	}
	return nil
}

// unlockToken returns the stored token when it is still inside its expiry
// window. An absent token is ErrNoTokenStored and a stale one is
// ErrTokenExpired.
func (m *SessionManager) unlockToken(ctx context.Context) (string, error) {
	raw, err := m.collab.Store.Get(ctx, securestore.KeyToken)
	if err != nil {
		return "", errors.Wrapf(apperrors.ErrNoTokenStored, "[SessionManager.unlockToken] %v", err)
	}
	usable, err := token.Usable(raw, m.nowTime(), m.skew)
	if err != nil {
		return "", errors.Wrap(err, "[SessionManager.unlockToken] stored token undecodable")
	}
	if !usable {
		return "", errors.Wrap(apperrors.ErrTokenExpired, "[SessionManager.unlockToken]")
	}
	return raw, nil
}

// SetPin stores a bcrypt hash of pin. It rejects anything shorter than four
// digits.
func (m *SessionManager) SetPin(ctx context.Context, pin string) bool {
	if err := m.validator.ValidatePin(pin); err != nil {
		return false
	}
	hash, err := hashPin(pin, m.pinCost)
	if err != nil {
		m.logger.Error().Err(err).Msg("hash pin failed")
		return false
	}
	if err := m.collab.Store.Set(ctx, securestore.KeyPin, hash); err != nil {
		m.logger.Warn().Err(err).Msg("persist pin failed")
		return false
	}

	m.mu.Lock()
	m.hasPin = true
	m.mu.Unlock()
	return true
}

// VerifyPin checks pin against the stored one and, on a match, restores
// the stored profile if there is one. A match reports true even when there
// was no profile to restore.
func (m *SessionManager) VerifyPin(ctx context.Context, pin string) bool {
	stored, err := m.collab.Store.Get(ctx, securestore.KeyPin)
	if err != nil || stored == "" {
		return false
	}

	match, legacy := comparePin(stored, pin)
	if !match {
		m.logger.Info().Msg("pin mismatch")
		return false
	}
	if legacy {
		m.rehashPin(ctx, pin)
	}

	if user := m.readProfile(ctx); user != nil {
		m.restore(user)
	}
	return true
}

// ClearPin removes the stored PIN.
func (m *SessionManager) ClearPin(ctx context.Context) bool {
	if err := m.collab.Store.Delete(ctx, securestore.KeyPin); err != nil {
		m.logger.Warn().Err(err).Msg("delete pin failed")
		return false
	}
	m.mu.Lock()
	m.hasPin = false
	m.mu.Unlock()
	return true
}

func (m *SessionManager) challenge(ctx context.Context) bool {
	result, err := m.collab.Sensor.Authenticate(ctx, m.prompt)
	if err != nil {
		m.logger.Warn().Err(err).Msg("biometric challenge errored")
		return false
	}
	if !result.Success {
		m.logger.Info().Str("reason", result.Error).Msg("biometric challenge failed")
		return false
	}
	return true
}

func (m *SessionManager) rehashPin(ctx context.Context, pin string) {
	hash, err := hashPin(pin, m.pinCost)
	if err != nil {
		m.logger.Warn().Err(err).Msg("rehash legacy pin failed")
		return
	}
	if err := m.collab.Store.Set(ctx, securestore.KeyPin, hash); err != nil {
		m.logger.Warn().Err(err).Msg("persist rehashed pin failed")
		return
	}
	m.logger.Info().Msg("legacy pin migrated to hash")
}

// restore publishes a profile that is already in the store.
func (m *SessionManager) restore(user *users.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = user
	m.pending = nil
	m.setStateLocked(sessions.Authenticated)
}
