package auth

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/biometric"
	"github.com/jrsteele09/go-auth-session/securestore"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

// Collaborators holds the external dependencies of the SessionManager.
type Collaborators struct {
	API       authapi.Service   // Remote auth service; persists issued tokens
	Store     securestore.Store // Secure credential store
	Sensor    biometric.Sensor  // Device biometric hardware
	Directory users.Directory   // Optional profile lookup used after MFA
}

// DefaultBiometricPrompt is shown when WithBiometricPrompt is not supplied.
var DefaultBiometricPrompt = biometric.Prompt{
	Message:       "Authenticate to continue",
	CancelLabel:   "Cancel",
	FallbackLabel: "Use PIN",
}

// SessionManager owns the in-memory session and keeps it in step with the
// credential store. It is safe for concurrent use, but operations are not
// serialized against each other: a sign-out racing a sign-in leaves
// whichever finished last.
type SessionManager struct {
	collab    Collaborators
	validator *Validator
	verifier  token.Verifier
	prompt    biometric.Prompt
	skew      time.Duration
	pinCost   int
	nowTime   func() time.Time
	logger    zerolog.Logger

	mu                sync.RWMutex
	user              *users.User
	loading           bool
	state             sessions.State
	pending           *MFAChallenge
	biometryAvailable bool
	biometryTypes     []biometric.Modality
	biometryEnabled   bool
	hasPin            bool
}

// Option configures a SessionManager.
type Option func(*SessionManager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *SessionManager) {
		m.nowTime = nowFunc
	}
}

// WithClockSkew sets how long past exp a stored token is still accepted.
func WithClockSkew(skew time.Duration) Option {
	return func(m *SessionManager) {
		m.skew = skew
	}
}

// WithTokenVerifier requires stored tokens to pass signature verification
// before they can restore a session.
func WithTokenVerifier(v token.Verifier) Option {
	return func(m *SessionManager) {
		m.verifier = v
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *SessionManager) {
		m.logger = logger
	}
}

func WithBiometricPrompt(prompt biometric.Prompt) Option {
	return func(m *SessionManager) {
		m.prompt = prompt
	}
}

// WithPinHashCost sets the bcrypt cost for new PIN hashes.
func WithPinHashCost(cost int) Option {
	return func(m *SessionManager) {
		m.pinCost = cost
	}
}

// NewSessionManager creates a manager in the Bootstrapping state. Call Init
// before using it.
func NewSessionManager(collab Collaborators, options ...Option) (*SessionManager, error) {
	if collab.API == nil {
		return nil, errors.New("[NewSessionManager] API is required")
	}
	if collab.Store == nil {
		return nil, errors.New("[NewSessionManager] Store is required")
	}
	if collab.Sensor == nil {
		return nil, errors.New("[NewSessionManager] Sensor is required")
	}

	m := &SessionManager{
		collab:    collab,
		validator: NewValidator(),
		prompt:    DefaultBiometricPrompt,
		skew:      token.DefaultClockSkew,
		pinCost:   bcrypt.DefaultCost,
		nowTime:   time.Now,
		logger:    log.Logger,
		loading:   true,
		state:     sessions.Bootstrapping,
	}

	for _, opt := range options {
		opt(m)
	}

	return m, nil
}

// Init restores the session from the credential store and probes the
// biometric hardware. Read failures degrade to "nothing stored"; only a
// cancelled ctx is returned as an error. Loading stays true until every
// probe has finished.
func (m *SessionManager) Init(ctx context.Context) error {
	var (
		user      *users.User
		hardware  bool
		types     []biometric.Modality
		enabled   bool
		pinStored bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		user = m.readProfile(gctx)
		return nil
	})
	g.Go(func() error {
		ok, err := m.collab.Sensor.HasHardware(gctx)
		if err != nil {
			m.logger.Warn().Err(err).Msg("biometric hardware check failed")
			return nil
		}
		hardware = ok
		if !ok {
			return nil
		}
		if types, err = m.collab.Sensor.SupportedTypes(gctx); err != nil {
			m.logger.Warn().Err(err).Msg("biometric modality query failed")
		}
		return nil
	})
	g.Go(func() error {
		enabled = m.readFlag(gctx, securestore.KeyBiometryEnabled)
		return nil
	})
	g.Go(func() error {
		pinStored = m.exists(gctx, securestore.KeyPin)
		return nil
	})
	_ = g.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = user
	m.biometryAvailable = hardware
	m.biometryTypes = types
	m.biometryEnabled = enabled
	m.hasPin = pinStored
	m.loading = false
	if user != nil {
		m.setStateLocked(sessions.Authenticated)
	} else {
		m.setStateLocked(sessions.Unauthenticated)
	}

	m.logger.Debug().
		Bool("restored", user != nil).
		Bool("biometryAvailable", hardware).
		Bool("biometryEnabled", enabled).
		Bool("hasPin", pinStored).
		Msg("session initialised")

	return ctx.Err()
}

// Session returns a snapshot of the current session.
func (m *SessionManager) Session() sessions.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sessions.Session{User: copyUser(m.user), Loading: m.loading, State: m.state}
}

func (m *SessionManager) User() *users.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyUser(m.user)
}

func (m *SessionManager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

func (m *SessionManager) State() sessions.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *SessionManager) BiometryAvailable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.biometryAvailable
}

func (m *SessionManager) BiometryTypes() []biometric.Modality {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]biometric.Modality(nil), m.biometryTypes...)
}

func (m *SessionManager) BiometryEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.biometryEnabled
}

func (m *SessionManager) HasPin() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasPin
}

// PendingMFA returns the outstanding challenge, or nil.
func (m *SessionManager) PendingMFA() *MFAChallenge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pending == nil {
		return nil
	}
	c := *m.pending
	return &c
}

// IsAdmin reports whether the signed-in profile grants admin privileges.
func (m *SessionManager) IsAdmin() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user.IsAdmin()
}

// setUser persists the profile and only then publishes it in memory, so a
// failed write leaves the session as it was.
func (m *SessionManager) setUser(ctx context.Context, user *users.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "[SessionManager.setUser] marshal profile")
	}
	if err := m.collab.Store.Set(ctx, securestore.KeyUser, string(data)); err != nil {
		return errors.Wrap(err, "[SessionManager.setUser] persist profile")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = copyUser(user)
	m.pending = nil
	m.setStateLocked(sessions.Authenticated)
	return nil
}

// clearCredentials removes the profile and token in one store call, profile
// first, then drops the in-memory session.
func (m *SessionManager) clearCredentials(ctx context.Context) error {
	err := m.collab.Store.Delete(ctx, securestore.KeyUser, securestore.KeyToken)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = nil
	m.pending = nil
	m.setStateLocked(sessions.Unauthenticated)

	if err != nil {
		return errors.Wrap(err, "[SessionManager.clearCredentials]")
	}
	return nil
}

// readProfile returns the stored profile, or nil when absent or unreadable.
func (m *SessionManager) readProfile(ctx context.Context) *users.User {
	raw, err := m.collab.Store.Get(ctx, securestore.KeyUser)
	if err != nil {
		if !errors.Is(err, securestore.ErrNotFound) {
			m.logger.Warn().Err(err).Msg("stored profile unreadable")
		}
		return nil
	}
	var user users.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		m.logger.Warn().Err(err).Msg("stored profile corrupt")
		return nil
	}
	return &user
}

func (m *SessionManager) readFlag(ctx context.Context, key string) bool {
	v, err := m.collab.Store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, securestore.ErrNotFound) {
			m.logger.Warn().Err(err).Str("key", key).Msg("stored flag unreadable")
		}
		return false
	}
	return v == "true"
}

func (m *SessionManager) exists(ctx context.Context, key string) bool {
	v, err := m.collab.Store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, securestore.ErrNotFound) {
			m.logger.Warn().Err(err).Str("key", key).Msg("stored value unreadable")
		}
		return false
	}
	return v != ""
}

// setStateLocked moves to next, logging transitions the lifecycle does not
// allow. Callers hold m.mu.
func (m *SessionManager) setStateLocked(next sessions.State) {
	if !m.state.CanTransition(next) {
		m.logger.Debug().Stringer("from", m.state).Stringer("to", next).Msg("unexpected session transition")
	}
	m.state = next
}

func copyUser(u *users.User) *users.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
