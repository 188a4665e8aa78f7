package server

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// Account describes an account created directly on the server.
type Account struct {
	Email    string
	Password string
	Name     string
	Role     users.RoleType
	MFACode  string // Empty disables the second factor
}

type account struct {
	numericID    int64
	user         users.User
	passwordHash []byte
	mfaCode      string
	lastLogin    time.Time
}

type challenge struct {
	email   string
	expires time.Time
}

// accountRepo holds accounts, open MFA challenges and revoked token ids.
type accountRepo struct {
	lock       sync.RWMutex
	nextID     int64
	byEmail    map[string]*account
	challenges map[string]challenge
	revoked    map[string]time.Time
}

func newAccountRepo() *accountRepo {
	return &accountRepo{
		byEmail:    make(map[string]*account),
		challenges: make(map[string]challenge),
		revoked:    make(map[string]time.Time),
	}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *accountRepo) create(a Account) (*users.User, error) {
	email := normaliseEmail(a.Email)
	if email == "" || a.Password == "" {
		return nil, errors.Wrap(apperrors.ErrInvalidInput, "[accountRepo.create] email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "[accountRepo.create]")
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if _, exists := r.byEmail[email]; exists {
		return nil, errors.Wrapf(apperrors.ErrConflict, "[accountRepo.create] %s is already registered", email)
	}

	role := a.Role
	if role == "" {
		role = users.RoleUser
	}
	mfaType := users.MFNone
	if a.MFACode != "" {
		mfaType = users.MFAuthenticator
	}

	r.nextID++
	acc := &account{
		numericID: r.nextID,
		user: users.User{
			ID:         strconv.FormatInt(r.nextID, 10),
			Email:      email,
			Name:       a.Name,
			Role:       role,
			Admin:      role == users.RoleAdmin,
			MFType:     mfaType,
			MFAEnabled: a.MFACode != "",
		},
		passwordHash: hash,
		mfaCode:      a.MFACode,
	}
	r.byEmail[email] = acc

	user := acc.user
	return &user, nil
}

func (r *accountRepo) authenticate(email, password string) (*account, error) {
	r.lock.RLock()
	acc, ok := r.byEmail[normaliseEmail(email)]
	r.lock.RUnlock()
	if !ok {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	return acc, nil
}

func (r *accountRepo) get(email string) (users.User, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	acc, ok := r.byEmail[normaliseEmail(email)]
	if !ok {
		return users.User{}, false
	}
	return acc.user, true
}

// markLogin records a completed sign in and reports whether it was the first.
func (r *accountRepo) markLogin(acc *account, now time.Time) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	first := acc.lastLogin.IsZero()
	acc.lastLogin = now
	return first
}

func (r *accountRepo) firstLogin(acc *account) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return acc.lastLogin.IsZero()
}

// openChallenge starts an MFA challenge for acc under key, or a random temp
// token when key is empty, and returns the key.
func (r *accountRepo) openChallenge(acc *account, key string, expires time.Time) (string, error) {
	if key == "" {
		b := make([]byte, 24)
		if _, err := rand.Read(b); err != nil {
			return "", errors.Wrap(err, "[accountRepo.openChallenge]")
		}
		key = base64.RawURLEncoding.EncodeToString(b)
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	r.challenges[key] = challenge{email: acc.user.Email, expires: expires}
	return key, nil
}

// answerChallenge checks code against the challenge under key. A correct
// code closes the challenge; a wrong one leaves it open for another try.
func (r *accountRepo) answerChallenge(key, code string, now time.Time) (*account, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	c, ok := r.challenges[key]
	if !ok || now.After(c.expires) {
		delete(r.challenges, key)
		return nil, errors.Wrap(apperrors.ErrNoMFAPending, "challenge expired")
	}
	acc := r.byEmail[c.email]
	if acc == nil || subtle.ConstantTimeCompare([]byte(acc.mfaCode), []byte(code)) != 1 {
		return nil, errors.Wrap(apperrors.ErrInvalidMFACode, "invalid code")
	}
	delete(r.challenges, key)
	return acc, nil
}

func (r *accountRepo) revoke(tokenID string, expires time.Time) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.revoked[tokenID] = expires
}

// isRevoked also drops revocations for tokens that have since expired.
func (r *accountRepo) isRevoked(tokenID string, now time.Time) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	for id, exp := range r.revoked {
		if now.After(exp) {
			delete(r.revoked, id)
		}
	}
	_, ok := r.revoked[tokenID]
	return ok
}
