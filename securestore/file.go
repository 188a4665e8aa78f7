package securestore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	fileName        = "credentials.enc"
	corruptSuffix   = ".corrupt"
	envelopeVersion = 1
	saltLength      = 16
	keyLength       = chacha20poly1305.KeySize
)

var additionalData = []byte("go-auth-session/securestore/v1")

// KDFParams are the Argon2id cost parameters used to turn the passphrase
// into the file key. They are written into the file so it can be reopened
// with the parameters it was created with.
type KDFParams struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"` // KiB
	Threads uint8  `json:"threads"`
}

// DefaultKDFParams follows the Argon2id recommendation for interactive logins.
var DefaultKDFParams = KDFParams{Time: 1, Memory: 64 * 1024, Threads: 4}

// envelope is the on-disk format. Data is the sealed JSON map of values.
type envelope struct {
	Version int       `json:"version"`
	KDF     KDFParams `json:"kdf"`
	Salt    []byte    `json:"salt"`
	Nonce   []byte    `json:"nonce"`
	Data    []byte    `json:"data"`
}

var _ Store = (*FileStore)(nil)

// FileStore keeps all values in one XChaCha20-Poly1305 sealed file. Every
// write replaces the file atomically, so a multi-key Delete either lands
// completely or not at all.
type FileStore struct {
	path string
	kdf  KDFParams
	salt []byte
	aead cipher.AEAD
	mu   sync.Mutex
}

type FileStoreOption func(*FileStore)

// WithKDFParams sets the Argon2id cost for newly created files.
func WithKDFParams(p KDFParams) FileStoreOption {
	return func(s *FileStore) {
		s.kdf = p
	}
}

// NewFileStore opens the store in dir, creating it when absent. Opening an
// existing file with the wrong passphrase returns ErrInvalidPassphrase. A
// file that is not a readable envelope is moved aside to credentials.enc.corrupt
// and a fresh store is created in its place.
func NewFileStore(dir, passphrase string, options ...FileStoreOption) (*FileStore, error) {
	if passphrase == "" {
		return nil, errors.New("[NewFileStore] passphrase is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] create store directory")
	}

	s := &FileStore{
		path: filepath.Join(dir, fileName),
		kdf:  DefaultKDFParams,
	}
	for _, opt := range options {
		opt(s)
	}

	env, err := s.readEnvelope()
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s.create(passphrase)
	case errors.Is(err, apperrors.ErrStoreCorrupt):
		if err := os.Rename(s.path, s.path+corruptSuffix); err != nil {
			return nil, errors.Wrap(err, "[NewFileStore] move corrupt store aside")
		}
		log.Warn().Err(err).Str("path", s.path+corruptSuffix).Msg("corrupt credential store moved aside")
		return s.create(passphrase)
	case err != nil:
		return nil, err
	}

	s.kdf = env.KDF
	s.salt = env.Salt
	if err := s.deriveKey(passphrase); err != nil {
		return nil, err
	}
	if _, err := s.open(env); err != nil {
		return nil, errors.Wrap(apperrors.ErrInvalidPassphrase, "[NewFileStore]")
	}

	log.Debug().Str("path", s.path).Msg("credential store opened")
	return s, nil
}

func (s *FileStore) create(passphrase string) (*FileStore, error) {
	s.salt = make([]byte, saltLength)
	if _, err := rand.Read(s.salt); err != nil {
		return nil, errors.Wrap(err, "[FileStore.create] rand.Read")
	}
	if err := s.deriveKey(passphrase); err != nil {
		return nil, err
	}
	if err := s.save(map[string]string{}); err != nil {
		return nil, err
	}
	log.Debug().Str("path", s.path).Msg("credential store created")
	return s, nil
}

func (s *FileStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *FileStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.loadForWrite()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

func (s *FileStore) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.loadForWrite()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := values[k]; ok {
			delete(values, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save(values)
}

func (s *FileStore) deriveKey(passphrase string) error {
	key := argon2.IDKey([]byte(passphrase), s.salt, s.kdf.Time, s.kdf.Memory, s.kdf.Threads, keyLength)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return errors.Wrap(err, "[FileStore.deriveKey] chacha20poly1305.NewX")
	}
	s.aead = aead
	return nil
}

func (s *FileStore) readEnvelope() (*envelope, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrapf(apperrors.ErrStoreCorrupt, "[FileStore] parse %s: %v", s.path, err)
	}
	if env.Version != envelopeVersion || len(env.Salt) == 0 || len(env.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, errors.Wrapf(apperrors.ErrStoreCorrupt, "[FileStore] unsupported envelope in %s", s.path)
	}
	return &env, nil
}

func (s *FileStore) open(env *envelope) (map[string]string, error) {
	plain, err := s.aead.Open(nil, env.Nonce, env.Data, additionalData)
	if err != nil {
		return nil, errors.Wrap(apperrors.ErrStoreCorrupt, "[FileStore.open] authentication failed")
	}
	values := make(map[string]string)
	if err := json.Unmarshal(plain, &values); err != nil {
		return nil, errors.Wrap(apperrors.ErrStoreCorrupt, "[FileStore.open] parse values")
	}
	return values, nil
}

// load reads the file on every call so separate processes sharing the
// directory see each other's writes.
func (s *FileStore) load() (map[string]string, error) {
	env, err := s.readEnvelope()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	return s.open(env)
}

// loadForWrite starts from an empty map when the file can no longer be read,
// so the next write replaces the damaged contents.
func (s *FileStore) loadForWrite() (map[string]string, error) {
	values, err := s.load()
	if errors.Is(err, apperrors.ErrStoreCorrupt) {
		log.Warn().Err(err).Str("path", s.path).Msg("credential store unreadable, overwriting")
		return make(map[string]string), nil
	}
	return values, err
}

func (s *FileStore) save(values map[string]string) error {
	plain, err := json.Marshal(values)
	if err != nil {
		return errors.Wrap(err, "[FileStore.save] marshal values")
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrap(err, "[FileStore.save] rand.Read")
	}

	data, err := json.Marshal(envelope{
		Version: envelopeVersion,
		KDF:     s.kdf,
		Salt:    s.salt,
		Nonce:   nonce,
		Data:    s.aead.Seal(nil, nonce, plain, additionalData),
	})
	if err != nil {
		return errors.Wrap(err, "[FileStore.save] marshal envelope")
	}

	// Write to temp file first
	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return errors.Wrap(err, "[FileStore.save] write temp file")
	}

	// Atomic rename
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "[FileStore.save] rename")
	}
	return nil
}
