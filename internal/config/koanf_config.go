package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// EnvPrefix is stripped from environment variables before they are matched to
// config keys, e.g. SESSION_AUTH_BASE_URL overrides auth_base_url.
const EnvPrefix = "SESSION_"

const (
	keyAppName          = "app_name"
	keyEnv              = "env"
	keyLogLevel         = "log_level"
	keyLogPretty        = "log_pretty"
	keyBaseURL          = "auth_base_url"
	keyUsersBaseURL     = "users_base_url"
	keyHTTPTimeout      = "http_timeout"
	keyLogoutMaxTries   = "logout_max_tries"
	keyLoginPath        = "login_path"
	keyVerifyMFAPath    = "verify_mfa_path"
	keyRegisterPath     = "register_path"
	keyLogoutPath       = "logout_path"
	keyUserByEmailPath  = "user_by_email_path"
	keyStoreDir         = "store_dir"
	keyStorePassphrase  = "store_passphrase"
	keyClockSkew        = "clock_skew"
	keyJWKSURL          = "jwks_url"
	keyTokenIssuer      = "token_issuer"
	keyBiometricPrompt  = "biometric_prompt"
	keyServerAddr       = "server_addr"
	keyTokenTTL         = "token_ttl"
	keySeedEmail        = "seed_email"
	keySeedPassword     = "seed_password"
	keySeedName         = "seed_name"
	keySeedMFACode      = "seed_mfa_code"
	defaultTokenTTL     = time.Hour
	defaultHTTPTimeout  = 15 * time.Second
	defaultClockSkew    = 30 * time.Second
	defaultLogoutTries  = 3
	defaultStoreDirName = ".go-auth-session"
)

type koanfConfig struct {
	k *koanf.Koanf
}

var _ Config = (*koanfConfig)(nil)

// Load reads the optional YAML file at path and then overlays SESSION_*
// environment variables. An empty path skips the file.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "[config.Load] read %s", path)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "[config.Load] load env variables")
	}

	return &koanfConfig{k: k}, nil
}

func (c *koanfConfig) GetAppName() string {
	return c.str(keyAppName, "Go Auth Session")
}

func (c *koanfConfig) GetEnv() string {
	return strings.ToUpper(c.str(keyEnv, "DEV"))
}

func (c *koanfConfig) GetLogLevel() string {
	return c.str(keyLogLevel, "info")
}

func (c *koanfConfig) GetLogPretty() bool {
	return c.boolean(keyLogPretty, c.GetEnv() == "DEV")
}

func (c *koanfConfig) GetBaseURL() string {
	return strings.TrimRight(c.str(keyBaseURL, "http://localhost:8080"), "/")
}

// GetUsersBaseURL falls back to the auth base URL when the user service is
// not deployed separately.
func (c *koanfConfig) GetUsersBaseURL() string {
	return strings.TrimRight(c.str(keyUsersBaseURL, c.GetBaseURL()), "/")
}

func (c *koanfConfig) GetHTTPTimeout() time.Duration {
	return c.duration(keyHTTPTimeout, defaultHTTPTimeout)
}

func (c *koanfConfig) GetLogoutMaxTries() uint {
	s := c.str(keyLogoutMaxTries, "")
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return defaultLogoutTries
	}
	return uint(n)
}

func (c *koanfConfig) GetLoginPath() string {
	return c.str(keyLoginPath, "/auth/login")
}

func (c *koanfConfig) GetVerifyMFAPath() string {
	return c.str(keyVerifyMFAPath, "/auth/mfa/verify")
}

func (c *koanfConfig) GetRegisterPath() string {
	return c.str(keyRegisterPath, "/auth/register")
}

func (c *koanfConfig) GetLogoutPath() string {
	return c.str(keyLogoutPath, "/auth/logout")
}

func (c *koanfConfig) GetUserByEmailPath() string {
	return c.str(keyUserByEmailPath, "/users/email/")
}

func (c *koanfConfig) GetStoreDir() string {
	if dir := c.str(keyStoreDir, ""); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultStoreDirName
	}
	return filepath.Join(home, defaultStoreDirName)
}

func (c *koanfConfig) GetStorePassphrase() string {
	return c.str(keyStorePassphrase, "")
}

func (c *koanfConfig) GetClockSkew() time.Duration {
	return c.duration(keyClockSkew, defaultClockSkew)
}

func (c *koanfConfig) GetJWKSURL() string {
	return c.str(keyJWKSURL, "")
}

func (c *koanfConfig) GetTokenIssuer() string {
	return c.str(keyTokenIssuer, "")
}

func (c *koanfConfig) GetBiometricPrompt() string {
	return c.str(keyBiometricPrompt, "Unlock your account")
}

func (c *koanfConfig) GetServerAddr() string {
	return c.str(keyServerAddr, ":8080")
}

func (c *koanfConfig) GetTokenTTL() time.Duration {
	return c.duration(keyTokenTTL, defaultTokenTTL)
}

// GetSeedEmail names an account created when the development server starts.
// Empty disables seeding.
func (c *koanfConfig) GetSeedEmail() string {
	return c.str(keySeedEmail, "")
}

func (c *koanfConfig) GetSeedPassword() string {
	return c.str(keySeedPassword, "")
}

func (c *koanfConfig) GetSeedName() string {
	return c.str(keySeedName, "Demo User")
}

// GetSeedMFACode puts the seeded account behind a fixed MFA code when set.
func (c *koanfConfig) GetSeedMFACode() string {
	return c.str(keySeedMFACode, "")
}

func (c *koanfConfig) str(key, defaultValue string) string {
	v := c.k.Get(key)
	if v == nil {
		return defaultValue
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return defaultValue
	}
	return s
}

// duration accepts Go duration strings ("45s") or a bare number of seconds.
func (c *koanfConfig) duration(key string, defaultValue time.Duration) time.Duration {
	s := c.str(key, "")
	if s == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func (c *koanfConfig) boolean(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(c.str(key, ""))
	if err != nil {
		return defaultValue
	}
	return b
}
