package config

import "time"

type Config interface {
	EnvConfig
	AuthAPIConfig
	StoreConfig
	SessionConfig
	ServerConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetLogPretty() bool
}

// AuthAPIConfig locates the remote auth and user services.
type AuthAPIConfig interface {
	GetBaseURL() string
	GetUsersBaseURL() string
	GetHTTPTimeout() time.Duration
	GetLogoutMaxTries() uint
	GetLoginPath() string
	GetVerifyMFAPath() string
	GetRegisterPath() string
	GetLogoutPath() string
	GetUserByEmailPath() string
}

type StoreConfig interface {
	GetStoreDir() string
	GetStorePassphrase() string
}

type SessionConfig interface {
	GetClockSkew() time.Duration
	GetJWKSURL() string
	GetTokenIssuer() string
	GetBiometricPrompt() string
}

// ServerConfig drives the development auth service in cmd/server.
type ServerConfig interface {
	GetServerAddr() string
	GetTokenTTL() time.Duration
	GetSeedEmail() string
	GetSeedPassword() string
	GetSeedName() string
	GetSeedMFACode() string
}
