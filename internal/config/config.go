package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	StoreConfig
	TokenConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetLogFile() string
	GetSecureCookies() bool
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// StoreConfig describes the connection to the key-value store backing the token registry.
type StoreConfig interface {
	GetStoreAddr() string
	GetStorePassword() string
	GetStoreDB() int
	GetStorePoolSize() int
	GetStoreDialTimeout() time.Duration
	GetStoreOpTimeout() time.Duration
}

// TokenConfig holds the externally configured token lifetimes.
type TokenConfig interface {
	GetAuthTokenTTL() time.Duration
	GetSessionTokenTTL() time.Duration
}

type mainConfig struct {
	EnvVars
	Cors
	Store
	Tokens
}

func New() Config {
	return mainConfig{}
}
