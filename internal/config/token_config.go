package config

import "time"

type Tokens struct{}

var _ TokenConfig = Tokens{}

func (Tokens) GetAuthTokenTTL() time.Duration {
	return GetEnvSeconds("AUTH_TOKEN_TTL_SECONDS", 24*time.Hour)
}

func (Tokens) GetSessionTokenTTL() time.Duration {
	return GetEnvSeconds("SESSION_TOKEN_TTL_SECONDS", time.Hour)
}
