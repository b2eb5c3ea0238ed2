package config

import (
	"net"
	"time"
)

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetStoreAddr() string {
	return net.JoinHostPort(GetEnv("REDIS_HOST", "localhost"), GetEnv("REDIS_PORT", "6379"))
}

func (Store) GetStorePassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Store) GetStoreDB() int {
	return GetEnvInt("REDIS_DB", 0)
}

func (Store) GetStorePoolSize() int {
	return GetEnvInt("REDIS_POOL_SIZE", 10)
}

func (Store) GetStoreDialTimeout() time.Duration {
	return GetEnvMillis("REDIS_DIAL_TIMEOUT_MS", 5*time.Second)
}

// GetStoreOpTimeout bounds every individual store round trip.
func (Store) GetStoreOpTimeout() time.Duration {
	return GetEnvMillis("REDIS_OP_TIMEOUT_MS", 500*time.Millisecond)
}
