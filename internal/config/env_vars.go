package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	portEnvVar          = "PORT"
	appNameVar          = "APP_NAME"
	logLevelEnvVar      = "LOG_LEVEL"
	logFileEnvVar       = "LOG_FILE"
	secureCookiesEnvVar = "SECURE_COOKIES"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Codeassist Auth")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelEnvVar, "info")
}

// GetLogFile returns the path of the rotated log file, empty when file logging is disabled.
func (EnvVars) GetLogFile() string {
	return GetEnv(logFileEnvVar, "")
}

func (e EnvVars) GetSecureCookies() bool {
	return GetEnvBool(secureCookiesEnvVar, e.GetEnv() != "DEV")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvInt(envVar string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(envVar))
	if err != nil {
		return defaultValue
	}
	return value
}

func GetEnvBool(envVar string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(envVar))
	if err != nil {
		return defaultValue
	}
	return value
}

// GetEnvSeconds reads a whole number of seconds. Non-positive or unparsable values fall back to the default.
func GetEnvSeconds(envVar string, defaultValue time.Duration) time.Duration {
	seconds := GetEnvInt(envVar, 0)
	if seconds <= 0 {
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}

// GetEnvMillis reads a whole number of milliseconds.
func GetEnvMillis(envVar string, defaultValue time.Duration) time.Duration {
	millis := GetEnvInt(envVar, 0)
	if millis <= 0 {
		return defaultValue
	}
	return time.Duration(millis) * time.Millisecond
}
