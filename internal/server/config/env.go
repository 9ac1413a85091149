package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables understood by the server.
const (
	EnvHTTPAddress         = "HTTP_ADDRESS"
	EnvDatabaseURL         = "DATABASE_URL"
	EnvSecretKey           = "JWT_SECRET_KEY"
	EnvAlgorithm           = "JWT_ALGORITHM"
	EnvAccessExpireMinutes = "ACCESS_TOKEN_EXPIRE_MINUTES"
	EnvRefreshExpireDays   = "REFRESH_TOKEN_EXPIRE_DAYS"
	EnvDebug               = "DEBUG"
	EnvAppEnv              = "APP_ENV"
	EnvStrictAccessTokens  = "STRICT_ACCESS_TOKENS"
)

// dotenvFile is loaded into the process environment when present. Variables
// already set in the environment win over the file.
var dotenvFile = ".env"

// parseEnv overlays values from environment variables. Malformed numeric or
// boolean values panic, like the other configuration layers.
func parseEnv(config *Config) {
	_ = godotenv.Load(dotenvFile)

	if v, ok := os.LookupEnv(EnvHTTPAddress); ok {
		config.EndpointAddrHTTP = v
	}
	if v, ok := os.LookupEnv(EnvDatabaseURL); ok {
		config.DatabaseDSN = v
	}
	if v, ok := os.LookupEnv(EnvSecretKey); ok {
		config.SecretKey = v
	}
	if v, ok := os.LookupEnv(EnvAlgorithm); ok {
		config.SigningAlgorithm = v
	}
	if v, ok := os.LookupEnv(EnvAccessExpireMinutes); ok {
		config.AccessTokenValidityDuration = time.Duration(mustAtoi(EnvAccessExpireMinutes, v)) * time.Minute
	}
	if v, ok := os.LookupEnv(EnvRefreshExpireDays); ok {
		config.RefreshTokenValidityDuration = time.Duration(mustAtoi(EnvRefreshExpireDays, v)) * 24 * time.Hour
	}
	if v, ok := os.LookupEnv(EnvDebug); ok {
		config.Debug = mustParseBool(EnvDebug, v)
	}
	if v, ok := os.LookupEnv(EnvAppEnv); ok {
		config.AppEnv = v
	}
	if v, ok := os.LookupEnv(EnvStrictAccessTokens); ok {
		config.StrictAccessTokens = mustParseBool(EnvStrictAccessTokens, v)
	}
}

func mustAtoi(key, v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Errorf("invalid %s: %w", key, err))
	}
	return n
}

func mustParseBool(key, v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(fmt.Errorf("invalid %s: %w", key, err))
	}
	return b
}
