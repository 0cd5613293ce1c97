// Package config handles configuration for the server component,
// including defaults, JSON overlay, environment variables and command-line
// flags, applied in that order.
package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/passkeeper/internal/common"
)

// Config holds runtime settings for the passkeeper server.
//
// Every field can be set from the environment; see the env tags. Unset
// variables leave the value from the previous layer untouched.
type Config struct {
	EndpointAddrGRPC string `env:"PASSKEEPER_GRPC_ADDR"`

	// CredentialBackend is "postgresql" or "sqlite".
	CredentialBackend string `env:"PASSKEEPER_CREDENTIAL_BACKEND"`
	DatabaseDSN       string `env:"PASSKEEPER_DATABASE_DSN"`
	DatabaseMaxConns  int    `env:"PASSKEEPER_DATABASE_MAX_CONNS"`

	// RequestBackend is "memory" or "redis".
	RequestBackend string `env:"PASSKEEPER_REQUEST_BACKEND"`
	RedisAddr      string `env:"PASSKEEPER_REDIS_ADDR"`
	RedisPassword  string `env:"PASSKEEPER_REDIS_PASSWORD"`
	RedisDB        int    `env:"PASSKEEPER_REDIS_DB"`
	RedisPoolSize  int    `env:"PASSKEEPER_REDIS_POOL_SIZE"`
	RedisKeyPrefix string `env:"PASSKEEPER_REDIS_KEY_PREFIX"`

	RequestTTL    time.Duration `env:"PASSKEEPER_REQUEST_TTL"`
	SweepInterval time.Duration `env:"PASSKEEPER_SWEEP_INTERVAL"`

	// EnvelopeKeySeed is the base64url ML-KEM seed printed by cmd/keygen.
	// There is no default.
	EnvelopeKeySeed string `env:"PASSKEEPER_ENVELOPE_KEY_SEED"`

	// MaxCredentialsPerUser caps the credentials one user handle may own.
	// Zero disables the cap.
	MaxCredentialsPerUser int `env:"PASSKEEPER_MAX_CREDENTIALS_PER_USER"`

	RPID          string   `env:"PASSKEEPER_RP_ID"`
	RPDisplayName string   `env:"PASSKEEPER_RP_DISPLAY_NAME"`
	RPOrigins     []string `env:"PASSKEEPER_RP_ORIGINS" envSeparator:","`

	LogLevel string `env:"PASSKEEPER_LOG_LEVEL"`
}

// LoadDefaults populates Config with development defaults: a local SQLite
// file and in-process request storage.
func (c *Config) LoadDefaults() {
	c.EndpointAddrGRPC = ":50051"
	c.CredentialBackend = "sqlite"
	c.DatabaseDSN = "file:data/passkeeper.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	c.DatabaseMaxConns = 10
	c.RequestBackend = "memory"
	c.RedisAddr = "127.0.0.1:6379"
	c.RedisPoolSize = 10
	c.RedisKeyPrefix = "passkeeper"
	c.RequestTTL = 5 * time.Minute
	c.SweepInterval = 1 * time.Minute
	c.MaxCredentialsPerUser = 10
	c.RPID = "localhost"
	c.RPDisplayName = "Passkeeper"
	c.RPOrigins = []string{"http://localhost:8080"}
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
// args are the process arguments without the program name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}
	if err := parseEnv(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}
	return cfg, nil
}
