package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/passkeeper/internal/flagx"
	"github.com/dmitrijs2005/passkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "5m" and integer nanoseconds are accepted.
//
// Only fields present in the file override the current values; zero values
// are treated as absent. MaxCredentialsPerUser is a pointer so that an
// explicit 0 can disable the limit.
type JsonConfig struct {
	EndpointAddrGRPC      string         `json:"endpoint_addr_grpc"`
	CredentialBackend     string         `json:"credential_backend"`
	DatabaseDSN           string         `json:"database_dsn"`
	DatabaseMaxConns      int            `json:"database_max_conns"`
	RequestBackend        string         `json:"request_backend"`
	RedisAddr             string         `json:"redis_addr"`
	RedisPassword         string         `json:"redis_password"`
	RedisDB               int            `json:"redis_db"`
	RedisPoolSize         int            `json:"redis_pool_size"`
	RedisKeyPrefix        string         `json:"redis_key_prefix"`
	RequestTTL            timex.Duration `json:"request_ttl"`
	SweepInterval         timex.Duration `json:"sweep_interval"`
	EnvelopeKeySeed       string         `json:"envelope_key_seed"`
	MaxCredentialsPerUser *int           `json:"max_credentials_per_user"`
	RPID                  string         `json:"rp_id"`
	RPDisplayName         string         `json:"rp_display_name"`
	RPOrigins             []string       `json:"rp_origins"`
	LogLevel              string         `json:"log_level"`
}

// parseJson loads the file named by -c/-config (or $PASSKEEPER_CONFIG) and
// copies the fields it sets into config. No file means no changes.
func parseJson(config *Config, args []string) error {
	jsonConfigFile := flagx.ConfigFile(args)

	// nothing to load
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", jsonConfigFile, err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.CredentialBackend, c.CredentialBackend)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setInt(&config.DatabaseMaxConns, c.DatabaseMaxConns)
	setString(&config.RequestBackend, c.RequestBackend)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setInt(&config.RedisDB, c.RedisDB)
	setInt(&config.RedisPoolSize, c.RedisPoolSize)
	setString(&config.RedisKeyPrefix, c.RedisKeyPrefix)
	if c.RequestTTL.Duration != 0 {
		config.RequestTTL = c.RequestTTL.Duration
	}
	if c.SweepInterval.Duration != 0 {
		config.SweepInterval = c.SweepInterval.Duration
	}
	setString(&config.EnvelopeKeySeed, c.EnvelopeKeySeed)
	if c.MaxCredentialsPerUser != nil {
		config.MaxCredentialsPerUser = *c.MaxCredentialsPerUser
	}
	setString(&config.RPID, c.RPID)
	setString(&config.RPDisplayName, c.RPDisplayName)
	if len(c.RPOrigins) > 0 {
		config.RPOrigins = c.RPOrigins
	}
	setString(&config.LogLevel, c.LogLevel)

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
