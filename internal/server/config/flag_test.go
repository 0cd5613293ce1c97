package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected  *Config
		name      string
		args      []string
		expectErr bool
	}{
		{name: "all flags", args: []string{
			"-a", "127.0.0.1:9090", "-b", "postgresql", "-d", "db", "-q", "redis",
			"-redis", "redis:6379", "-k", "seed", "-t", "1m", "-m", "3", "-l", "debug",
			"-rp-id", "example.com", "-rp-origins", "https://example.com, https://login.example.com",
		},
			expected: &Config{
				EndpointAddrGRPC:      "127.0.0.1:9090",
				CredentialBackend:     "postgresql",
				DatabaseDSN:           "db",
				RequestBackend:        "redis",
				RedisAddr:             "redis:6379",
				EnvelopeKeySeed:       "seed",
				RequestTTL:            1 * time.Minute,
				MaxCredentialsPerUser: 3,
				LogLevel:              "debug",
				RPID:                  "example.com",
				RPOrigins:             []string{"https://example.com", "https://login.example.com"},
			}},
		{name: "foreign flags are ignored", args: []string{"-c", "conf.json", "-x", "1", "-a", ":1"},
			expected: &Config{EndpointAddrGRPC: ":1"}},
		{name: "bad duration", args: []string{"-t", "later"}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			err := parseFlags(config, tt.args)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, config)
		})
	}
}
