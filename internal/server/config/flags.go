package config

import (
	"flag"
	"io"
	"strings"

	"github.com/dmitrijs2005/passkeeper/internal/flagx"
)

var flagNames = []string{
	"-a", "-b", "-d", "-q", "-redis", "-k", "-t", "-m", "-l", "-rp-id", "-rp-origins",
}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string           gRPC bind address (e.g., ":50051")
//	-b string           credential backend: postgresql | sqlite
//	-d string           database DSN
//	-q string           request backend: memory | redis
//	-redis string       Redis address
//	-k string           envelope key seed (base64url)
//	-t duration         ceremony request TTL (e.g., "5m")
//	-m int              max credentials per user, 0 disables
//	-l string           log level
//	-rp-id string       relying party id
//	-rp-origins string  comma-separated relying party origins
//
// args are filtered with flagx.FilterArgs first so -c/-config and flags of
// other components do not trip the parser.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, flagNames)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.CredentialBackend, "b", config.CredentialBackend, "credential backend")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RequestBackend, "q", config.RequestBackend, "request backend")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.StringVar(&config.EnvelopeKeySeed, "k", config.EnvelopeKeySeed, "envelope key seed")
	fs.DurationVar(&config.RequestTTL, "t", config.RequestTTL, "ceremony request ttl")
	fs.IntVar(&config.MaxCredentialsPerUser, "m", config.MaxCredentialsPerUser, "max credentials per user")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.RPID, "rp-id", config.RPID, "relying party id")
	origins := fs.String("rp-origins", strings.Join(config.RPOrigins, ","), "relying party origins")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.RPOrigins = splitList(*origins)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
