// Package keygen prints a fresh envelope key seed for the server
// configuration.
package keygen

import (
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/passkeeper/internal/common"
	"github.com/dmitrijs2005/passkeeper/internal/cryptox"
)

// EnvName is the environment variable the server reads the seed from.
const EnvName = "PASSKEEPER_ENVELOPE_KEY_SEED"

// Config holds configuration for seed generation.
type Config struct {
	// Raw prints only the encoded seed, without the NAME= prefix.
	Raw bool
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{}
	fs.BoolVar(&cfg.Raw, "raw", cfg.Raw, "print the seed without the variable name")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates a seed, checks that it yields a usable cipher and writes it
// to out.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}

	seed := make([]byte, cryptox.SeedSize)
	defer common.WipeByteArray(seed)
	if _, err := io.ReadFull(reader, seed); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	if _, err := cryptox.NewCipher(seed); err != nil {
		return fmt.Errorf("check seed: %w", err)
	}

	encoded := cryptox.EncodeSeed(seed)
	if cfg.Raw {
		_, err := fmt.Fprintln(out, encoded)
		return err
	}
	_, err := fmt.Fprintf(out, "%s=%s\n", EnvName, encoded)
	return err
}
