package cryptox

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/passkeeper/internal/common"
)

// ErrEnvelopeFormat reports an envelope that cannot be encoded or parsed.
// Decoding failures also carry common.ErrDecryption.
var ErrEnvelopeFormat = errors.New("malformed envelope")

const (
	segmentSep  = "|"
	pairSep     = ","
	keyValueSep = "="
	minSegments = 4
)

// Envelope is the encrypted form of a record.
//
// Encoded, it is a single line:
//
//	method|ciphertext|keyMaterial|k1=v1,k2=v2
//
// Binary fields are unpadded base64url. This is the on-disk format of every
// encrypted column; changing it needs a migration.
type Envelope struct {
	Method      string
	Ciphertext  []byte
	KeyMaterial []byte
	Metadata    map[string]string
}

// EncodeEnvelope serializes e. Metadata keys are written in sorted order so
// equal envelopes encode identically. A method, key or value containing one of
// the separators is rejected, since it could not be read back.
func EncodeEnvelope(e *Envelope) (string, error) {
	if e.Method == "" || strings.Contains(e.Method, segmentSep) {
		return "", fmt.Errorf("%w: invalid method %q", ErrEnvelopeFormat, e.Method)
	}

	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		v := e.Metadata[k]
		if k == "" || strings.ContainsAny(k, segmentSep+pairSep+keyValueSep) {
			return "", fmt.Errorf("%w: invalid metadata key %q", ErrEnvelopeFormat, k)
		}
		if strings.ContainsAny(v, segmentSep+pairSep+keyValueSep) {
			return "", fmt.Errorf("%w: metadata value for %q contains a separator", ErrEnvelopeFormat, k)
		}
		pairs = append(pairs, k+keyValueSep+v)
	}

	return strings.Join([]string{
		e.Method,
		base64.RawURLEncoding.EncodeToString(e.Ciphertext),
		base64.RawURLEncoding.EncodeToString(e.KeyMaterial),
		strings.Join(pairs, pairSep),
	}, segmentSep), nil
}

// DecodeEnvelope parses the output of EncodeEnvelope. Anything short of four
// segments is rejected rather than read as an empty envelope.
func DecodeEnvelope(s string) (*Envelope, error) {
	parts := strings.SplitN(s, segmentSep, minSegments)
	if len(parts) < minSegments {
		return nil, formatError("expected %d segments, got %d", minSegments, len(parts))
	}

	if parts[0] == "" {
		return nil, formatError("empty method")
	}

	ciphertext, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, formatError("ciphertext is not base64url")
	}
	keyMaterial, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, formatError("key material is not base64url")
	}

	metadata := make(map[string]string)
	if parts[3] != "" {
		for _, pair := range strings.Split(parts[3], pairSep) {
			k, v, ok := strings.Cut(pair, keyValueSep)
			if !ok || k == "" {
				return nil, formatError("bad metadata pair %d", len(metadata)+1)
			}
			metadata[k] = v
		}
	}

	return &Envelope{
		Method:      parts[0],
		Ciphertext:  ciphertext,
		KeyMaterial: keyMaterial,
		Metadata:    metadata,
	}, nil
}

func formatError(format string, args ...any) error {
	return fmt.Errorf("%w: %w: "+format, append([]any{common.ErrDecryption, ErrEnvelopeFormat}, args...)...)
}
