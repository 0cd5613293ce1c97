// Package cryptox encrypts records for storage at rest.
//
// Every record gets its own symmetric key: an ML-KEM-768 encapsulation against
// the service key yields a fresh shared secret, HKDF-SHA256 stretches it into
// an AES-256 key, and AES-GCM seals the payload. The KEM ciphertext travels
// with the record, so each envelope decrypts on its own given the service's
// decapsulation key.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/mlkem"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/passkeeper/internal/common"
	"golang.org/x/crypto/hkdf"
)

const (
	// MethodMLKEMAES identifies envelopes produced by Cipher.
	MethodMLKEMAES = "mlkem768-hkdf-aes256gcm"

	// SeedSize is the length of the service key seed in bytes.
	SeedSize = mlkem.SeedSize

	metaNonce = "nonce"
	keySize   = 32
)

var hkdfInfo = []byte("passkeeper/envelope/v1")

// Cipher holds the service key pair. It is safe for concurrent use.
type Cipher struct {
	dk *mlkem.DecapsulationKey768
	ek *mlkem.EncapsulationKey768
}

// NewCipher builds a Cipher from a 64-byte ML-KEM-768 seed.
func NewCipher(seed []byte) (*Cipher, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: envelope key seed must be %d bytes, got %d", common.ErrConfiguration, SeedSize, len(seed))
	}
	dk, err := mlkem.NewDecapsulationKey768(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid envelope key seed", common.ErrConfiguration)
	}
	return &Cipher{dk: dk, ek: dk.EncapsulationKey()}, nil
}

// NewCipherFromString decodes a base64url seed (as printed by the keygen
// tool) and builds a Cipher. The decoded seed is wiped afterwards.
func NewCipherFromString(encoded string) (*Cipher, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: envelope key seed is not set", common.ErrConfiguration)
	}
	seed, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: envelope key seed is not valid base64url", common.ErrConfiguration)
	}
	defer common.WipeByteArray(seed)
	return NewCipher(seed)
}

// GenerateSeed returns a fresh random seed for NewCipher.
func GenerateSeed() ([]byte, error) {
	dk, err := mlkem.GenerateKey768()
	if err != nil {
		return nil, err
	}
	return dk.Bytes(), nil
}

// EncodeSeed renders a seed in the form accepted by NewCipherFromString.
func EncodeSeed(seed []byte) string {
	return base64.RawURLEncoding.EncodeToString(seed)
}

// Encrypt seals plaintext into a self-contained envelope. Each call performs a
// new encapsulation, so no two envelopes share key material.
func (c *Cipher) Encrypt(plaintext []byte) (*Envelope, error) {
	sharedKey, kemCiphertext := c.ek.Encapsulate()
	defer common.WipeByteArray(sharedKey)

	aead, err := newAEAD(sharedKey)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(aead.NonceSize())
	ciphertext := aead.Seal(nil, nonce, plaintext, []byte(MethodMLKEMAES))

	return &Envelope{
		Method:      MethodMLKEMAES,
		Ciphertext:  ciphertext,
		KeyMaterial: kemCiphertext,
		Metadata:    map[string]string{metaNonce: base64.RawURLEncoding.EncodeToString(nonce)},
	}, nil
}

// Decrypt opens an envelope produced by Encrypt. Every failure wraps
// common.ErrDecryption and carries no plaintext.
func (c *Cipher) Decrypt(e *Envelope) ([]byte, error) {
	if e == nil {
		return nil, decryptionError("empty envelope")
	}
	if e.Method != MethodMLKEMAES {
		return nil, decryptionError("unknown method")
	}
	if len(e.KeyMaterial) != mlkem.CiphertextSize768 {
		return nil, decryptionError("bad key material")
	}

	nonce, err := base64.RawURLEncoding.DecodeString(e.Metadata[metaNonce])
	if err != nil || len(nonce) == 0 {
		return nil, decryptionError("missing nonce")
	}

	sharedKey, err := c.dk.Decapsulate(e.KeyMaterial)
	if err != nil {
		return nil, decryptionError("bad key material")
	}
	defer common.WipeByteArray(sharedKey)

	aead, err := newAEAD(sharedKey)
	if err != nil {
		return nil, decryptionError("key derivation failed")
	}
	if len(nonce) != aead.NonceSize() {
		return nil, decryptionError("missing nonce")
	}

	plaintext, err := aead.Open(nil, nonce, e.Ciphertext, []byte(MethodMLKEMAES))
	if err != nil {
		return nil, decryptionError("authentication failed")
	}
	return plaintext, nil
}

// EncryptRecord JSON-encodes v, encrypts it and returns the encoded envelope.
func (c *Cipher) EncryptRecord(v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	defer common.WipeByteArray(plaintext)

	e, err := c.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	return EncodeEnvelope(e)
}

// DecryptRecord reverses EncryptRecord into v.
func (c *Cipher) DecryptRecord(encoded string, v any) error {
	e, err := DecodeEnvelope(encoded)
	if err != nil {
		return err
	}
	plaintext, err := c.Decrypt(e)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(plaintext)

	if err := json.Unmarshal(plaintext, v); err != nil {
		return decryptionError("record does not match the expected type")
	}
	return nil
}

func newAEAD(sharedKey []byte) (cipher.AEAD, error) {
	key := make([]byte, keySize)
	defer common.WipeByteArray(key)

	if _, err := io.ReadFull(hkdf.New(sha256.New, sharedKey, nil, hkdfInfo), key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func decryptionError(reason string) error {
	return fmt.Errorf("%w: %s", common.ErrDecryption, reason)
}
