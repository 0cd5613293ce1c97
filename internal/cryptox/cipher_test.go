package cryptox

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dmitrijs2005/passkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	seed, err := GenerateSeed()
	require.NoError(t, err)
	c, err := NewCipher(seed)
	require.NoError(t, err)
	return c
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c := newTestCipher(t)

	for _, plaintext := range [][]byte{
		[]byte("hello"),
		{},
		bytes.Repeat([]byte{0xAB}, 4096),
	} {
		e, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		assert.Equal(t, MethodMLKEMAES, e.Method)
		assert.NotContains(t, string(e.Ciphertext), "hello")

		got, err := c.Decrypt(e)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(plaintext, got))
	}
}

func TestEncrypt_FreshKeyMaterialPerCall(t *testing.T) {
	c := newTestCipher(t)

	a, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, a.KeyMaterial, b.KeyMaterial)
	assert.NotEqual(t, a.Metadata[metaNonce], b.Metadata[metaNonce])
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestDecrypt_TamperedCiphertextFails(t *testing.T) {
	c := newTestCipher(t)

	e, err := c.Encrypt([]byte("signature counter 42"))
	require.NoError(t, err)

	for i := range e.Ciphertext {
		tampered := *e
		tampered.Ciphertext = append([]byte(nil), e.Ciphertext...)
		tampered.Ciphertext[i] ^= 0x01

		got, err := c.Decrypt(&tampered)
		require.Error(t, err, "byte %d", i)
		assert.True(t, errors.Is(err, common.ErrDecryption))
		assert.Nil(t, got)
	}
}

func TestDecrypt_TamperedKeyMaterialFails(t *testing.T) {
	c := newTestCipher(t)

	e, err := c.Encrypt([]byte("payload"))
	require.NoError(t, err)
	e.KeyMaterial[0] ^= 0xFF

	_, err = c.Decrypt(e)
	assert.True(t, errors.Is(err, common.ErrDecryption))
}

func TestDecrypt_WrongServiceKeyFails(t *testing.T) {
	e, err := newTestCipher(t).Encrypt([]byte("payload"))
	require.NoError(t, err)

	_, err = newTestCipher(t).Decrypt(e)
	assert.True(t, errors.Is(err, common.ErrDecryption))
}

func TestDecrypt_RejectsBadEnvelopes(t *testing.T) {
	c := newTestCipher(t)
	good, err := c.Encrypt([]byte("payload"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(e *Envelope)
	}{
		{"unknown method", func(e *Envelope) { e.Method = "rot13" }},
		{"missing nonce", func(e *Envelope) { delete(e.Metadata, metaNonce) }},
		{"short nonce", func(e *Envelope) { e.Metadata[metaNonce] = "AAAA" }},
		{"short key material", func(e *Envelope) { e.KeyMaterial = e.KeyMaterial[:10] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Envelope{
				Method:      good.Method,
				Ciphertext:  append([]byte(nil), good.Ciphertext...),
				KeyMaterial: append([]byte(nil), good.KeyMaterial...),
				Metadata:    map[string]string{metaNonce: good.Metadata[metaNonce]},
			}
			tt.mutate(e)

			_, err := c.Decrypt(e)
			assert.True(t, errors.Is(err, common.ErrDecryption))
		})
	}

	_, err = c.Decrypt(nil)
	assert.True(t, errors.Is(err, common.ErrDecryption))
}

func TestNewCipher_Configuration(t *testing.T) {
	_, err := NewCipher(make([]byte, 10))
	assert.True(t, errors.Is(err, common.ErrConfiguration))

	_, err = NewCipherFromString("")
	assert.True(t, errors.Is(err, common.ErrConfiguration))

	_, err = NewCipherFromString("not base64 at all!")
	assert.True(t, errors.Is(err, common.ErrConfiguration))

	seed, err := GenerateSeed()
	require.NoError(t, err)
	c1, err := NewCipherFromString(EncodeSeed(seed))
	require.NoError(t, err)
	c2, err := NewCipher(seed)
	require.NoError(t, err)

	// Same seed, same service key.
	e, err := c1.Encrypt([]byte("x"))
	require.NoError(t, err)
	got, err := c2.Decrypt(e)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

type record struct {
	Name    string `json:"name"`
	Counter uint32 `json:"counter"`
}

func TestEncryptRecord_RoundTrip(t *testing.T) {
	c := newTestCipher(t)

	encoded, err := c.EncryptRecord(record{Name: "alice", Counter: 7})
	require.NoError(t, err)
	assert.NotContains(t, encoded, "alice")

	var got record
	require.NoError(t, c.DecryptRecord(encoded, &got))
	assert.Equal(t, record{Name: "alice", Counter: 7}, got)
}

func TestDecryptRecord_Malformed(t *testing.T) {
	c := newTestCipher(t)

	var got record
	err := c.DecryptRecord("mlkem768-hkdf-aes256gcm|abc", &got)
	assert.True(t, errors.Is(err, ErrEnvelopeFormat))
	assert.True(t, errors.Is(err, common.ErrDecryption))
	assert.Equal(t, record{}, got)
}
