package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_RoundTrip(t *testing.T) {
	engine := NewEngine("test-master-secret")

	cases := []string{
		"a",
		"abc123XYZ999",
		"hello world with spaces",
		"береги їх добре", // unicode
		"emoji 🔑🔒 secret",
		string(make([]byte, 500)),
	}

	for _, plaintext := range cases {
		envelope, err := engine.Encrypt(plaintext)
		require.NoError(t, err)
		require.NotEmpty(t, envelope)

		decrypted, err := engine.Decrypt(envelope)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestEngine_EncryptIsNonDeterministic(t *testing.T) {
	engine := NewEngine("test-master-secret")

	first, err := engine.Encrypt("same plaintext")
	require.NoError(t, err)
	second, err := engine.Encrypt("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestEngine_DecryptWithWrongMasterSecret(t *testing.T) {
	envelope, err := NewEngine("master-one").Encrypt("secret value")
	require.NoError(t, err)

	_, err = NewEngine("master-two").Decrypt(envelope)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestEngine_DecryptTamperedCiphertext(t *testing.T) {
	engine := NewEngine("test-master-secret")

	envelope, err := engine.Encrypt("sensitive data")
	require.NoError(t, err)

	env, err := DecodeEnvelope(envelope)
	require.NoError(t, err)

	// Flip one byte in the ciphertext segment
	env.Ciphertext[0] ^= 0x01
	tampered := EncodeEnvelope(env.Salt, env.Nonce, env.Ciphertext)

	_, err = engine.Decrypt(tampered)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestEngine_DecryptTamperedEnvelopeString(t *testing.T) {
	engine := NewEngine("test-master-secret")

	envelope, err := engine.Encrypt("sensitive data")
	require.NoError(t, err)

	// Alter one character of the encoded envelope
	altered := []byte(envelope)
	if altered[10] == 'A' {
		altered[10] = 'B'
	} else {
		altered[10] = 'A'
	}

	_, err = engine.Decrypt(string(altered))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestEngine_DecryptMalformedEnvelope(t *testing.T) {
	engine := NewEngine("test-master-secret")

	cases := []string{
		"",
		"not base64 at all!!!",
		"aGVsbG8=", // valid base64, no segments
	}

	for _, input := range cases {
		_, err := engine.Decrypt(input)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCorrupted)
	}
}

func TestEngine_DecryptWrongSaltSize(t *testing.T) {
	engine := NewEngine("test-master-secret")

	envelope, err := engine.Encrypt("data")
	require.NoError(t, err)
	env, err := DecodeEnvelope(envelope)
	require.NoError(t, err)

	short := EncodeEnvelope(env.Salt[:8], env.Nonce, env.Ciphertext)
	_, err = engine.Decrypt(short)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestGenerateMasterSecret(t *testing.T) {
	first := GenerateMasterSecret()
	second := GenerateMasterSecret()

	assert.Len(t, first, 64) // 32 bytes hex-encoded
	assert.NotEqual(t, first, second)
}
