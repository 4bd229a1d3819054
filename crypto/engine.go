package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the size in bytes of the per-encryption KDF salt.
	SaltSize = 16

	// NonceSize is the size in bytes of the per-encryption GCM nonce. The
	// stored envelope layout carries a 16-byte IV, so the GCM instance is
	// built with a matching nonce size rather than the 12-byte default.
	NonceSize = 16

	keySize       = 32
	kdfIterations = 100_000
)

var (
	// ErrCorrupted is returned when an envelope cannot be decrypted: the
	// ciphertext was tampered with, the record is malformed, or it was
	// encrypted under different master key material. Decryption never
	// returns garbage silently.
	ErrCorrupted = errors.New("credential envelope is corrupted or undecryptable")
)

// Engine performs symmetric encryption of individual secret strings under
// keys derived from a process-wide master secret. Each Encrypt call derives
// a fresh key from a random salt, so the master secret itself never keys the
// cipher directly.
//
// An Engine is safe for concurrent use; it holds no mutable state.
type Engine struct {
	masterSecret []byte
}

// NewEngine creates an Engine rooted at the given master secret.
func NewEngine(masterSecret string) *Engine {
	return &Engine{masterSecret: []byte(masterSecret)}
}

// GenerateMasterSecret returns a random hex-encoded master secret. Used as
// the process-lifetime fallback when no master secret is configured; every
// envelope encrypted under it becomes permanently unrecoverable once the
// process exits.
func GenerateMasterSecret() string {
	buf := make([]byte, keySize)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("system randomness unavailable: %v", err))
	}
	return hex.EncodeToString(buf)
}

// Encrypt seals plaintext into an envelope string. The salt and nonce are
// freshly random per call, so encrypting the same plaintext twice yields two
// different envelopes.
func (e *Engine) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	aead, err := e.newAEAD(salt)
	if err != nil {
		return "", err
	}

	ciphertext := aead.Seal(nil, nonce, []byte(plaintext), nil)
	return EncodeEnvelope(salt, nonce, ciphertext), nil
}

// Decrypt opens an envelope string and returns the original plaintext. Any
// failure, whether a malformed envelope or an authentication failure from
// the cipher, surfaces as ErrCorrupted; the wrapped cause is preserved for
// errors.As inspection but callers should treat the record as lost.
func (e *Engine) Decrypt(encoded string) (string, error) {
	env, err := DecodeEnvelope(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCorrupted, err)
	}

	if len(env.Salt) != SaltSize {
		return "", fmt.Errorf("%w: salt has %d bytes, want %d", ErrCorrupted, len(env.Salt), SaltSize)
	}
	if len(env.Nonce) != NonceSize {
		return "", fmt.Errorf("%w: nonce has %d bytes, want %d", ErrCorrupted, len(env.Nonce), NonceSize)
	}

	aead, err := e.newAEAD(env.Salt)
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrCorrupted)
	}

	return string(plaintext), nil
}

// newAEAD derives the per-call key from the master secret and salt and
// builds the AES-256-GCM instance.
func (e *Engine) newAEAD(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(e.masterSecret, salt, kdfIterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}
	return aead, nil
}
