package ratelimit

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// hasher salts caller identifiers with HMAC-SHA256 before they are used as
// record keys, so raw caller identity is never stored. The key is random per
// limiter instance; hashed identifiers are not comparable across restarts,
// which matches the limiter's process-local lifetime.
type hasher struct {
	key []byte
}

func newHasher() (*hasher, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate hash key: %w", err)
	}
	return &hasher{key: key}, nil
}

// salt hashes an identifier using HMAC-SHA256
func (h *hasher) salt(identifier string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(identifier))
	return "hmac-sha256:" + hex.EncodeToString(mac.Sum(nil))
}
