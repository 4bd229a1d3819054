package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// envelopeDelimiter separates the hex-encoded salt, nonce and ciphertext
// segments before the whole envelope is base64-encoded.
const envelopeDelimiter = ":"

// Envelope is the decoded form of one encrypted secret: the random salt the
// per-call key was derived with, the nonce the cipher ran under, and the
// authenticated ciphertext.
type Envelope struct {
	Salt       []byte
	Nonce      []byte
	Ciphertext []byte
}

// FormatError reports a malformed envelope string. A record carrying one is
// treated as corrupted by the token store.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed envelope: %s", e.Reason)
}

// EncodeEnvelope packs salt, nonce and ciphertext into a single transportable
// string: each segment hex-encoded, joined with a delimiter, and the result
// base64-encoded.
func EncodeEnvelope(salt, nonce, ciphertext []byte) string {
	joined := hex.EncodeToString(salt) + envelopeDelimiter +
		hex.EncodeToString(nonce) + envelopeDelimiter +
		hex.EncodeToString(ciphertext)
	return base64.StdEncoding.EncodeToString([]byte(joined))
}

// DecodeEnvelope unpacks an envelope string produced by EncodeEnvelope.
// Anything other than exactly three hex segments yields a FormatError.
func DecodeEnvelope(encoded string) (*Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &FormatError{Reason: "invalid base64 encoding"}
	}

	segments := strings.Split(string(raw), envelopeDelimiter)
	if len(segments) != 3 {
		return nil, &FormatError{Reason: fmt.Sprintf("expected 3 segments, got %d", len(segments))}
	}

	salt, err := hex.DecodeString(segments[0])
	if err != nil {
		return nil, &FormatError{Reason: "salt segment is not valid hex"}
	}
	nonce, err := hex.DecodeString(segments[1])
	if err != nil {
		return nil, &FormatError{Reason: "nonce segment is not valid hex"}
	}
	ciphertext, err := hex.DecodeString(segments[2])
	if err != nil {
		return nil, &FormatError{Reason: "ciphertext segment is not valid hex"}
	}

	return &Envelope{
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}, nil
}
