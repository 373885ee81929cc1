package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// MinSecretBytes is the smallest accepted size for a generated token secret.
const MinSecretBytes = 32

// ErrSecretTooShort indicates a requested secret below MinSecretBytes.
var ErrSecretTooShort = errors.New("token secret too short")

// GenerateSecret returns n random bytes encoded as URL-safe base64,
// suitable for the TOKEN_SECRET setting.
func GenerateSecret(n int) (string, error) {
	if n < MinSecretBytes {
		return "", fmt.Errorf("%w: %d < %d bytes", ErrSecretTooShort, n, MinSecretBytes)
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
