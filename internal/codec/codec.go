// Package codec encrypts and decrypts short strings with a shared secret.
// Output is URL-safe base64 without padding, so it never contains '.' or ':'.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	keyLen   = 32 // AES-256
	hkdfInfo = "userdesk token codec v1"
)

var (
	// ErrEmptySecret indicates the codec was configured without a secret.
	ErrEmptySecret = errors.New("codec secret is empty")
	// ErrMalformedCiphertext indicates the input is not a valid encoded ciphertext.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	// ErrDecryptFailed indicates authentication of the ciphertext failed.
	ErrDecryptFailed = errors.New("decrypt failed")
)

var encoding = base64.RawURLEncoding

// Codec is an AES-GCM encryptor keyed from a process-wide secret.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	aead cipher.AEAD
}

// New derives an AES-256 key from secret and returns a Codec.
func New(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := make([]byte, keyLen)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return &Codec{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
// The result is base64url(nonce || ciphertext).
func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return encoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Corrupt, truncated or foreign input
// returns an error and never panics.
func (c *Codec) Decrypt(ciphertext string) (string, error) {
	raw, err := encoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrMalformedCiphertext
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", ErrMalformedCiphertext
	}

	plaintext, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptFailed
	}

	return string(plaintext), nil
}

// Encrypt is a one-shot helper that builds a Codec for secret.
// Prefer a long-lived Codec on hot paths.
func Encrypt(plaintext, secret string) (string, error) {
	c, err := New(secret)
	if err != nil {
		return "", err
	}
	return c.Encrypt(plaintext)
}

// Decrypt is the one-shot counterpart of Encrypt.
func Decrypt(ciphertext, secret string) (string, error) {
	c, err := New(secret)
	if err != nil {
		return "", err
	}
	return c.Decrypt(ciphertext)
}
