// Package cipher encrypts destination URLs for storage.
package cipher

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/vadimbarashkov/link-gateway/internal/entity"
	"github.com/vadimbarashkov/link-gateway/internal/urlcheck"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	minSecretLength = 16
	keyInfo         = "link-gateway url cipher v1"
)

var encoding = base64.RawURLEncoding

// ErrWeakSecret is returned by New when the secret is too short to derive a key from.
var ErrWeakSecret = errors.New("cipher secret too short")

// URLCipher seals URLs with XChaCha20-Poly1305. It is safe for concurrent use.
type URLCipher struct {
	aead cipher.AEAD
}

// New derives the encryption key from secret and returns a ready URLCipher.
func New(secret string) (*URLCipher, error) {
	const op = "cipher.New"

	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("%s: %w", op, ErrWeakSecret)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("%s: failed to derive key: %w", op, err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create aead: %w", op, err)
	}

	return &URLCipher{aead: aead}, nil
}

// Encode seals rawURL. It only accepts absolute http(s) URLs.
func (c *URLCipher) Encode(rawURL string) (string, error) {
	const op = "cipher.URLCipher.Encode"

	if err := urlcheck.Validate(rawURL); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(rawURL)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%s: failed to read nonce: %w", op, err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(rawURL), nil)

	return encoding.EncodeToString(sealed), nil
}

// Decode opens cipher text produced by Encode. Anything that does not
// authenticate and yield an absolute http(s) URL fails with entity.ErrDecode.
func (c *URLCipher) Decode(ciphertext string) (string, error) {
	const op = "cipher.URLCipher.Decode"

	raw, err := encoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%s: %w: bad encoding", op, entity.ErrDecode)
	}

	if len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return "", fmt.Errorf("%s: %w: input too short", op, entity.ErrDecode)
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]

	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w: authentication failed", op, entity.ErrDecode)
	}

	u := string(plain)
	if err := urlcheck.Validate(u); err != nil {
		return "", fmt.Errorf("%s: %w: invalid plaintext url", op, entity.ErrDecode)
	}

	return u, nil
}
