// Package secure encrypts sensitive identifiers, such as folio numbers, before
// they are written to the database.
package secure

import (
	"errors"
	"fmt"
	"time"

	"github.com/fernet/fernet-go"
)

// tokenTTL is effectively unbounded: stored folios never expire.
const tokenTTL = 100 * 365 * 24 * time.Hour

// ErrInvalidToken is returned when a stored value cannot be decrypted with the configured keys.
var ErrInvalidToken = errors.New("invalid or tampered token")

// Cipher encrypts and decrypts short strings for storage.
type Cipher interface {
	Encrypt(plain string) (string, error)
	Decrypt(token string) (string, error)
}

// FernetCipher implements Cipher with fernet tokens.
// The first key encrypts; every key is tried on decrypt to allow key rotation.
type FernetCipher struct {
	keys []*fernet.Key
}

// NewFernetCipher creates a cipher from one or more base64 encoded fernet keys.
func NewFernetCipher(encodedKeys ...string) (*FernetCipher, error) {
	if len(encodedKeys) == 0 {
		return nil, fmt.Errorf("at least one key is required")
	}
	keys, err := fernet.DecodeKeys(encodedKeys...)
	if err != nil {
		return nil, fmt.Errorf("failed to decode fernet key: %w", err)
	}
	return &FernetCipher{keys: keys}, nil
}

// Encrypt returns a fernet token for plain. Empty input stays empty.
func (c *FernetCipher) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	tok, err := fernet.EncryptAndSign([]byte(plain), c.keys[0])
	if err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}
	return string(tok), nil
}

// Decrypt verifies and decrypts a fernet token.
func (c *FernetCipher) Decrypt(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	msg := fernet.VerifyAndDecrypt([]byte(token), tokenTTL, c.keys)
	if msg == nil {
		return "", ErrInvalidToken
	}
	return string(msg), nil
}

// NoopCipher stores values as-is. Used when no encryption key is configured.
type NoopCipher struct{}

func (NoopCipher) Encrypt(plain string) (string, error) { return plain, nil }
func (NoopCipher) Decrypt(token string) (string, error) { return token, nil }

// New returns a FernetCipher when key is set and a NoopCipher otherwise.
func New(key string) (Cipher, error) {
	if key == "" {
		return NoopCipher{}, nil
	}
	return NewFernetCipher(key)
}
