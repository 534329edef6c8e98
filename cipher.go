package accounts

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	goerrors "github.com/goliatone/go-errors"
)

// PhoneCipher encrypts PII (phone numbers) with AES-256-GCM so the value can
// be shown back to its owner. Ciphertext is base64(nonce || sealed).
type PhoneCipher struct {
	key []byte
}

// NewPhoneCipher requires a 32 byte key.
func NewPhoneCipher(key []byte) (*PhoneCipher, error) {
	if len(key) != 32 {
		return nil, goerrors.New("cipher key must be 32 bytes", goerrors.CategoryInternal)
	}
	return &PhoneCipher{key: key}, nil
}

// Encrypt seals the plaintext with a fresh nonce.
func (c *PhoneCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrNoEmptyString
	}

	aead, err := c.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate nonce")
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Failure signals data corruption or a key
// mismatch and is surfaced as an internal error, never swallowed.
func (c *PhoneCipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", ErrNoEmptyString
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "ciphertext is not valid base64")
	}

	aead, err := c.aead()
	if err != nil {
		return "", err
	}

	if len(raw) < aead.NonceSize() {
		return "", goerrors.New("ciphertext is truncated", goerrors.CategoryInternal)
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decrypt value")
	}

	return string(plaintext), nil
}

func (c *PhoneCipher) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize cipher")
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize GCM")
	}

	return aead, nil
}
