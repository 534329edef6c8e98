package accounts_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accounts "github.com/veilnote/go-accounts"
)

func TestNewPhoneCipher(t *testing.T) {
	t.Run("requires a 32 byte key", func(t *testing.T) {
		_, err := accounts.NewPhoneCipher([]byte("short"))
		assert.Error(t, err)
	})

	t.Run("accepts a 32 byte key", func(t *testing.T) {
		_, err := accounts.NewPhoneCipher(bytes.Repeat([]byte("k"), 32))
		assert.NoError(t, err)
	})
}

func TestPhoneCipher_Roundtrip(t *testing.T) {
	cipher, err := accounts.NewPhoneCipher(bytes.Repeat([]byte("a"), 32))
	require.NoError(t, err)

	t.Run("encrypt then decrypt", func(t *testing.T) {
		ciphertext, err := cipher.Encrypt("+16502530000")
		require.NoError(t, err)
		assert.NotEqual(t, "+16502530000", ciphertext)

		plaintext, err := cipher.Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, "+16502530000", plaintext)
	})

	t.Run("fresh nonce per encryption", func(t *testing.T) {
		first, err := cipher.Encrypt("+16502530000")
		require.NoError(t, err)
		second, err := cipher.Encrypt("+16502530000")
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
	})

	t.Run("wrong key fails", func(t *testing.T) {
		other, err := accounts.NewPhoneCipher(bytes.Repeat([]byte("b"), 32))
		require.NoError(t, err)

		ciphertext, err := cipher.Encrypt("+16502530000")
		require.NoError(t, err)

		_, err = other.Decrypt(ciphertext)
		assert.Error(t, err)
	})

	t.Run("garbage ciphertext fails", func(t *testing.T) {
		_, err := cipher.Decrypt("not base64!!")
		assert.Error(t, err)

		_, err = cipher.Decrypt("c2hvcnQ=")
		assert.Error(t, err)
	})

	t.Run("empty values rejected", func(t *testing.T) {
		_, err := cipher.Encrypt("")
		assert.ErrorIs(t, err, accounts.ErrNoEmptyString)

		_, err = cipher.Decrypt("")
		assert.ErrorIs(t, err, accounts.ErrNoEmptyString)
	})
}
