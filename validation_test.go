package accounts_test

import (
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accounts "github.com/veilnote/go-accounts"
)

func TestPasswordRule(t *testing.T) {
	tests := []struct {
		name     string
		password string
		ok       bool
	}{
		{name: "valid", password: "Sup3rSecret", ok: true},
		{name: "too short", password: "Ab1", ok: false},
		{name: "no upper case", password: "sup3rsecret", ok: false},
		{name: "no lower case", password: "SUP3RSECRET", ok: false},
		{name: "no digit", password: "SuperSecret", ok: false},
		{name: "empty", password: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.Validate(tt.password, accounts.PasswordRule)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, accounts.ErrWeakPassword)
		})
	}
}

func TestOTPRule(t *testing.T) {
	assert.NoError(t, validation.Validate("123456", accounts.OTPRule))

	for _, otp := range []string{"", "12345", "1234567", "12345a", "abcdef"} {
		assert.ErrorIs(t, validation.Validate(otp, accounts.OTPRule), accounts.ErrInvalidOTP)
	}
}

func TestNormalizePhone(t *testing.T) {
	t.Run("national number with default region", func(t *testing.T) {
		got, err := accounts.NormalizePhone("650-253-0000", "")
		require.NoError(t, err)
		assert.Equal(t, "+16502530000", got)
	})

	t.Run("already e164", func(t *testing.T) {
		got, err := accounts.NormalizePhone("+16502530000", "US")
		require.NoError(t, err)
		assert.Equal(t, "+16502530000", got)
	})

	t.Run("explicit region", func(t *testing.T) {
		got, err := accounts.NormalizePhone("020 7031 3000", "GB")
		require.NoError(t, err)
		assert.Equal(t, "+442070313000", got)
	})

	t.Run("invalid number", func(t *testing.T) {
		_, err := accounts.NormalizePhone("12", "US")
		assert.ErrorIs(t, err, accounts.ErrInvalidPhone)
	})

	t.Run("unparseable input", func(t *testing.T) {
		_, err := accounts.NormalizePhone("not a phone", "US")
		assert.ErrorIs(t, err, accounts.ErrInvalidPhone)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := accounts.NormalizePhone("", "US")
		assert.ErrorIs(t, err, accounts.ErrNoEmptyString)
	})
}
