package accounts

import (
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/nyaruka/phonenumbers"
)

// OTPLength is the number of digits in a password reset code.
const OTPLength = 6

// DefaultPhoneRegion resolves national numbers without a country prefix.
const DefaultPhoneRegion = "US"

// PasswordRule enforces the write-time password policy: minimum length,
// mixed case and at least one digit.
var PasswordRule = validation.By(checkPasswordPolicy)

func checkPasswordPolicy(value any) error {
	password, _ := value.(string)
	if len(password) < 8 {
		return ErrWeakPassword
	}

	var hasLower, hasUpper, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasLower || !hasUpper || !hasDigit {
		return ErrWeakPassword
	}
	return nil
}

// OTPRule matches the shape of a reset code without leaking which part of
// the email+code pair failed.
var OTPRule = validation.By(func(value any) error {
	otp, _ := value.(string)
	if len(otp) != OTPLength {
		return ErrInvalidOTP
	}
	for _, r := range otp {
		if !unicode.IsDigit(r) {
			return ErrInvalidOTP
		}
	}
	return nil
})

// NormalizePhone parses a phone number and returns its E.164 form so one
// number always encrypts from the same plaintext.
func NormalizePhone(raw, region string) (string, error) {
	if raw == "" {
		return "", ErrNoEmptyString
	}
	if region == "" {
		region = DefaultPhoneRegion
	}

	parsed, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", ErrInvalidPhone
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", ErrInvalidPhone
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}
