package accounts

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeUnauthenticated       = "UNAUTHENTICATED"
	textCodeTokenMalformed        = "TOKEN_MALFORMED"
	textCodeTokenSignature        = "TOKEN_SIGNATURE_INVALID"
	textCodeTokenExpired          = "TOKEN_EXPIRED"
	textCodeSessionRevoked        = "SESSION_REVOKED"
	textCodeUnknownScheme         = "UNKNOWN_AUTH_SCHEME"
	textCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	textCodeAccountNotFound       = "ACCOUNT_NOT_FOUND"
	textCodeNotConfirmed          = "ACCOUNT_NOT_CONFIRMED"
	textCodeNotFoundOrUnconfirmed = "ACCOUNT_NOT_FOUND_OR_NOT_CONFIRMED"
	textCodeAlreadyConfirmed      = "ALREADY_CONFIRMED"
	textCodeInvalidConfirmToken   = "INVALID_CONFIRM_TOKEN"
	textCodeDuplicateEmail        = "DUPLICATE_EMAIL"
	textCodeProviderMismatch      = "PROVIDER_MISMATCH"
	textCodeEmailNotVerified      = "EMAIL_NOT_VERIFIED"
	textCodePasswordReused        = "PASSWORD_REUSED"
	textCodePasswordMismatch      = "PASSWORD_MISMATCH"
	textCodeInvalidOTP            = "INVALID_OTP"
	textCodeForbidden             = "FORBIDDEN"
	textCodeAlreadyFrozen         = "ALREADY_FROZEN"
	textCodeNotFrozen             = "NOT_FROZEN"
	textCodeStaleRecord           = "STALE_RECORD"
	textCodeEmptyValue            = "EMPTY_VALUE"
	textCodeWeakPassword          = "WEAK_PASSWORD"
	textCodeInvalidPhone          = "INVALID_PHONE"
)

// ErrUnauthenticated is the generic rejection for requests without a usable
// bearer credential.
var ErrUnauthenticated = goerrors.New("missing or invalid credentials", goerrors.CategoryAuth).
	WithTextCode(textCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned when a token is structurally invalid.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenSignature is returned when a token signature does not match the
// secret selected for it.
var ErrTokenSignature = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenSignature).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned when a token is past its embedded expiry.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionRevoked is returned when the ledger holds the token's jti.
var ErrSessionRevoked = goerrors.New("session has been revoked", goerrors.CategoryAuth).
	WithTextCode(textCodeSessionRevoked).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnknownScheme is returned when the authorization prefix resolves to no
// configured secret pair. Rejected before any cryptographic verification.
var ErrUnknownScheme = goerrors.New("unknown authorization scheme", goerrors.CategoryAuth).
	WithTextCode(textCodeUnknownScheme).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials covers wrong password and unknown identifier alike so
// signin does not leak which of the two failed.
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountNotFound is returned when no account matches the lookup.
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNotFoundOrUnconfirmed is the signin rejection for accounts that are
// missing, frozen or not yet confirmed. One message for all three so signin
// does not reveal which applies.
var ErrNotFoundOrUnconfirmed = goerrors.New("account not found or not confirmed", goerrors.CategoryNotFound).
	WithTextCode(textCodeNotFoundOrUnconfirmed).
	WithCode(goerrors.CodeNotFound)

// ErrAccountNotConfirmed rejects authentication for accounts that never
// completed email confirmation.
var ErrAccountNotConfirmed = goerrors.New("account email is not confirmed", goerrors.CategoryAuth).
	WithTextCode(textCodeNotConfirmed).
	WithCode(goerrors.CodeUnauthorized)

// ErrAlreadyConfirmed is returned when a confirmation token is replayed
// against an already active account.
var ErrAlreadyConfirmed = goerrors.New("account is already confirmed", goerrors.CategoryConflict).
	WithTextCode(textCodeAlreadyConfirmed).
	WithCode(goerrors.CodeConflict)

// ErrInvalidConfirmToken collapses malformed, tampered and expired
// confirmation tokens into one message for the public confirm/reset flows.
var ErrInvalidConfirmToken = goerrors.New("invalid or expired token", goerrors.CategoryBadInput).
	WithTextCode(textCodeInvalidConfirmToken).
	WithCode(goerrors.CodeBadRequest)

// ErrDuplicateEmail is returned when the normalized email is already taken.
var ErrDuplicateEmail = goerrors.New("email is already registered", goerrors.CategoryConflict).
	WithTextCode(textCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrProviderMismatch is returned when a federated operation targets an
// account registered through a different provider.
var ErrProviderMismatch = goerrors.New("account registered with a different provider", goerrors.CategoryConflict).
	WithTextCode(textCodeProviderMismatch).
	WithCode(goerrors.CodeConflict)

// ErrEmailNotVerified rejects federated identities whose provider has not
// verified the email address.
var ErrEmailNotVerified = goerrors.New("email is not verified by the identity provider", goerrors.CategoryBadInput).
	WithTextCode(textCodeEmailNotVerified).
	WithCode(goerrors.CodeBadRequest)

// ErrPasswordReused is returned when a new password matches the current one
// or any retained prior hash.
var ErrPasswordReused = goerrors.New("password was used recently", goerrors.CategoryConflict).
	WithTextCode(textCodePasswordReused).
	WithCode(goerrors.CodeConflict)

// ErrMismatchedHashAndPassword is the typed bcrypt mismatch.
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(textCodePasswordMismatch).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidOTP is returned when a reset code does not match or is expired.
var ErrInvalidOTP = goerrors.New("invalid or expired code", goerrors.CategoryBadInput).
	WithTextCode(textCodeInvalidOTP).
	WithCode(goerrors.CodeBadRequest)

// ErrForbidden is the authorization rejection for authenticated actors.
var ErrForbidden = goerrors.New("insufficient permissions", goerrors.CategoryAuthz).
	WithTextCode(textCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrAlreadyFrozen is returned when freezing an account that is frozen.
var ErrAlreadyFrozen = goerrors.New("account is already frozen", goerrors.CategoryConflict).
	WithTextCode(textCodeAlreadyFrozen).
	WithCode(goerrors.CodeConflict)

// ErrNotFrozen is returned when unfreeze or delete targets an account that
// is not frozen.
var ErrNotFrozen = goerrors.New("account is not frozen", goerrors.CategoryConflict).
	WithTextCode(textCodeNotFrozen).
	WithCode(goerrors.CodeConflict)

// ErrStaleRecord is the optimistic concurrency rejection: the revision the
// caller read is no longer current.
var ErrStaleRecord = goerrors.New("account was modified concurrently", goerrors.CategoryConflict).
	WithTextCode(textCodeStaleRecord).
	WithCode(goerrors.CodeConflict)

// ErrWeakPassword is returned when a password fails the write-time policy.
var ErrWeakPassword = goerrors.New("password must be at least 8 characters with upper and lower case letters and a digit", goerrors.CategoryValidation).
	WithTextCode(textCodeWeakPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidPhone is returned when a phone number cannot be parsed.
var ErrInvalidPhone = goerrors.New("phone number is not valid", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidPhone).
	WithCode(goerrors.CodeBadRequest)

// ErrNoEmptyString guards hashing and encryption inputs.
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryValidation).
	WithTextCode(textCodeEmptyValue).
	WithCode(goerrors.CodeBadRequest)

// IsNotFound reports whether err is a not-found condition from this package
// or the repository layer.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if HasTextCode(err, textCodeAccountNotFound) {
		return true
	}
	return goerrors.IsNotFound(err)
}

// HasTextCode reports whether err carries the given machine-readable code.
func HasTextCode(err error, textCode string) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == textCode
}
