package accounts

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// UpdatePasswordInput is the authenticated password change payload.
type UpdatePasswordInput struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (in UpdatePasswordInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.OldPassword, validation.Required),
		validation.Field(&in.NewPassword, validation.Required, PasswordRule),
	)
}

// ResetPasswordInput is the email+code reset payload.
type ResetPasswordInput struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

func (in ResetPasswordInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.OTP, validation.Required, OTPRule),
		validation.Field(&in.NewPassword, validation.Required, PasswordRule),
	)
}

// UpdatePassword rotates the password of an authenticated account. The
// superseded hash joins the bounded history and the acting session's jti is
// revoked so the caller has to authenticate with the new credential.
func (s *Service) UpdatePassword(ctx context.Context, account *Account, claims *Claims, in UpdatePasswordInput) error {
	if account == nil || claims == nil {
		return ErrUnauthenticated
	}
	if err := in.Validate(); err != nil {
		return err
	}

	if err := s.hasher.ComparePasswordAndHash(in.OldPassword, account.PasswordHash); err != nil {
		if HasTextCode(err, textCodePasswordMismatch) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}

	if err := s.checkPasswordReuse(account, in.NewPassword); err != nil {
		return err
	}

	newHash, err := s.hasher.HashPassword(in.NewPassword)
	if err != nil {
		return err
	}

	history := PushPasswordHistory(account.PasswordHistory, account.PasswordHash)
	if err := s.repo.Accounts().RotatePassword(ctx, account.ID, newHash, history, account.Revision); err != nil {
		return err
	}

	if err := s.repo.RevokedTokens().Revoke(ctx, claims.TokenID(), claims.Expires()); err != nil {
		s.logger.Error("failed to revoke session after password change account=%s: %v", account.ID, err)
	}

	return nil
}

// ForgetPassword issues a one time reset code. The code is stored only as a
// hash with an explicit expiry and delivered through the outbox.
func (s *Service) ForgetPassword(ctx context.Context, email string) error {
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return err
	}

	account, err := s.repo.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return ErrAccountNotFound
		}
		return err
	}

	otp, err := GenerateOTP(OTPLength)
	if err != nil {
		return err
	}

	otpHash, err := s.hasher.HashPassword(otp)
	if err != nil {
		return err
	}

	expiresAt := s.now().Add(s.otpTTL)
	if err := s.repo.Accounts().SetOTP(ctx, account.ID, otpHash, expiresAt); err != nil {
		return err
	}

	s.enqueue(PasswordResetEmail{
		To:   account.Email,
		Name: account.Name,
		OTP:  otp,
	})

	return nil
}

// ResetPassword exchanges a valid, unexpired code for a new password. The
// rotation clears the code in the same conditional write, so a code is
// usable at most once.
func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if err := in.Validate(); err != nil {
		return err
	}

	account, err := s.repo.Accounts().GetByEmail(ctx, in.Email)
	if err != nil {
		if IsNotFound(err) {
			return ErrAccountNotFound
		}
		return err
	}

	if account.OTPHash == "" {
		return ErrInvalidOTP
	}
	if account.OTPExpiresAt == nil || account.OTPExpiresAt.Before(s.now()) {
		return ErrInvalidOTP
	}

	if err := s.hasher.ComparePasswordAndHash(in.OTP, account.OTPHash); err != nil {
		if HasTextCode(err, textCodePasswordMismatch) {
			return ErrInvalidOTP
		}
		return err
	}

	if err := s.checkPasswordReuse(account, in.NewPassword); err != nil {
		return err
	}

	newHash, err := s.hasher.HashPassword(in.NewPassword)
	if err != nil {
		return err
	}

	history := PushPasswordHistory(account.PasswordHistory, account.PasswordHash)
	return s.repo.Accounts().RotatePassword(ctx, account.ID, newHash, history, account.Revision)
}

// checkPasswordReuse rejects a candidate matching the current hash or any
// retained prior hash.
func (s *Service) checkPasswordReuse(account *Account, candidate string) error {
	hashes := make([]string, 0, len(account.PasswordHistory)+1)
	if account.PasswordHash != "" {
		hashes = append(hashes, account.PasswordHash)
	}
	hashes = append(hashes, account.PasswordHistory...)

	for _, hash := range hashes {
		err := s.hasher.ComparePasswordAndHash(candidate, hash)
		if err == nil {
			return ErrPasswordReused
		}
		if !HasTextCode(err, textCodePasswordMismatch) {
			return err
		}
	}

	return nil
}
