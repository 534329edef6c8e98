package accounts

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// SigninInput is the local credentials payload.
type SigninInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in SigninInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required),
	)
}

// Signin authenticates a local account and issues a role-scoped token pair.
// Missing, unconfirmed and frozen accounts all fail with the same message;
// a wrong password fails with InvalidCredentials.
func (s *Service) Signin(ctx context.Context, in SigninInput) (*AuthResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	account, err := s.repo.Accounts().GetByEmail(ctx, in.Email)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrNotFoundOrUnconfirmed
		}
		return nil, err
	}

	if !account.Confirmed || account.IsFrozen() {
		return nil, ErrNotFoundOrUnconfirmed
	}

	if account.Provider != ProviderSystem {
		return nil, ErrProviderMismatch
	}

	if err := s.hasher.ComparePasswordAndHash(in.Password, account.PasswordHash); err != nil {
		if HasTextCode(err, textCodePasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	return s.buildAuthResult(account, false)
}

func (s *Service) buildAuthResult(account *Account, created bool) (*AuthResult, error) {
	tokens, err := s.tokens.IssuePair(account)
	if err != nil {
		return nil, err
	}

	phone, err := s.decryptPhone(account)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		Account: account,
		Tokens:  tokens,
		Phone:   phone,
		Created: created,
	}, nil
}
