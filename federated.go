package accounts

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// SignupWithGoogle registers an account from a verified Google identity.
// The provider already vouched for the email, so the account is born
// confirmed and carries no local password.
func (s *Service) SignupWithGoogle(ctx context.Context, credential string) (*AuthResult, error) {
	identity, err := s.verifyFederated(ctx, credential)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.Accounts().GetByEmail(ctx, identity.Email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !IsNotFound(err) {
		return nil, err
	}

	return s.registerFederated(ctx, identity)
}

// SigninWithGoogle authenticates an existing federated account.
func (s *Service) SigninWithGoogle(ctx context.Context, credential string) (*AuthResult, error) {
	identity, err := s.verifyFederated(ctx, credential)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.Accounts().GetByEmail(ctx, identity.Email)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrNotFoundOrUnconfirmed
		}
		return nil, err
	}

	return s.signinFederated(account)
}

// SignupOrSigninWithGoogle is the combined flow: register when the email is
// new, sign in when it already belongs to a Google account. The Created flag
// tells the transport whether to answer 201 or 200.
func (s *Service) SignupOrSigninWithGoogle(ctx context.Context, credential string) (*AuthResult, error) {
	identity, err := s.verifyFederated(ctx, credential)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.Accounts().GetByEmail(ctx, identity.Email)
	if err == nil {
		return s.signinFederated(account)
	}
	if !IsNotFound(err) {
		return nil, err
	}

	return s.registerFederated(ctx, identity)
}

func (s *Service) verifyFederated(ctx context.Context, credential string) (*FederatedIdentity, error) {
	if s.verifier == nil {
		return nil, goerrors.New("identity verifier not configured", goerrors.CategoryInternal)
	}
	if credential == "" {
		return nil, ErrUnauthenticated
	}

	identity, err := s.verifier.Verify(ctx, credential)
	if err != nil {
		return nil, err
	}

	if !identity.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	return identity, nil
}

func (s *Service) registerFederated(ctx context.Context, identity *FederatedIdentity) (*AuthResult, error) {
	account := &Account{
		Name:      identity.Name,
		Email:     NormalizeEmail(identity.Email),
		Role:      RoleUser,
		Provider:  ProviderGoogle,
		Confirmed: true,
	}

	if identity.Picture != "" {
		account.ProfileImage = &MediaRef{URL: identity.Picture}
	}

	created, err := s.repo.Accounts().Register(ctx, account)
	if err != nil {
		if _, lookupErr := s.repo.Accounts().GetByEmail(ctx, account.Email); lookupErr == nil {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	return s.buildAuthResult(created, true)
}

func (s *Service) signinFederated(account *Account) (*AuthResult, error) {
	if account.Provider != ProviderGoogle {
		return nil, ErrProviderMismatch
	}
	if account.IsFrozen() {
		return nil, ErrNotFoundOrUnconfirmed
	}

	return s.buildAuthResult(account, false)
}
