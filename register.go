package accounts

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// SignupInput is the local registration payload.
type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Age      int    `json:"age,omitempty"`
}

func (in SignupInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(2, 120)),
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required, PasswordRule),
		validation.Field(&in.Gender, validation.In("", "male", "female", "other")),
		validation.Field(&in.Age, validation.Min(0), validation.Max(150)),
	)
}

// Signup registers a local account. The account starts unconfirmed; the
// confirmation email rides the outbox so the response never waits on it.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Account, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	email := NormalizeEmail(in.Email)
	if _, err := s.repo.Accounts().GetByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !IsNotFound(err) {
		return nil, err
	}

	hash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	phoneCiphertext, err := s.encryptPhone(in.Phone)
	if err != nil {
		return nil, err
	}

	account := &Account{
		Name:            in.Name,
		Email:           email,
		Gender:          in.Gender,
		Age:             in.Age,
		PasswordHash:    hash,
		PhoneCiphertext: phoneCiphertext,
		Role:            RoleUser,
		Provider:        ProviderSystem,
		Confirmed:       false,
	}

	created, err := s.repo.Accounts().Register(ctx, account)
	if err != nil {
		// the unique index is the last line of defense against a signup race
		if _, lookupErr := s.repo.Accounts().GetByEmail(ctx, email); lookupErr == nil {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	s.enqueueConfirmation(created)

	return created, nil
}

// ConfirmEmail moves an account from unconfirmed to active exactly once.
// Replaying the token fails with AlreadyConfirmed; everything else about the
// token collapses into one generic rejection.
func (s *Service) ConfirmEmail(ctx context.Context, token string) (*Account, error) {
	claims, err := s.tokens.VerifyConfirm(token)
	if err != nil {
		return nil, err
	}

	subject, err := claims.SubjectID()
	if err != nil {
		return nil, ErrInvalidConfirmToken
	}

	account, err := s.repo.Accounts().GetByIdentifier(ctx, subject.String())
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrInvalidConfirmToken
		}
		return nil, err
	}

	// a token issued before an email change no longer matches the record
	if NormalizeEmail(claims.Email) != account.Email {
		return nil, ErrInvalidConfirmToken
	}

	if account.Confirmed {
		return nil, ErrAlreadyConfirmed
	}

	actor := ActorRef{ID: account.ID, Type: "account"}
	return s.sm.Transition(ctx, actor, account, StatusActive,
		WithTransitionReason("email confirmed"))
}

// ResendConfirmation closes the dead end left when the first confirmation
// email is lost: it issues a fresh token for a still unconfirmed account.
func (s *Service) ResendConfirmation(ctx context.Context, email string) error {
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

	if account.Confirmed {
		return ErrAlreadyConfirmed
	}

	s.enqueueConfirmation(account)
	return nil
}
