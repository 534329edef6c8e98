package accounts

import (
	"context"
	"fmt"
	"io"
	"path"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ProfileView is the owner's view of their account, phone in the clear.
type ProfileView struct {
	Account *Account `json:"account"`
	Phone   string   `json:"phone,omitempty"`
}

// PublicProfileView is the restricted projection served to other accounts.
type PublicProfileView struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Gender       string     `json:"gender,omitempty"`
	ProfileImage *MediaRef  `json:"profile_image,omitempty"`
	CoverImages  []MediaRef `json:"cover_images,omitempty"`
}

// UpdateProfileInput carries partial profile changes; nil means unchanged.
type UpdateProfileInput struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Gender *string `json:"gender,omitempty"`
	Age    *int    `json:"age,omitempty"`
	Phone  *string `json:"phone,omitempty"`
}

func (in UpdateProfileInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.By(optionalString(validation.Length(2, 120)))),
		validation.Field(&in.Email, validation.By(optionalString(is.Email))),
		validation.Field(&in.Gender, validation.By(optionalString(validation.In("", "male", "female", "other")))),
	)
}

func optionalString(rule validation.Rule) func(any) error {
	return func(value any) error {
		ptr, ok := value.(*string)
		if !ok || ptr == nil {
			return nil
		}
		return validation.Validate(*ptr, rule)
	}
}

// UploadFile is one incoming media file.
type UploadFile struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Profile returns the owner's account with the phone decrypted.
func (s *Service) Profile(ctx context.Context, account *Account) (*ProfileView, error) {
	if account == nil {
		return nil, ErrUnauthenticated
	}

	phone, err := s.decryptPhone(account)
	if err != nil {
		return nil, err
	}

	return &ProfileView{Account: account, Phone: phone}, nil
}

// PublicProfile returns the restricted projection for any active account.
func (s *Service) PublicProfile(ctx context.Context, id uuid.UUID) (*PublicProfileView, error) {
	account, err := s.repo.Accounts().GetByIdentifier(ctx, id.String())
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	if account.IsFrozen() || !account.Confirmed {
		return nil, ErrAccountNotFound
	}

	return &PublicProfileView{
		ID:           account.ID,
		Name:         account.Name,
		Gender:       account.Gender,
		ProfileImage: account.ProfileImage,
		CoverImages:  account.CoverImages,
	}, nil
}

// UpdateProfile applies partial changes. Changing the email re-checks
// uniqueness, drops the confirmed flag and re-sends a confirmation email;
// the write is guarded by the revision the caller read.
func (s *Service) UpdateProfile(ctx context.Context, account *Account, in UpdateProfileInput) (*Account, error) {
	if account == nil {
		return nil, ErrUnauthenticated
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	record := *account
	emailChanged := false

	if in.Name != nil {
		record.Name = *in.Name
	}
	if in.Gender != nil {
		record.Gender = *in.Gender
	}
	if in.Age != nil {
		record.Age = *in.Age
	}
	if in.Phone != nil {
		ciphertext, err := s.encryptPhone(*in.Phone)
		if err != nil {
			return nil, err
		}
		record.PhoneCiphertext = ciphertext
	}

	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		if email != account.Email {
			if _, err := s.repo.Accounts().GetByEmail(ctx, email); err == nil {
				return nil, ErrDuplicateEmail
			} else if !IsNotFound(err) {
				return nil, err
			}
			record.Email = email
			record.Confirmed = false
			emailChanged = true
		}
	}

	updated, err := s.repo.Accounts().SaveProfile(ctx, &record)
	if err != nil {
		return nil, err
	}

	if emailChanged {
		s.enqueueConfirmation(updated)
	}

	return updated, nil
}

// UploadProfileImage stores the new image and destroys the superseded one.
func (s *Service) UploadProfileImage(ctx context.Context, account *Account, file UploadFile) (*Account, error) {
	if account == nil {
		return nil, ErrUnauthenticated
	}
	if s.storage == nil {
		return nil, goerrors.New("object storage not configured", goerrors.CategoryInternal)
	}
	if file.Body == nil {
		return nil, ErrNoEmptyString
	}

	ref, err := s.storage.Upload(ctx, s.mediaKey(account.ID, "profile", file.Name), file.ContentType, file.Body)
	if err != nil {
		return nil, err
	}

	record := *account
	old := record.ProfileImage
	record.ProfileImage = &ref

	updated, err := s.repo.Accounts().SaveProfile(ctx, &record)
	if err != nil {
		// the record kept its old reference, drop the orphaned upload
		s.destroyQuietly(ctx, ref.Key)
		return nil, err
	}

	if old != nil && old.Key != "" {
		s.destroyQuietly(ctx, old.Key)
	}

	return updated, nil
}

// UploadCoverImages replaces the cover set, destroying superseded objects.
func (s *Service) UploadCoverImages(ctx context.Context, account *Account, files []UploadFile) (*Account, error) {
	if account == nil {
		return nil, ErrUnauthenticated
	}
	if s.storage == nil {
		return nil, goerrors.New("object storage not configured", goerrors.CategoryInternal)
	}
	if len(files) == 0 {
		return nil, ErrNoEmptyString
	}

	refs := make([]MediaRef, 0, len(files))
	for _, file := range files {
		if file.Body == nil {
			continue
		}
		ref, err := s.storage.Upload(ctx, s.mediaKey(account.ID, "covers", file.Name), file.ContentType, file.Body)
		if err != nil {
			s.destroyRefsQuietly(ctx, refs)
			return nil, err
		}
		refs = append(refs, ref)
	}

	record := *account
	old := record.CoverImages
	record.CoverImages = refs

	updated, err := s.repo.Accounts().SaveProfile(ctx, &record)
	if err != nil {
		s.destroyRefsQuietly(ctx, refs)
		return nil, err
	}

	s.destroyRefsQuietly(ctx, old)

	return updated, nil
}

func (s *Service) mediaKey(id uuid.UUID, kind, filename string) string {
	return fmt.Sprintf("accounts/%s/%s/%s%s", id, kind, uuid.NewString(), path.Ext(filename))
}

func (s *Service) destroyQuietly(ctx context.Context, key string) {
	if key == "" || s.storage == nil {
		return
	}
	if err := s.storage.Destroy(ctx, key); err != nil {
		s.logger.Warn("failed to destroy object %s: %v", key, err)
	}
}

func (s *Service) destroyRefsQuietly(ctx context.Context, refs []MediaRef) {
	keys := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.Key != "" {
			keys = append(keys, ref.Key)
		}
	}
	if len(keys) == 0 || s.storage == nil {
		return
	}
	if err := s.storage.DestroyMany(ctx, keys); err != nil {
		s.logger.Warn("failed to destroy %d objects: %v", len(keys), err)
	}
}
