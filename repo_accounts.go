package accounts

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var confirmAccountSQL = `UPDATE "accounts" AS "acc"
SET
	"confirmed" = TRUE,
	"revision" = "revision" + 1,
	"updated_at" = ?
WHERE
	"acc"."id" = ?
AND "acc"."confirmed" = FALSE
AND "acc"."frozen_at" IS NULL
AND "acc"."revision" = ?;`

var freezeAccountSQL = `UPDATE "accounts" AS "acc"
SET
	"frozen_at" = ?,
	"frozen_by" = ?,
	"restored_at" = NULL,
	"restored_by" = NULL,
	"revision" = "revision" + 1,
	"updated_at" = ?
WHERE
	"acc"."id" = ?
AND "acc"."frozen_at" IS NULL
AND "acc"."revision" = ?;`

var unfreezeAccountSQL = `UPDATE "accounts" AS "acc"
SET
	"frozen_at" = NULL,
	"frozen_by" = NULL,
	"restored_at" = ?,
	"restored_by" = ?,
	"revision" = "revision" + 1,
	"updated_at" = ?
WHERE
	"acc"."id" = ?
AND "acc"."frozen_at" IS NOT NULL
AND "acc"."frozen_by" = ?
AND "acc"."revision" = ?;`

var rotatePasswordSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?,
	"password_history" = ?,
	"otp_hash" = NULL,
	"otp_expires_at" = NULL,
	"revision" = "revision" + 1,
	"updated_at" = ?
WHERE
	"acc"."id" = ?
AND "acc"."revision" = ?;`

var setOTPSQL = `UPDATE "accounts" AS "acc"
SET
	"otp_hash" = ?,
	"otp_expires_at" = ?,
	"revision" = "revision" + 1,
	"updated_at" = ?
WHERE
	"acc"."id" = ?;`

var saveProfileSQL = `UPDATE "accounts" AS "acc"
SET
	"name" = ?,
	"email" = ?,
	"gender" = ?,
	"age" = ?,
	"phone_ciphertext" = ?,
	"confirmed" = ?,
	"profile_image" = ?,
	"cover_images" = ?,
	"revision" = "revision" + 1,
	"updated_at" = ?
WHERE
	"acc"."id" = ?
AND "acc"."revision" = ?;`

// Accounts is the account record store. Lifecycle mutations are atomic
// conditional updates: the precondition and the revision counter ride in the
// WHERE clause so concurrent callers resolve deterministically.
type Accounts interface {
	repository.Repository[*Account]

	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)

	ConfirmEmail(ctx context.Context, id uuid.UUID, revision int64) (*Account, error)
	ConfirmEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID, revision int64) (*Account, error)
	Freeze(ctx context.Context, id, actor uuid.UUID, revision int64) (*Account, error)
	FreezeTx(ctx context.Context, tx bun.IDB, id, actor uuid.UUID, revision int64) (*Account, error)
	Unfreeze(ctx context.Context, id, actor uuid.UUID, revision int64) (*Account, error)
	UnfreezeTx(ctx context.Context, tx bun.IDB, id, actor uuid.UUID, revision int64) (*Account, error)
	DeleteFrozen(ctx context.Context, id uuid.UUID) error
	DeleteFrozenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error

	RotatePassword(ctx context.Context, id uuid.UUID, newHash string, history []string, revision int64) error
	RotatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, newHash string, history []string, revision int64) error
	SetOTP(ctx context.Context, id uuid.UUID, otpHash string, expiresAt time.Time) error
	SetOTPTx(ctx context.Context, tx bun.IDB, id uuid.UUID, otpHash string, expiresAt time.Time) error

	SaveProfile(ctx context.Context, record *Account) (*Account, error)
	SaveProfileTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)
}

type accountsRepo struct {
	repository.Repository[*Account]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Accounts                        = (*accountsRepo)(nil)
	_ repository.Repository[*Account] = (*accountsRepo)(nil)
)

// AccountsOption customizes the repository.
type AccountsOption func(*accountsRepo)

// WithAccountsClock injects a custom clock (useful for tests).
func WithAccountsClock(clock func() time.Time) AccountsOption {
	return func(a *accountsRepo) {
		if clock != nil {
			a.now = clock
		}
	}
}

func NewAccountsRepository(db *bun.DB, opts ...AccountsOption) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoAccounts := &accountsRepo{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoAccounts)
		}
	}

	return repoAccounts
}

func (a *accountsRepo) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

func (a *accountsRepo) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	prepareAccountDefaults(account)
	return a.Repository.CreateTx(ctx, tx, account)
}

func (a *accountsRepo) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accountsRepo) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": NormalizeEmail(email)})
		}
		return nil, err
	}

	return record, nil
}

func (a *accountsRepo) ConfirmEmail(ctx context.Context, id uuid.UUID, revision int64) (*Account, error) {
	return a.ConfirmEmailTx(ctx, a.db, id, revision)
}

func (a *accountsRepo) ConfirmEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID, revision int64) (*Account, error) {
	res, err := tx.NewRaw(confirmAccountSQL, a.now(), id.String(), revision).Exec(ctx)
	if err != nil {
		return nil, err
	}

	if touched(res) {
		return a.reload(ctx, tx, id)
	}

	current, err := a.reload(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if current.Confirmed {
		return nil, ErrAlreadyConfirmed
	}
	if current.IsFrozen() {
		return nil, ErrAlreadyFrozen
	}
	return nil, staleRecord(id, revision, current.Revision)
}

func (a *accountsRepo) Freeze(ctx context.Context, id, actor uuid.UUID, revision int64) (*Account, error) {
	return a.FreezeTx(ctx, a.db, id, actor, revision)
}

func (a *accountsRepo) FreezeTx(ctx context.Context, tx bun.IDB, id, actor uuid.UUID, revision int64) (*Account, error) {
	now := a.now()
	res, err := tx.NewRaw(freezeAccountSQL, now, actor.String(), now, id.String(), revision).Exec(ctx)
	if err != nil {
		return nil, err
	}

	if touched(res) {
		return a.reload(ctx, tx, id)
	}

	current, err := a.reload(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if current.IsFrozen() {
		return nil, ErrAlreadyFrozen
	}
	return nil, staleRecord(id, revision, current.Revision)
}

func (a *accountsRepo) Unfreeze(ctx context.Context, id, actor uuid.UUID, revision int64) (*Account, error) {
	return a.UnfreezeTx(ctx, a.db, id, actor, revision)
}

func (a *accountsRepo) UnfreezeTx(ctx context.Context, tx bun.IDB, id, actor uuid.UUID, revision int64) (*Account, error) {
	now := a.now()
	res, err := tx.NewRaw(unfreezeAccountSQL, now, actor.String(), now, id.String(), actor.String(), revision).Exec(ctx)
	if err != nil {
		return nil, err
	}

	if touched(res) {
		return a.reload(ctx, tx, id)
	}

	current, err := a.reload(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsFrozen() {
		return nil, ErrNotFrozen
	}
	if current.FrozenBy != nil && *current.FrozenBy != actor {
		return nil, ErrForbidden.WithMetadata(map[string]any{
			"frozen_by": current.FrozenBy.String(),
			"actor":     actor.String(),
		})
	}
	return nil, staleRecord(id, revision, current.Revision)
}

func (a *accountsRepo) DeleteFrozen(ctx context.Context, id uuid.UUID) error {
	return a.DeleteFrozenTx(ctx, a.db, id)
}

func (a *accountsRepo) DeleteFrozenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewDelete().
		Model((*Account)(nil)).
		Where("?TableAlias.id = ?", id.String()).
		Where("?TableAlias.frozen_at IS NOT NULL").
		Exec(ctx)
	if err != nil {
		return err
	}

	if touched(res) {
		return nil
	}

	if _, err := a.reload(ctx, tx, id); err != nil {
		return err
	}
	return ErrNotFrozen
}

func (a *accountsRepo) RotatePassword(ctx context.Context, id uuid.UUID, newHash string, history []string, revision int64) error {
	return a.RotatePasswordTx(ctx, a.db, id, newHash, history, revision)
}

func (a *accountsRepo) RotatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, newHash string, history []string, revision int64) error {
	encoded, err := json.Marshal(history)
	if err != nil {
		return err
	}

	res, err := tx.NewRaw(rotatePasswordSQL, newHash, string(encoded), a.now(), id.String(), revision).Exec(ctx)
	if err != nil {
		return err
	}

	if touched(res) {
		return nil
	}

	current, err := a.reload(ctx, tx, id)
	if err != nil {
		return err
	}
	return staleRecord(id, revision, current.Revision)
}

func (a *accountsRepo) SetOTP(ctx context.Context, id uuid.UUID, otpHash string, expiresAt time.Time) error {
	return a.SetOTPTx(ctx, a.db, id, otpHash, expiresAt)
}

func (a *accountsRepo) SetOTPTx(ctx context.Context, tx bun.IDB, id uuid.UUID, otpHash string, expiresAt time.Time) error {
	res, err := tx.NewRaw(setOTPSQL, otpHash, expiresAt, a.now(), id.String()).Exec(ctx)
	if err != nil {
		return err
	}

	if touched(res) {
		return nil
	}

	_, err = a.reload(ctx, tx, id)
	if err != nil {
		return err
	}
	return ErrAccountNotFound.WithMetadata(map[string]any{"id": id.String()})
}

func (a *accountsRepo) SaveProfile(ctx context.Context, record *Account) (*Account, error) {
	return a.SaveProfileTx(ctx, a.db, record)
}

func (a *accountsRepo) SaveProfileTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	profileImage, err := marshalNullable(record.ProfileImage)
	if err != nil {
		return nil, err
	}
	coverImages, err := marshalNullable(record.CoverImages)
	if err != nil {
		return nil, err
	}

	res, err := tx.NewRaw(saveProfileSQL,
		record.Name,
		NormalizeEmail(record.Email),
		record.Gender,
		record.Age,
		record.PhoneCiphertext,
		record.Confirmed,
		profileImage,
		coverImages,
		a.now(),
		record.ID.String(),
		record.Revision,
	).Exec(ctx)
	if err != nil {
		return nil, err
	}

	if touched(res) {
		return a.reload(ctx, tx, record.ID)
	}

	current, err := a.reload(ctx, tx, record.ID)
	if err != nil {
		return nil, err
	}
	return nil, staleRecord(record.ID, record.Revision, current.Revision)
}

func (a *accountsRepo) reload(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id.String()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound.WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}

	return record, nil
}

func touched(res sql.Result) bool {
	if res == nil {
		return false
	}
	rows, err := res.RowsAffected()
	return err == nil && rows > 0
}

func staleRecord(id uuid.UUID, expected, actual int64) error {
	return ErrStaleRecord.WithMetadata(map[string]any{
		"id":       id.String(),
		"expected": expected,
		"actual":   actual,
	})
}

func marshalNullable(v any) (any, error) {
	switch val := v.(type) {
	case *MediaRef:
		if val == nil {
			return nil, nil
		}
	case []MediaRef:
		if len(val) == 0 {
			return nil, nil
		}
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	if record.Provider == "" {
		record.Provider = ProviderSystem
	}

	record.Email = NormalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
