package accounts

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// revokedTokens is the bun-backed RevocationLedger. Append-mostly; relies on
// the store's native atomic insert, no extra locking.
type revokedTokens struct {
	db     bun.IDB
	logger Logger
	now    func() time.Time
}

var _ RevocationLedger = (*revokedTokens)(nil)

// RevocationOption customizes the ledger.
type RevocationOption func(*revokedTokens)

// WithRevocationLogger overrides the fallback logger.
func WithRevocationLogger(logger Logger) RevocationOption {
	return func(r *revokedTokens) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRevocationClock injects a custom clock (useful for tests).
func WithRevocationClock(clock func() time.Time) RevocationOption {
	return func(r *revokedTokens) {
		if clock != nil {
			r.now = clock
		}
	}
}

// NewRevocationLedger creates the ledger over the given database handle.
func NewRevocationLedger(db bun.IDB, opts ...RevocationOption) RevocationLedger {
	ledger := &revokedTokens{
		db:     db,
		logger: defLogger{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ledger)
		}
	}

	return ledger
}

// Revoke appends a jti with its natural expiry. Revoking the same jti twice
// is not an error.
func (r *revokedTokens) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return ErrNoEmptyString
	}

	now := r.now()
	record := &RevokedToken{
		JTI:       jti,
		ExpiresAt: expiresAt,
		RevokedAt: &now,
	}

	_, err := r.db.NewInsert().
		Model(record).
		On("CONFLICT (jti) DO NOTHING").
		Exec(ctx)

	return err
}

// IsRevoked reports whether the jti is on the denylist.
func (r *revokedTokens) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}

	exists, err := r.db.NewSelect().
		Model((*RevokedToken)(nil)).
		Where("?TableAlias.jti = ?", jti).
		Exists(ctx)
	if err != nil {
		return false, err
	}

	return exists, nil
}

// PurgeExpired drops entries whose natural expiry has passed. Housekeeping
// only; an expired token fails verification regardless.
func (r *revokedTokens) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*RevokedToken)(nil)).
		Where("?TableAlias.expires_at < ?", r.now()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	purged, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if purged > 0 {
		r.logger.Debug("revocation ledger purged %d expired entries", purged)
	}

	return purged, nil
}
