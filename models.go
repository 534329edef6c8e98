package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountRole is the account's role
type AccountRole = string

const (
	// RoleUser is a regular account
	RoleUser AccountRole = "user"
	// RoleAdmin can act on third party accounts
	RoleAdmin AccountRole = "admin"
)

// Provider identifies how the account was registered
type Provider = string

const (
	// ProviderSystem is a local email/password account
	ProviderSystem Provider = "system"
	// ProviderGoogle is a federated Google account
	ProviderGoogle Provider = "google"
)

// AccountStatus is the lifecycle state derived from the record
type AccountStatus string

const (
	StatusUnconfirmed AccountStatus = "unconfirmed"
	StatusActive      AccountStatus = "active"
	StatusFrozen      AccountStatus = "frozen"
	// StatusDeleted is terminal, the record is gone
	StatusDeleted AccountStatus = "deleted"
)

// PasswordHistoryLimit is how many superseded password hashes are retained,
// oldest evicted first.
const PasswordHistoryLimit = 5

// MediaRef points at an object stored out of band.
type MediaRef struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// Account is the account record
type Account struct {
	bun.BaseModel   `bun:"table:accounts,alias:acc"`
	ID              uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role            AccountRole `bun:"account_role,notnull" json:"account_role,omitempty"`
	Provider        Provider    `bun:"provider,notnull" json:"provider,omitempty"`
	Name            string      `bun:"name,notnull" json:"name,omitempty"`
	Email           string      `bun:"email,notnull,unique" json:"email,omitempty"`
	Gender          string      `bun:"gender" json:"gender,omitempty"`
	Age             int         `bun:"age" json:"age,omitempty"`
	PasswordHash    string      `bun:"password_hash" json:"-"`
	PasswordHistory []string    `bun:"password_history" json:"-"`
	PhoneCiphertext string      `bun:"phone_ciphertext" json:"-"`
	Confirmed       bool        `bun:"confirmed" json:"confirmed"`
	OTPHash         string      `bun:"otp_hash" json:"-"`
	OTPExpiresAt    *time.Time  `bun:"otp_expires_at,nullzero" json:"-"`
	ProfileImage    *MediaRef   `bun:"profile_image" json:"profile_image,omitempty"`
	CoverImages     []MediaRef  `bun:"cover_images" json:"cover_images,omitempty"`
	FrozenAt        *time.Time  `bun:"frozen_at,nullzero" json:"frozen_at,omitempty"`
	FrozenBy        *uuid.UUID  `bun:"frozen_by,nullzero,type:uuid" json:"frozen_by,omitempty"`
	RestoredAt      *time.Time  `bun:"restored_at,nullzero" json:"restored_at,omitempty"`
	RestoredBy      *uuid.UUID  `bun:"restored_by,nullzero,type:uuid" json:"restored_by,omitempty"`
	Revision        int64       `bun:"revision,notnull,default:0" json:"revision"`
	CreatedAt       *time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt       *time.Time  `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Status derives the lifecycle state from the record fields.
func (a *Account) Status() AccountStatus {
	if a == nil {
		return StatusDeleted
	}
	if a.FrozenAt != nil {
		return StatusFrozen
	}
	if !a.Confirmed {
		return StatusUnconfirmed
	}
	return StatusActive
}

// IsFrozen reports whether the account is currently frozen.
func (a *Account) IsFrozen() bool {
	return a != nil && a.FrozenAt != nil
}

// PushPasswordHistory returns the history with hash appended and the
// retention cap applied, oldest entries evicted first.
func PushPasswordHistory(history []string, hash string) []string {
	if hash == "" {
		return history
	}
	history = append(history, hash)
	if len(history) > PasswordHistoryLimit {
		history = history[len(history)-PasswordHistoryLimit:]
	}
	return history
}

// NormalizeEmail lowercases and trims an email so uniqueness checks and
// lookups agree on one canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RevokedToken is a revocation ledger entry. Existence of a row makes the
// jti permanently unusable regardless of the token's own expiry.
type RevokedToken struct {
	bun.BaseModel `bun:"table:revoked_tokens,alias:rvk"`
	JTI           string     `bun:"jti,pk" json:"jti"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	RevokedAt     *time.Time `bun:"revoked_at,nullzero,default:current_timestamp" json:"revoked_at,omitempty"`
}
