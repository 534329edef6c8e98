package accounts

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind scopes a token to one purpose. Kind is embedded in the claims so
// an access token can never stand in for a refresh token.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
	TokenConfirm TokenKind = "confirm"
)

// Claims is the payload carried by every token this package issues.
type Claims struct {
	jwt.RegisteredClaims
	UID      string      `json:"uid,omitempty"`
	UserRole AccountRole `json:"role,omitempty"`
	Kind     TokenKind   `json:"kind,omitempty"`
	Email    string      `json:"email,omitempty"`
}

// TokenID returns the jti used for revocation.
func (c *Claims) TokenID() string {
	return c.RegisteredClaims.ID
}

// SubjectID parses the subject as an account id.
func (c *Claims) SubjectID() (uuid.UUID, error) {
	return uuid.Parse(c.RegisteredClaims.Subject)
}

// Expires returns the expiration time
func (c *Claims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedTime returns the issued at time
func (c *Claims) IssuedTime() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// HasRole checks the role claim
func (c *Claims) HasRole(role AccountRole) bool {
	return c.UserRole == role
}
