package accounts

import (
	"context"
	"fmt"
	"io"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Mailer delivers outbound email. Implementations are expected to be safe
// for concurrent use; the outbox worker is the only caller in this package.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// IdentityVerifier is the federated identity oracle: it turns a provider
// issued credential into a verified identity claim or fails.
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (*FederatedIdentity, error)
}

// FederatedIdentity is the claim returned by an IdentityVerifier.
type FederatedIdentity struct {
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
}

// RevocationLedger is the authoritative denylist of token identifiers.
// It must be consulted before trusting any otherwise valid token.
type RevocationLedger interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

// ObjectStorage stores uploaded media out of band. Keys are opaque to this
// package; Destroy of a missing key must be a no-op.
type ObjectStorage interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (MediaRef, error)
	Destroy(ctx context.Context, key string) error
	DestroyMany(ctx context.Context, keys []string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
