package accounts

import (
	"context"
	"strings"
)

// Gate is the authentication gate: it turns a raw authorization header into
// an authenticated account plus decoded claims, or a typed rejection.
type Gate struct {
	tokens   *TokenService
	ledger   RevocationLedger
	accounts Accounts
	logger   Logger
}

// GateOption customizes the gate.
type GateOption func(*Gate)

// WithGateLogger overrides the fallback logger.
func WithGateLogger(logger Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGate wires the token service, revocation ledger and account store.
func NewGate(tokens *TokenService, ledger RevocationLedger, accounts Accounts, opts ...GateOption) *Gate {
	g := &Gate{
		tokens:   tokens,
		ledger:   ledger,
		accounts: accounts,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Authenticate validates a bearer credential of the given kind:
// split header, resolve prefix to a role secret, verify signature and expiry,
// consult the revocation ledger, load the account, require confirmation.
// The returned claims carry the jti and expiry that logout needs to revoke.
// Frozen accounts are not eligible for normal authentication.
func (g *Gate) Authenticate(ctx context.Context, header string, kind TokenKind) (*Account, *Claims, error) {
	account, claims, err := g.authenticate(ctx, header, kind)
	if err != nil {
		return nil, nil, err
	}

	if account.IsFrozen() {
		return nil, nil, ErrForbidden.WithMetadata(map[string]any{
			"reason": "account is frozen",
		})
	}

	return account, claims, nil
}

// AuthenticateAllowFrozen is the same flow without the frozen rejection.
// Only the unfreeze operation uses it, so the freezer can reverse a
// self-service freeze with their still valid session.
func (g *Gate) AuthenticateAllowFrozen(ctx context.Context, header string, kind TokenKind) (*Account, *Claims, error) {
	return g.authenticate(ctx, header, kind)
}

func (g *Gate) authenticate(ctx context.Context, header string, kind TokenKind) (*Account, *Claims, error) {
	prefix, token, err := SplitAuthorizationHeader(header)
	if err != nil {
		return nil, nil, err
	}

	claims, err := g.tokens.VerifyScheme(prefix, token, kind)
	if err != nil {
		return nil, nil, err
	}

	revoked, err := g.ledger.IsRevoked(ctx, claims.TokenID())
	if err != nil {
		return nil, nil, err
	}
	if revoked {
		return nil, nil, ErrSessionRevoked
	}

	subject, err := claims.SubjectID()
	if err != nil {
		return nil, nil, ErrTokenMalformed.WithMetadata(map[string]any{
			"reason": "subject is not an account id",
		})
	}

	account, err := g.accounts.GetByIdentifier(ctx, subject.String())
	if err != nil {
		if IsNotFound(err) {
			return nil, nil, ErrAccountNotFound
		}
		return nil, nil, err
	}

	if !account.Confirmed {
		return nil, nil, ErrAccountNotConfirmed
	}

	return account, claims, nil
}

// RequireRole is the authorization step applied after authentication.
func RequireRole(account *Account, roles ...AccountRole) error {
	if account == nil {
		return ErrUnauthenticated
	}

	for _, role := range roles {
		if account.Role == role {
			return nil
		}
	}

	return ErrForbidden.WithMetadata(map[string]any{
		"role":     account.Role,
		"required": roles,
	})
}

// SplitAuthorizationHeader separates the scheme prefix from the token.
// Missing either part rejects the request before any verification.
func SplitAuthorizationHeader(header string) (prefix, token string, err error) {
	parts := strings.Fields(strings.TrimSpace(header))
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrUnauthenticated
	}
	return parts[0], parts[1], nil
}
