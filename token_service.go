package accounts

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// SecretPair holds the signing secrets for one role. Access and refresh
// tokens never share a secret.
type SecretPair struct {
	Access  []byte
	Refresh []byte
}

// TokenPair is the result of a successful signin or refresh.
type TokenPair struct {
	Access  string `json:"access_token"`
	Refresh string `json:"refresh_token"`
}

// TokenService issues and verifies the signed, time-boxed tokens used by the
// authentication gate. No state is persisted; every token is self contained.
type TokenService struct {
	secrets       map[AccountRole]SecretPair
	schemes       map[string]AccountRole
	confirmSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	confirmTTL    time.Duration
	issuer        string
	logger        Logger
	now           func() time.Time
}

// TokenServiceOption customizes a TokenService.
type TokenServiceOption func(*TokenService)

// WithTokenTTLs overrides the access/refresh/confirm token lifetimes.
func WithTokenTTLs(access, refresh, confirm time.Duration) TokenServiceOption {
	return func(ts *TokenService) {
		if access > 0 {
			ts.accessTTL = access
		}
		if refresh > 0 {
			ts.refreshTTL = refresh
		}
		if confirm > 0 {
			ts.confirmTTL = confirm
		}
	}
}

// WithTokenIssuer sets the iss claim on every issued token.
func WithTokenIssuer(issuer string) TokenServiceOption {
	return func(ts *TokenService) {
		ts.issuer = issuer
	}
}

// WithScheme maps an authorization prefix to a role. Prefixes are matched
// case insensitively.
func WithScheme(prefix string, role AccountRole) TokenServiceOption {
	return func(ts *TokenService) {
		if prefix != "" {
			ts.schemes[strings.ToLower(prefix)] = role
		}
	}
}

// WithTokenLogger overrides the fallback logger.
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// WithTokenClock injects a custom clock (useful for tests).
func WithTokenClock(clock func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// NewTokenService creates a TokenService. Every role needs a complete secret
// pair; the confirm secret signs one-off email confirmation tokens.
func NewTokenService(secrets map[AccountRole]SecretPair, confirmSecret []byte, opts ...TokenServiceOption) (*TokenService, error) {
	if len(secrets) == 0 {
		return nil, errors.New("token service requires at least one secret pair", errors.CategoryInternal)
	}
	for role, pair := range secrets {
		if len(pair.Access) == 0 || len(pair.Refresh) == 0 {
			return nil, errors.New("incomplete secret pair", errors.CategoryInternal).
				WithMetadata(map[string]any{"role": role})
		}
	}
	if len(confirmSecret) == 0 {
		return nil, errors.New("token service requires a confirm secret", errors.CategoryInternal)
	}

	ts := &TokenService{
		secrets:       secrets,
		confirmSecret: confirmSecret,
		schemes: map[string]AccountRole{
			"bearer": RoleUser,
			"admin":  RoleAdmin,
		},
		accessTTL:  15 * time.Minute,
		refreshTTL: 7 * 24 * time.Hour,
		confirmTTL: 3 * time.Minute,
		logger:     defLogger{},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts, nil
}

// IssuePair issues an access and refresh token scoped to the account's role.
// Role selection is by the stored record, never caller input.
func (ts *TokenService) IssuePair(account *Account) (TokenPair, error) {
	if account == nil {
		return TokenPair{}, errors.New("account must not be nil", errors.CategoryInternal)
	}

	pair, ok := ts.secrets[account.Role]
	if !ok {
		return TokenPair{}, errors.New("no secret pair for role", errors.CategoryInternal).
			WithMetadata(map[string]any{"role": account.Role})
	}

	access, err := ts.sign(ts.buildClaims(account, TokenAccess, ts.accessTTL), pair.Access)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := ts.sign(ts.buildClaims(account, TokenRefresh, ts.refreshTTL), pair.Refresh)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{Access: access, Refresh: refresh}, nil
}

// IssueConfirm issues a one-off email confirmation token. The email rides in
// the claims so confirmation can match it against the stored record.
func (ts *TokenService) IssueConfirm(account *Account) (string, error) {
	if account == nil {
		return "", errors.New("account must not be nil", errors.CategoryInternal)
	}

	claims := ts.buildClaims(account, TokenConfirm, ts.confirmTTL)
	claims.Email = account.Email

	return ts.sign(claims, ts.confirmSecret)
}

// SchemeRole resolves a bearer prefix to its role. Unknown prefixes are
// rejected before any cryptographic verification is attempted.
func (ts *TokenService) SchemeRole(prefix string) (AccountRole, error) {
	role, ok := ts.schemes[strings.ToLower(strings.TrimSpace(prefix))]
	if !ok {
		return "", ErrUnknownScheme.WithMetadata(map[string]any{"scheme": prefix})
	}
	return role, nil
}

// VerifyScheme resolves the prefix to a role-scoped secret and verifies the
// token against it. The prefix is a routing hint only; the signature is
// always checked against the selected secret.
func (ts *TokenService) VerifyScheme(prefix, tokenString string, kind TokenKind) (*Claims, error) {
	role, err := ts.SchemeRole(prefix)
	if err != nil {
		return nil, err
	}

	secret, err := ts.secretFor(role, kind)
	if err != nil {
		return nil, err
	}

	return ts.Verify(tokenString, secret, kind)
}

// Verify parses and validates a token against the given secret, returning
// structured claims. Malformed, tampered and expired tokens fail with
// distinct errors so the gate can pick the right message category.
func (ts *TokenService) Verify(tokenString string, secret []byte, kind TokenKind) (*Claims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 1)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService verify encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrTokenSignature
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService verify could not decode claims")
		return nil, ErrTokenMalformed
	}

	if claims.Kind != kind {
		return nil, ErrTokenMalformed.WithMetadata(map[string]any{
			"expected_kind": kind,
			"kind":          claims.Kind,
		})
	}

	return claims, nil
}

// VerifyConfirm validates an email confirmation token. All failure modes
// collapse into one generic rejection for the public confirm flow.
func (ts *TokenService) VerifyConfirm(tokenString string) (*Claims, error) {
	claims, err := ts.Verify(tokenString, ts.confirmSecret, TokenConfirm)
	if err != nil {
		return nil, ErrInvalidConfirmToken
	}
	return claims, nil
}

func (ts *TokenService) buildClaims(account *Account, kind TokenKind, ttl time.Duration) *Claims {
	now := ts.now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:      account.ID.String(),
		UserRole: account.Role,
		Kind:     kind,
	}
}

func (ts *TokenService) sign(claims *Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign token")
	}

	return signed, nil
}

func (ts *TokenService) secretFor(role AccountRole, kind TokenKind) ([]byte, error) {
	pair, ok := ts.secrets[role]
	if !ok {
		return nil, ErrUnknownScheme.WithMetadata(map[string]any{"role": role})
	}

	switch kind {
	case TokenAccess:
		return pair.Access, nil
	case TokenRefresh:
		return pair.Refresh, nil
	default:
		return nil, errors.New("kind has no role scoped secret", errors.CategoryInternal).
			WithMetadata(map[string]any{"kind": kind})
	}
}
