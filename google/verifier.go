// Package google verifies Google ID tokens against the public JWKS, turning
// a client supplied credential into a verified identity claim.
package google

import (
	"context"
	stderrors "errors"
	"log"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"

	accounts "github.com/veilnote/go-accounts"
)

const defaultJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

var allowedIssuers = []string{
	"https://accounts.google.com",
	"accounts.google.com",
}

// Config holds verifier settings.
type Config struct {
	// ClientID is the OAuth client the aud claim must match.
	ClientID string
	// JWKSURL overrides the Google certificate endpoint (useful for tests).
	JWKSURL string
	// RefreshInterval controls background JWKS refresh.
	RefreshInterval time.Duration
}

// Verifier implements accounts.IdentityVerifier for Google ID tokens.
type Verifier struct {
	config Config
	jwks   *keyfunc.JWKS
}

var _ accounts.IdentityVerifier = (*Verifier)(nil)

// NewVerifier fetches the Google JWKS and keeps it refreshed in the
// background. Call Close to stop the refresh goroutine.
func NewVerifier(ctx context.Context, cfg Config) (*Verifier, error) {
	if cfg.ClientID == "" {
		return nil, goerrors.New("google: client id is required", goerrors.CategoryInternal)
	}
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = defaultJWKSURL
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = time.Hour
	}

	jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
		Ctx: ctx,
		RefreshErrorHandler: func(err error) {
			log.Printf("google: background JWKS refresh failed: %s", err)
		},
		RefreshInterval:   cfg.RefreshInterval,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "google: failed to fetch JWKS")
	}

	return &Verifier{config: cfg, jwks: jwks}, nil
}

// Close stops the background JWKS refresh.
func (v *Verifier) Close() {
	if v != nil && v.jwks != nil {
		v.jwks.EndBackground()
	}
}

type idTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Verify implements accounts.IdentityVerifier.
func (v *Verifier) Verify(_ context.Context, credential string) (*accounts.FederatedIdentity, error) {
	token, err := jwt.ParseWithClaims(credential, &idTokenClaims{}, v.jwks.Keyfunc,
		jwt.WithAudience(v.config.ClientID),
		jwt.WithValidMethods([]string{"RS256"}),
	)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, accounts.ErrTokenExpired
		}
		return nil, accounts.ErrInvalidConfirmToken.WithMetadata(map[string]any{
			"provider": "google",
		})
	}

	claims, ok := token.Claims.(*idTokenClaims)
	if !ok || !token.Valid {
		return nil, accounts.ErrTokenMalformed
	}

	if !issuerAllowed(claims.Issuer) {
		return nil, accounts.ErrTokenSignature.WithMetadata(map[string]any{
			"issuer": claims.Issuer,
		})
	}

	if claims.Email == "" {
		return nil, accounts.ErrTokenMalformed.WithMetadata(map[string]any{
			"reason": "id token carries no email",
		})
	}

	return &accounts.FederatedIdentity{
		Email:         claims.Email,
		Name:          claims.Name,
		Picture:       claims.Picture,
		EmailVerified: claims.EmailVerified,
	}, nil
}

func issuerAllowed(issuer string) bool {
	for _, allowed := range allowedIssuers {
		if issuer == allowed {
			return true
		}
	}
	return false
}
