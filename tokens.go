package accounts

import (
	"context"
)

// Refresh issues a fresh token pair for an authenticated refresh credential.
// The revocation ledger is consulted again right before issuance so a jti
// revoked mid-request cannot mint new tokens.
func (s *Service) Refresh(ctx context.Context, account *Account, claims *Claims) (*TokenPair, error) {
	if account == nil || claims == nil {
		return nil, ErrUnauthenticated
	}

	revoked, err := s.repo.RevokedTokens().IsRevoked(ctx, claims.TokenID())
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrSessionRevoked
	}

	tokens, err := s.tokens.IssuePair(account)
	if err != nil {
		return nil, err
	}

	return &tokens, nil
}

// Logout revokes the presented token's jti until its natural expiry.
// Revoking an already revoked jti is a no-op, so logout is idempotent.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if claims == nil {
		return ErrUnauthenticated
	}

	return s.repo.RevokedTokens().Revoke(ctx, claims.TokenID(), claims.Expires())
}
