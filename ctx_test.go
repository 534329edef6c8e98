package accounts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	accounts "github.com/veilnote/go-accounts"
)

func TestAccountContext(t *testing.T) {
	ctx := context.Background()

	_, ok := accounts.AccountFromContext(ctx)
	assert.False(t, ok)

	account := activeAccount(t, "ctx@example.com", "Sup3rSecret")
	ctx = accounts.WithAccountContext(ctx, account)

	got, ok := accounts.AccountFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, account, got)
}

func TestClaimsContext(t *testing.T) {
	ctx := context.Background()

	_, ok := accounts.ClaimsFromContext(ctx)
	assert.False(t, ok)

	account := activeAccount(t, "claimsctx@example.com", "Sup3rSecret")
	claims := sessionClaims(t, newTestTokenService(t), account)
	ctx = accounts.WithClaimsContext(ctx, claims)

	got, ok := accounts.ClaimsFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, claims, got)
}
