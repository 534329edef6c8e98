package accounts_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accounts "github.com/veilnote/go-accounts"
)

func TestStateMachine_Transition(t *testing.T) {
	ctx := context.Background()
	actor := accounts.ActorRef{ID: uuid.New(), Type: "user"}

	t.Run("unconfirmed to active confirms the email", func(t *testing.T) {
		account := activeAccount(t, "confirm@example.com", "Sup3rSecret")
		account.Confirmed = false
		repo := newStubAccounts(account)
		sm := accounts.NewAccountStateMachine(repo)

		updated, err := sm.Transition(ctx, actor, account, accounts.StatusActive)
		require.NoError(t, err)
		assert.True(t, updated.Confirmed)
		assert.Equal(t, []uuid.UUID{account.ID}, repo.confirmed)
	})

	t.Run("active to frozen", func(t *testing.T) {
		account := activeAccount(t, "freeze@example.com", "Sup3rSecret")
		repo := newStubAccounts(account)
		sm := accounts.NewAccountStateMachine(repo)

		updated, err := sm.Transition(ctx, actor, account, accounts.StatusFrozen)
		require.NoError(t, err)
		assert.True(t, updated.IsFrozen())
		require.NotNil(t, updated.FrozenBy)
		assert.Equal(t, actor.ID, *updated.FrozenBy)
	})

	t.Run("frozen to active", func(t *testing.T) {
		account := activeAccount(t, "thaw@example.com", "Sup3rSecret")
		now := time.Now()
		account.FrozenAt = &now
		repo := newStubAccounts(account)
		sm := accounts.NewAccountStateMachine(repo)

		updated, err := sm.Transition(ctx, actor, account, accounts.StatusActive)
		require.NoError(t, err)
		assert.False(t, updated.IsFrozen())
		assert.NotNil(t, updated.RestoredAt)
	})

	t.Run("frozen to deleted removes the row", func(t *testing.T) {
		account := activeAccount(t, "purge@example.com", "Sup3rSecret")
		now := time.Now()
		account.FrozenAt = &now
		repo := newStubAccounts(account)
		sm := accounts.NewAccountStateMachine(repo)

		updated, err := sm.Transition(ctx, actor, account, accounts.StatusDeleted)
		require.NoError(t, err)
		assert.Nil(t, updated)
		assert.Equal(t, []uuid.UUID{account.ID}, repo.deleted)
	})

	t.Run("nil account", func(t *testing.T) {
		sm := accounts.NewAccountStateMachine(newStubAccounts())

		_, err := sm.Transition(ctx, actor, nil, accounts.StatusActive)
		assert.True(t, accounts.HasTextCode(err, "INVALID_ACCOUNT_STATE_TRANSITION"))
	})

	t.Run("empty target", func(t *testing.T) {
		account := activeAccount(t, "empty@example.com", "Sup3rSecret")
		sm := accounts.NewAccountStateMachine(newStubAccounts(account))

		_, err := sm.Transition(ctx, actor, account, "")
		assert.True(t, accounts.HasTextCode(err, "INVALID_ACCOUNT_STATE_TRANSITION"))
	})

	t.Run("active to deleted is not allowed", func(t *testing.T) {
		account := activeAccount(t, "straight@example.com", "Sup3rSecret")
		sm := accounts.NewAccountStateMachine(newStubAccounts(account))

		_, err := sm.Transition(ctx, actor, account, accounts.StatusDeleted)
		assert.True(t, accounts.HasTextCode(err, "INVALID_ACCOUNT_STATE_TRANSITION"))
	})

	t.Run("already frozen", func(t *testing.T) {
		account := activeAccount(t, "refreeze@example.com", "Sup3rSecret")
		now := time.Now()
		account.FrozenAt = &now
		sm := accounts.NewAccountStateMachine(newStubAccounts(account))

		_, err := sm.Transition(ctx, actor, account, accounts.StatusFrozen)
		assert.ErrorIs(t, err, accounts.ErrAlreadyFrozen)
	})

	t.Run("already active", func(t *testing.T) {
		account := activeAccount(t, "reconfirm@example.com", "Sup3rSecret")
		sm := accounts.NewAccountStateMachine(newStubAccounts(account))

		_, err := sm.Transition(ctx, actor, account, accounts.StatusActive)
		assert.ErrorIs(t, err, accounts.ErrAlreadyConfirmed)
	})

	t.Run("before hook aborts without persisting", func(t *testing.T) {
		account := activeAccount(t, "abort@example.com", "Sup3rSecret")
		repo := newStubAccounts(account)
		sm := accounts.NewAccountStateMachine(repo)

		boom := assert.AnError
		_, err := sm.Transition(ctx, actor, account, accounts.StatusFrozen,
			accounts.WithBeforeTransitionHook(func(ctx context.Context, tc accounts.TransitionContext) error {
				assert.Equal(t, accounts.StatusActive, tc.From)
				assert.Equal(t, accounts.StatusFrozen, tc.To)
				return boom
			}),
		)
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, repo.frozen)
	})

	t.Run("after hook sees the transition context", func(t *testing.T) {
		account := activeAccount(t, "after@example.com", "Sup3rSecret")
		repo := newStubAccounts(account)
		sm := accounts.NewAccountStateMachine(repo)

		var got accounts.TransitionContext
		_, err := sm.Transition(ctx, actor, account, accounts.StatusFrozen,
			accounts.WithTransitionReason("tos violation"),
			accounts.WithAfterTransitionHook(func(ctx context.Context, tc accounts.TransitionContext) error {
				got = tc
				return nil
			}),
		)
		require.NoError(t, err)
		assert.Equal(t, actor, got.Actor)
		assert.Equal(t, "tos violation", got.Meta.Reason)
	})
}

func TestStateMachine_ActivityEvents(t *testing.T) {
	ctx := context.Background()
	actor := accounts.ActorRef{ID: uuid.New(), Type: "admin"}

	account := activeAccount(t, "events@example.com", "Sup3rSecret")
	repo := newStubAccounts(account)
	sink := &capturingSink{}
	sm := accounts.NewAccountStateMachine(repo, accounts.WithStateMachineActivitySink(sink))

	_, err := sm.Transition(ctx, actor, account, accounts.StatusFrozen,
		accounts.WithTransitionReason("abuse report"),
		accounts.WithTransitionMetadata(map[string]any{"report_id": "r-42"}),
	)
	require.NoError(t, err)

	_, err = sm.Transition(ctx, actor, account, accounts.StatusActive)
	require.NoError(t, err)

	require.Len(t, sink.events, 2)

	frozen := sink.events[0]
	assert.Equal(t, accounts.ActivityEventAccountFrozen, frozen.EventType)
	assert.Equal(t, account.ID.String(), frozen.AccountID)
	assert.Equal(t, accounts.StatusActive, frozen.FromStatus)
	assert.Equal(t, accounts.StatusFrozen, frozen.ToStatus)
	assert.Equal(t, "abuse report", frozen.Metadata["reason"])
	assert.Equal(t, "r-42", frozen.Metadata["report_id"])
	assert.False(t, frozen.OccurredAt.IsZero())

	restored := sink.events[1]
	assert.Equal(t, accounts.ActivityEventAccountRestored, restored.EventType)
	assert.Nil(t, restored.Metadata)
}

func TestStateMachine_CurrentStatus(t *testing.T) {
	sm := accounts.NewAccountStateMachine(newStubAccounts())

	assert.Equal(t, accounts.StatusDeleted, sm.CurrentStatus(nil))

	account := activeAccount(t, "status@example.com", "Sup3rSecret")
	assert.Equal(t, accounts.StatusActive, sm.CurrentStatus(account))
}
