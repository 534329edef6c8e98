package accounts

import (
	"context"

	"github.com/google/uuid"
)

// Freeze puts an account into the reversible frozen state. Self service for
// the owner, admin-only for third party targets. The actor is recorded as
// the sole authorized unfreezer.
func (s *Service) Freeze(ctx context.Context, actor *Account, targetID uuid.UUID) (*Account, error) {
	target, err := s.resolveTarget(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}

	actorRef := ActorRef{ID: actor.ID, Type: actorType(actor)}
	return s.sm.Transition(ctx, actorRef, target, StatusFrozen,
		WithTransitionReason("account frozen"))
}

// Unfreeze reverses a freeze. Only the exact actor recorded as the freezer
// may do it; other actors, other admins included, get Forbidden.
func (s *Service) Unfreeze(ctx context.Context, actor *Account, targetID uuid.UUID) (*Account, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}

	target, err := s.loadTarget(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}

	if !target.IsFrozen() {
		return nil, ErrNotFrozen
	}

	if target.FrozenBy == nil || *target.FrozenBy != actor.ID {
		return nil, ErrForbidden.WithMetadata(map[string]any{
			"reason": "only the freezing actor may unfreeze",
		})
	}

	actorRef := ActorRef{ID: actor.ID, Type: actorType(actor)}
	return s.sm.Transition(ctx, actorRef, target, StatusActive,
		WithTransitionReason("account restored"))
}

// Delete permanently removes a frozen account and its stored media.
func (s *Service) Delete(ctx context.Context, actor *Account, targetID uuid.UUID) error {
	target, err := s.resolveTarget(ctx, actor, targetID)
	if err != nil {
		return err
	}

	if !target.IsFrozen() {
		return ErrNotFrozen
	}

	actorRef := ActorRef{ID: actor.ID, Type: actorType(actor)}
	if _, err := s.sm.Transition(ctx, actorRef, target, StatusDeleted,
		WithTransitionReason("account deleted")); err != nil {
		return err
	}

	if target.ProfileImage != nil {
		s.destroyQuietly(ctx, target.ProfileImage.Key)
	}
	s.destroyRefsQuietly(ctx, target.CoverImages)

	return nil
}

// resolveTarget authorizes the actor for the target and loads the record.
// Acting on a third party account requires the admin role.
func (s *Service) resolveTarget(ctx context.Context, actor *Account, targetID uuid.UUID) (*Account, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}

	if actor.ID != targetID {
		if err := RequireRole(actor, RoleAdmin); err != nil {
			return nil, err
		}
	}

	return s.loadTarget(ctx, actor, targetID)
}

func (s *Service) loadTarget(ctx context.Context, actor *Account, targetID uuid.UUID) (*Account, error) {
	if actor.ID == targetID {
		return actor, nil
	}

	target, err := s.repo.Accounts().GetByIdentifier(ctx, targetID.String())
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return target, nil
}

func actorType(actor *Account) string {
	if actor != nil && actor.Role == RoleAdmin {
		return "admin"
	}
	return "account"
}
