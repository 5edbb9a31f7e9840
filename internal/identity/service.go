package identity

import (
	"context"
	"encoding/json"
	"errors"
)

// Service manages profile reads and edits on behalf of an authenticated actor.
type Service struct {
	repo Repository
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// View returns the account identified by id, or the actor's own account when
// id is empty. Reading another account requires a staff-management role.
func (s *Service) View(ctx context.Context, actor Actor, id string) (User, error) {
	id = targetID(actor, id)
	if !ValidID(id) {
		return User{}, ErrInvalidID
	}
	if id != actor.ID && !actor.ViewsAccounts() {
		return User{}, ErrForbidden
	}
	return s.repo.FindByID(ctx, id)
}

// Update applies the allow-listed subset of fields to the target account.
func (s *Service) Update(ctx context.Context, actor Actor, id string, fields map[string]json.RawMessage) (User, error) {
	id = targetID(actor, id)
	if !ValidID(id) {
		return User{}, ErrInvalidID
	}
	allowed := EditableFields(actor, id)
	if allowed == nil {
		return User{}, ErrForbidden
	}
	if err := s.guardOwner(ctx, actor, id); err != nil {
		return User{}, err
	}
	patch, err := DecodePatch(fields, allowed)
	if err != nil {
		return User{}, err
	}
	if patch.Role != nil && *patch.Role == RoleOwner && actor.Role != RoleOwner {
		return User{}, ErrForbidden
	}
	if patch.Email != nil {
		existing, err := s.repo.FindByEmail(ctx, *patch.Email)
		switch {
		case err == nil && existing.ID != id:
			return User{}, ErrDuplicateEmail
		case err != nil && !errors.Is(err, ErrNotFound):
			return User{}, err
		}
	}
	return s.repo.UpdateByID(ctx, id, patch)
}

// Delete removes the account identified by id.
func (s *Service) Delete(ctx context.Context, actor Actor, id string) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	if id != actor.ID && !actor.ManagesAccounts() {
		return ErrForbidden
	}
	if err := s.guardOwner(ctx, actor, id); err != nil {
		return err
	}
	return s.repo.DeleteByID(ctx, id)
}

// guardOwner keeps owner accounts out of reach of every other role.
func (s *Service) guardOwner(ctx context.Context, actor Actor, id string) error {
	if actor.Role == RoleOwner || id == actor.ID {
		return nil
	}
	target, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if target.Role == RoleOwner {
		return ErrForbidden
	}
	return nil
}

func targetID(actor Actor, id string) string {
	if id == "" {
		return actor.ID
	}
	return id
}
