package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"identity-server/internal/model"
)

// RoleService is CRUD over roles with a referential-integrity guard: a
// role cannot be deleted while any user still holds it. The guard lives
// here, not in a foreign-key cascade.
type RoleService struct {
	store RoleStore
}

func NewRoleService(store RoleStore) *RoleService {
	return &RoleService{store: store}
}

func (s *RoleService) Create(ctx context.Context, name string) (model.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Role{}, model.NewValidationError("role name is required")
	}

	role, err := s.store.CreateRole(ctx, name)
	if errors.Is(err, model.ErrRoleAlreadyExists) {
		return model.Role{}, model.NewValidationError(fmt.Sprintf("role %q already exists", name))
	}
	if err != nil {
		return model.Role{}, err
	}

	return role, nil
}

func (s *RoleService) Delete(ctx context.Context, name string) error {
	exists, err := s.store.RoleExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return model.NewValidationError(fmt.Sprintf("no role exists with name %q", name))
	}

	holders, err := s.store.CountUsersInRole(ctx, name)
	if err != nil {
		return err
	}
	if holders > 0 {
		return model.NewValidationError(fmt.Sprintf("role %q is assigned to one or more users; unassign it before deleting", name))
	}

	return s.store.DeleteRole(ctx, name)
}

func (s *RoleService) Rename(ctx context.Context, oldName string, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return model.NewValidationError("new role name is required")
	}

	exists, err := s.store.RoleExists(ctx, oldName)
	if err != nil {
		return err
	}
	if !exists {
		return model.NewValidationError(fmt.Sprintf("no role exists with name %q", oldName))
	}

	// A case-only rename of the same role is allowed; a collision with a
	// different role is not.
	if model.NormalizeRoleName(oldName) != model.NormalizeRoleName(newName) {
		taken, err := s.store.RoleExists(ctx, newName)
		if err != nil {
			return err
		}
		if taken {
			return model.NewValidationError(fmt.Sprintf("role %q already exists", newName))
		}
	}

	err = s.store.RenameRole(ctx, oldName, newName)
	if errors.Is(err, model.ErrRoleAlreadyExists) {
		return model.NewValidationError(fmt.Sprintf("role %q already exists", newName))
	}

	return err
}

func (s *RoleService) GetByName(ctx context.Context, name string) (model.Role, error) {
	return s.store.FindRoleByName(ctx, name)
}

func (s *RoleService) List(ctx context.Context) ([]model.Role, error) {
	return s.store.ListRoles(ctx)
}
