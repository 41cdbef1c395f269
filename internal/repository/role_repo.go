package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"identity-server/internal/model"
)

type RoleRepository struct {
	pool *pgxpool.Pool
}

func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

func (r *RoleRepository) CreateRole(ctx context.Context, name string) (model.Role, error) {
	role := model.Role{ID: uuid.NewString(), Name: strings.TrimSpace(name)}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO roles (id, name, normalized_name) VALUES ($1, $2, $3)`,
		role.ID, role.Name, model.NormalizeRoleName(role.Name))
	if isUniqueViolation(err) {
		return model.Role{}, model.ErrRoleAlreadyExists
	}
	if err != nil {
		return model.Role{}, fmt.Errorf("create role: %w", err)
	}
	return role, nil
}

func (r *RoleRepository) FindRoleByName(ctx context.Context, name string) (model.Role, error) {
	var role model.Role
	err := r.pool.QueryRow(ctx,
		`SELECT id, name FROM roles WHERE normalized_name = $1`,
		model.NormalizeRoleName(name)).
		Scan(&role.ID, &role.Name)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Role{}, model.ErrRoleNotFound
	}
	if err != nil {
		return model.Role{}, fmt.Errorf("find role by name: %w", err)
	}
	return role, nil
}

func (r *RoleRepository) ListRoles(ctx context.Context) ([]model.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	roles := make([]model.Role, 0)
	for rows.Next() {
		var role model.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *RoleRepository) RenameRole(ctx context.Context, oldName string, newName string) error {
	newName = strings.TrimSpace(newName)
	tag, err := r.pool.Exec(ctx,
		`UPDATE roles SET name = $2, normalized_name = $3 WHERE normalized_name = $1`,
		model.NormalizeRoleName(oldName), newName, model.NormalizeRoleName(newName))
	if isUniqueViolation(err) {
		return model.ErrRoleAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("rename role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRoleNotFound
	}
	return nil
}

func (r *RoleRepository) DeleteRole(ctx context.Context, name string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM roles WHERE normalized_name = $1`, model.NormalizeRoleName(name))
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRoleNotFound
	}
	return nil
}

func (r *RoleRepository) RoleExists(ctx context.Context, name string) (bool, error) {
	return roleExists(ctx, r.pool, name)
}

func (r *RoleRepository) CountUsersInRole(ctx context.Context, name string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_roles ur
		 JOIN roles r ON r.id = ur.role_id
		 WHERE r.normalized_name = $1`, model.NormalizeRoleName(name)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users in role: %w", err)
	}
	return count, nil
}

func roleExists(ctx context.Context, pool *pgxpool.Pool, name string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM roles WHERE normalized_name = $1)`,
		model.NormalizeRoleName(name)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check role exists: %w", err)
	}
	return exists, nil
}
