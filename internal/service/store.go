package service

import (
	"context"
	"time"

	"identity-server/internal/model"
)

// CredentialStore is the persistence capability the user service depends
// on. Implementations own password hashing: plaintext passwords go in,
// only hashes are stored, and CheckPassword is the sole comparison path.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (model.User, error)
	Create(ctx context.Context, user model.User, password string) (model.User, error)
	Update(ctx context.Context, user model.User) error
	Delete(ctx context.Context, username string) error

	// CheckPassword returns the user on success and
	// model.ErrInvalidCredentials for an unknown username or a password
	// mismatch, without distinguishing the two.
	CheckPassword(ctx context.Context, username string, password string) (model.User, error)

	// SetRefreshToken replaces the user's current refresh token. A user
	// has at most one live refresh token, so this is the rotation point.
	SetRefreshToken(ctx context.Context, userID string, token string, expiresAt time.Time) error

	AddRoleToUser(ctx context.Context, userID string, roleName string) error
	RolesForUser(ctx context.Context, userID string) ([]string, error)
	CountUsers(ctx context.Context) (int, error)
}

// RoleStore is the persistence capability behind the role service.
type RoleStore interface {
	CreateRole(ctx context.Context, name string) (model.Role, error)
	FindRoleByName(ctx context.Context, name string) (model.Role, error)
	ListRoles(ctx context.Context) ([]model.Role, error)
	RenameRole(ctx context.Context, oldName string, newName string) error
	DeleteRole(ctx context.Context, name string) error
	RoleExists(ctx context.Context, name string) (bool, error)
	CountUsersInRole(ctx context.Context, name string) (int, error)
}
