package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"identity-server/internal/model"
)

// Memory is an in-process credential and role store with the same
// semantics as the PostgreSQL repositories. Tests and local demos use it
// so the service layer can be exercised without a database.
type Memory struct {
	mu        sync.RWMutex
	usersByID map[string]model.User
	userIDs   map[string]string            // lower(username) -> id
	roles     map[string]model.Role        // normalized name -> role
	userRoles map[string]map[string]string // user id -> normalized role name -> display name
}

func NewMemory() *Memory {
	return &Memory{
		usersByID: map[string]model.User{},
		userIDs:   map[string]string{},
		roles:     map[string]model.Role{},
		userRoles: map[string]map[string]string{},
	}
}

func (m *Memory) FindByUsername(_ context.Context, username string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.userIDs[usernameKey(username)]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return m.usersByID[id], nil
}

func (m *Memory) Create(_ context.Context, u model.User, password string) (model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return model.User{}, err
	}
	u.PasswordHash = string(hash)

	m.mu.Lock()
	defer m.mu.Unlock()

	key := usernameKey(u.Username)
	if _, exists := m.userIDs[key]; exists {
		return model.User{}, model.ErrUserAlreadyExists
	}

	m.usersByID[u.ID] = u
	m.userIDs[key] = u.ID
	return u, nil
}

func (m *Memory) Update(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.usersByID[u.ID]
	if !ok {
		return model.ErrUserNotFound
	}

	stored.Email = u.Email
	stored.Phone = u.Phone
	stored.DisplayName = u.DisplayName
	stored.UpdatedAt = u.UpdatedAt
	m.usersByID[u.ID] = stored
	return nil
}

func (m *Memory) Delete(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := usernameKey(username)
	id, ok := m.userIDs[key]
	if !ok {
		return model.ErrUserNotFound
	}

	delete(m.userIDs, key)
	delete(m.usersByID, id)
	delete(m.userRoles, id)
	return nil
}

func (m *Memory) CheckPassword(ctx context.Context, username string, password string) (model.User, error) {
	u, err := m.FindByUsername(ctx, username)
	if err != nil {
		return model.User{}, model.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return model.User{}, model.ErrInvalidCredentials
	}
	return u, nil
}

func (m *Memory) SetRefreshToken(_ context.Context, userID string, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.usersByID[userID]
	if !ok {
		return model.ErrUserNotFound
	}

	u.RefreshToken = token
	u.RefreshTokenExpiresAt = expiresAt
	u.UpdatedAt = time.Now().UTC()
	m.usersByID[userID] = u
	return nil
}

func (m *Memory) AddRoleToUser(_ context.Context, userID string, roleName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	normalized := model.NormalizeRoleName(roleName)
	role, ok := m.roles[normalized]
	if !ok {
		return model.ErrRoleNotFound
	}
	if _, ok := m.usersByID[userID]; !ok {
		return model.ErrUserNotFound
	}

	if m.userRoles[userID] == nil {
		m.userRoles[userID] = map[string]string{}
	}
	m.userRoles[userID][normalized] = role.Name
	return nil
}

func (m *Memory) RolesForUser(_ context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.userRoles[userID]))
	for normalized := range m.userRoles[userID] {
		if role, ok := m.roles[normalized]; ok {
			names = append(names, role.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) CountUsers(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.usersByID), nil
}

func (m *Memory) CreateRole(_ context.Context, name string) (model.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	normalized := model.NormalizeRoleName(name)
	if _, exists := m.roles[normalized]; exists {
		return model.Role{}, model.ErrRoleAlreadyExists
	}

	role := model.Role{ID: uuid.NewString(), Name: strings.TrimSpace(name)}
	m.roles[normalized] = role
	return role, nil
}

func (m *Memory) FindRoleByName(_ context.Context, name string) (model.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	role, ok := m.roles[model.NormalizeRoleName(name)]
	if !ok {
		return model.Role{}, model.ErrRoleNotFound
	}
	return role, nil
}

func (m *Memory) ListRoles(_ context.Context) ([]model.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	roles := make([]model.Role, 0, len(m.roles))
	for _, role := range m.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (m *Memory) RenameRole(_ context.Context, oldName string, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldNorm := model.NormalizeRoleName(oldName)
	newNorm := model.NormalizeRoleName(newName)

	role, ok := m.roles[oldNorm]
	if !ok {
		return model.ErrRoleNotFound
	}
	if oldNorm != newNorm {
		if _, taken := m.roles[newNorm]; taken {
			return model.ErrRoleAlreadyExists
		}
	}

	role.Name = strings.TrimSpace(newName)
	delete(m.roles, oldNorm)
	m.roles[newNorm] = role

	for _, assigned := range m.userRoles {
		if _, held := assigned[oldNorm]; held {
			delete(assigned, oldNorm)
			assigned[newNorm] = role.Name
		}
	}
	return nil
}

func (m *Memory) DeleteRole(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	normalized := model.NormalizeRoleName(name)
	if _, ok := m.roles[normalized]; !ok {
		return model.ErrRoleNotFound
	}
	delete(m.roles, normalized)
	return nil
}

func (m *Memory) RoleExists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.roles[model.NormalizeRoleName(name)]
	return ok, nil
}

func (m *Memory) CountUsersInRole(_ context.Context, name string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	normalized := model.NormalizeRoleName(name)
	count := 0
	for _, assigned := range m.userRoles {
		if _, held := assigned[normalized]; held {
			count++
		}
	}
	return count, nil
}

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
