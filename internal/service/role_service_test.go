package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"identity-server/internal/model"
	"identity-server/internal/repository"
)

func newRoleFixture(t *testing.T) (*RoleService, *repository.Memory) {
	t.Helper()

	store := repository.NewMemory()
	return NewRoleService(store), store
}

func TestRoleCreateAndGet(t *testing.T) {
	svc, _ := newRoleFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "Moderator")
	require.NoError(t, err)
	require.Equal(t, "Moderator", created.Name)
	require.NotEmpty(t, created.ID)

	// Lookup is case-insensitive but the stored casing is preserved.
	found, err := svc.GetByName(ctx, "moderator")
	require.NoError(t, err)
	require.Equal(t, "Moderator", found.Name)
}

func TestRoleCreateRejectsDuplicatesAndBlank(t *testing.T) {
	svc, _ := newRoleFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "Moderator")
	require.NoError(t, err)

	var verr *model.ValidationError
	_, err = svc.Create(ctx, "MODERATOR")
	require.ErrorAs(t, err, &verr)

	_, err = svc.Create(ctx, "   ")
	require.ErrorAs(t, err, &verr)
}

func TestRoleGetUnknown(t *testing.T) {
	svc, _ := newRoleFixture(t)

	_, err := svc.GetByName(context.Background(), "Ghost")
	require.ErrorIs(t, err, model.ErrRoleNotFound)
}

func TestRoleList(t *testing.T) {
	svc, _ := newRoleFixture(t)
	ctx := context.Background()

	roles, err := svc.List(ctx)
	require.NoError(t, err)
	require.Empty(t, roles)

	for _, name := range []string{"User", "Admin", "Moderator"} {
		_, err := svc.Create(ctx, name)
		require.NoError(t, err)
	}

	roles, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 3)
	require.Equal(t, "Admin", roles[0].Name)
	require.Equal(t, "Moderator", roles[1].Name)
	require.Equal(t, "User", roles[2].Name)
}

func TestRoleRename(t *testing.T) {
	svc, _ := newRoleFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "Moderator")
	require.NoError(t, err)

	require.NoError(t, svc.Rename(ctx, "Moderator", "Editor"))

	_, err = svc.GetByName(ctx, "Moderator")
	require.ErrorIs(t, err, model.ErrRoleNotFound)

	found, err := svc.GetByName(ctx, "Editor")
	require.NoError(t, err)
	require.Equal(t, "Editor", found.Name)
}

func TestRoleRenameMissingSource(t *testing.T) {
	svc, _ := newRoleFixture(t)

	var verr *model.ValidationError
	require.ErrorAs(t, svc.Rename(context.Background(), "Ghost", "Editor"), &verr)
}

func TestRoleRenameCollision(t *testing.T) {
	svc, _ := newRoleFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "Moderator")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "Editor")
	require.NoError(t, err)

	var verr *model.ValidationError
	require.ErrorAs(t, svc.Rename(ctx, "Moderator", "editor"), &verr)
}

func TestRoleRenameCaseOnly(t *testing.T) {
	svc, _ := newRoleFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "moderator")
	require.NoError(t, err)

	// Re-casing the same role is not a collision with itself.
	require.NoError(t, svc.Rename(ctx, "moderator", "Moderator"))

	found, err := svc.GetByName(ctx, "moderator")
	require.NoError(t, err)
	require.Equal(t, "Moderator", found.Name)
}

func TestRoleDeleteMissing(t *testing.T) {
	svc, _ := newRoleFixture(t)

	var verr *model.ValidationError
	require.ErrorAs(t, svc.Delete(context.Background(), "Ghost"), &verr)
}

func TestRoleDeleteBlockedWhileAssigned(t *testing.T) {
	svc, store := newRoleFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "Moderator")
	require.NoError(t, err)

	user := model.User{ID: "user-1", Username: "alice"}
	_, err = store.Create(ctx, user, "correct horse battery")
	require.NoError(t, err)
	require.NoError(t, store.AddRoleToUser(ctx, user.ID, "Moderator"))

	var verr *model.ValidationError
	require.ErrorAs(t, svc.Delete(ctx, "Moderator"), &verr)

	// Once the only holder is gone the delete goes through.
	require.NoError(t, store.Delete(ctx, "alice"))
	require.NoError(t, svc.Delete(ctx, "Moderator"))

	_, err = svc.GetByName(ctx, "Moderator")
	require.ErrorIs(t, err, model.ErrRoleNotFound)
}
