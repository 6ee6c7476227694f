package service

import (
	"context"
	"errors"
	"frecipe_service/internal/auth"
	"frecipe_service/internal/models"
	"frecipe_service/internal/storage"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignUp_ConfiguredAdmin(t *testing.T) {
	f := newFixture(t, AccountConfig{AdminUsernames: []string{"root"}})
	ctx := context.Background()

	root := f.signUp(t, "root", "pw1")
	assert.Equal(t, []string{models.RoleUser, models.RoleAdmin}, root.Roles)

	alice := f.signUp(t, "alice", "pw1")
	assert.Equal(t, []string{models.RoleUser}, alice.Roles)

	token, err := f.accounts.SignIn(ctx, "root", "pw1")
	require.NoError(t, err)
	identity, err := f.tokens.Verify(token, fixedNow)
	require.NoError(t, err)

	users, err := f.accounts.ListAll(ctx, identity)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestEnsureAdmins(t *testing.T) {
	ctx := context.Background()

	early := newFixture(t, AccountConfig{})
	early.signUp(t, "root", "pw1")

	// same store, restarted with root configured as admin
	accounts, err := NewAccountService(early.store, early.hasher, early.tokens, AccountConfig{
		AdminUsernames: []string{"root", "not-yet-registered"},
	})
	require.NoError(t, err)

	granted, err := accounts.EnsureAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, granted)

	user, err := early.store.GetUserByUsername(ctx, "root")
	require.NoError(t, err)
	assert.True(t, user.HasRole(models.RoleAdmin))

	granted, err = accounts.EnsureAdmins(ctx)
	require.NoError(t, err)
	assert.Zero(t, granted)
}

func TestAssignAndRemoveRole(t *testing.T) {
	f := newFixture(t, AccountConfig{AdminUsernames: []string{"root"}})
	ctx := context.Background()
	f.signUp(t, "root", "pw1")
	f.signUp(t, "alice", "pw1")

	root := auth.Identity{Username: "root", Roles: []string{models.RoleUser, models.RoleAdmin}}
	alice := auth.Identity{Username: "alice", Roles: []string{models.RoleUser}}

	t.Run("non-admin is forbidden", func(t *testing.T) {
		_, err := f.accounts.AssignRole(ctx, alice, models.RoleChange{Username: "alice", Role: models.RoleAdmin})
		require.ErrorIs(t, err, ErrForbidden)
		_, err = f.accounts.RemoveRole(ctx, auth.Identity{}, models.RoleChange{Username: "root", Role: models.RoleAdmin})
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := f.accounts.AssignRole(ctx, root, models.RoleChange{Username: "alice", Role: "ROLE_ROOT"})
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := f.accounts.AssignRole(ctx, root, models.RoleChange{Username: "ghost", Role: models.RoleAdmin})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("grant then revoke", func(t *testing.T) {
		promoted, err := f.accounts.AssignRole(ctx, root, models.RoleChange{Username: "alice", Role: models.RoleAdmin})
		require.NoError(t, err)
		assert.True(t, promoted.HasRole(models.RoleAdmin))

		token, err := f.accounts.SignIn(ctx, "alice", "pw1")
		require.NoError(t, err)
		identity, err := f.tokens.Verify(token, fixedNow)
		require.NoError(t, err)
		_, err = f.accounts.ListAll(ctx, identity)
		require.NoError(t, err)

		demoted, err := f.accounts.RemoveRole(ctx, root, models.RoleChange{Username: "alice", Role: models.RoleAdmin})
		require.NoError(t, err)
		assert.Equal(t, []string{models.RoleUser}, demoted.Roles)
	})
}

type failingHasher struct{}

func (failingHasher) Hash(string) (string, error) { return "", errors.New("entropy exhausted") }
func (failingHasher) Verify(string, string) bool  { return false }

func TestNewAccountService_HasherFailure(t *testing.T) {
	_, err := NewAccountService(storage.NewMemoryStorage(), failingHasher{}, nil, AccountConfig{})
	require.Error(t, err)
}
