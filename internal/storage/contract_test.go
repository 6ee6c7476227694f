package storage

import (
	"context"
	"errors"
	"fmt"
	"frecipe_service/internal/models"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUser(username string) models.User {
	return models.User{
		ID:           uuid.Must(uuid.NewV4()),
		Username:     username,
		PasswordHash: "$2a$04$hash-" + username,
		Nickname:     username + "-nick",
		Phone:        "+821012345678",
		Roles:        []string{models.RoleUser},
	}
}

func createUserWithFridge(t *testing.T, s Storage, username string) (models.User, models.Fridge) {
	t.Helper()
	ctx := context.Background()

	user, err := s.CreateUser(ctx, newTestUser(username))
	require.NoError(t, err)

	fridge, err := s.CreateFridge(ctx, models.Fridge{
		ID:      uuid.Must(uuid.NewV4()),
		OwnerID: user.ID,
		Name:    models.DefaultFridgeName,
	})
	require.NoError(t, err)

	return user, fridge
}

// runStorageContract exercises behaviour every Storage driver must share.
func runStorageContract(t *testing.T, s Storage) {
	ctx := context.Background()

	t.Run("users", func(t *testing.T) {
		created, err := s.CreateUser(ctx, newTestUser("alice"))
		require.NoError(t, err)
		assert.Equal(t, "alice", created.Username)
		assert.Equal(t, []string{models.RoleUser}, created.Roles)
		assert.False(t, created.CreatedAt.IsZero())

		exists, err := s.UserExists(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = s.UserExists(ctx, "nobody")
		require.NoError(t, err)
		assert.False(t, exists)

		got, err := s.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, created.PasswordHash, got.PasswordHash)

		_, err = s.GetUserByUsername(ctx, "nobody")
		require.ErrorIs(t, err, ErrNotFound)

		dup := newTestUser("alice")
		_, err = s.CreateUser(ctx, dup)
		require.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("update profile touches only profile fields", func(t *testing.T) {
		user, err := s.CreateUser(ctx, newTestUser("bob"))
		require.NoError(t, err)

		changed := user
		changed.Nickname = "bobby"
		changed.Phone = ""
		changed.Img = "bob.png"
		changed.Username = "mallory"
		changed.PasswordHash = "stolen"
		changed.Roles = []string{models.RoleAdmin}

		updated, err := s.UpdateUserProfile(ctx, changed)
		require.NoError(t, err)
		assert.Equal(t, "bobby", updated.Nickname)
		assert.Equal(t, "", updated.Phone)
		assert.Equal(t, "bob.png", updated.Img)
		assert.Equal(t, "bob", updated.Username)
		assert.Equal(t, user.PasswordHash, updated.PasswordHash)
		assert.Equal(t, []string{models.RoleUser}, updated.Roles)

		missing := newTestUser("ghost")
		_, err = s.UpdateUserProfile(ctx, missing)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("roles", func(t *testing.T) {
		user, err := s.GetUserByUsername(ctx, "bob")
		require.NoError(t, err)

		promoted, err := s.AssignRole(ctx, user.ID, models.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, []string{models.RoleUser, models.RoleAdmin}, promoted.Roles)

		again, err := s.AssignRole(ctx, user.ID, models.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, []string{models.RoleUser, models.RoleAdmin}, again.Roles)

		demoted, err := s.RemoveRole(ctx, user.ID, models.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, []string{models.RoleUser}, demoted.Roles)

		got, err := s.GetUserByUsername(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, []string{models.RoleUser}, got.Roles)
		assert.Equal(t, "bobby", got.Nickname)

		_, err = s.AssignRole(ctx, uuid.Must(uuid.NewV4()), models.RoleAdmin)
		require.ErrorIs(t, err, ErrNotFound)
		_, err = s.RemoveRole(ctx, uuid.Must(uuid.NewV4()), models.RoleAdmin)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list users", func(t *testing.T) {
		users, err := s.ListUsers(ctx)
		require.NoError(t, err)

		names := make([]string, 0, len(users))
		for _, u := range users {
			names = append(names, u.Username)
		}
		assert.Contains(t, names, "alice")
		assert.Contains(t, names, "bob")
	})

	t.Run("fridge and ingredients", func(t *testing.T) {
		_, fridge := createUserWithFridge(t, s, "carol")
		assert.Equal(t, models.DefaultFridgeName, fridge.Name)
		assert.Empty(t, fridge.Ingredients)

		_, err := s.CreateFridge(ctx, models.Fridge{ID: uuid.Must(uuid.NewV4()), OwnerID: fridge.OwnerID, Name: "second"})
		require.ErrorIs(t, err, ErrAlreadyExists)

		expires := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
		for _, name := range []string{"egg", "milk", "kimchi"} {
			ing := models.Ingredient{ID: ulid.Make().String(), FridgeID: fridge.ID, Name: name, Quantity: 2}
			if name == "milk" {
				ing.Unit = "L"
				ing.ExpiresAt = &expires
			}
			_, err := s.AddIngredient(ctx, ing)
			require.NoError(t, err)
		}

		got, err := s.GetFridgeByUsername(ctx, "carol")
		require.NoError(t, err)
		require.Len(t, got.Ingredients, 3)
		assert.Equal(t, "egg", got.Ingredients[0].Name)
		assert.Equal(t, "milk", got.Ingredients[1].Name)
		assert.Equal(t, "kimchi", got.Ingredients[2].Name)
		assert.Equal(t, "L", got.Ingredients[1].Unit)
		require.NotNil(t, got.Ingredients[1].ExpiresAt)
		assert.True(t, expires.Equal(*got.Ingredients[1].ExpiresAt))
		assert.Nil(t, got.Ingredients[0].ExpiresAt)

		renamed, err := s.RenameFridge(ctx, fridge.ID, "kitchen")
		require.NoError(t, err)
		assert.Equal(t, "kitchen", renamed.Name)
		assert.Len(t, renamed.Ingredients, 3)

		locked, err := s.LockFridgeByUsername(ctx, "carol")
		require.NoError(t, err)
		assert.Equal(t, fridge.ID, locked.ID)

		_, err = s.GetFridgeByUsername(ctx, "nobody")
		require.ErrorIs(t, err, ErrNotFound)

		_, err = s.RenameFridge(ctx, uuid.Must(uuid.NewV4()), "x")
		require.ErrorIs(t, err, ErrNotFound)

		_, err = s.AddIngredient(ctx, models.Ingredient{ID: ulid.Make().String(), FridgeID: uuid.Must(uuid.NewV4()), Name: "orphan"})
		require.Error(t, err)
	})

	t.Run("fridges are isolated per owner", func(t *testing.T) {
		_, daveFridge := createUserWithFridge(t, s, "dave")
		createUserWithFridge(t, s, "erin")

		_, err := s.AddIngredient(ctx, models.Ingredient{ID: ulid.Make().String(), FridgeID: daveFridge.ID, Name: "tofu", Quantity: 1})
		require.NoError(t, err)

		erin, err := s.GetFridgeByUsername(ctx, "erin")
		require.NoError(t, err)
		assert.Empty(t, erin.Ingredients)
	})

	t.Run("transaction rollback", func(t *testing.T) {
		boom := errors.New("boom")

		err := s.WithTx(ctx, func(q Querier) error {
			if _, err := q.CreateUser(ctx, newTestUser("frank")); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		exists, err := s.UserExists(ctx, "frank")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("transaction commit", func(t *testing.T) {
		err := s.WithTx(ctx, func(q Querier) error {
			user, err := q.CreateUser(ctx, newTestUser("grace"))
			if err != nil {
				return err
			}
			if _, err := q.LockUserByUsername(ctx, "grace"); err != nil {
				return err
			}
			_, err = q.CreateFridge(ctx, models.Fridge{ID: uuid.Must(uuid.NewV4()), OwnerID: user.ID, Name: "g"})
			return err
		})
		require.NoError(t, err)

		fridge, err := s.GetFridgeByUsername(ctx, "grace")
		require.NoError(t, err)
		assert.Equal(t, "g", fridge.Name)
	})

	t.Run("concurrent locked writes lose nothing", func(t *testing.T) {
		const workers = 16

		createUserWithFridge(t, s, "heidi")

		var wg sync.WaitGroup
		errs := make(chan error, 2*workers)

		for i := 0; i < workers; i++ {
			wg.Add(2)

			go func(i int) {
				defer wg.Done()
				errs <- s.WithTx(ctx, func(q Querier) error {
					fridge, err := q.LockFridgeByUsername(ctx, "heidi")
					if err != nil {
						return err
					}
					_, err = q.AddIngredient(ctx, models.Ingredient{
						ID:       ulid.Make().String(),
						FridgeID: fridge.ID,
						Name:     fmt.Sprintf("item-%02d", i),
						Quantity: 1,
					})
					return err
				})
			}(i)

			go func() {
				defer wg.Done()
				errs <- s.WithTx(ctx, func(q Querier) error {
					user, err := q.LockUserByUsername(ctx, "heidi")
					if err != nil {
						return err
					}
					user.Img += "x"
					_, err = q.UpdateUserProfile(ctx, user)
					return err
				})
			}()
		}

		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		fridge, err := s.GetFridgeByUsername(ctx, "heidi")
		require.NoError(t, err)
		require.Len(t, fridge.Ingredients, workers)

		names := map[string]bool{}
		for _, ing := range fridge.Ingredients {
			names[ing.Name] = true
		}
		assert.Len(t, names, workers)

		user, err := s.GetUserByUsername(ctx, "heidi")
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("x", workers), user.Img)
		assert.Equal(t, "heidi-nick", user.Nickname)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, s.Ping(ctx))
	})
}
