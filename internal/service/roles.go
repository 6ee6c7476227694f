package service

import (
	"context"
	"errors"
	"fmt"
	"frecipe_service/internal/auth"
	"frecipe_service/internal/models"
	"frecipe_service/internal/storage"
)

// AssignRole grants a role to another user. Only admins may call it. The
// change shows up in the target's next token.
func (s *AccountService) AssignRole(ctx context.Context, identity auth.Identity, in models.RoleChange) (models.User, error) {
	const op = "service.AssignRole"

	user, err := s.changeRole(ctx, identity, in, func(q storage.Querier, user models.User) (models.User, error) {
		return q.AssignRole(ctx, user.ID, in.Role)
	})
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *AccountService) RemoveRole(ctx context.Context, identity auth.Identity, in models.RoleChange) (models.User, error) {
	const op = "service.RemoveRole"

	user, err := s.changeRole(ctx, identity, in, func(q storage.Querier, user models.User) (models.User, error) {
		return q.RemoveRole(ctx, user.ID, in.Role)
	})
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *AccountService) changeRole(ctx context.Context, identity auth.Identity, in models.RoleChange,
	apply func(q storage.Querier, user models.User) (models.User, error)) (models.User, error) {
	if err := requireAdmin(identity); err != nil {
		return models.User{}, err
	}
	if err := in.Validate(); err != nil {
		return models.User{}, newValidationError(err)
	}

	var changed models.User
	err := s.storage.WithTx(ctx, func(q storage.Querier) error {
		user, err := q.LockUserByUsername(ctx, in.Username)
		if err != nil {
			return mapStorageError(err)
		}

		changed, err = apply(q, user)
		return mapStorageError(err)
	})

	return changed, err
}

// EnsureAdmins grants ROLE_ADMIN to every configured admin that already
// exists. Usernames not signed up yet are skipped; SignUp grants the role
// when they register.
func (s *AccountService) EnsureAdmins(ctx context.Context) (int, error) {
	const op = "service.EnsureAdmins"

	granted := 0
	for _, username := range s.cfg.AdminUsernames {
		err := s.storage.WithTx(ctx, func(q storage.Querier) error {
			user, err := q.LockUserByUsername(ctx, username)
			if err != nil {
				return err
			}
			if user.HasRole(models.RoleAdmin) {
				return nil
			}

			if _, err := q.AssignRole(ctx, user.ID, models.RoleAdmin); err != nil {
				return err
			}
			granted++
			return nil
		})
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return granted, fmt.Errorf("%s: %s: %w", op, username, err)
		}
	}

	return granted, nil
}

func (s *AccountService) isConfiguredAdmin(username string) bool {
	for _, name := range s.cfg.AdminUsernames {
		if name == username {
			return true
		}
	}
	return false
}

func requireAdmin(identity auth.Identity) error {
	if identity.Username == "" {
		return ErrUnauthenticated
	}
	if !identity.HasRole(models.RoleAdmin) {
		return ErrForbidden
	}
	return nil
}
