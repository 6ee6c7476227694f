package storage

import (
	"context"
	"fmt"
	"frecipe_service/internal/models"
	"sync"
	"time"

	"github.com/gofrs/uuid"
)

// MemoryStorage keeps everything in process memory. Transactions are
// serialized and work on a copy of the state that replaces the original
// only on commit.
type MemoryStorage struct {
	mu    sync.Mutex
	state *memState
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{state: newMemState()}
}

func (m *MemoryStorage) WithTx(ctx context.Context, fn func(q Querier) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := m.state.clone()
	if err := fn(tx); err != nil {
		return err
	}

	m.state = tx
	return nil
}

func (m *MemoryStorage) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryStorage) Close() {}

func (m *MemoryStorage) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CreateUser(ctx, user)
}

func (m *MemoryStorage) UserExists(ctx context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.UserExists(ctx, username)
}

func (m *MemoryStorage) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetUserByUsername(ctx, username)
}

func (m *MemoryStorage) LockUserByUsername(ctx context.Context, username string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.LockUserByUsername(ctx, username)
}

func (m *MemoryStorage) ListUsers(ctx context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ListUsers(ctx)
}

func (m *MemoryStorage) UpdateUserProfile(ctx context.Context, user models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.UpdateUserProfile(ctx, user)
}

func (m *MemoryStorage) AssignRole(ctx context.Context, userID uuid.UUID, role string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.AssignRole(ctx, userID, role)
}

func (m *MemoryStorage) RemoveRole(ctx context.Context, userID uuid.UUID, role string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.RemoveRole(ctx, userID, role)
}

func (m *MemoryStorage) CreateFridge(ctx context.Context, fridge models.Fridge) (models.Fridge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CreateFridge(ctx, fridge)
}

func (m *MemoryStorage) GetFridgeByUsername(ctx context.Context, username string) (models.Fridge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetFridgeByUsername(ctx, username)
}

func (m *MemoryStorage) LockFridgeByUsername(ctx context.Context, username string) (models.Fridge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.LockFridgeByUsername(ctx, username)
}

func (m *MemoryStorage) RenameFridge(ctx context.Context, fridgeID uuid.UUID, name string) (models.Fridge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.RenameFridge(ctx, fridgeID, name)
}

func (m *MemoryStorage) AddIngredient(ctx context.Context, ingredient models.Ingredient) (models.Ingredient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.AddIngredient(ctx, ingredient)
}

// memState implements Querier without locking; callers hold the lock.
type memState struct {
	users       map[string]models.User // by username
	userOrder   []string
	fridges     map[uuid.UUID]models.Fridge // by owner id, without ingredients
	ingredients map[uuid.UUID][]models.Ingredient
}

func newMemState() *memState {
	return &memState{
		users:       map[string]models.User{},
		fridges:     map[uuid.UUID]models.Fridge{},
		ingredients: map[uuid.UUID][]models.Ingredient{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, u := range s.users {
		c.users[k] = copyUser(u)
	}
	c.userOrder = append([]string(nil), s.userOrder...)
	for k, f := range s.fridges {
		c.fridges[k] = f
	}
	for k, list := range s.ingredients {
		c.ingredients[k] = append([]models.Ingredient(nil), list...)
	}
	return c
}

func (s *memState) CreateUser(_ context.Context, user models.User) (models.User, error) {
	const op = "storage.CreateUser"

	if _, ok := s.users[user.Username]; ok {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrAlreadyExists)
	}
	for _, u := range s.users {
		if u.ID == user.ID {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
	}

	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	user = copyUser(user)

	s.users[user.Username] = user
	s.userOrder = append(s.userOrder, user.Username)

	return copyUser(user), nil
}

func (s *memState) UserExists(_ context.Context, username string) (bool, error) {
	_, ok := s.users[username]
	return ok, nil
}

func (s *memState) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	const op = "storage.GetUserByUsername"

	user, ok := s.users[username]
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return copyUser(user), nil
}

func (s *memState) LockUserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.GetUserByUsername(ctx, username)
}

func (s *memState) ListUsers(_ context.Context) ([]models.User, error) {
	users := make([]models.User, 0, len(s.userOrder))
	for _, name := range s.userOrder {
		users = append(users, copyUser(s.users[name]))
	}
	return users, nil
}

func (s *memState) UpdateUserProfile(_ context.Context, user models.User) (models.User, error) {
	const op = "storage.UpdateUserProfile"

	for name, stored := range s.users {
		if stored.ID != user.ID {
			continue
		}

		stored.Nickname = user.Nickname
		stored.Phone = user.Phone
		stored.Img = user.Img
		stored.UpdatedAt = time.Now().UTC()
		s.users[name] = stored

		return copyUser(stored), nil
	}

	return models.User{}, fmt.Errorf("%s: %w", op, ErrNotFound)
}

func (s *memState) AssignRole(_ context.Context, userID uuid.UUID, role string) (models.User, error) {
	return s.changeRoles("storage.AssignRole", userID, func(roles []string) []string {
		for _, r := range roles {
			if r == role {
				return roles
			}
		}
		return append(roles, role)
	})
}

func (s *memState) RemoveRole(_ context.Context, userID uuid.UUID, role string) (models.User, error) {
	return s.changeRoles("storage.RemoveRole", userID, func(roles []string) []string {
		kept := roles[:0]
		for _, r := range roles {
			if r != role {
				kept = append(kept, r)
			}
		}
		return kept
	})
}

func (s *memState) changeRoles(op string, userID uuid.UUID, change func([]string) []string) (models.User, error) {
	for name, stored := range s.users {
		if stored.ID != userID {
			continue
		}

		stored = copyUser(stored)
		stored.Roles = change(stored.Roles)
		stored.UpdatedAt = time.Now().UTC()
		s.users[name] = stored

		return copyUser(stored), nil
	}

	return models.User{}, fmt.Errorf("%s: %w", op, ErrNotFound)
}

func (s *memState) CreateFridge(_ context.Context, fridge models.Fridge) (models.Fridge, error) {
	const op = "storage.CreateFridge"

	if _, ok := s.fridges[fridge.OwnerID]; ok {
		return models.Fridge{}, fmt.Errorf("%s: %w", op, ErrAlreadyExists)
	}

	now := time.Now().UTC()
	fridge.CreatedAt, fridge.UpdatedAt = now, now
	fridge.Ingredients = nil
	s.fridges[fridge.OwnerID] = fridge

	fridge.Ingredients = []models.Ingredient{}
	return fridge, nil
}

func (s *memState) GetFridgeByUsername(ctx context.Context, username string) (models.Fridge, error) {
	fridge, err := s.fridgeOf("storage.GetFridgeByUsername", username)
	if err != nil {
		return models.Fridge{}, err
	}

	fridge.Ingredients = append([]models.Ingredient{}, s.ingredients[fridge.ID]...)
	return fridge, nil
}

func (s *memState) LockFridgeByUsername(_ context.Context, username string) (models.Fridge, error) {
	return s.fridgeOf("storage.LockFridgeByUsername", username)
}

func (s *memState) RenameFridge(_ context.Context, fridgeID uuid.UUID, name string) (models.Fridge, error) {
	const op = "storage.RenameFridge"

	for owner, fridge := range s.fridges {
		if fridge.ID != fridgeID {
			continue
		}

		fridge.Name = name
		fridge.UpdatedAt = time.Now().UTC()
		s.fridges[owner] = fridge

		fridge.Ingredients = append([]models.Ingredient{}, s.ingredients[fridge.ID]...)
		return fridge, nil
	}

	return models.Fridge{}, fmt.Errorf("%s: %w", op, ErrNotFound)
}

func (s *memState) AddIngredient(_ context.Context, ingredient models.Ingredient) (models.Ingredient, error) {
	const op = "storage.AddIngredient"

	found := false
	for _, fridge := range s.fridges {
		if fridge.ID == ingredient.FridgeID {
			found = true
			break
		}
	}
	if !found {
		return models.Ingredient{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	for _, existing := range s.ingredients[ingredient.FridgeID] {
		if existing.ID == ingredient.ID {
			return models.Ingredient{}, fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
	}

	ingredient.CreatedAt = time.Now().UTC()
	s.ingredients[ingredient.FridgeID] = append(s.ingredients[ingredient.FridgeID], ingredient)

	return ingredient, nil
}

func (s *memState) fridgeOf(op, username string) (models.Fridge, error) {
	user, ok := s.users[username]
	if !ok {
		return models.Fridge{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	fridge, ok := s.fridges[user.ID]
	if !ok {
		return models.Fridge{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return fridge, nil
}

func copyUser(u models.User) models.User {
	u.Roles = append([]string(nil), u.Roles...)
	return u
}
