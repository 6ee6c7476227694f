package storage

import (
	"context"
	"errors"
	"frecipe_service/internal/models"

	"github.com/gofrs/uuid"
)

const (
	usersTable       = "users"
	fridgesTable     = "fridges"
	ingredientsTable = "ingredients"
)

var (
	ErrNotFound      = errors.New("storage: not found")
	ErrAlreadyExists = errors.New("storage: already exists")
)

// Querier is the set of data operations available both on the storage
// itself and inside a transaction.
type Querier interface {

	// Пользователи
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	UserExists(ctx context.Context, username string) (bool, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	// LockUserByUsername is GetUserByUsername that also holds a row lock
	// until the surrounding transaction ends.
	LockUserByUsername(ctx context.Context, username string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	// UpdateUserProfile writes nickname, phone and img of the user with
	// user.ID. Nothing else is written.
	UpdateUserProfile(ctx context.Context, user models.User) (models.User, error)
	// AssignRole adds role to the user's roles unless already present.
	AssignRole(ctx context.Context, userID uuid.UUID, role string) (models.User, error)
	RemoveRole(ctx context.Context, userID uuid.UUID, role string) (models.User, error)

	// Холодильники и продукты
	CreateFridge(ctx context.Context, fridge models.Fridge) (models.Fridge, error)
	// GetFridgeByUsername returns the fridge owned by username together with
	// its ingredients in insertion order.
	GetFridgeByUsername(ctx context.Context, username string) (models.Fridge, error)
	// LockFridgeByUsername locks the fridge row; ingredients are not loaded.
	LockFridgeByUsername(ctx context.Context, username string) (models.Fridge, error)
	RenameFridge(ctx context.Context, fridgeID uuid.UUID, name string) (models.Fridge, error)
	AddIngredient(ctx context.Context, ingredient models.Ingredient) (models.Ingredient, error)
}

type Storage interface {
	Querier

	// WithTx runs fn in a single transaction. fn's error rolls it back,
	// nil commits.
	WithTx(ctx context.Context, fn func(q Querier) error) error
	Ping(ctx context.Context) error

	Close()
}
