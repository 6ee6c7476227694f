package service

import (
	"context"
	"fmt"
	"frecipe_service/internal/auth"
	"frecipe_service/internal/models"
	"frecipe_service/internal/storage"

	"github.com/oklog/ulid/v2"
)

// InventoryService manages the caller's own fridge. The acting user always
// comes from the verified identity.
type InventoryService struct {
	storage storage.Storage
}

func NewInventoryService(st storage.Storage) *InventoryService {
	return &InventoryService{storage: st}
}

func (s *InventoryService) Retrieve(ctx context.Context, identity auth.Identity) (models.Fridge, error) {
	const op = "service.RetrieveFridge"

	fridge, err := s.storage.GetFridgeByUsername(ctx, identity.Username)
	if err != nil {
		return models.Fridge{}, fmt.Errorf("%s: %w", op, mapStorageError(err))
	}

	return fridge, nil
}

func (s *InventoryService) AddIngredient(ctx context.Context, identity auth.Identity, in models.NewIngredient) (models.Ingredient, error) {
	const op = "service.AddIngredient"

	if err := in.Validate(); err != nil {
		return models.Ingredient{}, fmt.Errorf("%s: %w", op, newValidationError(err))
	}

	var created models.Ingredient
	err := s.storage.WithTx(ctx, func(q storage.Querier) error {
		fridge, err := q.LockFridgeByUsername(ctx, identity.Username)
		if err != nil {
			return mapStorageError(err)
		}

		created, err = q.AddIngredient(ctx, models.Ingredient{
			ID:        ulid.Make().String(),
			FridgeID:  fridge.ID,
			Name:      in.Name,
			Quantity:  in.QuantityOrDefault(),
			Unit:      in.Unit,
			ExpiresAt: in.ExpiryTime(),
		})
		return err
	})
	if err != nil {
		return models.Ingredient{}, fmt.Errorf("%s: %w", op, err)
	}

	return created, nil
}

func (s *InventoryService) Rename(ctx context.Context, identity auth.Identity, in models.FridgeRename) (models.Fridge, error) {
	const op = "service.RenameFridge"

	if err := in.Validate(); err != nil {
		return models.Fridge{}, fmt.Errorf("%s: %w", op, newValidationError(err))
	}

	var renamed models.Fridge
	err := s.storage.WithTx(ctx, func(q storage.Querier) error {
		fridge, err := q.LockFridgeByUsername(ctx, identity.Username)
		if err != nil {
			return mapStorageError(err)
		}

		renamed, err = q.RenameFridge(ctx, fridge.ID, in.FridgeName)
		return mapStorageError(err)
	})
	if err != nil {
		return models.Fridge{}, fmt.Errorf("%s: %w", op, err)
	}

	return renamed, nil
}
