package usecase

import (
	"context"
	"errors"
	"log/slog"

	"grocer-agent/internal/domain"
)

// ShoppingListStore persists per-user item sets. Items passed in are
// already normalized. Operations on a user without a list succeed.
type ShoppingListStore interface {
	AddItems(ctx context.Context, userID string, items []string) error
	RemoveItems(ctx context.Context, userID string, items []string) error
	ClearList(ctx context.Context, userID string) error
	ReadList(ctx context.Context, userID string) ([]string, error)
}

type ShoppingListService struct {
	store  ShoppingListStore
	logger *slog.Logger
}

func NewShoppingListService(store ShoppingListStore, logger *slog.Logger) (*ShoppingListService, error) {
	if store == nil {
		return nil, errors.New("usecase: shopping list store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ShoppingListService{store: store, logger: logger}, nil
}

// Add merges items into the user's list. Nothing to add counts as success.
func (s *ShoppingListService) Add(ctx context.Context, userID string, items []string) bool {
	items = domain.NormalizeItems(items)
	if len(items) == 0 {
		return true
	}
	if err := s.store.AddItems(ctx, userID, items); err != nil {
		s.logger.ErrorContext(ctx, "add items failed", "user_id", userID, "err", err)
		return false
	}
	return true
}

func (s *ShoppingListService) Remove(ctx context.Context, userID string, items []string) bool {
	items = domain.NormalizeItems(items)
	if len(items) == 0 {
		return true
	}
	if err := s.store.RemoveItems(ctx, userID, items); err != nil {
		s.logger.ErrorContext(ctx, "remove items failed", "user_id", userID, "err", err)
		return false
	}
	return true
}

func (s *ShoppingListService) Clear(ctx context.Context, userID string) bool {
	if err := s.store.ClearList(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "clear list failed", "user_id", userID, "err", err)
		return false
	}
	return true
}

// List returns the sorted items; read failures yield an empty list.
func (s *ShoppingListService) List(ctx context.Context, userID string) []string {
	items, err := s.store.ReadList(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "read list failed", "user_id", userID, "err", err)
		return []string{}
	}
	return domain.NormalizeItems(items)
}
