package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/marketplace-api/internal/apperror"
	"github.com/sakif/marketplace-api/internal/model"
	"github.com/sakif/marketplace-api/internal/repository"
)

// UserService handles the read-only user endpoints. Users are never mutated
// or deleted after registration, so this service has no write paths.
type UserService struct {
	users  repository.UserRepository
	items  repository.ItemRepository
	logger *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(users repository.UserRepository, items repository.ItemRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, items: items, logger: logger}
}

// List returns users in registration order with skip/limit pagination.
func (s *UserService) List(ctx context.Context, skip, limit int) ([]model.User, error) {
	users, err := s.users.List(ctx, repository.ListOptions{Skip: skip, Limit: limit})
	if err != nil {
		s.logger.Error("failed to list users", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// Get returns a user by id, or NotFound.
func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// ItemsOf returns the items owned by targetID.
//
// PERMISSION RULE:
// Only the user themselves or the admin account may see a user's item list.
// The same caller.ID == owner OR caller is admin pattern guards item update
// and delete — see ItemService.authorize.
//
// Note there is no existence check on targetID: an authorized caller asking
// for a non-existent user's items gets an empty list, not a 404. (Admin is
// the only caller who can reach that case.)
func (s *UserService) ItemsOf(ctx context.Context, caller *model.User, targetID int64, skip, limit int) ([]model.Item, error) {
	if caller.ID != targetID && !caller.IsAdmin() {
		return nil, apperror.Forbidden("Not authorized to view this user's items")
	}

	items, err := s.items.ListByOwner(ctx, targetID, repository.ListOptions{Skip: skip, Limit: limit})
	if err != nil {
		s.logger.Error("failed to list user items",
			slog.Int64("owner_id", targetID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing user items: %w", err)
	}
	return items, nil
}
