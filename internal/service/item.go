package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/marketplace-api/internal/apperror"
	"github.com/sakif/marketplace-api/internal/model"
	"github.com/sakif/marketplace-api/internal/repository"
)

// ItemService handles item CRUD, search, and the statistics endpoint.
// It holds the user repository too because /stats reports user totals.
type ItemService struct {
	items  repository.ItemRepository
	users  repository.UserRepository
	logger *slog.Logger
}

// NewItemService creates an ItemService.
func NewItemService(items repository.ItemRepository, users repository.UserRepository, logger *slog.Logger) *ItemService {
	return &ItemService{items: items, users: users, logger: logger}
}

// CreateItemInput is the shape-validated creation payload.
type CreateItemInput struct {
	Name        string
	Description string
	Price       float64
	Category    string
}

// UpdateItemInput is the partial-update payload. Every field is a pointer:
// nil means "not supplied, keep the current value", non-nil means "overwrite".
//
// WHY POINTERS AND NOT ZERO VALUES?
// With plain fields there'd be no way to tell "price omitted" apart from
// "price set to 0" — and 0 isn't even a legal price. Presence must be
// explicit for a partial update to be correct.
type UpdateItemInput struct {
	Name        *string
	Description *string
	Price       *float64
	Category    *string
}

// Create validates nothing beyond what the HTTP layer already has: it stamps
// the caller as owner and inserts. The owner reference is valid by
// construction — the caller is a live, authenticated user.
func (s *ItemService) Create(ctx context.Context, owner *model.User, in CreateItemInput) (*model.Item, error) {
	item := &model.Item{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		OwnerID:     owner.ID,
	}
	if err := s.items.Create(ctx, item); err != nil {
		s.logger.Error("failed to create item",
			slog.String("name", in.Name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating item: %w", err)
	}

	s.logger.Info("new item created",
		slog.Int64("id", item.ID),
		slog.String("name", item.Name),
		slog.String("owner", owner.Username),
	)

	return item, nil
}

// Get returns an item by id, or NotFound. Public — no caller required.
func (s *ItemService) Get(ctx context.Context, id int64) (*model.Item, error) {
	return s.items.GetByID(ctx, id)
}

// Update applies a partial update to an item the caller is allowed to touch.
//
// STRATEGY: fetch → authorize → merge into the fetched copy → replace.
// The merge only copies fields that were present in the request; everything
// else keeps its prior value. Working on the fetched copy (rather than
// mutating the stored record in place) means a failed update leaves the
// store untouched.
func (s *ItemService) Update(ctx context.Context, caller *model.User, id int64, in UpdateItemInput) (*model.Item, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := authorize(caller, item, "update"); err != nil {
		return nil, err
	}

	if in.Name != nil {
		item.Name = *in.Name
	}
	if in.Description != nil {
		item.Description = *in.Description
	}
	if in.Price != nil {
		item.Price = *in.Price
	}
	if in.Category != nil {
		item.Category = *in.Category
	}

	if err := s.items.Update(ctx, item); err != nil {
		s.logger.Error("failed to update item",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating item: %w", err)
	}

	s.logger.Info("item updated",
		slog.Int64("id", item.ID),
		slog.String("by", caller.Username),
	)

	return item, nil
}

// Delete removes an item the caller is allowed to touch.
func (s *ItemService) Delete(ctx context.Context, caller *model.User, id int64) error {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := authorize(caller, item, "delete"); err != nil {
		return err
	}

	if err := s.items.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("item deleted",
		slog.Int64("id", id),
		slog.String("by", caller.Username),
	)
	return nil
}

// authorize implements the single ownership rule shared by update and
// delete: the owner may act, and so may the admin account.
func authorize(caller *model.User, item *model.Item, action string) error {
	if item.OwnerID == caller.ID || caller.IsAdmin() {
		return nil
	}
	return apperror.Forbidden(fmt.Sprintf("Not authorized to %s this item", action))
}

// List returns one page of the filtered item collection plus the total
// number of matches (for the pagination envelope).
func (s *ItemService) List(ctx context.Context, filter repository.ItemFilter, skip, limit int) ([]model.Item, int, error) {
	items, total, err := s.items.ListFiltered(ctx, filter, repository.ListOptions{Skip: skip, Limit: limit})
	if err != nil {
		s.logger.Error("failed to list items", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("listing items: %w", err)
	}
	return items, total, nil
}

// Search runs the advanced search: filter, sort, truncate.
func (s *ItemService) Search(ctx context.Context, opts repository.SearchOptions) ([]model.Item, error) {
	items, err := s.items.Search(ctx, opts)
	if err != nil {
		s.logger.Error("failed to search items", slog.String("error", err.Error()))
		return nil, fmt.Errorf("searching items: %w", err)
	}
	return items, nil
}

// Categories returns the per-category count and mean price.
func (s *ItemService) Categories(ctx context.Context) (map[string]repository.CategoryStats, error) {
	summary, err := s.items.CategorySummary(ctx)
	if err != nil {
		s.logger.Error("failed to summarise categories", slog.String("error", err.Error()))
		return nil, fmt.Errorf("summarising categories: %w", err)
	}
	return summary, nil
}

// Stats is the /stats response body.
type Stats struct {
	TotalUsers   int            `json:"total_users"`
	TotalItems   int            `json:"total_items"`
	YourItems    int            `json:"your_items"`
	Categories   map[string]int `json:"categories"`
	AveragePrice float64        `json:"average_price"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Stats aggregates application-wide numbers plus the caller's own item
// count. The overall mean price is recovered from the category summary:
// sum(count_c * avg_c) / total is exactly the global arithmetic mean.
// Zero items yields an average of 0, not a division by zero.
func (s *ItemService) Stats(ctx context.Context, caller *model.User) (*Stats, error) {
	totalUsers, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}
	totalItems, err := s.items.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting items: %w", err)
	}
	yourItems, err := s.items.CountByOwner(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("counting caller items: %w", err)
	}
	summary, err := s.items.CategorySummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("summarising categories: %w", err)
	}

	categories := make(map[string]int, len(summary))
	var priceSum float64
	for cat, stats := range summary {
		categories[cat] = stats.Count
		priceSum += stats.AvgPrice * float64(stats.Count)
	}

	avg := 0.0
	if totalItems > 0 {
		avg = priceSum / float64(totalItems)
	}

	return &Stats{
		TotalUsers:   totalUsers,
		TotalItems:   totalItems,
		YourItems:    yourItems,
		Categories:   categories,
		AveragePrice: avg,
		Timestamp:    time.Now().UTC(),
	}, nil
}
