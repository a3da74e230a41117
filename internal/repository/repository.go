// Package repository defines the storage interfaces the rest of the
// application is programmed against.
//
// Two implementations exist:
//   - repository/memory — mutex-guarded in-process slices (the default)
//   - repository/sqlite — the same contract on an embedded SQLite database
//
// Services and handlers only ever see these interfaces, so the backend is
// swappable in one line of server wiring.
package repository

import (
	"context"

	"github.com/sakif/marketplace-api/internal/model"
)

// ListOptions is plain skip/limit pagination. Neither value is bounds-checked
// against the collection size: a skip past the end yields an empty slice.
// Range validation (limit 1-100 etc.) happens at the HTTP layer.
type ListOptions struct {
	Skip  int
	Limit int
}

// ItemFilter narrows an item listing. Filters apply in declaration order:
// category, then text search, then minimum price, then maximum price.
//
// MinPrice/MaxPrice are pointers so "not supplied" is distinguishable from
// zero — a min_price=0 filter is a real (if vacuous) constraint.
type ItemFilter struct {
	Category string   // case-insensitive equality
	Search   string   // case-insensitive substring of name OR description
	MinPrice *float64 // inclusive
	MaxPrice *float64 // inclusive
}

// SearchOptions drives the advanced search endpoint. Query differs from
// ItemFilter.Search in that it additionally matches the category text.
// SortBy/SortOrder are validated at the HTTP layer; implementations fall back
// to created_at/desc for anything unrecognised.
type SearchOptions struct {
	Query     string
	Category  string
	MinPrice  *float64
	MaxPrice  *float64
	SortBy    string // "name" (case-insensitive), "price", "created_at", "updated_at"
	SortOrder string // "asc" or "desc"
	Limit     int    // truncation only, no offset
}

// CategoryStats summarises one category for the /items/categories endpoint.
type CategoryStats struct {
	Count    int     `json:"count"`
	AvgPrice float64 `json:"avg_price"`
}

// UserRepository stores user records in insertion order.
//
// Create assigns the next monotonic id and the creation timestamp.
// Uniqueness of username/email is checked by the caller before Create
// (the SQLite backend additionally has UNIQUE constraints as a backstop).
// Lookups return an error wrapping apperror.ErrNotFound when absent.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, opts ListOptions) ([]model.User, error)
	Count(ctx context.Context) (int, error)
}

// ItemRepository stores item records in insertion order.
//
// Create assigns the next monotonic id and both timestamps. Update replaces
// the stored record wholesale (copy-then-replace; the merge of partial
// updates happens in the service layer) and refreshes UpdatedAt. Delete
// removes the first id match and fails with apperror.ErrNotFound if absent;
// ids are never reused afterwards.
type ItemRepository interface {
	Create(ctx context.Context, item *model.Item) error
	GetByID(ctx context.Context, id int64) (*model.Item, error)
	Update(ctx context.Context, item *model.Item) error
	Delete(ctx context.Context, id int64) error

	// ListFiltered returns the [skip, skip+limit) window of the filtered
	// set plus the total number of matches before pagination.
	ListFiltered(ctx context.Context, filter ItemFilter, opts ListOptions) ([]model.Item, int, error)

	// Search applies SearchOptions: filter, stable sort, truncate.
	Search(ctx context.Context, opts SearchOptions) ([]model.Item, error)

	ListByOwner(ctx context.Context, ownerID int64, opts ListOptions) ([]model.Item, error)
	CountByOwner(ctx context.Context, ownerID int64) (int, error)

	// CategorySummary groups all items by exact category value.
	CategorySummary(ctx context.Context) (map[string]CategoryStats, error)
	Count(ctx context.Context) (int, error)
}
