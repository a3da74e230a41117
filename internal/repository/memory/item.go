package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sakif/marketplace-api/internal/apperror"
	"github.com/sakif/marketplace-api/internal/model"
	"github.com/sakif/marketplace-api/internal/repository"
)

// Create appends an item and assigns the next monotonic id. Both timestamps
// are set to the same instant.
func (is *ItemStore) Create(_ context.Context, item *model.Item) error {
	s := is.s
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextItemID++
	item.ID = s.nextItemID

	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	s.items = append(s.items, *item)
	return nil
}

// GetByID returns the first item with the given id, or NotFound.
func (is *ItemStore) GetByID(_ context.Context, id int64) (*model.Item, error) {
	s := is.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			it := s.items[i]
			return &it, nil
		}
	}
	return nil, apperror.NotFound("item", id)
}

// Update replaces the stored record with the given one and refreshes
// UpdatedAt. The service layer has already merged partial updates into a
// copy of the record (copy-then-replace), so replacement is wholesale here.
func (is *ItemStore) Update(_ context.Context, item *model.Item) error {
	s := is.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == item.ID {
			item.UpdatedAt = time.Now().UTC()
			s.items[i] = *item
			return nil
		}
	}
	return apperror.NotFound("item", item.ID)
}

// Delete removes the first item with the given id. The id is never handed
// out again — the counter only moves forward.
func (is *ItemStore) Delete(_ context.Context, id int64) error {
	s := is.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("item", id)
}

// ListFiltered applies the filters in their fixed order (category → search →
// min_price → max_price), counts the matches, and only then slices the
// requested page. The total therefore describes the whole filtered set, not
// the page.
func (is *ItemStore) ListFiltered(_ context.Context, filter repository.ItemFilter, opts repository.ListOptions) ([]model.Item, int, error) {
	s := is.s
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := filterItems(s.items, filter)
	return pageOf(filtered, opts), len(filtered), nil
}

// Search filters like ListFiltered — except the free-text query additionally
// matches the category — then stable-sorts by the requested field and
// truncates. There is no offset: search is "top N matches", not pagination.
func (is *ItemStore) Search(_ context.Context, opts repository.SearchOptions) ([]model.Item, error) {
	s := is.s
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]model.Item, 0, len(s.items))
	for _, it := range s.items {
		if opts.Query != "" && !matchesQuery(it, opts.Query) {
			continue
		}
		if opts.Category != "" && !strings.EqualFold(it.Category, opts.Category) {
			continue
		}
		if opts.MinPrice != nil && it.Price < *opts.MinPrice {
			continue
		}
		if opts.MaxPrice != nil && it.Price > *opts.MaxPrice {
			continue
		}
		matched = append(matched, it)
	}

	sortItems(matched, opts.SortBy, opts.SortOrder)

	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

// ListByOwner returns the [skip, skip+limit) window of one user's items in
// insertion order.
func (is *ItemStore) ListByOwner(_ context.Context, ownerID int64, opts repository.ListOptions) ([]model.Item, error) {
	s := is.s
	s.mu.Lock()
	defer s.mu.Unlock()

	owned := make([]model.Item, 0)
	for _, it := range s.items {
		if it.OwnerID == ownerID {
			owned = append(owned, it)
		}
	}
	return pageOf(owned, opts), nil
}

// CountByOwner returns how many items a user owns.
func (is *ItemStore) CountByOwner(_ context.Context, ownerID int64) (int, error) {
	s := is.s
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, it := range s.items {
		if it.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

// CategorySummary groups all items by their exact category value and reports
// the count and arithmetic mean price per group.
func (is *ItemStore) CategorySummary(_ context.Context) (map[string]repository.CategoryStats, error) {
	s := is.s
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	sums := make(map[string]float64)
	for _, it := range s.items {
		counts[it.Category]++
		sums[it.Category] += it.Price
	}

	summary := make(map[string]repository.CategoryStats, len(counts))
	for cat, n := range counts {
		summary[cat] = repository.CategoryStats{
			Count:    n,
			AvgPrice: sums[cat] / float64(n),
		}
	}
	return summary, nil
}

// Count returns the total number of items.
func (is *ItemStore) Count(_ context.Context) (int, error) {
	s := is.s
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items), nil
}

// filterItems applies an ItemFilter in its fixed order. Each step narrows
// the previous step's result, mirroring how the filters compose.
func filterItems(items []model.Item, f repository.ItemFilter) []model.Item {
	filtered := make([]model.Item, 0, len(items))
	filtered = append(filtered, items...)

	if f.Category != "" {
		filtered = keep(filtered, func(it model.Item) bool {
			return strings.EqualFold(it.Category, f.Category)
		})
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		filtered = keep(filtered, func(it model.Item) bool {
			return strings.Contains(strings.ToLower(it.Name), needle) ||
				(it.Description != "" && strings.Contains(strings.ToLower(it.Description), needle))
		})
	}
	if f.MinPrice != nil {
		filtered = keep(filtered, func(it model.Item) bool { return it.Price >= *f.MinPrice })
	}
	if f.MaxPrice != nil {
		filtered = keep(filtered, func(it model.Item) bool { return it.Price <= *f.MaxPrice })
	}
	return filtered
}

func keep(items []model.Item, pred func(model.Item) bool) []model.Item {
	out := items[:0:0] // fresh backing array, same element type
	for _, it := range items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out
}

// matchesQuery is the free-text search predicate: case-insensitive substring
// of name, description (when present), or category.
func matchesQuery(it model.Item, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(it.Name), q) ||
		(it.Description != "" && strings.Contains(strings.ToLower(it.Description), q)) ||
		strings.Contains(strings.ToLower(it.Category), q)
}

// sortItems stable-sorts in place by the requested field and direction.
//
// WHY SliceStable?
// A stable sort preserves insertion order among equal keys, so two items
// with the same price always come back in the order they were created —
// deterministic results regardless of how the sort partitions its input.
func sortItems(items []model.Item, sortBy, sortOrder string) {
	var less func(a, b model.Item) bool
	switch sortBy {
	case "name":
		less = func(a, b model.Item) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	case "price":
		less = func(a, b model.Item) bool { return a.Price < b.Price }
	case "updated_at":
		less = func(a, b model.Item) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	default: // "created_at" and anything unrecognised
		less = func(a, b model.Item) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}

	if sortOrder == "asc" {
		sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
		return
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[j], items[i]) })
}
