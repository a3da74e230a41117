package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/marketplace-api/internal/apperror"
	"github.com/sakif/marketplace-api/internal/model"
	"github.com/sakif/marketplace-api/internal/repository"
)

const itemColumns = `id, name, description, price, category, owner_id, created_at, updated_at`

// Create inserts a new item with both timestamps set to the same instant.
func (idb *ItemDB) Create(ctx context.Context, item *model.Item) error {
	db := idb.db
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO items (name, description, price, category, owner_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.Name,
		item.Description,
		item.Price,
		item.Category,
		item.OwnerID,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new item id: %w", err)
	}
	item.ID = id

	return nil
}

// GetByID retrieves a single item by id.
func (idb *ItemDB) GetByID(ctx context.Context, id int64) (*model.Item, error) {
	db := idb.db
	var it model.Item
	err := db.conn.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	).Scan(&it.ID, &it.Name, &it.Description, &it.Price, &it.Category,
		&it.OwnerID, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("item", id)
		}
		return nil, fmt.Errorf("sqlite: getting item %d: %w", id, err)
	}
	return &it, nil
}

// Update replaces the stored row and refreshes updated_at. RowsAffected
// distinguishes "row updated" from "no such item" without a prior SELECT.
func (idb *ItemDB) Update(ctx context.Context, item *model.Item) error {
	db := idb.db
	item.UpdatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE items
		 SET name = ?, description = ?, price = ?, category = ?, updated_at = ?
		 WHERE id = ?`,
		item.Name,
		item.Description,
		item.Price,
		item.Category,
		item.UpdatedAt,
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating item %d: %w", item.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("item", item.ID)
	}

	return nil
}

// Delete removes an item by id. The AUTOINCREMENT counter never hands the id
// out again.
func (idb *ItemDB) Delete(ctx context.Context, id int64) error {
	db := idb.db
	res, err := db.conn.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting item %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("item", id)
	}

	return nil
}

// ListFiltered builds the WHERE clause from the filter, counts the matches
// first, then fetches the requested page in insertion order.
//
// PARAMETERIZED QUERIES:
// Every user-supplied value goes through a ? placeholder. The clause
// fragments themselves are string constants below — never request input —
// so concatenating them is safe.
func (idb *ItemDB) ListFiltered(ctx context.Context, filter repository.ItemFilter, opts repository.ListOptions) ([]model.Item, int, error) {
	db := idb.db
	where, args := filterClause(filter)

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting filtered items: %w", err)
	}

	skip, limit := clampPage(opts)
	pageArgs := append(args, limit, skip)
	items, err := db.queryItems(ctx,
		`SELECT `+itemColumns+` FROM items`+where+` ORDER BY id LIMIT ? OFFSET ?`,
		pageArgs...)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// Search matches the free-text query against name, description, and
// category, applies the remaining filters, sorts, and truncates.
//
// instr(lower(x), lower(?)) > 0 is SQLite's case-insensitive substring test —
// unlike LIKE it needs no wildcard escaping of the needle.
func (idb *ItemDB) Search(ctx context.Context, opts repository.SearchOptions) ([]model.Item, error) {
	db := idb.db
	where := ``
	args := []any{}
	and := func(clause string, clauseArgs ...any) {
		if where == "" {
			where = ` WHERE ` + clause
		} else {
			where += ` AND ` + clause
		}
		args = append(args, clauseArgs...)
	}

	if opts.Query != "" {
		and(`(instr(lower(name), lower(?)) > 0
			OR instr(lower(description), lower(?)) > 0
			OR instr(lower(category), lower(?)) > 0)`,
			opts.Query, opts.Query, opts.Query)
	}
	if opts.Category != "" {
		and(`lower(category) = lower(?)`, opts.Category)
	}
	if opts.MinPrice != nil {
		and(`price >= ?`, *opts.MinPrice)
	}
	if opts.MaxPrice != nil {
		and(`price <= ?`, *opts.MaxPrice)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)

	return db.queryItems(ctx,
		`SELECT `+itemColumns+` FROM items`+where+orderClause(opts.SortBy, opts.SortOrder)+` LIMIT ?`,
		args...)
}

// ListByOwner returns one user's items in insertion order.
func (idb *ItemDB) ListByOwner(ctx context.Context, ownerID int64, opts repository.ListOptions) ([]model.Item, error) {
	db := idb.db
	skip, limit := clampPage(opts)
	return db.queryItems(ctx,
		`SELECT `+itemColumns+` FROM items WHERE owner_id = ? ORDER BY id LIMIT ? OFFSET ?`,
		ownerID, limit, skip)
}

// CountByOwner returns how many items a user owns.
func (idb *ItemDB) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	db := idb.db
	var n int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE owner_id = ?`, ownerID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting items for owner %d: %w", ownerID, err)
	}
	return n, nil
}

// CategorySummary groups by exact category value — same grouping key as the
// memory backend, so "Office" and "office" remain distinct buckets.
func (idb *ItemDB) CategorySummary(ctx context.Context) (map[string]repository.CategoryStats, error) {
	db := idb.db
	rows, err := db.conn.QueryContext(ctx,
		`SELECT category, COUNT(*), AVG(price) FROM items GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: summarising categories: %w", err)
	}
	defer rows.Close()

	summary := make(map[string]repository.CategoryStats)
	for rows.Next() {
		var (
			cat   string
			stats repository.CategoryStats
		)
		if err := rows.Scan(&cat, &stats.Count, &stats.AvgPrice); err != nil {
			return nil, fmt.Errorf("sqlite: scanning category row: %w", err)
		}
		summary[cat] = stats
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating categories: %w", err)
	}

	return summary, nil
}

// Count returns the total number of items.
func (idb *ItemDB) Count(ctx context.Context) (int, error) {
	db := idb.db
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting items: %w", err)
	}
	return n, nil
}

// queryItems runs a multi-row item SELECT and scans the results.
func (db *DB) queryItems(ctx context.Context, query string, args ...any) ([]model.Item, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying items: %w", err)
	}
	defer rows.Close()

	items := make([]model.Item, 0)
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.Price,
			&it.Category, &it.OwnerID, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning item row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating items: %w", err)
	}

	return items, nil
}

// filterClause translates an ItemFilter into a WHERE fragment plus args.
// The filter order (category → search → min → max) matches the memory
// backend; with AND semantics the order doesn't change the result set, but
// keeping it identical keeps the two implementations reviewable side by side.
func filterClause(f repository.ItemFilter) (string, []any) {
	where := ``
	args := []any{}
	and := func(clause string, clauseArgs ...any) {
		if where == "" {
			where = ` WHERE ` + clause
		} else {
			where += ` AND ` + clause
		}
		args = append(args, clauseArgs...)
	}

	if f.Category != "" {
		and(`lower(category) = lower(?)`, f.Category)
	}
	if f.Search != "" {
		and(`(instr(lower(name), lower(?)) > 0 OR instr(lower(description), lower(?)) > 0)`,
			f.Search, f.Search)
	}
	if f.MinPrice != nil {
		and(`price >= ?`, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		and(`price <= ?`, *f.MaxPrice)
	}

	return where, args
}

// orderClause maps a validated sort field/direction onto an ORDER BY.
// The trailing ", id" is the tiebreaker that makes SQL ordering stable in
// the same way the memory backend's stable sort is: equal keys keep
// insertion order.
func orderClause(sortBy, sortOrder string) string {
	var col string
	switch sortBy {
	case "name":
		col = `lower(name)`
	case "price":
		col = `price`
	case "updated_at":
		col = `updated_at`
	default:
		col = `created_at`
	}

	dir := ` DESC`
	if sortOrder == "asc" {
		dir = ` ASC`
	}

	// The id tiebreaker is always ascending, regardless of direction: a
	// stable sort keeps equal keys in insertion order, it does not reverse
	// them. This matches the memory backend exactly.
	return ` ORDER BY ` + col + dir + `, id ASC`
}
