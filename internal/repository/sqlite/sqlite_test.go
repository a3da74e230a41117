package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/marketplace-api/internal/apperror"
	"github.com/sakif/marketplace-api/internal/model"
	"github.com/sakif/marketplace-api/internal/repository"
)

// newTestDB creates an in-memory database that is torn down with the test.
// ":memory:" gives every test its own fresh, isolated schema.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$04$fakehashfortesting",
		IsActive:     true,
	}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func createTestItem(t *testing.T, db *DB, name string, price float64, category string) *model.Item {
	t.Helper()
	item := &model.Item{
		Name:        name,
		Description: "a " + name,
		Price:       price,
		Category:    category,
		OwnerID:     1,
	}
	if err := db.Items().Create(context.Background(), item); err != nil {
		t.Fatalf("failed to create test item: %v", err)
	}
	return item
}

func ptr(f float64) *float64 { return &f }

// =========================================================================
// DB VIEW TESTS
// =========================================================================

// One DB must serve both repository interfaces at once through its Users()
// and Items() views, both reading and writing the same database.
func TestDBViews_ShareConnection(t *testing.T) {
	db := newTestDB(t)
	var users repository.UserRepository = db.Users()
	var items repository.ItemRepository = db.Items()

	u := createTestUser(t, db, "alice")
	it := createTestItem(t, db, "laptop", 999.99, "electronics")

	// Fresh views over the same DB see the records written above.
	if _, err := users.GetByID(context.Background(), u.ID); err != nil {
		t.Errorf("user view GetByID() error = %v", err)
	}
	if _, err := items.GetByID(context.Background(), it.ID); err != nil {
		t.Errorf("item view GetByID() error = %v", err)
	}

	// The id sequences are per-table: each starts at 1.
	if u.ID != 1 || it.ID != 1 {
		t.Errorf("ids = user %d, item %d, want 1 and 1", u.ID, it.ID)
	}
}

// =========================================================================
// USER TESTS
// =========================================================================

func TestUserCreate_AssignsIDAndTimestamp(t *testing.T) {
	db := newTestDB(t)

	user := createTestUser(t, db, "alice")
	if user.ID == 0 {
		t.Error("Create() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Create() did not set user.CreatedAt")
	}
}

func TestUserCreate_DuplicateUsernameIsConflict(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	dup := &model.User{
		Username:     "alice",
		Email:        "other@example.com",
		PasswordHash: "x",
		IsActive:     true,
	}
	err := db.Users().Create(context.Background(), dup)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Create() duplicate username error = %v, want ErrConflict", err)
	}
}

func TestUserCreate_DuplicateEmailIsConflict(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	dup := &model.User{
		Username:     "alicia",
		Email:        "alice@example.com",
		PasswordHash: "x",
		IsActive:     true,
	}
	err := db.Users().Create(context.Background(), dup)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Create() duplicate email error = %v, want ErrConflict", err)
	}
}

func TestUserLookups(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "alice")

	byID, err := db.Users().GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if byID.Username != "alice" {
		t.Errorf("GetByID() username = %q, want alice", byID.Username)
	}

	byName, err := db.Users().GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if byName.ID != created.ID {
		t.Errorf("GetByUsername() id = %d, want %d", byName.ID, created.ID)
	}

	byEmail, err := db.Users().GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if byEmail.ID != created.ID {
		t.Errorf("GetByEmail() id = %d, want %d", byEmail.ID, created.ID)
	}

	if _, err := db.Users().GetByUsername(context.Background(), "nobody"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByUsername(nobody) error = %v, want ErrNotFound", err)
	}
}

func TestUserList_Pagination(t *testing.T) {
	db := newTestDB(t)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		createTestUser(t, db, name)
	}

	page, err := db.Users().List(context.Background(), repository.ListOptions{Skip: 1, Limit: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page) != 2 || page[0].Username != "b" || page[1].Username != "c" {
		t.Errorf("List(skip=1, limit=2) usernames = %v, want b, c", page)
	}

	empty, err := db.Users().List(context.Background(), repository.ListOptions{Skip: 100, Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("List(skip=100) returned %d users, want 0", len(empty))
	}

	n, _ := db.Users().Count(context.Background())
	if n != 5 {
		t.Errorf("Count() = %d, want 5", n)
	}
}

// =========================================================================
// ITEM CRUD TESTS
// =========================================================================

func TestItemCRUD(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	item := createTestItem(t, db, "laptop", 999.99, "electronics")
	if item.ID == 0 {
		t.Fatal("Create() did not set item.ID")
	}

	got, err := db.Items().GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "laptop" || got.Price != 999.99 {
		t.Errorf("GetByID() = %+v, want the created laptop", got)
	}

	got.Price = 899.99
	if err := db.Items().Update(context.Background(), got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	updated, _ := db.Items().GetByID(context.Background(), item.ID)
	if updated.Price != 899.99 {
		t.Errorf("price after update = %v, want 899.99", updated.Price)
	}
	if updated.UpdatedAt.Before(updated.CreatedAt) {
		t.Error("Update() should refresh updated_at")
	}

	if err := db.Items().Delete(context.Background(), item.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := db.Items().GetByID(context.Background(), item.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}
}

func TestItemUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)

	missing := &model.Item{ID: 42, Name: "ghost", Price: 1, Category: "misc"}
	if err := db.Items().Update(context.Background(), missing); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
	if err := db.Items().Delete(context.Background(), 42); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrNotFound", err)
	}
}

func TestItemDelete_IDNeverReused(t *testing.T) {
	db := newTestDB(t)
	first := createTestItem(t, db, "laptop", 999, "electronics")

	if err := db.Items().Delete(context.Background(), first.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	// AUTOINCREMENT guarantees the id is not handed out again
	second := createTestItem(t, db, "phone", 499, "electronics")
	if second.ID <= first.ID {
		t.Errorf("id after delete = %d, want > %d (ids must not be reused)", second.ID, first.ID)
	}
}

// =========================================================================
// FILTERED LISTING TESTS
// =========================================================================

func TestListFiltered_PriceRange(t *testing.T) {
	db := newTestDB(t)
	createTestItem(t, db, "cheap", 5, "misc")
	createTestItem(t, db, "middle", 15, "misc")
	createTestItem(t, db, "dear", 25, "misc")

	items, total, err := db.Items().ListFiltered(context.Background(),
		repository.ItemFilter{MinPrice: ptr(10), MaxPrice: ptr(20)},
		repository.ListOptions{Skip: 0, Limit: 10},
	)
	if err != nil {
		t.Fatalf("ListFiltered() error = %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].Name != "middle" {
		t.Errorf("price range [10, 20] matched %v (total %d), want just \"middle\"", items, total)
	}
}

func TestListFiltered_CategoryAndSearch(t *testing.T) {
	db := newTestDB(t)
	createTestItem(t, db, "Gaming Laptop", 999, "Electronics")
	createTestItem(t, db, "Mouse", 29, "Electronics")
	createTestItem(t, db, "Novel", 12, "books")

	// Category match is case-insensitive
	_, total, err := db.Items().ListFiltered(context.Background(),
		repository.ItemFilter{Category: "electronics"},
		repository.ListOptions{Limit: 10},
	)
	if err != nil {
		t.Fatalf("ListFiltered() error = %v", err)
	}
	if total != 2 {
		t.Errorf("category total = %d, want 2", total)
	}

	// Search matches name or description, case-insensitively
	items, total, err := db.Items().ListFiltered(context.Background(),
		repository.ItemFilter{Category: "electronics", Search: "laptop"},
		repository.ListOptions{Limit: 10},
	)
	if err != nil {
		t.Fatalf("ListFiltered() error = %v", err)
	}
	if total != 1 || items[0].Name != "Gaming Laptop" {
		t.Errorf("category+search matched %v (total %d), want just the laptop", items, total)
	}
}

func TestListFiltered_TotalCountsWholeFilteredSet(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 7; i++ {
		createTestItem(t, db, "widget", 10, "misc")
	}

	items, total, err := db.Items().ListFiltered(context.Background(),
		repository.ItemFilter{Category: "misc"},
		repository.ListOptions{Skip: 0, Limit: 3},
	)
	if err != nil {
		t.Fatalf("ListFiltered() error = %v", err)
	}
	if len(items) != 3 {
		t.Errorf("page size = %d, want 3", len(items))
	}
	if total != 7 {
		t.Errorf("total = %d, want 7 (total is the filtered set, not the page)", total)
	}
}

// =========================================================================
// SEARCH TESTS
// =========================================================================

func TestSearch_QueryMatchesCategoryToo(t *testing.T) {
	db := newTestDB(t)
	createTestItem(t, db, "laptop", 999, "electronics")
	createTestItem(t, db, "novel", 12, "books")

	items, err := db.Items().Search(context.Background(), repository.SearchOptions{Query: "electronics", Limit: 20})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(items) != 1 || items[0].Name != "laptop" {
		t.Errorf("query \"electronics\" = %v, want just the laptop", items)
	}
}

func TestSearch_SortByPriceAscending(t *testing.T) {
	db := newTestDB(t)
	createTestItem(t, db, "c", 30, "misc")
	createTestItem(t, db, "a", 10, "misc")
	createTestItem(t, db, "b", 20, "misc")

	items, err := db.Items().Search(context.Background(), repository.SearchOptions{
		SortBy: "price", SortOrder: "asc", Limit: 20,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	want := []float64{10, 20, 30}
	for i := range want {
		if items[i].Price != want[i] {
			t.Fatalf("prices = [%v %v %v], want %v", items[0].Price, items[1].Price, items[2].Price, want)
		}
	}
}

func TestSearch_DescendingSortKeepsInsertionOrderForTies(t *testing.T) {
	db := newTestDB(t)
	first := createTestItem(t, db, "first", 10, "misc")
	second := createTestItem(t, db, "second", 10, "misc")
	third := createTestItem(t, db, "third", 10, "misc")

	items, err := db.Items().Search(context.Background(), repository.SearchOptions{
		SortBy: "price", SortOrder: "desc", Limit: 20,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	// The id tiebreaker keeps equal-price rows in insertion order even when
	// the price sort is descending.
	if items[0].ID != first.ID || items[1].ID != second.ID || items[2].ID != third.ID {
		t.Errorf("equal-key order = [%d %d %d], want insertion order [%d %d %d]",
			items[0].ID, items[1].ID, items[2].ID, first.ID, second.ID, third.ID)
	}
}

func TestSearch_DefaultLimit(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 25; i++ {
		createTestItem(t, db, "widget", 10, "misc")
	}

	items, err := db.Items().Search(context.Background(), repository.SearchOptions{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(items) != 20 {
		t.Errorf("len = %d, want the default limit of 20", len(items))
	}
}

// =========================================================================
// OWNER AND AGGREGATE TESTS
// =========================================================================

func TestListByOwnerAndCounts(t *testing.T) {
	db := newTestDB(t)
	createTestItem(t, db, "mine", 10, "misc") // OwnerID 1
	other := &model.Item{Name: "theirs", Price: 20, Category: "misc", OwnerID: 2}
	if err := db.Items().Create(context.Background(), other); err != nil {
		t.Fatalf("Create: %v", err)
	}

	items, err := db.Items().ListByOwner(context.Background(), 1, repository.ListOptions{Limit: 100})
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(items) != 1 || items[0].Name != "mine" {
		t.Errorf("ListByOwner(1) = %v, want just \"mine\"", items)
	}

	n, _ := db.Items().CountByOwner(context.Background(), 2)
	if n != 1 {
		t.Errorf("CountByOwner(2) = %d, want 1", n)
	}
}

func TestCategorySummary(t *testing.T) {
	db := newTestDB(t)
	createTestItem(t, db, "laptop", 1000, "electronics")
	createTestItem(t, db, "phone", 500, "electronics")
	createTestItem(t, db, "novel", 12, "books")

	summary, err := db.Items().CategorySummary(context.Background())
	if err != nil {
		t.Fatalf("CategorySummary() error = %v", err)
	}

	if len(summary) != 2 {
		t.Fatalf("categories = %d, want 2", len(summary))
	}
	if got := summary["electronics"]; got.Count != 2 || got.AvgPrice != 750 {
		t.Errorf("electronics = %+v, want count 2 avg 750", got)
	}
	if got := summary["books"]; got.Count != 1 || got.AvgPrice != 12 {
		t.Errorf("books = %+v, want count 1 avg 12", got)
	}
}
