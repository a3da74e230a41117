// Package memory implements the repository interfaces with process-local
// slices. This is the application's default backend: all state lives (and
// dies) with the process, exactly like a tutorial API that keeps its
// "database" in two global lists.
//
// CONCURRENCY MODEL:
// One sync.Mutex guards BOTH collections and both id counters. Every
// operation — reads included — takes the lock, so all mutations are fully
// serialised and an item create can never race a user lookup. Per-collection
// locks would allow more parallelism, but then an operation touching both
// stores would need lock ordering rules; a single lock keeps the invariants
// trivial at this scale.
//
// ORDERING:
// Both slices are insertion-ordered. Pagination, filtering, and the "first
// match" semantics of lookups and deletes all work on that order. Ids come
// from monotonic counters and are never reused, even after deletion.
package memory

import (
	"sync"

	"github.com/sakif/marketplace-api/internal/model"
	"github.com/sakif/marketplace-api/internal/repository"
)

// COMPILE-TIME INTERFACE CHECKS:
// `var _ X = (*Y)(nil)` assigns a nil *Y to a variable of interface type X.
// If *Y doesn't implement X, the compiler errors immediately instead of at
// the call site much later. The `_` means the variable itself is never used.
var (
	_ repository.UserRepository = (*UserStore)(nil)
	_ repository.ItemRepository = (*ItemStore)(nil)
)

// Store holds every record the application knows about. One Store instance
// is created per process and shared by all requests.
//
// WHY SEPARATE VIEW TYPES?
// Both repository interfaces declare Create/GetByID/Count, and Go has no
// method overloading — one receiver cannot carry both method sets. So Store
// itself implements neither interface; the Users() and Items() views each
// implement one, while all data and the single mutex stay here.
type Store struct {
	mu sync.Mutex

	users      []model.User
	nextUserID int64

	items      []model.Item
	nextItemID int64
}

// New creates an empty Store.
func New() *Store {
	return &Store{}
}

// UserStore is the repository.UserRepository view over a Store.
type UserStore struct {
	s *Store
}

// Users returns the user view. Every call returns an equivalent view over
// the same shared state, so it's fine to call this more than once.
func (st *Store) Users() *UserStore {
	return &UserStore{s: st}
}

// ItemStore is the repository.ItemRepository view over a Store.
type ItemStore struct {
	s *Store
}

// Items returns the item view over the same shared state.
func (st *Store) Items() *ItemStore {
	return &ItemStore{s: st}
}
